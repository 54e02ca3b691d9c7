package model

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusUnknown = "unknown"
)

// OutcomeRecord is the stored result of resolving one extrinsic.
type OutcomeRecord struct {
	TxHash          string   `json:"tx_hash"`
	BlockHash       string   `json:"block_hash"`
	BlockNumber     uint64   `json:"block_number"`
	ExtrinsicIndex  uint32   `json:"extrinsic_index"`
	Status          string   `json:"status"`
	RefTime         uint64   `json:"ref_time"`
	ProofSize       uint64   `json:"proof_size"`
	DispatchClass   string   `json:"dispatch_class,omitempty"`
	Pallet          string   `json:"pallet,omitempty"`
	Error           string   `json:"error,omitempty"`
	Description     []string `json:"description,omitempty"`
	DispatchError   string   `json:"dispatch_error,omitempty"`
	MetadataVersion uint32   `json:"metadata_version"`
	ResolvedAt      string   `json:"resolved_at"`
}
