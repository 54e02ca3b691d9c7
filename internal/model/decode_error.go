package model

// DecodeError records a receipt that could not be decoded.
type DecodeError struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	EventIndex  int    `json:"event_index"`
	Pallet      string `json:"pallet,omitempty"`
	Variant     string `json:"variant,omitempty"`
	Error       string `json:"error"`
}
