package model

// TypedEvent is a decoded event of one extrinsic, as written by the decode command.
type TypedEvent struct {
	TxHash         string       `json:"tx_hash"`
	BlockHash      string       `json:"block_hash"`
	BlockNumber    uint64       `json:"block_number"`
	ExtrinsicIndex uint32       `json:"extrinsic_index"`
	EventIndex     int          `json:"event_index"`
	Pallet         string       `json:"pallet"`
	Variant        string       `json:"variant"`
	Decoded        interface{}  `json:"decoded"`
	Raw            *RawEventRef `json:"raw,omitempty"`
}

// RawEventRef keeps a minimal raw reference for traceability.
type RawEventRef struct {
	PalletIndex  uint8  `json:"pallet_index"`
	VariantIndex uint8  `json:"variant_index"`
	Data         string `json:"data"`
}
