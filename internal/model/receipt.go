package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt is the node's answer for an included extrinsic. Events holds every
// record of the including block in emission order.
type Receipt struct {
	TxHash         common.Hash     `json:"txHash"`
	BlockHash      common.Hash     `json:"blockHash"`
	BlockNumber    hexutil.Uint64  `json:"blockNumber"`
	ExtrinsicIndex uint32          `json:"extrinsicIndex"`
	Events         []hexutil.Bytes `json:"events"`
}

// EventBatch is one block's worth of events delivered by the event subscription.
type EventBatch struct {
	BlockHash   common.Hash     `json:"blockHash"`
	BlockNumber hexutil.Uint64  `json:"blockNumber"`
	Events      []hexutil.Bytes `json:"events"`
}
