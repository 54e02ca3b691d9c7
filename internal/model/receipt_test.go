package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func TestReceiptJSONWireFormat(t *testing.T) {
	input := []byte(`{
		"txHash": "0x1111111111111111111111111111111111111111111111111111111111111111",
		"blockHash": "0x2222222222222222222222222222222222222222222222222222222222222222",
		"blockNumber": "0x2a",
		"extrinsicIndex": 3,
		"events": ["0xc0", "0xdeadbeef"]
	}`)

	var receipt Receipt
	if err := json.Unmarshal(input, &receipt); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	want := Receipt{
		TxHash:         common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111"),
		BlockHash:      common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222"),
		BlockNumber:    hexutil.Uint64(42),
		ExtrinsicIndex: 3,
		Events:         []hexutil.Bytes{{0xc0}, {0xde, 0xad, 0xbe, 0xef}},
	}
	if !reflect.DeepEqual(receipt, want) {
		t.Fatalf("receipt mismatch: %+v != %+v", receipt, want)
	}
}
