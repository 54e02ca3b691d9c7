package events

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"
)

// Phase is the block execution phase that emitted an event.
type Phase uint8

const (
	PhaseApplyExtrinsic Phase = iota
	PhaseFinalization
	PhaseInitialization
)

func (p Phase) String() string {
	switch p {
	case PhaseApplyExtrinsic:
		return "apply_extrinsic"
	case PhaseFinalization:
		return "finalization"
	case PhaseInitialization:
		return "initialization"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

const (
	typeU8            = "u8"
	typeU16           = "u16"
	typeU32           = "u32"
	typeU64           = "u64"
	typeU128          = "u128"
	typeBalance       = "Balance"
	typeBool          = "bool"
	typeBytes         = "bytes"
	typeString        = "string"
	typeH256          = "H256"
	typeAccountID     = "AccountId"
	typeDispatchInfo  = "DispatchInfo"
	typeDispatchError = "DispatchError"
)

var errEmptyPayload = errors.New("empty event payload")

// wireRecord is the RLP layout of one event record as emitted by the node.
type wireRecord struct {
	Phase          Phase
	ExtrinsicIndex uint32
	PalletIndex    uint8
	VariantIndex   uint8
	Fields         rlp.RawValue
}

// EncodeRecord builds the wire form of an event record. Fields are encoded in order.
func EncodeRecord(phase Phase, extrinsicIndex uint32, palletIndex, variantIndex uint8, fields ...interface{}) ([]byte, error) {
	if fields == nil {
		fields = []interface{}{}
	}
	payload, err := rlp.EncodeToBytes(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return rlp.EncodeToBytes(wireRecord{
		Phase:          phase,
		ExtrinsicIndex: extrinsicIndex,
		PalletIndex:    palletIndex,
		VariantIndex:   variantIndex,
		Fields:         payload,
	})
}

// splitFields returns the encoded elements of a field list in order.
func splitFields(data []byte) ([][]byte, error) {
	content, rest, err := rlp.SplitList(data)
	if err != nil {
		return nil, fmt.Errorf("field list: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("field list: %d trailing bytes", len(rest))
	}

	var out [][]byte
	for len(content) > 0 {
		_, _, next, err := rlp.Split(content)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", len(out), err)
		}
		out = append(out, content[:len(content)-len(next)])
		content = next
	}
	return out, nil
}

// DecodeDispatchError reads the error code from the first field of a raw
// ExtrinsicFailed payload, without relying on the typed layout.
func DecodeDispatchError(data []byte) (DispatchError, error) {
	elems, err := splitFields(data)
	if err != nil {
		return DispatchError{}, err
	}
	if len(elems) == 0 {
		return DispatchError{}, errEmptyPayload
	}
	var de DispatchError
	if err := rlp.DecodeBytes(elems[0], &de); err != nil {
		return DispatchError{}, fmt.Errorf("dispatch error: %w", err)
	}
	return de, nil
}

func decodeValue(typ string, data []byte) (interface{}, error) {
	switch typ {
	case typeU8, typeU16, typeU32, typeU64:
		var v uint64
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		if err := checkUintWidth(typ, v); err != nil {
			return nil, err
		}
		return v, nil
	case typeU128, typeBalance:
		v := new(big.Int)
		if err := rlp.DecodeBytes(data, v); err != nil {
			return nil, err
		}
		if v.BitLen() > 128 {
			return nil, fmt.Errorf("%s overflow: %s", typ, v.String())
		}
		return v, nil
	case typeBool:
		var v bool
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case typeBytes:
		var v []byte
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		return hexutil.Bytes(v), nil
	case typeString:
		var v string
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case typeH256, typeAccountID:
		var v common.Hash
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case typeDispatchInfo:
		var v DispatchInfo
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	case typeDispatchError:
		var v DispatchError
		if err := rlp.DecodeBytes(data, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		// Types without a codec keep their encoded form.
		return hexutil.Bytes(data), nil
	}
}

func checkUintWidth(typ string, v uint64) error {
	var max uint64
	switch typ {
	case typeU8:
		max = 1<<8 - 1
	case typeU16:
		max = 1<<16 - 1
	case typeU32:
		max = 1<<32 - 1
	default:
		return nil
	}
	if v > max {
		return fmt.Errorf("%s overflow: %d", typ, v)
	}
	return nil
}
