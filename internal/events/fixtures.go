package events

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Indices of the System pallet and its terminal extrinsic events.
const (
	SystemIndex           uint8 = 0
	ExtrinsicSuccessIndex uint8 = 0
	ExtrinsicFailedIndex  uint8 = 1
)

// MustRecord encodes a record and panics on failure. It is meant for tests
// and fixtures.
func MustRecord(phase Phase, extrinsicIndex uint32, palletIndex, variantIndex uint8, fields ...interface{}) hexutil.Bytes {
	data, err := EncodeRecord(phase, extrinsicIndex, palletIndex, variantIndex, fields...)
	if err != nil {
		panic(err)
	}
	return data
}

// ModuleDispatchError builds the DispatchError of a pallet error.
func ModuleDispatchError(palletIndex, errorIndex uint8) DispatchError {
	return DispatchError{
		Kind:   DispatchErrorModule,
		Module: ModuleErrorData{PalletIndex: palletIndex, Error: [4]byte{errorIndex}},
	}
}
