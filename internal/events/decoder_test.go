package events

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"extrinsicScope/internal/metadata"
	"extrinsicScope/internal/model"
)

const (
	balancesIndex   uint8 = 3
	transferIndex   uint8 = 2
	gearIndex       uint8 = 104
	userMessageSent uint8 = 1
)

func testDecoder(t *testing.T) *Decoder {
	t.Helper()
	md, err := metadata.LoadFile("../metadata/testdata/metadata.json")
	require.NoError(t, err)
	reg, err := metadata.NewRegistry(md)
	require.NoError(t, err)
	return NewDecoder(reg)
}

func successInfo(refTime uint64) DispatchInfo {
	return DispatchInfo{Weight: Weight{RefTime: refTime, ProofSize: 10}, Class: DispatchClassNormal, PaysFee: true}
}

func TestDecodeExtrinsicSuccess(t *testing.T) {
	dec := testDecoder(t)
	data := MustRecord(PhaseApplyExtrinsic, 1, SystemIndex, ExtrinsicSuccessIndex, successInfo(100))

	rec, err := dec.DecodeRecord(data)
	require.NoError(t, err)
	require.True(t, rec.Raw.IsExtrinsicSuccess())
	require.Equal(t, uint32(1), rec.Raw.ExtrinsicIndex)
	require.Equal(t, []byte(data), rec.Raw.Bytes)

	ev, ok := rec.Event.(ExtrinsicSuccess)
	require.True(t, ok, "unexpected type %T", rec.Event)
	require.Equal(t, uint64(100), ev.DispatchInfo.Weight.RefTime)
	require.True(t, ev.DispatchInfo.PaysFee)
}

func TestDecodeExtrinsicFailedRawAndTypedAgree(t *testing.T) {
	dec := testDecoder(t)
	code := ModuleDispatchError(3, 2)
	data := MustRecord(PhaseApplyExtrinsic, 0, SystemIndex, ExtrinsicFailedIndex, code, successInfo(50))

	rec, err := dec.DecodeRecord(data)
	require.NoError(t, err)
	require.True(t, rec.Raw.IsExtrinsicFailed())

	failed, ok := rec.Event.(ExtrinsicFailed)
	require.True(t, ok)
	require.Equal(t, code, failed.DispatchError)
	require.Equal(t, uint64(50), failed.DispatchInfo.Weight.RefTime)

	fromRaw, err := DecodeDispatchError(rec.Raw.Data)
	require.NoError(t, err)
	require.Equal(t, code, fromRaw)

	module, ok := fromRaw.ModuleError()
	require.True(t, ok)
	require.Equal(t, uint8(3), module.PalletIndex)
	require.Equal(t, uint8(2), module.ErrorIndex())
}

func TestDecodeDomainAndPalletEvents(t *testing.T) {
	dec := testDecoder(t)
	id := common.HexToHash("0x01")
	dest := common.HexToHash("0x02")

	rec, err := dec.DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, gearIndex, userMessageSent, id, dest, hexutil.Bytes("ping"), big.NewInt(7)))
	require.NoError(t, err)
	domain, ok := rec.Event.(DomainEvent)
	require.True(t, ok, "unexpected type %T", rec.Event)
	require.Equal(t, "Gear", domain.Pallet())
	require.Equal(t, "UserMessageSent", domain.Variant())

	got, ok := domain.Field("destination")
	require.True(t, ok)
	require.Equal(t, dest, got)
	payload, _ := domain.Field("payload")
	require.Equal(t, hexutil.Bytes("ping"), payload)
	value, _ := domain.Field("value")
	require.Equal(t, "7", FormatValue(value))

	rec, err = dec.DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, balancesIndex, transferIndex, id, dest, big.NewInt(1000)))
	require.NoError(t, err)
	pallet, ok := rec.Event.(PalletEvent)
	require.True(t, ok, "unexpected type %T", rec.Event)
	require.Equal(t, "Balances", pallet.Pallet())
	require.Len(t, pallet.Values(), 3)
}

func TestDecodeConfiguredDomainPallet(t *testing.T) {
	md, err := metadata.LoadFile("../metadata/testdata/metadata.json")
	require.NoError(t, err)
	reg, err := metadata.NewRegistry(md)
	require.NoError(t, err)
	dec := NewDecoder(reg, "Balances")

	rec, err := dec.DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, balancesIndex, transferIndex, common.Hash{}, common.Hash{}, big.NewInt(1)))
	require.NoError(t, err)
	_, ok := rec.Event.(DomainEvent)
	require.True(t, ok)
}

func TestDecodeErrors(t *testing.T) {
	dec := testDecoder(t)

	_, err := dec.DecodeRecord([]byte{0x01, 0x02})
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))

	_, err = dec.DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, 77, 0))
	require.True(t, errors.As(err, &decErr))
	require.Contains(t, err.Error(), "unknown event 77:0")

	// ExtrinsicSuccess expects exactly one field.
	_, err = dec.DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, SystemIndex, ExtrinsicSuccessIndex))
	require.True(t, errors.As(err, &decErr))
	require.Equal(t, "ExtrinsicSuccess", decErr.Variant)

	// u32 field carrying a wider value.
	_, err = dec.DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, gearIndex, 3, uint64(1)<<40))
	require.True(t, errors.As(err, &decErr))
}

func TestDecodeDispatchErrorEmptyPayload(t *testing.T) {
	_, err := DecodeDispatchError([]byte{0xc0})
	require.ErrorIs(t, err, errEmptyPayload)
}

func TestNewBundleFiltersByExtrinsic(t *testing.T) {
	dec := testDecoder(t)
	receipt := model.Receipt{
		TxHash:         common.HexToHash("0xaa"),
		BlockHash:      common.HexToHash("0xbb"),
		BlockNumber:    9,
		ExtrinsicIndex: 2,
		Events: []hexutil.Bytes{
			MustRecord(PhaseInitialization, 0, gearIndex, 3, uint64(1)),
			MustRecord(PhaseApplyExtrinsic, 1, SystemIndex, ExtrinsicSuccessIndex, successInfo(1)),
			MustRecord(PhaseApplyExtrinsic, 2, balancesIndex, transferIndex, common.Hash{}, common.Hash{}, big.NewInt(5)),
			MustRecord(PhaseApplyExtrinsic, 2, SystemIndex, ExtrinsicSuccessIndex, successInfo(2)),
			MustRecord(PhaseFinalization, 0, gearIndex, 3, uint64(2)),
		},
	}

	bundle, err := NewBundle(dec, receipt)
	require.NoError(t, err)
	require.Equal(t, 2, bundle.Len())
	require.Equal(t, uint64(9), bundle.BlockNumber)

	records, err := bundle.Records()
	require.NoError(t, err)
	require.Equal(t, 2, records[0].Raw.Index)
	require.Equal(t, "Transfer", records[0].Event.Variant())
	require.Equal(t, 3, records[1].Raw.Index)
	require.True(t, records[1].Raw.IsExtrinsicSuccess())
}

func TestNewBundleIgnoresUnknownEventsOfOtherExtrinsics(t *testing.T) {
	dec := testDecoder(t)
	receipt := model.Receipt{
		ExtrinsicIndex: 1,
		Events: []hexutil.Bytes{
			MustRecord(PhaseInitialization, 0, 200, 0),
			MustRecord(PhaseApplyExtrinsic, 0, 201, 4, uint64(9)),
			MustRecord(PhaseApplyExtrinsic, 1, SystemIndex, ExtrinsicSuccessIndex, successInfo(100)),
			MustRecord(PhaseFinalization, 0, 200, 0),
		},
	}

	bundle, err := NewBundle(dec, receipt)
	require.NoError(t, err)
	require.Equal(t, 1, bundle.Len())

	records, err := bundle.Records()
	require.NoError(t, err)
	require.Equal(t, 2, records[0].Raw.Index)
	require.True(t, records[0].Raw.IsExtrinsicSuccess())
}

func TestBundleDecodesRecordsOnRead(t *testing.T) {
	dec := testDecoder(t)
	bundle, err := NewBundle(dec, model.Receipt{
		Events: []hexutil.Bytes{
			MustRecord(PhaseApplyExtrinsic, 0, SystemIndex, ExtrinsicSuccessIndex, successInfo(100)),
			MustRecord(PhaseApplyExtrinsic, 0, 200, 0),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, bundle.Len())

	rec, err := bundle.Record(0)
	require.NoError(t, err)
	require.True(t, rec.Raw.IsExtrinsicSuccess())

	_, err = bundle.Raw(1)
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	require.ErrorIs(t, err, ErrUnknownEvent)
	require.Equal(t, 1, decErr.Index)

	_, err = bundle.Records()
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestNewBundleRejectsMalformedEnvelope(t *testing.T) {
	_, err := NewBundle(testDecoder(t), model.Receipt{
		Events: []hexutil.Bytes{
			MustRecord(PhaseApplyExtrinsic, 0, SystemIndex, ExtrinsicSuccessIndex, successInfo(1)),
			{0x01, 0x02},
		},
	})
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Equal(t, 1, decErr.Index)
}

func TestDecodeRecordAtReportsPosition(t *testing.T) {
	dec := testDecoder(t)

	rec, err := dec.DecodeRecordAt(4, MustRecord(PhaseApplyExtrinsic, 0, gearIndex, 3, uint64(1)))
	require.NoError(t, err)
	require.Equal(t, 4, rec.Raw.Index)

	_, err = dec.DecodeRecordAt(1, MustRecord(PhaseApplyExtrinsic, 0, 99, 0))
	var decErr *DecodeError
	require.True(t, errors.As(err, &decErr))
	require.Equal(t, 1, decErr.Index)
}

func TestDecodeExtrinsicFailedWithoutTypedError(t *testing.T) {
	md, err := metadata.Parse([]byte(`{
		"specVersion": 141,
		"pallets": [{
			"index": 0,
			"name": "System",
			"events": [{
				"index": 1,
				"name": "ExtrinsicFailed",
				"fields": [
					{"name": "dispatch_error", "type": "SpRuntimeDispatchError"},
					{"name": "dispatch_info", "type": "DispatchInfo"}
				]
			}]
		}]
	}`))
	require.NoError(t, err)
	reg, err := metadata.NewRegistry(md)
	require.NoError(t, err)

	code := ModuleDispatchError(3, 2)
	rec, err := NewDecoder(reg).DecodeRecord(MustRecord(PhaseApplyExtrinsic, 0, SystemIndex, ExtrinsicFailedIndex, code, successInfo(50)))
	require.NoError(t, err)

	failed, ok := rec.Event.(ExtrinsicFailed)
	require.True(t, ok, "unexpected type %T", rec.Event)
	require.Equal(t, DispatchError{}, failed.DispatchError)
	require.Equal(t, uint64(50), failed.DispatchInfo.Weight.RefTime)

	fromRaw, err := DecodeDispatchError(rec.Raw.Data)
	require.NoError(t, err)
	require.Equal(t, code, fromRaw)
}

func TestTypedEventsFlattenBundle(t *testing.T) {
	dec := testDecoder(t)
	receipt := model.Receipt{
		TxHash:         common.HexToHash("0xaa"),
		BlockNumber:    4,
		ExtrinsicIndex: 1,
		Events: []hexutil.Bytes{
			MustRecord(PhaseApplyExtrinsic, 1, balancesIndex, transferIndex, common.Hash{}, common.HexToHash("0x02"), big.NewInt(5)),
			MustRecord(PhaseApplyExtrinsic, 1, SystemIndex, ExtrinsicSuccessIndex, successInfo(7)),
		},
	}
	bundle, err := NewBundle(dec, receipt)
	require.NoError(t, err)

	typed, err := TypedEvents(bundle)
	require.NoError(t, err)
	require.Len(t, typed, 2)
	require.Equal(t, "Balances", typed[0].Pallet)
	require.Equal(t, map[string]string{
		"from":   common.Hash{}.Hex(),
		"to":     common.HexToHash("0x02").Hex(),
		"amount": "5",
	}, typed[0].Decoded)
	require.Equal(t, hexutil.Encode(receipt.Events[0]), typed[0].Raw.Data)
	require.Equal(t, map[string]string{
		"dispatch_info": "{ref_time: 7, proof_size: 10, class: normal, pays_fee: true}",
	}, typed[1].Decoded)
	require.Equal(t, 1, typed[1].EventIndex)
}

func TestDecodeErrorRecordKeepsEventPosition(t *testing.T) {
	dec := testDecoder(t)
	receipt := model.Receipt{
		TxHash: common.HexToHash("0xaa"),
		Events: []hexutil.Bytes{
			MustRecord(PhaseApplyExtrinsic, 0, SystemIndex, ExtrinsicSuccessIndex, successInfo(1)),
			MustRecord(PhaseApplyExtrinsic, 0, balancesIndex, transferIndex, uint64(1)),
		},
	}
	bundle, err := NewBundle(dec, receipt)
	require.NoError(t, err)
	_, err = TypedEvents(bundle)
	require.Error(t, err)

	record := DecodeErrorRecord(receipt, err)
	require.Equal(t, 1, record.EventIndex)
	require.Equal(t, "Balances", record.Pallet)
	require.Equal(t, "Transfer", record.Variant)

	plain := DecodeErrorRecord(receipt, errors.New("bad line"))
	require.Equal(t, -1, plain.EventIndex)
	require.Equal(t, "bad line", plain.Error)
}
