package events

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"extrinsicScope/internal/metadata"
)

// EventLookup resolves event layouts from the active metadata.
type EventLookup interface {
	EventVariant(palletIndex, variantIndex uint8) (metadata.EventVariant, bool)
}

// ErrUnknownEvent marks a record whose discriminants the active metadata does
// not know.
var ErrUnknownEvent = errors.New("unknown event")

// DecodeError reports an event record that does not match the active metadata.
type DecodeError struct {
	Index   int
	Pallet  string
	Variant string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Pallet != "" {
		return fmt.Sprintf("decode event %d (%s::%s): %v", e.Index, e.Pallet, e.Variant, e.Err)
	}
	return fmt.Sprintf("decode event %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// RawEvent is the undecoded view of a record: its discriminants resolved to
// names and its field payload still encoded.
type RawEvent struct {
	Index          int
	Phase          Phase
	ExtrinsicIndex uint32
	PalletIndex    uint8
	VariantIndex   uint8
	Pallet         string
	Variant        string
	Fields         []metadata.Field
	Data           rlp.RawValue
	Bytes          []byte
}

func (r RawEvent) IsExtrinsicFailed() bool {
	return r.Pallet == SystemPallet && r.Variant == ExtrinsicFailedName
}

func (r RawEvent) IsExtrinsicSuccess() bool {
	return r.Pallet == SystemPallet && r.Variant == ExtrinsicSuccessName
}

// EventRecord pairs the raw and typed views of the same record.
type EventRecord struct {
	Raw   RawEvent
	Event Event
}

// Decoder turns wire records into EventRecords using the active metadata.
type Decoder struct {
	lookup EventLookup
	domain map[string]struct{}
}

// NewDecoder builds a decoder. Events of the domain pallets decode to
// DomainEvent; Gear is the domain pallet when none are given.
func NewDecoder(lookup EventLookup, domainPallets ...string) *Decoder {
	if len(domainPallets) == 0 {
		domainPallets = []string{"Gear"}
	}
	domain := make(map[string]struct{}, len(domainPallets))
	for _, name := range domainPallets {
		domain[name] = struct{}{}
	}
	return &Decoder{lookup: lookup, domain: domain}
}

// DecodeRaw resolves a record's discriminants without decoding its fields.
func (d *Decoder) DecodeRaw(data []byte) (RawEvent, error) {
	w, err := splitRecord(data)
	if err != nil {
		return RawEvent{}, err
	}
	return d.resolve(w, data)
}

// splitRecord reads the record envelope. It needs no metadata.
func splitRecord(data []byte) (wireRecord, error) {
	var w wireRecord
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return wireRecord{}, &DecodeError{Err: fmt.Errorf("record: %w", err)}
	}
	return w, nil
}

func (d *Decoder) resolve(w wireRecord, data []byte) (RawEvent, error) {
	if d.lookup == nil {
		return RawEvent{}, &DecodeError{Err: fmt.Errorf("no metadata")}
	}
	variant, ok := d.lookup.EventVariant(w.PalletIndex, w.VariantIndex)
	if !ok {
		return RawEvent{}, &DecodeError{Err: fmt.Errorf("%w %d:%d", ErrUnknownEvent, w.PalletIndex, w.VariantIndex)}
	}
	return RawEvent{
		Phase:          w.Phase,
		ExtrinsicIndex: w.ExtrinsicIndex,
		PalletIndex:    w.PalletIndex,
		VariantIndex:   w.VariantIndex,
		Pallet:         variant.Pallet,
		Variant:        variant.Variant,
		Fields:         variant.Fields,
		Data:           w.Fields,
		Bytes:          data,
	}, nil
}

// DecodeEvent decodes the typed view of a raw event.
func (d *Decoder) DecodeEvent(raw RawEvent) (Event, error) {
	values, err := decodeFields(raw.Fields, raw.Data)
	if err != nil {
		return nil, raw.decodeError(err)
	}

	switch {
	case raw.IsExtrinsicSuccess():
		info, ok := valueOf[DispatchInfo](values)
		if !ok {
			return nil, raw.decodeError(fmt.Errorf("missing %s field", typeDispatchInfo))
		}
		return ExtrinsicSuccess{DispatchInfo: info}, nil
	case raw.IsExtrinsicFailed():
		// Layouts that do not type the error leave it zero; the resolver
		// reads it from the raw payload.
		de, _ := valueOf[DispatchError](values)
		info, ok := valueOf[DispatchInfo](values)
		if !ok {
			return nil, raw.decodeError(fmt.Errorf("missing %s field", typeDispatchInfo))
		}
		return ExtrinsicFailed{DispatchError: de, DispatchInfo: info}, nil
	case raw.Pallet == SystemPallet:
		return SystemEvent{Name: raw.Variant, Fields: values}, nil
	}

	if _, ok := d.domain[raw.Pallet]; ok {
		return DomainEvent{PalletName: raw.Pallet, Name: raw.Variant, Fields: values}, nil
	}
	return PalletEvent{PalletName: raw.Pallet, Name: raw.Variant, Fields: values}, nil
}

// DecodeRecord produces both views of one record.
func (d *Decoder) DecodeRecord(data []byte) (EventRecord, error) {
	raw, err := d.DecodeRaw(data)
	if err != nil {
		return EventRecord{}, err
	}
	ev, err := d.DecodeEvent(raw)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{Raw: raw, Event: ev}, nil
}

// DecodeRecordAt decodes the record found at position index of its list.
func (d *Decoder) DecodeRecordAt(index int, data []byte) (EventRecord, error) {
	rec, err := d.DecodeRecord(data)
	if err != nil {
		return EventRecord{}, withIndex(err, index)
	}
	rec.Raw.Index = index
	return rec, nil
}

func (r RawEvent) decodeError(err error) *DecodeError {
	return &DecodeError{Index: r.Index, Pallet: r.Pallet, Variant: r.Variant, Err: err}
}

func withIndex(err error, index int) error {
	if de, ok := err.(*DecodeError); ok {
		de.Index = index
		return de
	}
	return &DecodeError{Index: index, Err: err}
}

func decodeFields(fields []metadata.Field, data []byte) ([]FieldValue, error) {
	elems, err := splitFields(data)
	if err != nil {
		return nil, err
	}
	if len(elems) != len(fields) {
		return nil, fmt.Errorf("expected %d fields, got %d", len(fields), len(elems))
	}

	values := make([]FieldValue, 0, len(fields))
	for i, field := range fields {
		v, err := decodeValue(field.Type, elems[i])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		values = append(values, FieldValue{Name: field.Name, Type: field.Type, Value: v})
	}
	return values, nil
}

func valueOf[T any](values []FieldValue) (T, bool) {
	for _, v := range values {
		if typed, ok := v.Value.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}
