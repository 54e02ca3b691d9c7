package events

import (
	"fmt"
	"math/big"
)

const (
	SystemPallet         = "System"
	ExtrinsicSuccessName = "ExtrinsicSuccess"
	ExtrinsicFailedName  = "ExtrinsicFailed"
)

// Event is a decoded runtime event. Concrete values are ExtrinsicSuccess,
// ExtrinsicFailed, SystemEvent, DomainEvent and PalletEvent.
type Event interface {
	Pallet() string
	Variant() string
	Values() []FieldValue
}

// FieldValue is one decoded event field.
type FieldValue struct {
	Name  string      `json:"name"`
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Weight is the two-dimensional execution cost of a dispatch.
type Weight struct {
	RefTime   uint64 `json:"ref_time"`
	ProofSize uint64 `json:"proof_size"`
}

// DispatchClass categorizes a dispatch.
type DispatchClass uint8

const (
	DispatchClassNormal DispatchClass = iota
	DispatchClassOperational
	DispatchClassMandatory
)

func (c DispatchClass) String() string {
	switch c {
	case DispatchClassNormal:
		return "normal"
	case DispatchClassOperational:
		return "operational"
	case DispatchClassMandatory:
		return "mandatory"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// DispatchInfo is the cost accounting attached to a terminal extrinsic event.
type DispatchInfo struct {
	Weight  Weight        `json:"weight"`
	Class   DispatchClass `json:"class"`
	PaysFee bool          `json:"pays_fee"`
}

func (d DispatchInfo) String() string {
	return fmt.Sprintf("{ref_time: %d, proof_size: %d, class: %s, pays_fee: %t}",
		d.Weight.RefTime, d.Weight.ProofSize, d.Class, d.PaysFee)
}

// DispatchErrorKind discriminates DispatchError.
type DispatchErrorKind uint8

const (
	DispatchErrorOther DispatchErrorKind = iota
	DispatchErrorCannotLookup
	DispatchErrorBadOrigin
	DispatchErrorModule
	DispatchErrorConsumerRemaining
	DispatchErrorNoProviders
	DispatchErrorTooManyConsumers
	DispatchErrorToken
	DispatchErrorArithmetic
	DispatchErrorTransactional
	DispatchErrorExhausted
	DispatchErrorCorruption
	DispatchErrorUnavailable
)

var dispatchErrorKindNames = [...]string{
	"Other",
	"CannotLookup",
	"BadOrigin",
	"Module",
	"ConsumerRemaining",
	"NoProviders",
	"TooManyConsumers",
	"Token",
	"Arithmetic",
	"Transactional",
	"Exhausted",
	"Corruption",
	"Unavailable",
}

func (k DispatchErrorKind) String() string {
	if int(k) < len(dispatchErrorKindNames) {
		return dispatchErrorKindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ModuleErrorData locates a pallet error. The error index is the first byte of Error.
type ModuleErrorData struct {
	PalletIndex uint8   `json:"pallet_index"`
	Error       [4]byte `json:"error"`
}

func (m ModuleErrorData) ErrorIndex() uint8 {
	return m.Error[0]
}

// DispatchError is the opaque failure code carried by ExtrinsicFailed.
type DispatchError struct {
	Kind   DispatchErrorKind `json:"kind"`
	Module ModuleErrorData   `json:"module"`
	Detail uint8             `json:"detail"`
}

// ModuleError returns the module error location when the failure came from a pallet.
func (e DispatchError) ModuleError() (ModuleErrorData, bool) {
	if e.Kind != DispatchErrorModule {
		return ModuleErrorData{}, false
	}
	return e.Module, true
}

func (e DispatchError) String() string {
	switch e.Kind {
	case DispatchErrorModule:
		return fmt.Sprintf("Module{index: %d, error: %#x}", e.Module.PalletIndex, e.Module.Error)
	case DispatchErrorToken, DispatchErrorArithmetic, DispatchErrorTransactional:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Detail)
	default:
		return e.Kind.String()
	}
}

// ExtrinsicSuccess marks a successfully dispatched extrinsic.
type ExtrinsicSuccess struct {
	DispatchInfo DispatchInfo
}

func (ExtrinsicSuccess) Pallet() string  { return SystemPallet }
func (ExtrinsicSuccess) Variant() string { return ExtrinsicSuccessName }

func (e ExtrinsicSuccess) Values() []FieldValue {
	return []FieldValue{{Name: "dispatch_info", Type: typeDispatchInfo, Value: e.DispatchInfo}}
}

// ExtrinsicFailed marks a failed extrinsic.
type ExtrinsicFailed struct {
	DispatchError DispatchError
	DispatchInfo  DispatchInfo
}

func (ExtrinsicFailed) Pallet() string  { return SystemPallet }
func (ExtrinsicFailed) Variant() string { return ExtrinsicFailedName }

func (e ExtrinsicFailed) Values() []FieldValue {
	return []FieldValue{
		{Name: "dispatch_error", Type: typeDispatchError, Value: e.DispatchError},
		{Name: "dispatch_info", Type: typeDispatchInfo, Value: e.DispatchInfo},
	}
}

// SystemEvent is any other System pallet event.
type SystemEvent struct {
	Name   string
	Fields []FieldValue
}

func (SystemEvent) Pallet() string         { return SystemPallet }
func (e SystemEvent) Variant() string      { return e.Name }
func (e SystemEvent) Values() []FieldValue { return e.Fields }

// DomainEvent is an event of an application pallet the caller waits on.
type DomainEvent struct {
	PalletName string
	Name       string
	Fields     []FieldValue
}

func (e DomainEvent) Pallet() string       { return e.PalletName }
func (e DomainEvent) Variant() string      { return e.Name }
func (e DomainEvent) Values() []FieldValue { return e.Fields }

// Field returns the value of the named field.
func (e DomainEvent) Field(name string) (interface{}, bool) {
	return lookupField(e.Fields, name)
}

// PalletEvent is an event of any other pallet, passed through unmodified.
type PalletEvent struct {
	PalletName string
	Name       string
	Fields     []FieldValue
}

func (e PalletEvent) Pallet() string       { return e.PalletName }
func (e PalletEvent) Variant() string      { return e.Name }
func (e PalletEvent) Values() []FieldValue { return e.Fields }

func lookupField(fields []FieldValue, name string) (interface{}, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// FormatValue renders a field value the way the CLI prints and matches it.
func FormatValue(value interface{}) string {
	switch v := value.(type) {
	case *big.Int:
		return v.String()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
