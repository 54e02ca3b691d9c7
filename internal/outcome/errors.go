package outcome

import (
	"fmt"
	"strings"

	"extrinsicScope/internal/events"
)

// ModuleError reports an extrinsic rejected by pallet logic, resolved through
// the chain metadata.
type ModuleError struct {
	Pallet      string
	Name        string
	Description []string
	Data        events.ModuleErrorData
}

func (e *ModuleError) Error() string {
	if len(e.Description) == 0 {
		return fmt.Sprintf("%s::%s", e.Pallet, e.Name)
	}
	return fmt.Sprintf("%s::%s: %s", e.Pallet, e.Name, strings.Join(e.Description, " "))
}

// RuntimeError reports a failure whose code does not resolve to a known module
// error. Code is the dispatch error exactly as emitted.
type RuntimeError struct {
	Code events.DispatchError
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %s", e.Code)
}
