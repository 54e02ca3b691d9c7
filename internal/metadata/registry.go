package metadata

import (
	"fmt"
	"sort"
	"sync"
)

// ErrorDetails is the resolved, human readable form of a pallet error.
type ErrorDetails struct {
	PalletIndex uint8    `json:"pallet_index"`
	ErrorIndex  uint8    `json:"error_index"`
	Pallet      string   `json:"pallet"`
	Error       string   `json:"error"`
	Description []string `json:"description"`
}

// EventVariant is the layout of one event as known to the current metadata.
type EventVariant struct {
	PalletIndex  uint8
	VariantIndex uint8
	Pallet       string
	Variant      string
	Fields       []Field
}

type key struct {
	pallet uint8
	index  uint8
}

// index is an immutable lookup view over one Metadata.
type index struct {
	version      uint32
	errors       map[key]ErrorDetails
	events       map[key]EventVariant
	palletErrors map[string][]ErrorDetails
}

func buildIndex(md *Metadata) *index {
	idx := &index{
		version:      md.SpecVersion,
		errors:       make(map[key]ErrorDetails),
		events:       make(map[key]EventVariant),
		palletErrors: make(map[string][]ErrorDetails, len(md.Pallets)),
	}
	for _, pallet := range md.Pallets {
		for _, ev := range pallet.Events {
			idx.events[key{pallet.Index, ev.Index}] = EventVariant{
				PalletIndex:  pallet.Index,
				VariantIndex: ev.Index,
				Pallet:       pallet.Name,
				Variant:      ev.Name,
				Fields:       append([]Field(nil), ev.Fields...),
			}
		}

		list := make([]ErrorDetails, 0, len(pallet.Errors))
		for _, e := range pallet.Errors {
			details := ErrorDetails{
				PalletIndex: pallet.Index,
				ErrorIndex:  e.Index,
				Pallet:      pallet.Name,
				Error:       e.Name,
				Description: append([]string(nil), e.Docs...),
			}
			idx.errors[key{pallet.Index, e.Index}] = details
			list = append(list, details)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].ErrorIndex < list[j].ErrorIndex })
		idx.palletErrors[pallet.Name] = list
	}
	return idx
}

// emptyIndex backs a Registry that has not been given metadata yet.
var emptyIndex = &index{}

// Registry is a versioned view of the chain metadata shared by decoders and
// resolvers. Readers take the read lock per lookup; Update swaps the whole
// view under the write lock. The zero value knows no events or errors until
// Update is called.
type Registry struct {
	mu  sync.RWMutex
	idx *index
}

func (r *Registry) current() *index {
	r.mu.RLock()
	idx := r.idx
	r.mu.RUnlock()
	if idx == nil {
		return emptyIndex
	}
	return idx
}

// NewRegistry builds a Registry from validated metadata.
func NewRegistry(md *Metadata) (*Registry, error) {
	if md == nil {
		return nil, fmt.Errorf("metadata is nil")
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return &Registry{idx: buildIndex(md)}, nil
}

// Update replaces the registry contents with a newer metadata version.
func (r *Registry) Update(md *Metadata) error {
	if md == nil {
		return fmt.Errorf("metadata is nil")
	}
	if err := md.Validate(); err != nil {
		return err
	}
	idx := buildIndex(md)

	r.mu.Lock()
	r.idx = idx
	r.mu.Unlock()
	return nil
}

// Version returns the spec version of the active metadata.
func (r *Registry) Version() uint32 {
	return r.current().version
}

// LookupError resolves a module error by pallet and error index.
func (r *Registry) LookupError(palletIndex, errorIndex uint8) (ErrorDetails, bool) {
	details, ok := r.current().errors[key{palletIndex, errorIndex}]
	return details, ok
}

// EventVariant resolves an event layout by pallet and variant index.
func (r *Registry) EventVariant(palletIndex, variantIndex uint8) (EventVariant, bool) {
	ev, ok := r.current().events[key{palletIndex, variantIndex}]
	return ev, ok
}

// PalletErrors lists the errors of a pallet ordered by index.
func (r *Registry) PalletErrors(pallet string) ([]ErrorDetails, bool) {
	list, ok := r.current().palletErrors[pallet]
	if !ok {
		return nil, false
	}
	return append([]ErrorDetails(nil), list...), true
}
