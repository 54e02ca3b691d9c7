package metadata

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata describes the event and error layouts of one runtime version.
type Metadata struct {
	SpecVersion uint32   `json:"specVersion"`
	Pallets     []Pallet `json:"pallets"`
}

// Pallet is a runtime module with its own events and errors.
type Pallet struct {
	Index  uint8          `json:"index"`
	Name   string         `json:"name"`
	Events []Variant      `json:"events"`
	Errors []ErrorVariant `json:"errors"`
}

// Variant is a single event layout.
type Variant struct {
	Index  uint8    `json:"index"`
	Name   string   `json:"name"`
	Fields []Field  `json:"fields"`
	Docs   []string `json:"docs,omitempty"`
}

// Field is a named, typed event field.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ErrorVariant is a single pallet error.
type ErrorVariant struct {
	Index uint8    `json:"index"`
	Name  string   `json:"name"`
	Docs  []string `json:"docs,omitempty"`
}

// RuntimeVersion identifies the runtime a node is executing.
type RuntimeVersion struct {
	SpecName    string `json:"specName"`
	SpecVersion uint32 `json:"specVersion"`
}

// Parse decodes and validates JSON metadata.
func Parse(data []byte) (*Metadata, error) {
	var md Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return &md, nil
}

// LoadFile reads metadata from a JSON file.
func LoadFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return Parse(data)
}

// Validate rejects metadata with ambiguous indices or names.
func (m *Metadata) Validate() error {
	byIndex := make(map[uint8]struct{}, len(m.Pallets))
	byName := make(map[string]struct{}, len(m.Pallets))
	for _, pallet := range m.Pallets {
		if pallet.Name == "" {
			return fmt.Errorf("pallet %d has no name", pallet.Index)
		}
		if _, ok := byIndex[pallet.Index]; ok {
			return fmt.Errorf("duplicate pallet index %d", pallet.Index)
		}
		if _, ok := byName[pallet.Name]; ok {
			return fmt.Errorf("duplicate pallet name %s", pallet.Name)
		}
		byIndex[pallet.Index] = struct{}{}
		byName[pallet.Name] = struct{}{}

		events := make(map[uint8]struct{}, len(pallet.Events))
		for _, ev := range pallet.Events {
			if ev.Name == "" {
				return fmt.Errorf("%s: event %d has no name", pallet.Name, ev.Index)
			}
			if _, ok := events[ev.Index]; ok {
				return fmt.Errorf("%s: duplicate event index %d", pallet.Name, ev.Index)
			}
			events[ev.Index] = struct{}{}
		}

		errs := make(map[uint8]struct{}, len(pallet.Errors))
		for _, e := range pallet.Errors {
			if e.Name == "" {
				return fmt.Errorf("%s: error %d has no name", pallet.Name, e.Index)
			}
			if _, ok := errs[e.Index]; ok {
				return fmt.Errorf("%s: duplicate error index %d", pallet.Name, e.Index)
			}
			errs[e.Index] = struct{}{}
		}
	}
	return nil
}
