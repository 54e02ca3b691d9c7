package watch

import (
	"fmt"
	"strings"

	"extrinsicScope/internal/events"
)

// MatchEvent matches domain events by name and exact field values. The name
// may be qualified as Pallet::Variant; an empty name matches any event.
// Field values are compared case-insensitively in their printed form.
func MatchEvent(name string, fields map[string]string) Predicate {
	pallet, variant := splitEventName(name)
	return func(ev events.DomainEvent) bool {
		if pallet != "" && ev.PalletName != pallet {
			return false
		}
		if variant != "" && ev.Name != variant {
			return false
		}
		for key, want := range fields {
			got, ok := ev.Field(key)
			if !ok || !strings.EqualFold(events.FormatValue(got), want) {
				return false
			}
		}
		return true
	}
}

func splitEventName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if pallet, variant, ok := strings.Cut(name, "::"); ok {
		return strings.TrimSpace(pallet), strings.TrimSpace(variant)
	}
	return "", name
}

// ParseFieldFilters converts name=value pairs into a filter map.
func ParseFieldFilters(inputs []string) (map[string]string, error) {
	filters := make(map[string]string, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		key, value, ok := strings.Cut(input, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid field filter: %s", input)
		}
		filters[key] = value
	}
	return filters, nil
}
