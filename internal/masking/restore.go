package masking

import "sort"

// Restore reverses a set of mappings over masked text. Mappings are applied
// longest-alias-first so an alias that is a substring of another alias label
// is never partially destroyed; ties keep the incoming order (stable sort).
// Mappings whose alias does not occur in the text are silent no-ops, so
// Restore works identically for manual and automatically produced mappings.
func Restore(text string, mappings []Mapping) string {
	ordered := make([]Mapping, len(mappings))
	copy(ordered, mappings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Masked) > len(ordered[j].Masked)
	})

	for _, m := range ordered {
		if m.Masked == "" {
			continue
		}
		text, _ = Replace(text, m.Masked, m.Original)
	}

	return text
}
