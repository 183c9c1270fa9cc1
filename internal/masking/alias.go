package masking

import "fmt"

// aliasAllocator hands out sequential alias labels per category. A fresh
// allocator is created for every Anonymize call so numbering always restarts
// at 1 and never leaks between runs.
type aliasAllocator struct {
	counters map[Category]int
}

func newAliasAllocator() *aliasAllocator {
	return &aliasAllocator{counters: make(map[Category]int)}
}

// next returns the next alias label for kind, e.g. "Email(1)", "Email(2)".
func (a *aliasAllocator) next(kind Category) string {
	a.counters[kind]++
	return fmt.Sprintf("%s(%d)", kind.AliasPrefix(), a.counters[kind])
}
