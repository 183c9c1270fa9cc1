package masking

import "strings"

// Replace substitutes every literal, non-overlapping occurrence of target in
// text with replacement and reports how many occurrences were replaced.
// target is treated as a plain string, never a regex, so user-authored rules
// containing metacharacters behave predictably. target must be non-empty;
// callers filter blank rules before reaching here.
func Replace(text, target, replacement string) (string, int) {
	parts := strings.Split(text, target)
	if len(parts) == 1 {
		return text, 0
	}
	return strings.Join(parts, replacement), len(parts) - 1
}
