package masking

import "regexp"

// Built-in detection patterns. Compilation failures are configuration bugs
// and fatal at startup, never per-call.
var (
	urlPattern   = regexp.MustCompile(`\b(?:https?|ftp)://[^\s<>"]+`)
	emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`\+?[\d(][\d()\-. ]{5,}\d`)
)

// detectURLs returns URL matches in first-seen order with duplicates removed.
func detectURLs(text string) []string {
	return uniqueMatches(urlPattern, text, nil)
}

// detectEmails returns email matches in first-seen order with duplicates removed.
func detectEmails(text string) []string {
	return uniqueMatches(emailPattern, text, nil)
}

// detectPhones returns phone-number matches in first-seen order with
// duplicates removed. The pattern itself is permissive about separators and
// parenthesized area codes, so candidates with fewer than seven digits are
// filtered out afterwards.
func detectPhones(text string) []string {
	return uniqueMatches(phonePattern, text, func(match string) bool {
		return digitCount(match) >= 7
	})
}

// uniqueMatches collects matches of re over text, preserving first-seen order
// and dropping duplicates. An optional accept filter rejects candidates the
// regex alone cannot rule out.
func uniqueMatches(re *regexp.Regexp, text string, accept func(string) bool) []string {
	seen := make(map[string]struct{})
	matches := make([]string, 0)

	for _, match := range re.FindAllString(text, -1) {
		if accept != nil && !accept(match) {
			continue
		}
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		matches = append(matches, match)
	}

	return matches
}

// digitCount counts ASCII digits in s.
func digitCount(s string) int {
	count := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}
