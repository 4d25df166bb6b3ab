package workbook

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxSheetName is the longest sheet name a workbook accepts
const maxSheetName = 31

var invalidSheetChars = regexp.MustCompile(`[\[\]:*?/\\]`)

// SheetName makes s usable as a sheet name: reserved characters are
// removed, surrounding quotes trimmed and the result cut to 31 characters.
// An empty result becomes fallback.
func SheetName(s, fallback string) string {
	s = invalidSheetChars.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), "'")
	if s == "" {
		s = fallback
	}
	return truncate(s, maxSheetName)
}

// UniqueSheetNames sanitizes names and suffixes duplicates with " (2)",
// " (3)" and so on. Comparison is case-insensitive, as in the file format.
func UniqueSheetNames(names []string, reserved ...string) []string {
	seen := make(map[string]bool, len(names)+len(reserved))
	for _, r := range reserved {
		seen[strings.ToLower(r)] = true
	}
	out := make([]string, len(names))
	for i, n := range names {
		base := SheetName(n, fmt.Sprintf("Sheet%d", i+1))
		name := base
		for k := 2; seen[strings.ToLower(name)]; k++ {
			suffix := fmt.Sprintf(" (%d)", k)
			name = truncate(base, maxSheetName-len(suffix)) + suffix
		}
		seen[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
