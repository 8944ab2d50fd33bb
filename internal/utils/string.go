package utils

import (
	"strings"
	"unicode/utf8"
)

// Column bounds for raw payload snapshots. They exist for storage and privacy,
// so truncation never affects how a delivery is routed or processed.
const (
	MaxRawHeaderChars     = 1000
	MaxBodyTextChars      = 10000
	MaxBodyHTMLChars      = 50000
	MaxStatusSubjectChars = 50
	MaxErrorMessageChars  = 2000
)

// Truncate bounds s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// TruncatePtr is Truncate for nullable columns; empty input stays nil.
func TruncatePtr(s string, max int) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t := Truncate(s, max)
	return &t
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
