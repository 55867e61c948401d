package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString prepares single-line user text such as subscription names
// and search terms: control characters are dropped, whitespace runs collapse
// to one space and the result is cut to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	pendingSpace := false
	for _, r := range input {
		switch {
		case r == utf8.RuneError:
			continue
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
			continue
		case unicode.IsControl(r) || r == '\u200b' || r == '\ufeff':
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return truncateRunes(b.String(), maxLen)
}

// SanitizeOptional applies SanitizeString to a pointer field, mapping blank
// results to nil.
func SanitizeOptional(input *string, maxLen int) *string {
	if input == nil {
		return nil
	}
	cleaned := SanitizeString(*input, maxLen)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:maxLen]), unicode.IsSpace)
}
