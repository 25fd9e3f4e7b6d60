/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package answer compares spoken phrases against quiz answers.
//
// Everything here works on normalized text: lower-case ASCII letters, digits
// and single spaces. Speech engines return accented, punctuated and
// inconsistently cased text, so both sides are normalized before comparison.
package answer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters with no canonical decomposition to a base Latin letter.
var folds = map[rune]string{
	'ł': "l",
	'đ': "d",
	'ø': "o",
	'ß': "ss",
	'æ': "ae",
	'œ': "oe",
	'ı': "i",
}

// Normalize lower-cases text, strips diacritical marks, drops everything
// outside [a-z0-9 ] and collapses whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	stripped, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		stripped = strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(stripped))

	space := true
	for _, r := range stripped {
		if f, ok := folds[r]; ok {
			b.WriteString(f)
			space = false
			continue
		}

		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// containsPhrase reports whether phrase appears in text as a run of whole
// words. Both arguments must already be normalized.
func containsPhrase(text, phrase string) bool {
	if phrase == "" || text == "" {
		return false
	}
	if text == phrase {
		return true
	}

	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
