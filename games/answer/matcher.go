/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package answer

import (
	"slices"
	"strings"
)

const (
	// Single-word candidates shorter than this only match whole.
	minStemCandidate = 6

	// Words of a multi-word candidate shorter than this must match verbatim.
	minStemWord = 4
)

// Profile holds the precomputed normalized forms of an answer and its
// synonyms. Build one per question and reuse it for every transcript.
type Profile struct {
	Answer     string
	Candidates []string

	words [][]string
}

// NewProfile normalizes answer and synonyms. It returns nil when the answer
// is empty after normalization; such a question cannot be matched by voice.
func NewProfile(answer string, synonyms []string) *Profile {
	a := Normalize(answer)
	if a == "" {
		return nil
	}

	p := &Profile{
		Answer:     a,
		Candidates: []string{a},
	}

	for _, s := range synonyms {
		n := Normalize(s)
		if n == "" || slices.Contains(p.Candidates, n) {
			continue
		}
		p.Candidates = append(p.Candidates, n)
	}

	p.words = make([][]string, len(p.Candidates))
	for i, c := range p.Candidates {
		p.words[i] = strings.Fields(c)
	}

	return p
}

// IsMatch reports whether spoken matches the profile. A nil profile never
// matches.
func IsMatch(spoken string, p *Profile, strict bool) bool {
	if p == nil {
		return false
	}

	return p.Match(spoken, strict)
}

// Match reports whether spoken names the answer or one of its synonyms.
//
// Strict matching only accepts the whole candidate phrase. It is meant for
// interim transcripts, where the sentence may still grow into something
// else. Non-strict matching also tolerates inflected endings by comparing
// word stems.
func (p *Profile) Match(spoken string, strict bool) bool {
	text := Normalize(spoken)
	if text == "" {
		return false
	}

	for _, c := range p.Candidates {
		if containsPhrase(text, c) {
			return true
		}
	}

	if strict {
		return false
	}

	spokenWords := strings.Fields(text)

	for i, c := range p.Candidates {
		words := p.words[i]

		if len(words) == 1 {
			if len(c) >= minStemCandidate && anyHasPrefix(spokenWords, stem(c)) {
				return true
			}
			continue
		}

		if allWordsPresent(spokenWords, words) {
			return true
		}
	}

	return false
}

// stem returns the leading 80% of word.
func stem(word string) string {
	return word[:len(word)*4/5]
}

func anyHasPrefix(words []string, prefix string) bool {
	if prefix == "" {
		return false
	}

	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}

	return false
}

func allWordsPresent(spoken, candidate []string) bool {
	for _, w := range candidate {
		if len(w) < minStemWord {
			if !slices.Contains(spoken, w) {
				return false
			}
			continue
		}

		if !anyHasPrefix(spoken, stem(w)) {
			return false
		}
	}

	return true
}
