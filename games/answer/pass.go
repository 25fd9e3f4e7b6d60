/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package answer

// Spoken forms of "skip this question", in every supported language.
// Entries are normalized.
var passWords = []string{
	// English
	"pass",
	"i pass",
	"skip",
	"next",

	// Polish
	"pas",
	"dalej",
	"pomin",
	"pomijam",
	"nastepne",
	"nastepny",
	"nastepna",
}

// IsPassCommand reports whether spoken is a request to skip the current
// question. A pass word only counts as a whole word, so "pasuje" or
// "passing" are not pass commands.
func IsPassCommand(spoken string) bool {
	text := Normalize(spoken)
	if text == "" {
		return false
	}

	for _, w := range passWords {
		if containsPhrase(text, w) {
			return true
		}
	}

	return false
}
