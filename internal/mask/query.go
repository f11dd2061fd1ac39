package mask

import (
	"strings"
	"unicode"
)

// minKeywordLen drops fragments too short to carry meaning.
const minKeywordLen = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "him": {}, "his": {}, "how": {},
	"its": {}, "may": {}, "new": {}, "now": {}, "old": {}, "see": {}, "two": {},
	"way": {}, "who": {}, "did": {}, "get": {}, "let": {}, "put": {}, "say": {},
	"she": {}, "too": {}, "use": {}, "this": {}, "that": {}, "with": {}, "from": {},
	"they": {}, "will": {}, "would": {}, "there": {}, "their": {}, "what": {},
	"about": {}, "which": {}, "when": {}, "make": {}, "like": {}, "just": {},
	"into": {}, "than": {}, "then": {}, "them": {}, "these": {}, "some": {},
	"could": {}, "other": {}, "been": {}, "were": {}, "where": {}, "why": {},
	"does": {}, "should": {}, "please": {}, "also": {}, "only": {}, "your": {},
	"want": {}, "need": {}, "here": {}, "very": {}, "more": {}, "most": {},
}

// ExtractKeywords returns the lowercase, de-duplicated, non-stopword words of
// text in order of first appearance.
func ExtractKeywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	seen := make(map[string]struct{}, len(words))
	var out []string
	for _, w := range words {
		if len([]rune(w)) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
