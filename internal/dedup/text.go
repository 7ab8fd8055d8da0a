package dedup

import "strings"

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "man": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "did": {},
	"its": {}, "let": {}, "say": {}, "she": {}, "too": {}, "use": {},
	"that": {}, "with": {}, "have": {}, "this": {}, "will": {}, "your": {},
	"from": {}, "they": {}, "been": {}, "were": {}, "said": {}, "each": {},
	"which": {}, "their": {}, "would": {}, "there": {}, "about": {},
	"could": {}, "other": {}, "after": {}, "first": {}, "also": {},
	"more": {}, "some": {}, "what": {}, "when": {}, "into": {}, "over": {},
	"than": {}, "them": {}, "then": {}, "these": {}, "being": {},
}

// tokens lower-cases s, strips punctuation, and keeps significant words:
// longer than three characters and not a stop word.
func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) <= 3 {
			continue
		}
		if _, ok := stopWords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range tokens(s) {
		set[t] = struct{}{}
	}
	return set
}
