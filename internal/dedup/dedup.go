// Package dedup decides whether a new content item restates existing content.
// Four component scores (title edit distance, content token overlap, date
// proximity, named-entity overlap) combine into a weighted overall in
// [0,100]; items at or above the threshold are duplicates and yield a merge
// proposal.
package dedup

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Component weights and the match threshold.
const (
	weightTitle   = 0.40
	weightContent = 0.35
	weightDate    = 0.15
	weightEntity  = 0.10

	// DefaultThreshold is the overall score at which an existing item counts
	// as a match.
	DefaultThreshold = 75.0

	// DefaultWindow is how far back the comparison window reaches.
	DefaultWindow = 7 * 24 * time.Hour
)

// Document is the comparable view of a content item, either a fresh
// candidate or an existing pipeline entry.
type Document struct {
	ID          string
	Title       string
	Content     string
	SourceURL   string
	PublishedAt time.Time
	Tags        []string
	Credibility float64
}

// Match is one existing document scored against the candidate.
type Match struct {
	Document Document `json:"document"`
	Overall  float64  `json:"overall"`
	Title    float64  `json:"title_similarity"`
	Content  float64  `json:"content_similarity"`
	Date     float64  `json:"date_proximity"`
	Entity   float64  `json:"entity_overlap"`
}

// MergeProposal combines a duplicate pair into one suggested item.
type MergeProposal struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Sources     []string  `json:"sources"`
	Credibility float64   `json:"credibility"`
	PublishedAt time.Time `json:"published_at"`
	Tags        []string  `json:"tags"`
}

// Result is the outcome of duplicate detection for one candidate.
type Result struct {
	IsDuplicate    bool           `json:"is_duplicate"`
	Confidence     float64        `json:"confidence"`
	Matches        []Match        `json:"matches,omitempty"`
	SuggestedMerge *MergeProposal `json:"suggested_merge,omitempty"`
}

// Engine scores candidates against a recent same-category window.
type Engine struct {
	Threshold float64
}

// NewEngine returns an engine with the default threshold.
func NewEngine() *Engine {
	return &Engine{Threshold: DefaultThreshold}
}

// Detect scores the candidate against every document in the window and
// reports ranked matches. Confidence is the top match's overall score.
func (e *Engine) Detect(candidate Document, window []Document) Result {
	threshold := e.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var matches []Match
	for _, existing := range window {
		m := Match{
			Document: existing,
			Title:    TitleSimilarity(candidate.Title, existing.Title),
			Content:  ContentSimilarity(candidate.Content, existing.Content),
			Date:     DateProximity(candidate.PublishedAt, existing.PublishedAt),
			Entity:   EntityOverlap(candidate.Title+" "+candidate.Content, existing.Title+" "+existing.Content),
		}
		m.Overall = weightTitle*m.Title + weightContent*m.Content + weightDate*m.Date + weightEntity*m.Entity
		if m.Overall >= threshold {
			matches = append(matches, m)
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Overall > matches[j].Overall })

	res := Result{Matches: matches}
	if len(matches) > 0 {
		res.IsDuplicate = true
		res.Confidence = matches[0].Overall
		res.SuggestedMerge = buildMerge(candidate, matches[0].Document)
	}
	return res
}

// TitleSimilarity is edit-distance based: 100 for normalized-equal strings,
// otherwise 100*(maxLen-levenshtein)/maxLen. Symmetric by construction.
func TitleSimilarity(a, b string) float64 {
	na, nb := normalizeTitle(a), normalizeTitle(b)
	if na == nb {
		return 100
	}
	ra, rb := []rune(na), []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein(ra, rb)
	return 100 * float64(maxLen-dist) / float64(maxLen)
}

func normalizeTitle(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// ContentSimilarity is the Jaccard index over tokenized, stop-word-filtered
// words longer than three characters, scaled to [0,100].
func ContentSimilarity(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	return 100 * jaccard(sa, sb)
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// DateProximity decays from 100 within one hour, to 50 at 24 hours, to 0 at
// seven days.
func DateProximity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	switch {
	case diff <= time.Hour:
		return 100
	case diff <= 24*time.Hour:
		// linear 100 -> 50 between 1h and 24h
		frac := float64(diff-time.Hour) / float64(23*time.Hour)
		return 100 - 50*frac
	case diff <= 7*24*time.Hour:
		// linear 50 -> 0 between 24h and 7d
		frac := float64(diff-24*time.Hour) / float64(6*24*time.Hour)
		return 50 - 50*frac
	default:
		return 0
	}
}

// EntityOverlap is the Jaccard index over capitalized-word tokens, a proxy
// for named entities. Zero when either side has no such tokens.
func EntityOverlap(a, b string) float64 {
	ea, eb := entitySet(a), entitySet(b)
	if len(ea) == 0 || len(eb) == 0 {
		return 0
	}
	return 100 * jaccard(ea, eb)
}

func entitySet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) })
		if len(w) < 2 {
			continue
		}
		r := []rune(w)
		if unicode.IsUpper(r[0]) {
			out[strings.ToLower(w)] = struct{}{}
		}
	}
	return out
}

func buildMerge(candidate, existing Document) *MergeProposal {
	merge := &MergeProposal{
		Title:   longerString(candidate.Title, existing.Title),
		Content: mergeParagraphs(existing.Content, candidate.Content),
		Sources: uniqueStrings([]string{existing.SourceURL, candidate.SourceURL}),
	}

	merge.Credibility = (candidate.Credibility + existing.Credibility) / 2

	merge.PublishedAt = candidate.PublishedAt
	if !existing.PublishedAt.IsZero() && (merge.PublishedAt.IsZero() || existing.PublishedAt.Before(merge.PublishedAt)) {
		merge.PublishedAt = existing.PublishedAt
	}

	tags := append(append([]string{}, existing.Tags...), candidate.Tags...)
	tags = append(tags, topKeywords(merge.Content, 5)...)
	merge.Tags = uniqueStrings(tags)

	return merge
}

func longerString(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// mergeParagraphs unions paragraph blocks, dropping near-duplicate
// paragraphs whose normalized form (beyond 50 chars) was already kept.
func mergeParagraphs(a, b string) string {
	seen := make(map[string]struct{})
	var kept []string
	for _, block := range append(splitParagraphs(a), splitParagraphs(b)...) {
		key := normalizeTitle(block)
		if len(key) > 50 {
			key = key[:50]
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, block)
	}
	return strings.Join(kept, "\n\n")
}

func splitParagraphs(s string) []string {
	var out []string
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// topKeywords returns the n most frequent significant tokens in s.
func topKeywords(s string, n int) []string {
	counts := make(map[string]int)
	for _, t := range tokens(s) {
		counts[t]++
	}
	keys := make([]string, 0, len(counts))
	for t := range counts {
		keys = append(keys, t)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
