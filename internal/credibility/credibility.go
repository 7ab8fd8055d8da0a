// Package credibility computes a multi-factor trust rating for a source from
// its accumulated stats. The five factor scores and their weights are fixed;
// recomputing with the same inputs yields the same score.
package credibility

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/store"
)

// Factor weights. Must sum to 1.
const (
	weightAccuracy     = 0.30
	weightEditorial    = 0.25
	weightReliability  = 0.20
	weightTransparency = 0.15
	weightIntegrity    = 0.10
)

// recognizedOutlets is the allowlist consulted by the integrity factor.
// Matching is substring based on the lower-cased source name.
var recognizedOutlets = []string{
	"reuters", "associated press", "bbc", "the guardian", "bloomberg",
	"financial times", "the new york times", "the washington post",
	"npr", "al jazeera", "afp", "wall street journal",
}

var officialMarkers = []string{
	"government", "ministry", "official", ".gov", "federal", "parliament",
	"white house", "commission",
}

// Engine scores sources against their stored stats.
type Engine struct {
	store store.Store
	now   func() time.Time
}

// NewEngine returns a credibility engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// Score computes, persists, and returns the credibility score for one source.
// The stored score is overwritten and a trend point is appended.
func (e *Engine) Score(ctx context.Context, sourceID string) (model.CredibilityScore, error) {
	src, ok, err := e.store.GetSource(ctx, sourceID)
	if err != nil {
		return model.CredibilityScore{}, fmt.Errorf("load source: %w", err)
	}
	if !ok {
		return model.CredibilityScore{}, store.ErrNotFound
	}

	stats, err := e.store.GetSourceStats(ctx, sourceID)
	if err != nil {
		return model.CredibilityScore{}, fmt.Errorf("load source stats: %w", err)
	}

	score := Compute(src, stats, e.now())
	if err := e.store.SaveCredibilityScore(ctx, score); err != nil {
		return model.CredibilityScore{}, fmt.Errorf("save credibility score: %w", err)
	}
	return score, nil
}

// RescoreAll recomputes and persists scores for every active source. An error
// on one source does not stop the sweep; the first error is returned alongside
// the number of sources scored.
func (e *Engine) RescoreAll(ctx context.Context) (int, error) {
	sources, err := e.store.ListSources(ctx, store.SourceFilter{OnlyActive: true})
	if err != nil {
		return 0, fmt.Errorf("list sources: %w", err)
	}
	scored := 0
	var firstErr error
	for _, src := range sources {
		if _, err := e.Score(ctx, src.ID); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("score source %s: %w", src.ID, err)
			}
			continue
		}
		scored++
	}
	return scored, firstErr
}

// Compute derives the score from stats alone. It performs no I/O.
func Compute(src model.Source, stats model.SourceStats, at time.Time) model.CredibilityScore {
	factors := model.CredibilityFactors{
		HistoricalAccuracy: historicalAccuracy(stats),
		EditorialStandards: editorialStandards(stats),
		Reliability:        reliability(stats),
		Transparency:       transparency(stats),
		Integrity:          integrity(src.Name),
	}

	overall := weightAccuracy*factors.HistoricalAccuracy +
		weightEditorial*factors.EditorialStandards +
		weightReliability*factors.Reliability +
		weightTransparency*factors.Transparency +
		weightIntegrity*factors.Integrity

	return model.CredibilityScore{
		SourceID:   src.ID,
		Factors:    factors,
		Overall:    overall,
		Grade:      Grade(overall),
		TrustLevel: TrustLevel(overall),
		Warnings:   warnings(overall, stats),
		ComputedAt: at,
	}
}

// historicalAccuracy is the all-time fact-check pass rate, blended 60/40 with
// the recent (90 day) pass rate when at least five recent checks exist.
// Defaults to 70 with zero history.
func historicalAccuracy(stats model.SourceStats) float64 {
	if stats.FactChecks == 0 {
		return 70
	}
	allTime := 100 * float64(stats.FactChecksPassed) / float64(stats.FactChecks)
	if stats.RecentChecks < 5 {
		return allTime
	}
	recent := 100 * float64(stats.RecentChecksPassed) / float64(stats.RecentChecks)
	return 0.6*allTime + 0.4*recent
}

func editorialStandards(stats model.SourceStats) float64 {
	score := 100.0

	correctionRate := rate(stats.Corrections, stats.Articles)
	switch {
	case correctionRate > 0.05:
		score -= 30
	case correctionRate > 0.02:
		score -= 15
	case correctionRate > 0:
		score -= 5
	}

	retractionRate := rate(stats.Retractions, stats.Articles)
	switch {
	case retractionRate > 0.01:
		score -= 50
	case retractionRate > 0.005:
		score -= 25
	case retractionRate > 0.001:
		score -= 10
	}

	switch {
	case stats.AvgCitations >= 5:
		score += 10
	case stats.AvgCitations >= 3:
		score += 5
	}

	return clamp(score)
}

func reliability(stats model.SourceStats) float64 {
	score := 60 * stats.FetchSuccessRate()

	switch rt := stats.AvgResponseTime; {
	case rt < time.Second:
		score += 20
	case rt < 3*time.Second:
		score += 15
	case rt < 5*time.Second:
		score += 10
	default:
		score += 5
	}

	switch {
	case stats.ArticlesPerDay >= 10:
		score += 20
	case stats.ArticlesPerDay >= 5:
		score += 15
	case stats.ArticlesPerDay >= 2:
		score += 10
	default:
		score += 5
	}

	return clamp(score)
}

func transparency(stats model.SourceStats) float64 {
	score := 50.0

	// citation density, up to 30 points at five citations per article
	citationBonus := stats.AvgCitations / 5 * 30
	if citationBonus > 30 {
		citationBonus = 30
	}
	score += citationBonus

	// corrections issued at a healthy rate signal self-correction
	correctionRate := rate(stats.Corrections, stats.Articles)
	if correctionRate > 0 && correctionRate < 0.05 {
		score += 20
	}

	return clamp(score)
}

func integrity(name string) float64 {
	score := 60.0
	lower := strings.ToLower(name)
	for _, outlet := range recognizedOutlets {
		if strings.Contains(lower, outlet) {
			score += 30
			break
		}
	}
	for _, marker := range officialMarkers {
		if strings.Contains(lower, marker) {
			score += 40
			break
		}
	}
	return clamp(score)
}

// Grade maps an overall score to a letter grade.
func Grade(overall float64) string {
	switch {
	case overall >= 97:
		return "A+"
	case overall >= 90:
		return "A"
	case overall >= 80:
		return "B"
	case overall >= 70:
		return "C"
	case overall >= 60:
		return "D"
	default:
		return "F"
	}
}

// TrustLevel maps an overall score to a coarse trust band.
func TrustLevel(overall float64) string {
	switch {
	case overall >= 90:
		return "very-high"
	case overall >= 75:
		return "high"
	case overall >= 60:
		return "medium"
	case overall >= 40:
		return "low"
	default:
		return "very-low"
	}
}

func warnings(overall float64, stats model.SourceStats) []string {
	var out []string
	if overall < 60 {
		out = append(out, "overall credibility below 60")
	}
	if stats.FetchSuccessRate() < 0.8 {
		out = append(out, "fetch success rate below 80%")
	}
	if rate(stats.Retractions, stats.Articles) > 0.005 {
		out = append(out, "retraction rate above 0.5%")
	}
	if stats.AvgCitations < 2 {
		out = append(out, "average citations per article below 2")
	}
	return out
}

func rate(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
