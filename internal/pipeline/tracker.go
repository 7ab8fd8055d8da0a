// Package pipeline admits fetched content into the ingestion pipeline and
// moves entries through its stages. Admission applies a quality gate and
// duplicate detection before an entry exists; stage transitions are forward
// only, with rejected reachable from any non-published stage.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsflow-io/newsflow/internal/dedup"
	"github.com/newsflow-io/newsflow/internal/model"
	"github.com/newsflow-io/newsflow/internal/queue"
	"github.com/newsflow-io/newsflow/internal/store"
)

const (
	// DefaultQualityThreshold discards content below it before an entry is
	// created.
	DefaultQualityThreshold = 0.3

	strongSignal = 0.7
	weakSignal   = 0.5
)

// transitions maps each stage to its single forward successor.
var transitions = map[model.Stage]model.Stage{
	model.StageFetched:         model.StageAnalyzed,
	model.StageAnalyzed:        model.StageDrafted,
	model.StageDrafted:         model.StagePendingApproval,
	model.StagePendingApproval: model.StagePublished,
}

// Tracker owns pipeline admission and stage movement.
type Tracker struct {
	store store.Store

	Dedup            *dedup.Engine
	QualityThreshold float64
	DedupWindow      time.Duration

	now func() time.Time
}

// NewTracker returns a tracker with default gate settings.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{
		store:            st,
		Dedup:            dedup.NewEngine(),
		QualityThreshold: DefaultQualityThreshold,
		DedupWindow:      dedup.DefaultWindow,
		now:              time.Now,
	}
}

// AdmitResult reports what happened to one fetched item.
type AdmitResult struct {
	Admitted  bool                 `json:"admitted"`
	Reason    string               `json:"reason,omitempty"`
	Quality   float64              `json:"quality_score"`
	Relevance float64              `json:"relevance_score"`
	Entry     *model.PipelineEntry `json:"entry,omitempty"`
	Task      *model.Task          `json:"task,omitempty"`
	Duplicate *dedup.Result        `json:"duplicate,omitempty"`
}

// Admit gates one fetched item. Items below the quality threshold are
// discarded without creating an entry. Duplicates of entries within the
// recent same-category window are likewise not admitted. Admitted items get
// a pipeline entry at the fetched stage and a queued analyze task whose
// priority reflects quality and relevance.
func (t *Tracker) Admit(ctx context.Context, agent model.Agent, src model.Source, content model.NormalizedContent) (AdmitResult, error) {
	res := AdmitResult{
		Quality:   QualityScore(content),
		Relevance: RelevanceScore(content, agent.Keywords),
	}

	if res.Quality < t.QualityThreshold {
		res.Reason = "below quality threshold"
		return res, nil
	}

	window, err := t.recentWindow(ctx, agent.Type)
	if err != nil {
		return res, fmt.Errorf("load dedup window: %w", err)
	}
	dres := t.Dedup.Detect(candidateDocument(src, content), window)
	if dres.IsDuplicate {
		res.Reason = "duplicate of existing entry"
		res.Duplicate = &dres
		return res, nil
	}

	now := t.now()
	entry := model.PipelineEntry{
		ID:             uuid.NewString(),
		AgentID:        agent.ID,
		SourceID:       src.ID,
		Category:       agent.Type,
		Stage:          model.StageFetched,
		Title:          content.Title,
		RawContent:     content.Body,
		SourceURL:      content.SourceURL,
		PublishedAt:    content.PublishedAt,
		Tags:           content.Tags,
		QualityScore:   res.Quality,
		RelevanceScore: res.Relevance,
		ContentHash:    ContentHash(content.Title, content.Body),
		Metadata:       content.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.store.CreatePipelineEntry(ctx, &entry); err != nil {
		return res, fmt.Errorf("create pipeline entry: %w", err)
	}

	task := model.Task{
		ID:         uuid.NewString(),
		Type:       model.TaskTypeAnalyze,
		Priority:   taskPriority(res.Quality, res.Relevance),
		Status:     model.TaskStatusPending,
		SourceID:   src.ID,
		SourceURL:  content.SourceURL,
		Category:   agent.Type,
		Metadata:   map[string]any{"entry_id": entry.ID},
		MaxRetries: queue.DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.store.CreateTask(ctx, &task); err != nil {
		return res, fmt.Errorf("create analyze task: %w", err)
	}

	res.Admitted = true
	res.Entry = &entry
	res.Task = &task
	return res, nil
}

func (t *Tracker) recentWindow(ctx context.Context, category string) ([]dedup.Document, error) {
	entries, err := t.store.ListPipelineEntries(ctx, store.EntryFilter{
		Category: category,
		Since:    t.now().Add(-t.DedupWindow),
	})
	if err != nil {
		return nil, err
	}
	docs := make([]dedup.Document, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, dedup.Document{
			ID:          e.ID,
			Title:       e.Title,
			Content:     e.RawContent,
			SourceURL:   e.SourceURL,
			PublishedAt: e.PublishedAt,
			Tags:        e.Tags,
		})
	}
	return docs, nil
}

func candidateDocument(src model.Source, content model.NormalizedContent) dedup.Document {
	sourceURL := content.SourceURL
	if sourceURL == "" {
		sourceURL = src.URL
	}
	return dedup.Document{
		Title:       content.Title,
		Content:     content.Body,
		SourceURL:   sourceURL,
		PublishedAt: content.PublishedAt,
		Tags:        content.Tags,
	}
}

func taskPriority(quality, relevance float64) int {
	switch {
	case quality > strongSignal && relevance > strongSignal:
		return model.PriorityHigh
	case quality < weakSignal && relevance < weakSignal:
		return model.PriorityLow
	default:
		return model.PriorityNormal
	}
}

// Advance moves an entry to the next stage. Only the single forward
// transition from the entry's current stage is permitted.
func (t *Tracker) Advance(ctx context.Context, entryID string, to model.Stage) error {
	entry, ok, err := t.store.GetPipelineEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	next, ok := transitions[entry.Stage]
	if !ok || next != to {
		return fmt.Errorf("invalid stage transition %s -> %s", entry.Stage, to)
	}
	swapped, err := t.store.AdvancePipelineStage(ctx, entryID, entry.Stage, to)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("stage changed concurrently, entry %s no longer at %s", entryID, entry.Stage)
	}
	return nil
}

// Reject moves an entry to the terminal rejected stage. Published entries
// cannot be rejected.
func (t *Tracker) Reject(ctx context.Context, entryID string) error {
	entry, ok, err := t.store.GetPipelineEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	if entry.Stage == model.StagePublished {
		return fmt.Errorf("published entry %s cannot be rejected", entryID)
	}
	if entry.Stage == model.StageRejected {
		return nil
	}
	swapped, err := t.store.AdvancePipelineStage(ctx, entryID, entry.Stage, model.StageRejected)
	if err != nil {
		return err
	}
	if !swapped {
		return fmt.Errorf("stage changed concurrently, entry %s no longer at %s", entryID, entry.Stage)
	}
	return nil
}

// QualityScore rates completeness of a fetched item on [0,1]. Title and body
// carry the most weight; a sufficiently long body earns full marks even
// without a separate summary.
func QualityScore(c model.NormalizedContent) float64 {
	score := 0.0

	title := strings.TrimSpace(c.Title)
	switch {
	case len(title) >= 20:
		score += 0.35
	case len(title) > 0:
		score += 0.20
	}

	body := strings.TrimSpace(c.Body)
	switch {
	case len(body) >= 500:
		score += 0.35
	case len(body) >= 100:
		score += 0.25
	case len(body) > 0:
		score += 0.10
	}

	if strings.TrimSpace(c.Summary) != "" || len(body) >= 500 {
		score += 0.15
	}

	if !c.PublishedAt.IsZero() {
		score += 0.15
	}

	if score > 1 {
		score = 1
	}
	return score
}

// RelevanceScore is the fraction of agent keywords found in the item's title
// or body, case-insensitive. With no keywords configured every item is
// fully relevant.
func RelevanceScore(c model.NormalizedContent, keywords []string) float64 {
	if len(keywords) == 0 {
		return 1
	}
	haystack := strings.ToLower(c.Title + " " + c.Summary + " " + c.Body)
	hits := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// ContentHash fingerprints an item by its normalized title and body.
func ContentHash(title, body string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(title+" "+body)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])
}
