package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/newsflow-io/newsflow/internal/model"
)

// psql builds dollar-placeholder statements for dynamic filters.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Postgres implements Store over a Postgres database.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens a connection with the given DSN and verifies it.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) CreateAgent(ctx context.Context, a *model.Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	schedule, err := json.Marshal(a.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO agents (id, name, type, capabilities, keywords, schedule, last_run_at, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.Name, a.Type, pq.Array(a.Capabilities), pq.Array(a.Keywords), schedule, a.LastRunAt, a.IsActive, a.CreatedAt)
	return err
}

func scanAgent(row interface{ Scan(...any) error }) (model.Agent, error) {
	var (
		a        model.Agent
		schedule []byte
		caps     pq.StringArray
		keywords pq.StringArray
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Type, &caps, &keywords, &schedule, &a.LastRunAt, &a.IsActive, &a.CreatedAt); err != nil {
		return model.Agent{}, err
	}
	a.Capabilities = caps
	a.Keywords = keywords
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &a.Schedule); err != nil {
			return model.Agent{}, fmt.Errorf("unmarshal schedule: %w", err)
		}
	}
	return a, nil
}

const agentColumns = "id::text, name, type, capabilities, keywords, schedule, last_run_at, is_active, created_at"

func (p *Postgres) GetAgent(ctx context.Context, id string) (model.Agent, bool, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+agentColumns+` FROM agents WHERE id=$1`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return model.Agent{}, false, nil
	}
	if err != nil {
		return model.Agent{}, false, err
	}
	return a, true, nil
}

func (p *Postgres) ListAgents(ctx context.Context, f AgentFilter) ([]model.Agent, error) {
	q := psql.Select(agentColumns).From("agents").OrderBy("created_at ASC", "id ASC")
	if f.OnlyActive {
		q = q.Where(sq.Eq{"is_active": true})
	}
	if f.Type != "" {
		q = q.Where(sq.Eq{"type": f.Type})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateAgentLastRun(ctx context.Context, id string, t time.Time) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE agents SET last_run_at=$2 WHERE id=$1`, id, t)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateSource(ctx context.Context, s *model.Source) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cfg, err := json.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("marshal source config: %w", err)
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO sources (id, agent_id, name, url, type, fetch_interval_seconds, config, last_fetched_at, error_count, last_error, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.AgentID, s.Name, s.URL, s.Type, int64(s.FetchInterval.Seconds()), cfg,
		s.LastFetchedAt, s.ErrorCount, s.LastError, s.IsActive, s.CreatedAt)
	return err
}

const sourceColumns = "id::text, agent_id::text, name, url, type, fetch_interval_seconds, config, last_fetched_at, error_count, last_error, is_active, created_at"

func scanSource(row interface{ Scan(...any) error }) (model.Source, error) {
	var (
		s       model.Source
		cfg     []byte
		seconds int64
	)
	if err := row.Scan(&s.ID, &s.AgentID, &s.Name, &s.URL, &s.Type, &seconds, &cfg, &s.LastFetchedAt, &s.ErrorCount, &s.LastError, &s.IsActive, &s.CreatedAt); err != nil {
		return model.Source{}, err
	}
	s.FetchInterval = time.Duration(seconds) * time.Second
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &s.Config); err != nil {
			return model.Source{}, fmt.Errorf("unmarshal source config: %w", err)
		}
	}
	return s, nil
}

func (p *Postgres) GetSource(ctx context.Context, id string) (model.Source, bool, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id=$1`, id)
	s, err := scanSource(row)
	if err == sql.ErrNoRows {
		return model.Source{}, false, nil
	}
	if err != nil {
		return model.Source{}, false, err
	}
	return s, true, nil
}

func (p *Postgres) ListSources(ctx context.Context, f SourceFilter) ([]model.Source, error) {
	q := psql.Select(sourceColumns).From("sources").OrderBy("created_at ASC")
	if f.AgentID != "" {
		q = q.Where(sq.Eq{"agent_id": f.AgentID})
	}
	if f.OnlyActive {
		q = q.Where(sq.Eq{"is_active": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) RecordSourceSuccess(ctx context.Context, id string, at time.Time, responseTime time.Duration) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE sources SET last_fetched_at=$2, error_count=0, last_error='' WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO source_stats (source_id, fetch_successes, avg_response_time_ms)
VALUES ($1, 1, $2)
ON CONFLICT (source_id) DO UPDATE SET
  fetch_successes      = source_stats.fetch_successes + 1,
  avg_response_time_ms = CASE WHEN $2 > 0 THEN (source_stats.avg_response_time_ms + $2) / 2 ELSE source_stats.avg_response_time_ms END`,
		id, responseTime.Milliseconds())
	return err
}

func (p *Postgres) RecordSourceFailure(ctx context.Context, id string, msg string, at time.Time) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE sources SET error_count=error_count+1, last_error=$2 WHERE id=$1`, id, msg)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO source_stats (source_id, fetch_failures) VALUES ($1, 1)
ON CONFLICT (source_id) DO UPDATE SET fetch_failures = source_stats.fetch_failures + 1`, id)
	return err
}

func (p *Postgres) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = model.TaskStatusPending
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal task metadata: %w", err)
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO tasks (id, type, priority, status, agent_id, source_id, source_url, category, required_capabilities, metadata, retry_count, max_retries, created_at, updated_at)
VALUES ($1,$2,$3,$4,NULLIF($5::text,'')::uuid,NULLIF($6::text,'')::uuid,$7,$8,$9,$10,$11,$12,$13,$14)`,
		t.ID, t.Type, t.Priority, t.Status, t.AgentID, t.SourceID, t.SourceURL, t.Category,
		pq.Array(t.RequiredCaps), meta, t.RetryCount, t.MaxRetries, t.CreatedAt, t.UpdatedAt)
	return err
}

const taskColumns = "id::text, type, priority, status, COALESCE(agent_id::text,''), COALESCE(source_id::text,''), source_url, category, required_capabilities, metadata, retry_count, max_retries, error_category, error_message, error_at, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var (
		t        model.Task
		caps     pq.StringArray
		meta     []byte
		errCat   sql.NullString
		errMsg   sql.NullString
		errAt    sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Type, &t.Priority, &t.Status, &t.AgentID, &t.SourceID, &t.SourceURL, &t.Category,
		&caps, &meta, &t.RetryCount, &t.MaxRetries, &errCat, &errMsg, &errAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Task{}, err
	}
	t.RequiredCaps = caps
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &t.Metadata)
	}
	if errCat.Valid && errCat.String != "" {
		t.Error = &model.TaskError{Category: errCat.String, Message: errMsg.String, At: errAt.Time}
	}
	return t, nil
}

func (p *Postgres) GetTask(ctx context.Context, id string) (model.Task, bool, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=$1`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return model.Task{}, false, nil
	}
	if err != nil {
		return model.Task{}, false, err
	}
	return t, true, nil
}

func (p *Postgres) QueryTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	q := psql.Select(taskColumns).From("tasks").OrderBy("priority DESC", "created_at ASC", "id ASC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Type != "" {
		q = q.Where(sq.Eq{"type": f.Type})
	}
	if f.AgentID != "" {
		q = q.Where(sq.Eq{"agent_id": f.AgentID})
	}
	if f.Unassigned {
		q = q.Where("agent_id IS NULL")
	}
	if f.AssignableTo != "" {
		q = q.Where(sq.Or{sq.Eq{"agent_id": f.AssignableTo}, sq.Expr("agent_id IS NULL")})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ClaimTask is the queue's correctness-critical conditional update: the WHERE
// clause on status makes concurrent claims race on a single row version, so
// exactly one caller wins.
func (p *Postgres) ClaimTask(ctx context.Context, taskID, agentID string) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE tasks SET status=$3, agent_id=$2, updated_at=NOW()
WHERE id=$1 AND status=$4`,
		taskID, agentID, model.TaskStatusClaimed, model.TaskStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) AssignTask(ctx context.Context, taskID, agentID string) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE tasks SET agent_id=$2, updated_at=NOW()
WHERE id=$1 AND status=$3 AND agent_id IS NULL`,
		taskID, agentID, model.TaskStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) SetTaskStatus(ctx context.Context, taskID string, from, to model.TaskStatus) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE tasks SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`, taskID, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) CompleteTask(ctx context.Context, taskID string, result map[string]any) error {
	if result == nil {
		result = map[string]any{}
	}
	meta, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result: %w", err)
	}
	res, err := p.DB.ExecContext(ctx, `
UPDATE tasks SET status=$2, metadata = metadata || $3, updated_at=NOW() WHERE id=$1`,
		taskID, model.TaskStatusCompleted, meta)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RecordTaskFailure(ctx context.Context, taskID string, terr model.TaskError, status model.TaskStatus, retryCount int) error {
	res, err := p.DB.ExecContext(ctx, `
UPDATE tasks SET status=$2, retry_count=$3, error_category=$4, error_message=$5, error_at=$6, updated_at=NOW()
WHERE id=$1`, taskID, status, retryCount, terr.Category, terr.Message, terr.At)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CountActiveTasks(ctx context.Context, agentID string) (int, error) {
	var n int
	err := p.DB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM tasks WHERE agent_id=$1 AND status = ANY($2)`,
		agentID, pq.Array([]string{string(model.TaskStatusClaimed), string(model.TaskStatusProcessing)})).Scan(&n)
	return n, err
}

func (p *Postgres) TaskStats(ctx context.Context, agentID string, since time.Time) (int, int, error) {
	var completed, failed int
	err := p.DB.QueryRowContext(ctx, `
SELECT
  COUNT(*) FILTER (WHERE status=$3),
  COUNT(*) FILTER (WHERE status=$4)
FROM tasks WHERE agent_id=$1 AND updated_at >= $2`,
		agentID, since, model.TaskStatusCompleted, model.TaskStatusFailed).Scan(&completed, &failed)
	return completed, failed, err
}

func (p *Postgres) CreatePipelineEntry(ctx context.Context, e *model.PipelineEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Stage == "" {
		e.Stage = model.StageFetched
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal entry metadata: %w", err)
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO pipeline_entries (id, agent_id, source_id, category, stage, title, raw_content, processed, draft, source_url, published_at, tags, quality_score, relevance_score, content_hash, language, metadata, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		e.ID, e.AgentID, e.SourceID, e.Category, e.Stage, e.Title, e.RawContent, e.Processed, e.Draft,
		e.SourceURL, nullableTime(e.PublishedAt), pq.Array(e.Tags), e.QualityScore, e.RelevanceScore,
		e.ContentHash, e.Language, meta, e.CreatedAt, e.UpdatedAt)
	return err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

const entryColumns = "id::text, agent_id::text, source_id::text, category, stage, title, raw_content, processed, draft, source_url, published_at, tags, quality_score, relevance_score, content_hash, language, metadata, created_at, updated_at"

func scanEntry(row interface{ Scan(...any) error }) (model.PipelineEntry, error) {
	var (
		e         model.PipelineEntry
		tags      pq.StringArray
		meta      []byte
		published sql.NullTime
	)
	if err := row.Scan(&e.ID, &e.AgentID, &e.SourceID, &e.Category, &e.Stage, &e.Title, &e.RawContent, &e.Processed,
		&e.Draft, &e.SourceURL, &published, &tags, &e.QualityScore, &e.RelevanceScore, &e.ContentHash,
		&e.Language, &meta, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.PipelineEntry{}, err
	}
	e.Tags = tags
	if published.Valid {
		e.PublishedAt = published.Time
	}
	if len(meta) > 0 {
		_ = json.Unmarshal(meta, &e.Metadata)
	}
	return e, nil
}

func (p *Postgres) GetPipelineEntry(ctx context.Context, id string) (model.PipelineEntry, bool, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM pipeline_entries WHERE id=$1`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return model.PipelineEntry{}, false, nil
	}
	if err != nil {
		return model.PipelineEntry{}, false, err
	}
	return e, true, nil
}

func (p *Postgres) ListPipelineEntries(ctx context.Context, f EntryFilter) ([]model.PipelineEntry, error) {
	q := psql.Select(entryColumns).From("pipeline_entries").OrderBy("created_at DESC")
	if f.Category != "" {
		q = q.Where(sq.Eq{"category": f.Category})
	}
	if f.Stage != "" {
		q = q.Where(sq.Eq{"stage": f.Stage})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": f.Since})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PipelineEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) AdvancePipelineStage(ctx context.Context, id string, from, to model.Stage) (bool, error) {
	res, err := p.DB.ExecContext(ctx, `
UPDATE pipeline_entries SET stage=$3, updated_at=NOW() WHERE id=$1 AND stage=$2`, id, from, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (p *Postgres) SaveCredibilityScore(ctx context.Context, score model.CredibilityScore) error {
	factors, err := json.Marshal(score.Factors)
	if err != nil {
		return fmt.Errorf("marshal credibility factors: %w", err)
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO credibility_scores (source_id, factors, overall, grade, trust_level, warnings, computed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (source_id) DO UPDATE SET
  factors     = EXCLUDED.factors,
  overall     = EXCLUDED.overall,
  grade       = EXCLUDED.grade,
  trust_level = EXCLUDED.trust_level,
  warnings    = EXCLUDED.warnings,
  computed_at = EXCLUDED.computed_at`,
		score.SourceID, factors, score.Overall, score.Grade, score.TrustLevel, pq.Array(score.Warnings), score.ComputedAt)
	if err != nil {
		return err
	}
	_, err = p.DB.ExecContext(ctx, `
INSERT INTO credibility_trends (source_id, overall, observed_at) VALUES ($1,$2,$3)`,
		score.SourceID, score.Overall, score.ComputedAt)
	return err
}

func (p *Postgres) GetCredibilityScore(ctx context.Context, sourceID string) (model.CredibilityScore, bool, error) {
	var (
		score    model.CredibilityScore
		factors  []byte
		warnings pq.StringArray
	)
	row := p.DB.QueryRowContext(ctx, `
SELECT source_id::text, factors, overall, grade, trust_level, warnings, computed_at
FROM credibility_scores WHERE source_id=$1`, sourceID)
	if err := row.Scan(&score.SourceID, &factors, &score.Overall, &score.Grade, &score.TrustLevel, &warnings, &score.ComputedAt); err != nil {
		if err == sql.ErrNoRows {
			return model.CredibilityScore{}, false, nil
		}
		return model.CredibilityScore{}, false, err
	}
	score.Warnings = warnings
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &score.Factors); err != nil {
			return model.CredibilityScore{}, false, fmt.Errorf("unmarshal credibility factors: %w", err)
		}
	}
	return score, true, nil
}

func (p *Postgres) CredibilityTrend(ctx context.Context, sourceID string, limit int) ([]model.TrendPoint, error) {
	q := psql.Select("overall", "observed_at").From("credibility_trends").
		Where(sq.Eq{"source_id": sourceID}).OrderBy("observed_at ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := p.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TrendPoint
	for rows.Next() {
		var pt model.TrendPoint
		if err := rows.Scan(&pt.Overall, &pt.At); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSourceStats(ctx context.Context, sourceID string) (model.SourceStats, error) {
	var (
		st     model.SourceStats
		avgMS  int64
	)
	row := p.DB.QueryRowContext(ctx, `
SELECT source_id::text, fact_checks, fact_checks_passed, recent_checks, recent_checks_passed,
       articles, corrections, retractions, avg_citations, fetch_successes, fetch_failures,
       avg_response_time_ms, articles_per_day
FROM source_stats WHERE source_id=$1`, sourceID)
	err := row.Scan(&st.SourceID, &st.FactChecks, &st.FactChecksPassed, &st.RecentChecks, &st.RecentChecksPassed,
		&st.Articles, &st.Corrections, &st.Retractions, &st.AvgCitations, &st.FetchSuccesses, &st.FetchFailures,
		&avgMS, &st.ArticlesPerDay)
	if err == sql.ErrNoRows {
		return model.SourceStats{SourceID: sourceID}, nil
	}
	if err != nil {
		return model.SourceStats{}, err
	}
	st.AvgResponseTime = time.Duration(avgMS) * time.Millisecond
	return st, nil
}

func (p *Postgres) UpsertSourceStats(ctx context.Context, stats model.SourceStats) error {
	_, err := p.DB.ExecContext(ctx, `
INSERT INTO source_stats (source_id, fact_checks, fact_checks_passed, recent_checks, recent_checks_passed,
  articles, corrections, retractions, avg_citations, fetch_successes, fetch_failures, avg_response_time_ms, articles_per_day)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (source_id) DO UPDATE SET
  fact_checks          = EXCLUDED.fact_checks,
  fact_checks_passed   = EXCLUDED.fact_checks_passed,
  recent_checks        = EXCLUDED.recent_checks,
  recent_checks_passed = EXCLUDED.recent_checks_passed,
  articles             = EXCLUDED.articles,
  corrections          = EXCLUDED.corrections,
  retractions          = EXCLUDED.retractions,
  avg_citations        = EXCLUDED.avg_citations,
  fetch_successes      = EXCLUDED.fetch_successes,
  fetch_failures       = EXCLUDED.fetch_failures,
  avg_response_time_ms = EXCLUDED.avg_response_time_ms,
  articles_per_day     = EXCLUDED.articles_per_day`,
		stats.SourceID, stats.FactChecks, stats.FactChecksPassed, stats.RecentChecks, stats.RecentChecksPassed,
		stats.Articles, stats.Corrections, stats.Retractions, stats.AvgCitations, stats.FetchSuccesses,
		stats.FetchFailures, stats.AvgResponseTime.Milliseconds(), stats.ArticlesPerDay)
	return err
}
