package model

import (
	"time"
)

// SourceType identifies the fetch strategy for a source.
type SourceType string

const (
	SourceTypeFeed   SourceType = "feed"
	SourceTypeAPI    SourceType = "api"
	SourceTypeScrape SourceType = "scrape"
)

// TaskType identifies the kind of queued work.
type TaskType string

const (
	TaskTypeFetch   TaskType = "fetch"
	TaskTypeAnalyze TaskType = "analyze"
)

// Task statuses. A task is terminal in completed or failed.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusClaimed    TaskStatus = "claimed"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task priorities used by the pipeline when nudging analyze work.
const (
	PriorityLow    = 2
	PriorityNormal = 5
	PriorityHigh   = 8
)

// Pipeline stages. Entries only move forward; rejected is reachable from any
// non-published stage.
type Stage string

const (
	StageFetched         Stage = "fetched"
	StageAnalyzed        Stage = "analyzed"
	StageDrafted         Stage = "drafted"
	StagePendingApproval Stage = "pending_approval"
	StagePublished       Stage = "published"
	StageRejected        Stage = "rejected"
)

// Schedule declares when an agent should run. All configured constraints are
// conjunctive; an absent constraint imposes no restriction.
type Schedule struct {
	Enabled    bool           `json:"enabled"`
	Interval   time.Duration  `json:"interval,omitempty"`
	Times      []string       `json:"times,omitempty"` // wall clock, "15:04"
	DaysOfWeek []time.Weekday `json:"days_of_week,omitempty"`
	Cron       string         `json:"cron,omitempty"` // standard 5-field expression, "@hourly", "@daily"
}

// Agent is a logical worker profile owning one or more sources.
type Agent struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"` // category the agent covers
	Capabilities []string   `json:"capabilities"`
	Keywords     []string   `json:"keywords,omitempty"` // relevance vocabulary for the category
	Schedule     Schedule   `json:"schedule"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AuthType enumerates supported API authentication modes.
type AuthType string

const (
	AuthNone   AuthType = ""
	AuthBearer AuthType = "bearer"
	AuthHeader AuthType = "header"
	AuthQuery  AuthType = "query"
	AuthBasic  AuthType = "basic"
)

// RetryConfig bounds retry behaviour for a source's fetches.
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts,omitempty"`
	BackoffMultiplier float64       `json:"backoff_multiplier,omitempty"`
	MaxDelay          time.Duration `json:"max_delay,omitempty"`
}

// RateLimitConfig caps outbound requests for a source.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute,omitempty"`
}

// SourceConfig carries per-source fetch settings: auth, headers, selectors and
// the JSON path locating the item array in API responses.
type SourceConfig struct {
	RateLimit   RateLimitConfig   `json:"rate_limit,omitempty"`
	Retry       RetryConfig       `json:"retry,omitempty"`
	Method      string            `json:"method,omitempty"`
	AuthType    AuthType          `json:"auth_type,omitempty"`
	AuthToken   string            `json:"auth_token,omitempty"`
	AuthParam   string            `json:"auth_param,omitempty"` // header or query parameter name
	BasicUser   string            `json:"basic_user,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	DataPath    string            `json:"data_path,omitempty"` // dot-separated path to the item array
	Selectors   []string          `json:"selectors,omitempty"` // ordered content-block selectors for scraping
	RateKey     string            `json:"rate_key,omitempty"`  // overrides the hostname-derived limiter key
}

// Source is an external content origin owned by exactly one agent.
type Source struct {
	ID            string        `json:"id"`
	AgentID       string        `json:"agent_id"`
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Type          SourceType    `json:"type"`
	FetchInterval time.Duration `json:"fetch_interval"`
	Config        SourceConfig  `json:"config"`
	LastFetchedAt *time.Time    `json:"last_fetched_at,omitempty"`
	ErrorCount    int           `json:"error_count"`
	LastError     string        `json:"last_error,omitempty"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TaskError records a categorized failure attached to a task.
type TaskError struct {
	Category string    `json:"category"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Task is a unit of queued work claimable by exactly one worker at a time.
type Task struct {
	ID           string         `json:"id"`
	Type         TaskType       `json:"type"`
	Priority     int            `json:"priority"`
	Status       TaskStatus     `json:"status"`
	AgentID      string         `json:"agent_id,omitempty"` // empty until assigned
	SourceID     string         `json:"source_id,omitempty"`
	SourceURL    string         `json:"source_url,omitempty"`
	Category     string         `json:"category,omitempty"`
	RequiredCaps []string       `json:"required_capabilities,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RetryCount   int            `json:"retry_count"`
	MaxRetries   int            `json:"max_retries"`
	Error        *TaskError     `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NormalizedContent is a fetcher's output unit. It is ephemeral: consumed
// immediately by quality scoring and duplicate detection.
type NormalizedContent struct {
	Title       string         `json:"title"`
	Summary     string         `json:"summary,omitempty"`
	Body        string         `json:"body,omitempty"`
	SourceURL   string         `json:"source_url"`
	PublishedAt time.Time      `json:"published_at,omitempty"`
	Author      string         `json:"author,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// PipelineEntry tracks one content item moving through ingestion stages.
type PipelineEntry struct {
	ID             string         `json:"id"`
	AgentID        string         `json:"agent_id"`
	SourceID       string         `json:"source_id"`
	Category       string         `json:"category"`
	Stage          Stage          `json:"stage"`
	Title          string         `json:"title"`
	RawContent     string         `json:"raw_content,omitempty"`
	Processed      string         `json:"processed,omitempty"`
	Draft          string         `json:"draft,omitempty"`
	SourceURL      string         `json:"source_url,omitempty"`
	PublishedAt    time.Time      `json:"published_at,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	QualityScore   float64        `json:"quality_score"`
	RelevanceScore float64        `json:"relevance_score"`
	ContentHash    string         `json:"content_hash"`
	Language       string         `json:"language,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// CredibilityFactors holds the five weighted component scores, each in [0,100].
type CredibilityFactors struct {
	HistoricalAccuracy float64 `json:"historical_accuracy"`
	EditorialStandards float64 `json:"editorial_standards"`
	Reliability        float64 `json:"reliability"`
	Transparency       float64 `json:"transparency"`
	Integrity          float64 `json:"journalistic_integrity"`
}

// CredibilityScore is the multi-factor trust rating computed per source.
// Recomputation overwrites the previous score; trend history is appended.
type CredibilityScore struct {
	SourceID   string             `json:"source_id"`
	Factors    CredibilityFactors `json:"factors"`
	Overall    float64            `json:"overall"`
	Grade      string             `json:"grade"`
	TrustLevel string             `json:"trust_level"`
	Warnings   []string           `json:"warnings,omitempty"`
	ComputedAt time.Time          `json:"computed_at"`
}

// TrendPoint is one appended historical credibility observation.
type TrendPoint struct {
	At      time.Time `json:"at"`
	Overall float64   `json:"overall"`
}

// SourceStats aggregates the per-source history consumed by the credibility
// engine. All counters are monotonic except the response-time average.
type SourceStats struct {
	SourceID           string        `json:"source_id"`
	FactChecks         int           `json:"fact_checks"`
	FactChecksPassed   int           `json:"fact_checks_passed"`
	RecentChecks       int           `json:"recent_checks"` // last 90 days
	RecentChecksPassed int           `json:"recent_checks_passed"`
	Articles           int           `json:"articles"`
	Corrections        int           `json:"corrections"`
	Retractions        int           `json:"retractions"`
	AvgCitations       float64       `json:"avg_citations"`
	FetchSuccesses     int           `json:"fetch_successes"`
	FetchFailures      int           `json:"fetch_failures"`
	AvgResponseTime    time.Duration `json:"avg_response_time"`
	ArticlesPerDay     float64       `json:"articles_per_day"`
}

// FetchSuccessRate returns the fraction of successful fetches, defaulting to 1
// when no fetches were recorded.
func (s SourceStats) FetchSuccessRate() float64 {
	total := s.FetchSuccesses + s.FetchFailures
	if total == 0 {
		return 1
	}
	return float64(s.FetchSuccesses) / float64(total)
}

// AgentHealth summarizes one agent's task outcomes over a trailing window.
type AgentHealth struct {
	AgentID     string  `json:"agent_id"`
	AgentName   string  `json:"agent_name,omitempty"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
	HealthScore float64 `json:"health_score"`
	Error       string  `json:"error,omitempty"` // set when this agent's stats query failed
}
