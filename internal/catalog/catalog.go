// Package catalog is the Template Catalog Gateway: the single transactional
// boundary between the pipeline and durable storage. It owns the
// file_registry, run_session, module, submodule, regex_template,
// template_history, unmatched_log, and log_match_summary tables.
//
// Grounded on internal/repository (teacher): sqlx + squirrel for querying,
// golang-migrate/v4 with embedded iofs sources for schema management, and
// qustavo/sqlhooks for query instrumentation, generalized from job-scheduler
// persistence to log-template persistence.
package catalog

import (
	"context"
	"time"
)

// FileRegistration is one row of file_registry.
type FileRegistration struct {
	FileID    string    `db:"file_id"`
	Path      string    `db:"path"`
	MTime     int64     `db:"mtime"`
	Size      int64     `db:"size"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RunSession is one row of run_session.
type RunSession struct {
	RunID     int64      `db:"run_id"`
	FileID    string     `db:"file_id"`
	PassType  string     `db:"pass_type"`
	Config    string     `db:"config"`
	Status    string     `db:"status"`
	Totals    string     `db:"totals"`
	StartedAt time.Time  `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`
}

// Template is one row of regex_template, the shape fetch_active_templates
// and get_template_samples return.
type Template struct {
	TemplateID   int64  `db:"template_id"`
	Pattern      string `db:"pattern"`
	PatternNomal string `db:"pattern_nomal"`
	SampleLog    string `db:"sample_log"`
	SemanticInfo string `db:"semantic_info"`
	Advise       string `db:"advise"`
	Version      int    `db:"version"`
	IsActive     bool   `db:"is_active"`
	Source       string `db:"source"`
}

// Candidate is one committee-drafted template awaiting persistence.
// PatternNomal still contains the NUMNUM placeholder; Catalog substitutes it
// when writing Pattern.
type Candidate struct {
	PatternNomal string
	SampleLog    string
	SemanticInfo string
	Advise       string
	Source       string
}

// UnmatchedLog is one row of unmatched_log.
type UnmatchedLog struct {
	RunID   int64  `db:"run_id"`
	FileID  string `db:"file_id"`
	KeyText string `db:"key_text"`
	Raw     string `db:"raw"`
	Reason  string `db:"reason"`
}

// LogMatchSummary is one row of log_match_summary, written by the
// second-pass aggregator (out of scope here beyond the write path).
type LogMatchSummary struct {
	RunID      int64  `db:"run_id"`
	FileID     string `db:"file_id"`
	TemplateID *int64 `db:"template_id"`
	KeyText    string `db:"key_text"`
	Occurrence int    `db:"occurrence"`
}

// Catalog is the full gateway surface consumed by the pipeline driver and
// the committee orchestrator. Every method is transactional at call
// granularity; no caller holds a transaction open across method calls.
type Catalog interface {
	RegisterFile(ctx context.Context, fileID, path string, mtime, size int64) error
	CreateRunSession(ctx context.Context, fileID, passType, config string) (int64, error)
	CompleteRunSession(ctx context.Context, runID int64, totals, status string) error

	UpsertModules(ctx context.Context, names []string) error
	UpsertSubmodules(ctx context.Context, pairs [][2]string) error

	FetchActiveTemplates(ctx context.Context) ([]Template, error)
	WriteTemplates(ctx context.Context, candidates []Candidate) ([]int64, error)
	DeactivateTemplate(ctx context.Context, templateID int64) (bool, error)

	WriteUnmatched(ctx context.Context, rows []UnmatchedLog) error
	BatchUpsertLogMatchSummary(ctx context.Context, rows []LogMatchSummary) error

	GetRecentUnmatched(ctx context.Context, limit int) ([]UnmatchedLog, error)
	GetTemplateSamples(ctx context.Context, limit int) ([]Template, error)

	Close() error
}
