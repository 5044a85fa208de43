package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/logweave/logweave/internal/logx"
)

// SQLCatalog is the sqlx-backed Catalog implementation. It supports sqlite3
// (single connection, matching sqlite's single-writer model) and mysql
// (pooled connections).
type SQLCatalog struct {
	db      *sqlx.DB
	builder sq.StatementBuilderType
	driver  string
}

const isoLayout = time.RFC3339

var hooksRegistered = false

// Connect opens and migrates the catalog database. driver is "sqlite3" or
// "mysql"; dsn is the connection string (a bare file path for sqlite3).
func Connect(driver, dsn string) (*SQLCatalog, error) {
	var dbHandle *sqlx.DB
	var err error

	switch driver {
	case "sqlite3":
		if !hooksRegistered {
			sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &queryHooks{}))
			hooksRegistered = true
		}
		dbHandle, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
		if err != nil {
			return nil, fmt.Errorf("catalog: open sqlite3: %w", err)
		}
		dbHandle.SetMaxOpenConns(1)
	case "mysql":
		dbHandle, err = sqlx.Open("mysql", fmt.Sprintf("%s?multiStatements=true&parseTime=true", dsn))
		if err != nil {
			return nil, fmt.Errorf("catalog: open mysql: %w", err)
		}
		dbHandle.SetConnMaxLifetime(3 * time.Minute)
		dbHandle.SetMaxOpenConns(10)
		dbHandle.SetMaxIdleConns(10)
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q", driver)
	}

	if err := runMigrations(driver, dbHandle.DB); err != nil {
		dbHandle.Close()
		return nil, err
	}

	return &SQLCatalog{db: dbHandle, builder: sq.StatementBuilder.PlaceholderFormat(sq.Question), driver: driver}, nil
}

// ignoreConflict appends the driver-appropriate "do nothing on duplicate
// key" clause to an INSERT statement, since sqlite3 and mysql disagree on
// syntax: sqlite3 gets ON CONFLICT(conflictCols) DO NOTHING, mysql gets an
// ON DUPLICATE KEY UPDATE that assigns noopCol to itself.
func (c *SQLCatalog) ignoreConflict(conflictCols, noopCol string) string {
	if c.driver == "mysql" {
		return fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s = %s", noopCol, noopCol)
	}
	return fmt.Sprintf(" ON CONFLICT(%s) DO NOTHING", conflictCols)
}

func (c *SQLCatalog) Close() error { return c.db.Close() }

// queryHooks instruments every query through sqlhooks with debug logging,
// mirroring the teacher's Hooks wrapper around sqlite3.
type queryHooks struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	logx.Debugf("catalog query: %s %v", query, args)
	return ctx, nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	return ctx, nil
}

func nowISO() string { return time.Now().UTC().Format(isoLayout) }

// RegisterFile upserts path/mtime/size into file_registry, keyed by fileID.
func (c *SQLCatalog) RegisterFile(ctx context.Context, fileID, path string, mtime, size int64) error {
	now := nowISO()
	upsert := `INSERT INTO file_registry (file_id, path, mtime, size, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`
	if c.driver == "mysql" {
		upsert += ` ON DUPLICATE KEY UPDATE path=VALUES(path), mtime=VALUES(mtime), size=VALUES(size), updated_at=VALUES(updated_at)`
	} else {
		upsert += ` ON CONFLICT(file_id) DO UPDATE SET path=excluded.path, mtime=excluded.mtime, size=excluded.size, updated_at=excluded.updated_at`
	}
	if _, err := c.db.ExecContext(ctx, upsert, fileID, path, mtime, size, now, now); err != nil {
		return fmt.Errorf("catalog: register file: %w", err)
	}
	return nil
}

// CreateRunSession inserts a new run_session row and returns its run_id.
func (c *SQLCatalog) CreateRunSession(ctx context.Context, fileID, passType, config string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO run_session (file_id, pass_type, config, status, totals, started_at)
		VALUES (?, ?, ?, 'running', '{}', ?)
	`, fileID, passType, config, nowISO())
	if err != nil {
		return 0, fmt.Errorf("catalog: create run session: %w", err)
	}
	return res.LastInsertId()
}

// CompleteRunSession marks a run_session finished with its final totals.
func (c *SQLCatalog) CompleteRunSession(ctx context.Context, runID int64, totals, status string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE run_session SET totals = ?, status = ?, ended_at = ? WHERE run_id = ?
	`, totals, status, nowISO(), runID)
	if err != nil {
		return fmt.Errorf("catalog: complete run session: %w", err)
	}
	return nil
}

// UpsertModules inserts any module names not already present.
func (c *SQLCatalog) UpsertModules(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: upsert modules begin: %w", err)
	}
	defer tx.Rollback()

	stmt := "INSERT INTO module (name) VALUES (?)" + c.ignoreConflict("name", "module_id")
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, stmt, name); err != nil {
			return fmt.Errorf("catalog: upsert module %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// UpsertSubmodules inserts any (module, submodule) pairs not already
// present, creating the parent module row first if needed.
func (c *SQLCatalog) UpsertSubmodules(ctx context.Context, pairs [][2]string) error {
	if len(pairs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: upsert submodules begin: %w", err)
	}
	defer tx.Rollback()

	moduleStmt := "INSERT INTO module (name) VALUES (?)" + c.ignoreConflict("name", "module_id")
	subStmt := "INSERT INTO submodule (module_id, name) VALUES (?, ?)" + c.ignoreConflict("module_id, name", "submodule_id")

	for _, p := range pairs {
		moduleName, subName := p[0], p[1]
		if _, err := tx.ExecContext(ctx, moduleStmt, moduleName); err != nil {
			return fmt.Errorf("catalog: upsert submodule parent %q: %w", moduleName, err)
		}
		var moduleID int64
		if err := tx.GetContext(ctx, &moduleID, `SELECT module_id FROM module WHERE name = ?`, moduleName); err != nil {
			return fmt.Errorf("catalog: lookup module %q: %w", moduleName, err)
		}
		if _, err := tx.ExecContext(ctx, subStmt, moduleID, subName); err != nil {
			return fmt.Errorf("catalog: upsert submodule %q/%q: %w", moduleName, subName, err)
		}
	}
	return tx.Commit()
}

// FetchActiveTemplates returns every active template, ordered by
// template_id ascending — the order the match index relies on for
// deterministic tie-breaking.
func (c *SQLCatalog) FetchActiveTemplates(ctx context.Context) ([]Template, error) {
	query, args, err := c.builder.
		Select("template_id", "pattern", "pattern_nomal", "sample_log", "semantic_info", "advise", "version", "is_active", "source").
		From("regex_template").
		Where(sq.Eq{"is_active": true}).
		OrderBy("template_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build fetch active templates: %w", err)
	}

	var rows []Template
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("catalog: fetch active templates: %w", err)
	}
	return rows, nil
}

// WriteTemplates inserts each candidate into regex_template and appends an
// initial template_history row, per spec.md §4.6: a candidate is skipped if
// its pattern_nomal is empty or duplicates one already written in this
// batch; NUMNUM is substituted when materializing the matchable pattern.
func (c *SQLCatalog) WriteTemplates(ctx context.Context, candidates []Candidate) ([]int64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: write templates begin: %w", err)
	}
	defer tx.Rollback()

	seenNomal := make(map[string]bool, len(candidates))
	var ids []int64
	now := nowISO()

	for _, cand := range candidates {
		if cand.PatternNomal == "" || seenNomal[cand.PatternNomal] {
			continue
		}
		seenNomal[cand.PatternNomal] = true

		pattern := substituteNumNum(cand.PatternNomal)
		res, err := tx.ExecContext(ctx, `
			INSERT INTO regex_template
				(pattern, pattern_nomal, sample_log, semantic_info, advise, version, is_active, source, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?, ?)
		`, pattern, cand.PatternNomal, cand.SampleLog, cand.SemanticInfo, cand.Advise, cand.Source, now, now)
		if err != nil {
			return nil, fmt.Errorf("catalog: insert template %q: %w", cand.PatternNomal, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("catalog: template last insert id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO template_history (template_id, version, pattern, sample_log, source, note, created_at)
			VALUES (?, 1, ?, ?, ?, '', ?)
		`, id, pattern, cand.SampleLog, cand.Source, now); err != nil {
			return nil, fmt.Errorf("catalog: insert template history %d: %w", id, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog: write templates commit: %w", err)
	}
	return ids, nil
}

// DeactivateTemplate flips is_active off for templateID, used during
// poisoned-catalog recovery when a previously-active pattern fails to
// compile at index build time. It appends a template_history row noting the
// deactivation (note = "deactivated: compile failure") in the same
// transaction, per spec.md §3's one-row-per-deactivate_template-call audit
// trail. Returns false if no such row exists.
func (c *SQLCatalog) DeactivateTemplate(ctx context.Context, templateID int64) (bool, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: deactivate template %d begin: %w", templateID, err)
	}
	defer tx.Rollback()

	var row struct {
		Version int64  `db:"version"`
		Pattern string `db:"pattern"`
	}
	if err := tx.GetContext(ctx, &row, `SELECT version, pattern FROM regex_template WHERE template_id = ?`, templateID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("catalog: deactivate template %d lookup: %w", templateID, err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE regex_template SET is_active = 0, updated_at = ? WHERE template_id = ?`,
		nowISO(), templateID)
	if err != nil {
		return false, fmt.Errorf("catalog: deactivate template %d: %w", templateID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("catalog: deactivate template %d rows affected: %w", templateID, err)
	}
	if n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO template_history (template_id, version, pattern, sample_log, source, note, created_at)
		VALUES (?, ?, ?, '', '', 'deactivated: compile failure', ?)
	`, templateID, row.Version, row.Pattern, nowISO()); err != nil {
		return false, fmt.Errorf("catalog: deactivate template %d history: %w", templateID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("catalog: deactivate template %d commit: %w", templateID, err)
	}
	return true, nil
}

// WriteUnmatched appends one row per miss to unmatched_log.
func (c *SQLCatalog) WriteUnmatched(ctx context.Context, rows []UnmatchedLog) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: write unmatched begin: %w", err)
	}
	defer tx.Rollback()

	now := nowISO()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO unmatched_log (run_id, file_id, key_text, raw, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.RunID, r.FileID, r.KeyText, r.Raw, r.Reason, now); err != nil {
			return fmt.Errorf("catalog: insert unmatched: %w", err)
		}
	}
	return tx.Commit()
}

// BatchUpsertLogMatchSummary upserts per-(run,file,key_text) occurrence
// counts, consumed by the second-pass aggregator.
func (c *SQLCatalog) BatchUpsertLogMatchSummary(ctx context.Context, rows []LogMatchSummary) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: batch upsert summary begin: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO log_match_summary (run_id, file_id, template_id, key_text, occurrence, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if c.driver == "mysql" {
		upsert += ` ON DUPLICATE KEY UPDATE template_id=VALUES(template_id), occurrence=VALUES(occurrence)`
	} else {
		upsert += ` ON CONFLICT(run_id, file_id, key_text) DO UPDATE SET template_id=excluded.template_id, occurrence=excluded.occurrence`
	}

	now := nowISO()
	for _, r := range rows {
		if _, err := tx.ExecContext(ctx, upsert, r.RunID, r.FileID, r.TemplateID, r.KeyText, r.Occurrence, now); err != nil {
			return fmt.Errorf("catalog: upsert log match summary: %w", err)
		}
	}
	return tx.Commit()
}

// GetRecentUnmatched returns the most recent unmatched rows, used as the
// adversary-filter negative corpus.
func (c *SQLCatalog) GetRecentUnmatched(ctx context.Context, limit int) ([]UnmatchedLog, error) {
	query, args, err := c.builder.
		Select("run_id", "file_id", "key_text", "raw", "reason").
		From("unmatched_log").
		OrderBy("unmatched_id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build recent unmatched: %w", err)
	}

	var rows []UnmatchedLog
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("catalog: recent unmatched: %w", err)
	}
	return rows, nil
}

// GetTemplateSamples returns recent active templates' sample logs, used as
// the regression-filter positive corpus.
func (c *SQLCatalog) GetTemplateSamples(ctx context.Context, limit int) ([]Template, error) {
	query, args, err := c.builder.
		Select("template_id", "pattern", "pattern_nomal", "sample_log", "semantic_info", "advise", "version", "is_active", "source").
		From("regex_template").
		Where(sq.Eq{"is_active": true}).
		OrderBy("template_id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("catalog: build template samples: %w", err)
	}

	var rows []Template
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("catalog: template samples: %w", err)
	}
	return rows, nil
}

var _ Catalog = (*SQLCatalog)(nil)
