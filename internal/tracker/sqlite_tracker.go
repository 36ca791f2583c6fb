package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/a11yscan/internal/logging"
	"github.com/raysh454/a11yscan/internal/model"
	"github.com/raysh454/a11yscan/internal/utils"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteTracker implements Tracker on a single SQLite file.
type SQLiteTracker struct {
	db     *sql.DB
	logger logging.Logger
	config *Config
}

var _ Tracker = (*SQLiteTracker)(nil)

// NewSQLiteTracker opens (creating if needed) the database under
// config.StoragePath. If config is nil, the current directory is used.
func NewSQLiteTracker(config *Config, logger logging.Logger) (*SQLiteTracker, error) {
	if logger == nil {
		return nil, errors.New("tracker: nil logger provided")
	}
	if config == nil {
		config = &Config{}
	}
	if config.DBFile == "" {
		config.DBFile = "a11yscan.db"
	}

	if config.StoragePath != "" {
		if err := os.MkdirAll(config.StoragePath, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dbPath := filepath.Join(config.StoragePath, config.DBFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Page workers write concurrently; one connection serialises them
	// without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger = logger.With(logging.F("component", "tracker"))
	logger.Info("SQLiteTracker initialized", logging.F("path", dbPath))

	return &SQLiteTracker{db: db, logger: logger, config: config}, nil
}

// ─── Scans ─────────────────────────────────────────────────────────────

func (t *SQLiteTracker) CreateScan(ctx context.Context, scan *model.Scan) error {
	if scan == nil {
		return errors.New("scan cannot be nil")
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now().UTC()
	}
	if scan.Status == "" {
		scan.Status = model.ScanQueued
	}
	ts := toMillis(scan.CreatedAt)

	res, err := t.db.ExecContext(ctx, `
		INSERT INTO scans (public_id, input_url, normalized_root_url, max_pages, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, scan.PublicID, scan.InputURL, scan.NormalizedRootURL, scan.MaxPages, scan.Status, nullableString(scan.ErrorMessage), ts, ts)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("scan id: %w", err)
	}
	scan.ID = id
	t.logger.Debug("scan created", logging.F("public_id", scan.PublicID), logging.F("id", id))
	return nil
}

const scanColumns = `id, public_id, input_url, normalized_root_url, max_pages, status,
	error_message, started_at, finished_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (*model.Scan, error) {
	var (
		s         model.Scan
		status    string
		errMsg    sql.NullString
		started   sql.NullInt64
		finished  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&s.ID, &s.PublicID, &s.InputURL, &s.NormalizedRootURL, &s.MaxPages, &status,
		&errMsg, &started, &finished, &createdAt); err != nil {
		return nil, err
	}
	s.Status = model.ScanStatus(status)
	s.ErrorMessage = errMsg.String
	s.StartedAt = nullableTime(started)
	s.FinishedAt = nullableTime(finished)
	s.CreatedAt = fromMillis(createdAt)
	return &s, nil
}

func (t *SQLiteTracker) GetScan(ctx context.Context, publicID string) (*model.Scan, error) {
	s, err := scanScan(t.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE public_id = ?`, publicID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrScanNotFound, publicID)
	}
	if err != nil {
		return nil, fmt.Errorf("query scan: %w", err)
	}
	return s, nil
}

func (t *SQLiteTracker) GetScanByID(ctx context.Context, id int64) (*model.Scan, error) {
	s, err := scanScan(t.db.QueryRowContext(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrScanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query scan: %w", err)
	}
	return s, nil
}

func (t *SQLiteTracker) MarkScanRunning(ctx context.Context, scanID int64, at time.Time) error {
	ts := toMillis(at)
	res, err := t.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, started_at = ?, error_message = NULL, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)
	`, model.ScanRunning, ts, ts, scanID, model.ScanCompleted, model.ScanFailed)
	if err != nil {
		return fmt.Errorf("mark scan running: %w", err)
	}
	return t.checkScanUpdated(ctx, res, scanID)
}

func (t *SQLiteTracker) FinishScan(ctx context.Context, scanID int64, status model.ScanStatus, message string, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("finish scan: %q is not terminal", status)
	}
	ts := toMillis(at)
	res, err := t.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)
	`, status, nullableString(message), ts, ts, scanID, model.ScanCompleted, model.ScanFailed)
	if err != nil {
		return fmt.Errorf("finish scan: %w", err)
	}
	return t.checkScanUpdated(ctx, res, scanID)
}

// checkScanUpdated distinguishes a missing scan from one already terminal.
func (t *SQLiteTracker) checkScanUpdated(ctx context.Context, res sql.Result, scanID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := t.GetScanByID(ctx, scanID); err != nil {
		return err
	}
	return fmt.Errorf("scan %d: %w", scanID, ErrAlreadyTerminal)
}

func (t *SQLiteTracker) ListStaleScans(ctx context.Context, before time.Time) ([]model.Scan, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT `+scanColumns+` FROM scans
		WHERE status = ? AND finished_at IS NULL AND started_at IS NOT NULL AND started_at < ?
		ORDER BY id
	`, model.ScanRunning, toMillis(before))
	if err != nil {
		return nil, fmt.Errorf("query stale scans: %w", err)
	}
	defer rows.Close()

	var out []model.Scan
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// ─── Pages ─────────────────────────────────────────────────────────────

func (t *SQLiteTracker) CreatePages(ctx context.Context, scanID int64, urls []string, at time.Time) ([]model.Page, error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pages (scan_id, url, normalized_url, order_index, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert page: %w", err)
	}
	defer stmt.Close()

	var base int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE scan_id = ?`, scanID).Scan(&base); err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	ts := toMillis(at)
	pages := make([]model.Page, 0, len(urls))
	for i, u := range urls {
		p := model.Page{
			ScanID:        scanID,
			URL:           u,
			NormalizedURL: normalizedOrSelf(utils.Normalize, u),
			OrderIndex:    base + i,
			Status:        model.PageQueued,
			CreatedAt:     fromMillis(ts),
		}
		res, err := stmt.ExecContext(ctx, scanID, p.URL, p.NormalizedURL, p.OrderIndex, p.Status, ts, ts)
		if err != nil {
			return nil, fmt.Errorf("insert page %d: %w", i, err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("page id: %w", err)
		}
		pages = append(pages, p)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return pages, nil
}

const pageColumns = `id, scan_id, url, normalized_url, order_index, status, http_status,
	error_code, error_message, started_at, finished_at, created_at`

func scanPage(row rowScanner) (*model.Page, error) {
	var (
		p         model.Page
		status    string
		httpCode  sql.NullInt64
		errCode   sql.NullString
		errMsg    sql.NullString
		started   sql.NullInt64
		finished  sql.NullInt64
		createdAt int64
	)
	if err := row.Scan(&p.ID, &p.ScanID, &p.URL, &p.NormalizedURL, &p.OrderIndex, &status, &httpCode,
		&errCode, &errMsg, &started, &finished, &createdAt); err != nil {
		return nil, err
	}
	p.Status = model.PageStatus(status)
	if httpCode.Valid {
		p.HTTPStatus = model.Ptr(int(httpCode.Int64))
	}
	p.ErrorCode = errCode.String
	p.ErrorMessage = errMsg.String
	p.StartedAt = nullableTime(started)
	p.FinishedAt = nullableTime(finished)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

func (t *SQLiteTracker) ListPages(ctx context.Context, scanID int64) ([]model.Page, error) {
	rows, err := t.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE scan_id = ? ORDER BY order_index`, scanID)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var out []model.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (t *SQLiteTracker) MarkPageRunning(ctx context.Context, pageID int64, at time.Time) error {
	ts := toMillis(at)
	res, err := t.db.ExecContext(ctx, `
		UPDATE pages SET status = ?, started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, model.PageRunning, ts, ts, pageID, model.PageQueued)
	if err != nil {
		return fmt.Errorf("mark page running: %w", err)
	}
	return t.checkPageUpdated(ctx, res, pageID)
}

func (t *SQLiteTracker) FinishPage(ctx context.Context, outcome model.PageOutcome, at time.Time) error {
	if !outcome.Status.Terminal() {
		return fmt.Errorf("finish page: %q is not terminal", outcome.Status)
	}
	ts := toMillis(at)
	res, err := t.db.ExecContext(ctx, `
		UPDATE pages SET status = ?, http_status = ?, error_code = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?, ?)
	`, outcome.Status, nullableInt(outcome.HTTPStatus), nullableString(outcome.ErrorCode), nullableString(outcome.ErrorMessage),
		ts, ts, outcome.PageID, model.PageSuccess, model.PageFailed, model.PageSkipped)
	if err != nil {
		return fmt.Errorf("finish page: %w", err)
	}
	return t.checkPageUpdated(ctx, res, outcome.PageID)
}

func (t *SQLiteTracker) checkPageUpdated(ctx context.Context, res sql.Result, pageID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = t.db.QueryRowContext(ctx, `SELECT 1 FROM pages WHERE id = ?`, pageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", ErrPageNotFound, pageID)
	}
	if err != nil {
		return fmt.Errorf("query page: %w", err)
	}
	return fmt.Errorf("page %d: %w", pageID, ErrAlreadyTerminal)
}

func (t *SQLiteTracker) FailOpenPages(ctx context.Context, scanID int64, code, message string, at time.Time) (int, error) {
	ts := toMillis(at)
	res, err := t.db.ExecContext(ctx, `
		UPDATE pages SET status = ?, error_code = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE scan_id = ? AND status IN (?, ?)
	`, model.PageFailed, code, message, ts, ts, scanID, model.PageQueued, model.PageRunning)
	if err != nil {
		return 0, fmt.Errorf("fail open pages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ─── Issues ────────────────────────────────────────────────────────────

func (t *SQLiteTracker) InsertIssues(ctx context.Context, pageID int64, issues []model.Issue, at time.Time) error {
	if len(issues) == 0 {
		return nil
	}
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO issues (page_id, issue_type, rule_id, impact, description, help, help_url, tags_json, node_count, nodes_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert issue: %w", err)
	}
	defer stmt.Close()

	ts := toMillis(at)
	for _, i := range issues {
		tags, nodes, err := encodeIssue(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, pageID, i.Type, i.RuleID, i.Impact, i.Description, i.Help, i.HelpURL,
			tags, i.NodeCount, nodes, ts); err != nil {
			return fmt.Errorf("insert issue %s: %w", i.RuleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const issueColumns = `i.id, i.page_id, i.issue_type, i.rule_id, i.impact, i.description, i.help, i.help_url,
	i.tags_json, i.node_count, i.nodes_json, i.created_at`

func (t *SQLiteTracker) ListIssues(ctx context.Context, pageID int64) ([]model.Issue, error) {
	return t.queryIssues(ctx, `SELECT `+issueColumns+` FROM issues i WHERE i.page_id = ? ORDER BY i.id`, pageID)
}

func (t *SQLiteTracker) ListScanIssues(ctx context.Context, scanID int64) ([]model.Issue, error) {
	return t.queryIssues(ctx, `
		SELECT `+issueColumns+` FROM issues i
		JOIN pages p ON p.id = i.page_id
		WHERE p.scan_id = ?
		ORDER BY p.order_index, i.id
	`, scanID)
}

func (t *SQLiteTracker) queryIssues(ctx context.Context, query string, arg int64) ([]model.Issue, error) {
	rows, err := t.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var out []model.Issue
	for rows.Next() {
		var (
			i          model.Issue
			typ        string
			impact     string
			tags       string
			nodes      string
			createdAtM int64
		)
		if err := rows.Scan(&i.ID, &i.PageID, &typ, &i.RuleID, &impact, &i.Description, &i.Help, &i.HelpURL,
			&tags, &i.NodeCount, &nodes, &createdAtM); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		i.Type = model.IssueType(typ)
		i.Impact = model.ParseSeverity(impact)
		i.CreatedAt = fromMillis(createdAtM)
		if err := decodeIssue(&i, tags, nodes); err != nil {
			t.logger.Warn("failed to decode issue columns", logging.F("issue_id", i.ID), logging.Err(err))
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (t *SQLiteTracker) Close() error {
	t.logger.Info("Closing SQLiteTracker")
	if t.db != nil {
		return t.db.Close()
	}
	return nil
}
