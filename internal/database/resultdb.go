package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/hmfcrawl/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "hmfcrawl.db"

// timeLayout is fixed-width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ResultDB stores crawl results in SQLite. Every saved SiteReport becomes
// one crawl run with its pages and references, plus the full report as JSON.
type ResultDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the result database in dbDir.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl with --save first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the path of the database file.
func (rdb *ResultDB) Path() string {
	return rdb.dbPath
}

// Close closes the database connection.
func (rdb *ResultDB) Close() error {
	return rdb.db.Close()
}

func (rdb *ResultDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		start_url TEXT NOT NULL,
		crawled_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		failed_pages INTEGER NOT NULL,
		total INTEGER NOT NULL,
		unique_refs INTEGER NOT NULL,
		timed_out INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_url ON crawl_runs(start_url);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		request_url TEXT NOT NULL,
		page_url TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status_code INTEGER,
		content_type TEXT,
		total INTEGER NOT NULL,
		unique_refs INTEGER NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);

	CREATE TABLE IF NOT EXISTS page_references (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
		region TEXT NOT NULL,
		label TEXT,
		raw_href TEXT NOT NULL,
		resolved_url TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		scope TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refs_page ON page_references(page_id);
	CREATE INDEX IF NOT EXISTS idx_refs_type ON page_references(resource_type);
	`
	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSiteReport stores a report in a single transaction and returns the
// ID of the new crawl run. The summary is computed if the report lacks one.
func (rdb *ResultDB) SaveSiteReport(ctx context.Context, report *model.SiteReport) (runID int64, err error) {
	summary := report.Summary
	if summary.Regions == nil {
		summary = model.Summarize(report.Pages)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (start_url, crawled_at, duration_ms, pages, failed_pages, total, unique_refs, timed_out, error, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.StartURL,
		report.DateCrawled.UTC().Format(timeLayout),
		report.Duration.Milliseconds(),
		summary.Pages,
		summary.FailedPages,
		summary.Total,
		summary.Unique,
		report.TimedOut,
		report.Error,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}
	runID, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl run id: %w", err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (run_id, seq, request_url, page_url, depth, status_code, content_type, total, unique_refs, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer pageStmt.Close()

	refStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO page_references (page_id, region, label, raw_href, resolved_url, resource_type, scope)
	VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare reference insert: %w", err)
	}
	defer refStmt.Close()

	for seq, page := range report.Pages {
		if page == nil {
			continue
		}
		res, err := pageStmt.ExecContext(ctx,
			runID, seq, page.RequestURL, page.PageURL, page.Depth,
			page.StatusCode, page.ContentType, page.Total(), page.Unique(), page.Error,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", page.RequestURL, err)
		}
		pageID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get page id: %w", err)
		}
		for _, ref := range page.References {
			if _, err := refStmt.ExecContext(ctx,
				pageID, string(ref.Region), ref.Label, ref.RawHref, ref.ResolvedURL,
				string(ref.ResourceType), string(ref.Scope),
			); err != nil {
				return 0, fmt.Errorf("failed to insert reference %s: %w", ref.RawHref, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// GetLatestSiteReport returns the most recent report for a start URL, or
// nil if none was saved.
func (rdb *ResultDB) GetLatestSiteReport(ctx context.Context, startURL string) (*model.SiteReport, error) {
	return rdb.getReport(ctx, `
	SELECT report_json FROM crawl_runs
	WHERE start_url = ?
	ORDER BY id DESC
	LIMIT 1`, startURL)
}

// GetSiteReportByID returns the report of a crawl run, or nil if the run
// does not exist.
func (rdb *ResultDB) GetSiteReportByID(ctx context.Context, runID int64) (*model.SiteReport, error) {
	return rdb.getReport(ctx, `SELECT report_json FROM crawl_runs WHERE id = ?`, runID)
}

func (rdb *ResultDB) getReport(ctx context.Context, query string, arg any) (*model.SiteReport, error) {
	var reportJSON string
	err := rdb.db.QueryRowContext(ctx, query, arg).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site report: %w", err)
	}

	var report model.SiteReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse site report: %w", err)
	}
	return &report, nil
}

// ListStartURLs returns every start URL with at least one saved run.
func (rdb *ResultDB) ListStartURLs(ctx context.Context) ([]string, error) {
	rows, err := rdb.db.QueryContext(ctx, `SELECT DISTINCT start_url FROM crawl_runs ORDER BY start_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list start URLs: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan start URL: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// RunMetadata summarizes a crawl run without loading its report.
type RunMetadata struct {
	ID          int64
	StartURL    string
	CrawledAt   time.Time
	Duration    time.Duration
	Pages       int
	FailedPages int
	Total       int
	Unique      int
	TimedOut    bool
	Error       string
}

// GetRunHistory returns the runs of a start URL, newest first.
func (rdb *ResultDB) GetRunHistory(ctx context.Context, startURL string) ([]RunMetadata, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id, start_url, crawled_at, duration_ms, pages, failed_pages, total, unique_refs, timed_out, error
	FROM crawl_runs
	WHERE start_url = ?
	ORDER BY id DESC`, startURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			crawledAt  string
			durationMS int64
			errMsg     sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.StartURL, &crawledAt, &durationMS,
			&meta.Pages, &meta.FailedPages, &meta.Total, &meta.Unique, &meta.TimedOut, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.CrawledAt = parseTimestamp(crawledAt)
		meta.Duration = time.Duration(durationMS) * time.Millisecond
		meta.Error = errMsg.String
		runs = append(runs, meta)
	}
	return runs, rows.Err()
}

// ReferenceFilter narrows QueryReferences. Empty fields match everything.
type ReferenceFilter struct {
	Region       model.Region
	ResourceType model.ResourceType
	Scope        model.Scope
}

// StoredReference is a reference row joined with its page.
type StoredReference struct {
	PageURL string
	model.ReferenceRecord
}

// QueryReferences returns the references of a crawl run in page and
// document order.
func (rdb *ResultDB) QueryReferences(ctx context.Context, runID int64, filter ReferenceFilter) ([]StoredReference, error) {
	query := `
	SELECT p.page_url, r.region, r.label, r.raw_href, r.resolved_url, r.resource_type, r.scope
	FROM page_references r
	JOIN pages p ON p.id = r.page_id
	WHERE p.run_id = ?`
	args := []any{runID}

	if filter.Region != "" {
		query += " AND r.region = ?"
		args = append(args, string(filter.Region))
	}
	if filter.ResourceType != "" {
		query += " AND r.resource_type = ?"
		args = append(args, string(filter.ResourceType))
	}
	if filter.Scope != "" {
		query += " AND r.scope = ?"
		args = append(args, string(filter.Scope))
	}
	query += " ORDER BY p.seq, r.id"

	rows, err := rdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query references: %w", err)
	}
	defer rows.Close()

	var refs []StoredReference
	for rows.Next() {
		var (
			ref                          StoredReference
			label                        sql.NullString
			region, resourceType, scopeV string
		)
		if err := rows.Scan(&ref.PageURL, &region, &label, &ref.RawHref, &ref.ResolvedURL, &resourceType, &scopeV); err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		ref.Region = model.Region(region)
		ref.Label = label.String
		ref.ResourceType = model.ResourceType(resourceType)
		ref.Scope = model.Scope(scopeV)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// DeleteRunsBefore removes runs crawled before t and returns how many were
// deleted. Pages and references are removed with their run.
func (rdb *ResultDB) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := rdb.db.ExecContext(ctx, `DELETE FROM crawl_runs WHERE crawled_at < ?`, t.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

// timestampFormats are tried in order when reading stored timestamps.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time if s matches no known format.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
