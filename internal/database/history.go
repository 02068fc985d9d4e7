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

	"github.com/nao1215/linkscan/internal/model"
)

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "linkscan.db"

// Link kinds stored in crawl_links.
const (
	KindInternal = "internal"
	KindExternal = "external"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000"

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("crawl run not found")

// HistoryDB stores crawl reports.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	// Concurrent processes wait for the write lock instead of failing with SQLITE_BUSY.
	const params = "&_pragma=busy_timeout(5000)"

	dsn := dbPath + "?mode=rwc" + params
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		}
		dsn = dbPath + "?mode=rw" + params
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := hdb.createTables(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		seed TEXT NOT NULL,
		domain TEXT NOT NULL,
		domain_policy TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages_fetched INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		internal_count INTEGER NOT NULL,
		external_count INTEGER NOT NULL,
		partial INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON crawl_runs(seed, started_at);

	CREATE TABLE IF NOT EXISTS crawl_links (
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_links_url ON crawl_links(url);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// RunMetadata summarizes one archived run without loading its report.
type RunMetadata struct {
	ID            int64     `json:"id"`
	Seed          string    `json:"seed"`
	Domain        string    `json:"domain"`
	DomainPolicy  string    `json:"domain_policy"`
	MaxDepth      int       `json:"max_depth"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	PagesFetched  int       `json:"pages_fetched"`
	Failures      int       `json:"failures"`
	InternalCount int       `json:"internal_count"`
	ExternalCount int       `json:"external_count"`
	Partial       bool      `json:"partial"`
}

// SaveReport archives a report and indexes its links. It returns the run ID.
func (h *HistoryDB) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (seed, domain, domain_policy, max_depth, started_at, finished_at,
		pages_fetched, failures, internal_count, external_count, partial, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Seed,
		report.Domain,
		report.DomainPolicy,
		report.MaxDepth,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Stats.PagesFetched,
		report.Stats.Failures,
		report.TotalInternal(),
		report.TotalExternal(),
		report.Partial(),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save crawl run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO crawl_links (run_id, url, kind) VALUES (?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare link insert: %w", err)
	}
	defer stmt.Close()

	for kind, set := range map[string]model.LinkSet{KindInternal: report.Internal, KindExternal: report.External} {
		for _, link := range set.Members() {
			if _, err := stmt.ExecContext(ctx, runID, link, kind); err != nil {
				return 0, fmt.Errorf("failed to save link: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// ListSeeds returns every archived seed in lexical order.
func (h *HistoryDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, "SELECT DISTINCT seed FROM crawl_runs ORDER BY seed")
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	seeds := make([]string, 0)
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

const metadataColumns = `id, seed, domain, domain_policy, max_depth, started_at, finished_at,
	pages_fetched, failures, internal_count, external_count, partial`

// GetHistory returns the runs of seed, newest first.
func (h *HistoryDB) GetHistory(ctx context.Context, seed string) ([]RunMetadata, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT `+metadataColumns+`
	FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC, id DESC
	`, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	return scanMetadata(rows)
}

// FindLink returns the runs that discovered link, newest first.
func (h *HistoryDB) FindLink(ctx context.Context, link string) ([]RunMetadata, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT `+metadataColumns+`
	FROM crawl_runs
	WHERE id IN (SELECT run_id FROM crawl_links WHERE url = ?)
	ORDER BY started_at DESC, id DESC
	`, link)
	if err != nil {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}
	return scanMetadata(rows)
}

func scanMetadata(rows *sql.Rows) ([]RunMetadata, error) {
	defer rows.Close()

	results := make([]RunMetadata, 0)
	for rows.Next() {
		var meta RunMetadata
		var startedAt, finishedAt string
		if err := rows.Scan(
			&meta.ID,
			&meta.Seed,
			&meta.Domain,
			&meta.DomainPolicy,
			&meta.MaxDepth,
			&startedAt,
			&finishedAt,
			&meta.PagesFetched,
			&meta.Failures,
			&meta.InternalCount,
			&meta.ExternalCount,
			&meta.Partial,
		); err != nil {
			return nil, fmt.Errorf("failed to scan crawl run: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// GetReportByID returns the archived report of a run.
// ErrNotFound is returned when the run does not exist.
func (h *HistoryDB) GetReportByID(ctx context.Context, id int64) (*model.CrawlReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, "SELECT report_json FROM crawl_runs WHERE id = ?", id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetLatestReports returns up to n reports of seed, newest first.
func (h *HistoryDB) GetLatestReports(ctx context.Context, seed string, n int) ([]*model.CrawlReport, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT report_json FROM crawl_runs
	WHERE seed = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, seed, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*model.CrawlReport, 0, n)
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func decodeReport(data string) (*model.CrawlReport, error) {
	var report model.CrawlReport
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats lists the layouts accepted when reading timestamps.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// parseTimestamp returns the zero time when no layout matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
