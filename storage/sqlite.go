package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"prop_harvester/models"
)

// SQLiteStore is the local operational database: run records, structured
// scrape logs, the cross-run seen-URL ledger and per-portal rollups. It
// works without any network and so stays usable when postgres is down.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scrape_runs (
		id INTEGER PRIMARY KEY,
		portal_id TEXT NOT NULL,
		run_dir TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		urls_discovered INTEGER DEFAULT 0,
		pages_walked INTEGER DEFAULT 0,
		listings_ok INTEGER DEFAULT 0,
		listings_failed INTEGER DEFAULT 0,
		rows_persisted INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		portal_id TEXT
	);

	CREATE TABLE IF NOT EXISTS seen_urls (
		portal_id TEXT NOT NULL,
		url TEXT NOT NULL,
		first_seen_at DATETIME,
		PRIMARY KEY (portal_id, url)
	);

	CREATE TABLE IF NOT EXISTS portal_stats (
		portal_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_urls INTEGER DEFAULT 0,
		total_listings INTEGER DEFAULT 0,
		success_rate REAL DEFAULT 0,
		avg_run_duration_sec INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_scrape_logs_run ON scrape_logs(run_id);
	CREATE INDEX IF NOT EXISTS idx_scrape_runs_portal ON scrape_runs(portal_id, started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) error {
	res, err := s.db.Exec(`
		INSERT INTO scrape_runs (portal_id, run_dir, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.PortalID, run.RunDir, run.StartedAt, run.Status)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	run.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) FinishRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET
			finished_at = ?, status = ?, urls_discovered = ?, pages_walked = ?,
			listings_ok = ?, listings_failed = ?, rows_persisted = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.URLsDiscovered, run.PagesWalked,
		run.ListingsOK, run.ListingsFailed, run.RowsPersisted, run.ID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", run.ID, err)
	}
	return s.refreshPortalStats(run.PortalID)
}

func (s *SQLiteStore) RecentRuns(portal string, limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, portal_id, run_dir, started_at, finished_at, status,
		       urls_discovered, pages_walked, listings_ok, listings_failed, rows_persisted
		FROM scrape_runs WHERE portal_id = ?
		ORDER BY started_at DESC LIMIT ?`, portal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var r models.ScrapeRun
		if err := rows.Scan(&r.ID, &r.PortalID, &r.RunDir, &r.StartedAt, &r.FinishedAt,
			&r.Status, &r.URLsDiscovered, &r.PagesWalked, &r.ListingsOK,
			&r.ListingsFailed, &r.RowsPersisted); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// Logs
// =============================================================================

func (s *SQLiteStore) AddLog(entry *models.ScrapeLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (run_id, timestamp, level, message, portal_id)
		VALUES (?, ?, ?, ?, ?)`,
		entry.RunID, entry.Timestamp, entry.Level, entry.Message, entry.PortalID)
	return err
}

// =============================================================================
// Seen URLs
// =============================================================================

func (s *SQLiteStore) SeenURLs(portal string) (map[string]bool, error) {
	rows, err := s.db.Query(`SELECT url FROM seen_urls WHERE portal_id = ?`, portal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		seen[u] = true
	}
	return seen, rows.Err()
}

func (s *SQLiteStore) AddSeenURLs(portal string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO seen_urls (portal_id, url, first_seen_at)
		VALUES (?, ?, ?) ON CONFLICT DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, u := range urls {
		if _, err := stmt.Exec(portal, u, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// Portal stats
// =============================================================================

// refreshPortalStats recomputes the rollup row for one portal from its run
// history. Success rate is listings_ok over attempted across all runs.
func (s *SQLiteStore) refreshPortalStats(portal string) error {
	_, err := s.db.Exec(`
		INSERT INTO portal_stats (portal_id, last_run_at, last_run_status, total_urls, total_listings, success_rate, avg_run_duration_sec)
		SELECT
			portal_id,
			MAX(started_at),
			(SELECT status FROM scrape_runs r2 WHERE r2.portal_id = r.portal_id ORDER BY started_at DESC LIMIT 1),
			SUM(urls_discovered),
			SUM(listings_ok),
			CASE WHEN SUM(listings_ok + listings_failed) > 0
				THEN CAST(SUM(listings_ok) AS REAL) / SUM(listings_ok + listings_failed)
				ELSE 0 END,
			CAST(AVG(CASE WHEN finished_at IS NOT NULL
				THEN (julianday(finished_at) - julianday(started_at)) * 86400
				ELSE NULL END) AS INTEGER)
		FROM scrape_runs r
		WHERE portal_id = ?
		GROUP BY portal_id
		ON CONFLICT (portal_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_urls = excluded.total_urls,
			total_listings = excluded.total_listings,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec`, portal)
	return err
}

func (s *SQLiteStore) PortalStats(portal string) (*models.PortalStats, error) {
	var st models.PortalStats
	err := s.db.QueryRow(`
		SELECT portal_id, last_run_at, last_run_status, total_urls, total_listings,
		       success_rate, avg_run_duration_sec
		FROM portal_stats WHERE portal_id = ?`, portal).
		Scan(&st.PortalID, &st.LastRunAt, &st.LastRunStatus, &st.TotalURLs,
			&st.TotalListings, &st.SuccessRate, &st.AvgRunDurationSec)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}
