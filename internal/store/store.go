// Package store persists metric samples and anomaly events in a local
// SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/vitalis-app/sentinel/internal/models"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// metricColumns are the sample keys persisted, in column order.
var metricColumns = []string{
	models.KeyCPU,
	models.KeyMemoryMB,
	models.KeyMemory,
	models.KeyDisk,
	models.KeyReadMB,
	models.KeyWriteMB,
	models.KeyUploadKB,
	models.KeyDownloadKB,
	models.KeyGPU,
	models.KeyDiskTotalMB,
}

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS metrics (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    ts              INTEGER NOT NULL,
    cpu_percent     REAL,
    memory_used_mb  REAL,
    memory_percent  REAL,
    disk_percent    REAL,
    read_mb         REAL,
    write_mb        REAL,
    upload_kb       REAL,
    download_kb     REAL
);
CREATE INDEX IF NOT EXISTS idx_metrics_ts ON metrics(ts);

CREATE TABLE IF NOT EXISTS anomalies (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    ts        INTEGER NOT NULL,
    resource  TEXT NOT NULL,
    score     INTEGER NOT NULL,
    severity  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomalies_ts ON anomalies(ts);
`,
	},
	// Migration 2: GPU utilisation and disk capacity
	{
		version: 2,
		sql: `
ALTER TABLE metrics ADD COLUMN gpu_percent REAL;
ALTER TABLE metrics ADD COLUMN disk_total_mb REAL;
`,
	},
}

// Store is a SQLite-backed sample history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations. Pass ":memory:" for a throwaway store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one connection: SQLite has a single writer, and :memory: databases are
	// per-connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

var insertMetricSQL = fmt.Sprintf(
	`INSERT INTO metrics(ts, %s) VALUES(?%s)`,
	strings.Join(metricColumns, ", "),
	strings.Repeat(", ?", len(metricColumns)),
)

var selectMetricSQL = fmt.Sprintf(
	`SELECT ts, %s FROM metrics WHERE ts >= ? ORDER BY ts ASC, id ASC`,
	strings.Join(metricColumns, ", "),
)

// Write appends one sample. Keys the sample does not carry are stored as NULL.
func (s *Store) Write(ctx context.Context, sample models.MetricSample) error {
	args := make([]any, 0, len(metricColumns)+1)
	args = append(args, sample.Timestamp.UnixMilli())
	for _, col := range metricColumns {
		if v, ok := sample.Get(col); ok {
			args = append(args, v)
		} else {
			args = append(args, nil)
		}
	}
	if _, err := s.db.ExecContext(ctx, insertMetricSQL, args...); err != nil {
		return wrap("write sample", err)
	}
	return nil
}

// ReadRecent returns samples from the last window, oldest first.
func (s *Store) ReadRecent(ctx context.Context, window time.Duration) ([]models.MetricSample, error) {
	return s.ReadSince(ctx, time.Now().Add(-window))
}

// ReadSince returns samples at or after since, oldest first.
func (s *Store) ReadSince(ctx context.Context, since time.Time) ([]models.MetricSample, error) {
	rows, err := s.db.QueryContext(ctx, selectMetricSQL, since.UnixMilli())
	if err != nil {
		return nil, wrap("read samples", err)
	}
	defer rows.Close()

	var out []models.MetricSample
	for rows.Next() {
		var ts int64
		vals := make([]sql.NullFloat64, len(metricColumns))
		dest := make([]any, 0, len(vals)+1)
		dest = append(dest, &ts)
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, wrap("scan sample", err)
		}

		values := make(map[string]float64, len(metricColumns))
		for i, col := range metricColumns {
			if vals[i].Valid {
				values[col] = vals[i].Float64
			}
		}
		out = append(out, models.MetricSample{
			Timestamp: time.UnixMilli(ts).UTC(),
			Values:    values,
		})
	}
	return out, rows.Err()
}

// WriteAnomalies records events detected at ts in a single transaction.
func (s *Store) WriteAnomalies(ctx context.Context, ts time.Time, events []models.AnomalyEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin anomalies", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO anomalies(ts, resource, score, severity) VALUES(?,?,?,?)`)
	if err != nil {
		return wrap("prepare anomalies", err)
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, ts.UnixMilli(), e.Resource, e.Score, string(e.Severity)); err != nil {
			return wrap("write anomaly", err)
		}
	}
	return wrap("commit anomalies", tx.Commit())
}

// AnomalyRecord is a persisted anomaly event.
type AnomalyRecord struct {
	Timestamp time.Time
	models.AnomalyEvent
}

// RecentAnomalies returns up to limit anomalies, newest first.
func (s *Store) RecentAnomalies(ctx context.Context, limit int) ([]AnomalyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, resource, score, severity FROM anomalies ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("read anomalies", err)
	}
	defer rows.Close()

	var out []AnomalyRecord
	for rows.Next() {
		var (
			ts  int64
			rec AnomalyRecord
			sev string
		)
		if err := rows.Scan(&ts, &rec.Resource, &rec.Score, &sev); err != nil {
			return nil, wrap("scan anomaly", err)
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		rec.Severity = models.Severity(sev)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes samples and anomalies older than cutoff and returns the
// number of rows removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"metrics", "anomalies"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, cutoff.UnixMilli())
		if err != nil {
			return total, wrap("prune "+table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Count returns the number of stored samples.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM metrics`).Scan(&n)
	return n, wrap("count samples", err)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
