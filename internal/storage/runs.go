package storage

import (
	"context"
	"database/sql"
	"time"
)

// runTimeLayout is fixed-width so started_at sorts lexically.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z"

// RunRecord summarizes one completed analysis run.
type RunRecord struct {
	RunID        string    `json:"runId"`
	ProjectRoot  string    `json:"projectRoot"`
	ManifestPath string    `json:"manifestPath"`
	Dependencies int       `json:"dependencies"`
	Used         int       `json:"used"`
	Removable    int       `json:"removable"`
	Cycles       int       `json:"cycles"`
	Warnings     int       `json:"warnings"`
	DurationMs   int64     `json:"durationMs"`
	StartedAt    time.Time `json:"startedAt"`
}

// RecordRun persists a run summary. Recording the same RunID twice
// overwrites the first record.
func (db *DB) RecordRun(ctx context.Context, r RunRecord) error {
	_, err := db.Exec(ctx, `
		INSERT OR REPLACE INTO runs (
			run_id, project_root, manifest_path, dependencies, used,
			removable, cycles, warnings, duration_ms, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.ProjectRoot, r.ManifestPath, r.Dependencies, r.Used,
		r.Removable, r.Cycles, r.Warnings, r.DurationMs, r.StartedAt.UTC().Format(runTimeLayout))
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(ctx, `
		SELECT run_id, project_root, manifest_path, dependencies, used,
		       removable, cycles, warnings, duration_ms, started_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var r RunRecord
		var startedAt string
		if err := rows.Scan(
			&r.RunID, &r.ProjectRoot, &r.ManifestPath, &r.Dependencies, &r.Used,
			&r.Removable, &r.Cycles, &r.Warnings, &r.DurationMs, &startedAt,
		); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(runTimeLayout, startedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CleanupOldRuns removes runs older than the retention period
func (db *DB) CleanupOldRuns(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(runTimeLayout)
	result, err := db.Exec(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RunCount returns the number of recorded runs.
func (db *DB) RunCount(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRow(ctx, "SELECT COUNT(*) FROM runs").Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
