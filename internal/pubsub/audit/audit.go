// Package audit is an optional, off-by-default append-only diagnostic log
// of delivered/false-positive counter snapshots, backed by
// modernc.org/sqlite the way the teacher's infra/sqlite.Store opens its
// local database (spec.md §6 "Persisted state: none" covers subscription
// state only — this log never feeds back into delivery decisions, it only
// serves `pubsubctl history`).
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ddatapubsub/internal/pubsub/metrics"

	_ "modernc.org/sqlite"
)

// Log appends counter snapshots for later inspection by pubsubctl.
type Log struct {
	db *sql.DB
}

// Open creates (if needed) and opens the sqlite file at path.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: set busy timeout: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &Log{db: db}, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS counter_snapshots (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at         INTEGER NOT NULL,
	topic_extractor_id  TEXT NOT NULL,
	true_positives      INTEGER NOT NULL,
	false_positives     INTEGER NOT NULL,
	replication_timeouts INTEGER NOT NULL,
	cluster_unreachables INTEGER NOT NULL,
	forced_resyncs      INTEGER NOT NULL,
	label_conflicts     INTEGER NOT NULL,
	supervisor_restarts INTEGER NOT NULL
)`

// Record appends a metrics.Counters snapshot with the current time.
func (l *Log) Record(ctx context.Context, snap metrics.Snapshot) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO counter_snapshots (
			recorded_at, topic_extractor_id, true_positives, false_positives,
			replication_timeouts, cluster_unreachables, forced_resyncs,
			label_conflicts, supervisor_restarts
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), snap.TopicExtractorID, snap.TruePositives, snap.FalsePositives,
		snap.ReplicationTimeouts, snap.ClusterUnreachables, snap.ForcedResyncs,
		snap.LabelConflicts, snap.SupervisorRestarts,
	)
	if err != nil {
		return fmt.Errorf("audit: record snapshot: %w", err)
	}
	return nil
}

// Record is one row returned by History, with its recorded timestamp.
type Record struct {
	RecordedAt time.Time
	metrics.Snapshot
}

// History returns the most recent limit snapshots, newest first.
func (l *Log) History(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT recorded_at, topic_extractor_id, true_positives, false_positives,
		       replication_timeouts, cluster_unreachables, forced_resyncs,
		       label_conflicts, supervisor_restarts
		FROM counter_snapshots
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var recordedAt int64
		if err := rows.Scan(&recordedAt, &r.TopicExtractorID, &r.TruePositives, &r.FalsePositives,
			&r.ReplicationTimeouts, &r.ClusterUnreachables, &r.ForcedResyncs,
			&r.LabelConflicts, &r.SupervisorRestarts); err != nil {
			return nil, fmt.Errorf("audit: scan history row: %w", err)
		}
		r.RecordedAt = time.Unix(recordedAt, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate history: %w", err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (l *Log) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
