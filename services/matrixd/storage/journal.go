package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"donutmatrix/core/events"
)

var (
	// ErrPathRequired is returned when the journal path is missing.
	ErrPathRequired = errors.New("matrixd journal path must be configured")
	// ErrNotConfigured is returned when a nil journal is used.
	ErrNotConfigured = errors.New("matrixd journal not configured")
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL,
    attributes TEXT NOT NULL,
    recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS signals_type_idx ON signals(type, seq);
`

// Journal persists committed program signals to SQLite.
type Journal struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// Entry is a journalled signal.
type Entry struct {
	Seq        int64             `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

// Open initialises the journal using a sqlite-compatible DSN.
func Open(dsn string, clock clockwork.Clock, logger *slog.Logger) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, ErrPathRequired
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a shared in-memory database disappears when its last connection closes
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, clock: clock, logger: logger.With("component", "journal")}, nil
}

// Close releases database resources.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Emit implements events.Emitter. Failures are logged; the operation that
// produced the signal has already committed.
func (j *Journal) Emit(evt events.Event) {
	if j == nil || evt == nil {
		return
	}
	if _, err := j.Record(context.Background(), evt); err != nil {
		j.logger.Error("journal signal", "kind", evt.EventType(), "error", err)
	}
}

// Record appends evt and returns its journal id.
func (j *Journal) Record(ctx context.Context, evt events.Event) (string, error) {
	if j == nil || j.db == nil {
		return "", ErrNotConfigured
	}
	payload := evt.Event()
	if payload == nil {
		return "", fmt.Errorf("signal %s has no payload", evt.EventType())
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	id := uuid.NewString()
	_, err = j.db.ExecContext(ctx, `
        INSERT INTO signals(id, type, attributes, recorded_at)
        VALUES(?, ?, ?, ?)
    `, id, payload.Type, string(attrs), j.clock.Now().UTC().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("insert signal: %w", err)
	}
	return id, nil
}

// Query filters journal reads.
type Query struct {
	// Type restricts results to one signal type when set.
	Type string
	// After returns entries with a sequence greater than After.
	After int64
	Limit int
}

const maxQueryLimit = 500

// List returns journal entries in ascending sequence order.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, ErrNotConfigured
	}
	limit := q.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	query := `SELECT seq, id, type, attributes, recorded_at FROM signals WHERE seq > ?`
	args := []any{q.After}
	if kind := strings.TrimSpace(q.Type); kind != "" {
		query += ` AND type = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			entry    Entry
			attrs    string
			recorded int64
		)
		if err := rows.Scan(&entry.Seq, &entry.ID, &entry.Type, &attrs, &recorded); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal([]byte(attrs), &entry.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		entry.RecordedAt = time.UnixMilli(recorded).UTC()
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return out, nil
}

// Count returns the number of journalled signals of the given type, or of all
// types when kind is empty.
func (j *Journal) Count(ctx context.Context, kind string) (int64, error) {
	if j == nil || j.db == nil {
		return 0, ErrNotConfigured
	}
	var (
		row   *sql.Row
		count int64
	)
	if kind = strings.TrimSpace(kind); kind == "" {
		row = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals`)
	} else {
		row = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM signals WHERE type = ?`, kind)
	}
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return count, nil
}

var _ events.Emitter = (*Journal)(nil)
