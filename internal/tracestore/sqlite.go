package tracestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/nodeflow/internal/trace"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite stores traces in a SQLite database. The full trace is kept as a
// JSON document next to the columns List needs.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent executions.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save implements Store. Saving an execution id twice replaces the trace.
func (s *SQLite) Save(ctx context.Context, t *trace.Trace) error {
	if t == nil || t.ExecutionID == "" {
		return fmt.Errorf("tracestore: trace without execution id")
	}
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding trace %s: %w", t.ExecutionID, err)
	}
	sum := t.Summarize()
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO traces (execution_id, graph_id, event, status, started_at, steps, body)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ExecutionID, t.GraphID, t.Event, string(t.Status), t.StartedAt.UnixNano(), sum.Steps, body,
	)
	if err != nil {
		return fmt.Errorf("inserting trace %s: %w", t.ExecutionID, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, executionID string) (*trace.Trace, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM traces WHERE execution_id = ?`, executionID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying trace %s: %w", executionID, err)
	}
	var t trace.Trace
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decoding trace %s: %w", executionID, err)
	}
	return &t, nil
}

// List implements Store.
func (s *SQLite) List(ctx context.Context, graphID string, limit int) ([]trace.Summary, error) {
	query := `SELECT execution_id, graph_id, event, status, started_at, steps FROM traces`
	args := []any{}
	if graphID != "" {
		query += ` WHERE graph_id = ?`
		args = append(args, graphID)
	}
	query += ` ORDER BY started_at DESC, execution_id DESC LIMIT ?`
	args = append(args, listLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing traces: %w", err)
	}
	defer rows.Close()

	var out []trace.Summary
	for rows.Next() {
		var (
			sum     trace.Summary
			status  string
			started int64
		)
		if err := rows.Scan(&sum.ExecutionID, &sum.GraphID, &sum.Event, &status, &started, &sum.Steps); err != nil {
			return nil, fmt.Errorf("scanning trace: %w", err)
		}
		sum.Status = trace.RunStatus(status)
		sum.StartedAt = time.Unix(0, started).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
