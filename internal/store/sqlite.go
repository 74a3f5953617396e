package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"rank-client/internal/errors"
	"rank-client/internal/models"
)

// SQLiteStore implements Journal using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates if needed) the journal database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: creating journal directory: %v", errors.ErrDatabaseError, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", errors.ErrDatabaseError, err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema: %v", errors.ErrDatabaseError, err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		correlation_id INTEGER NOT NULL DEFAULT 0,
		service TEXT NOT NULL,
		security TEXT NOT NULL,
		broker TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		query TEXT NOT NULL,
		status TEXT NOT NULL,
		error_code INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		records INTEGER NOT NULL DEFAULT 0,
		partials INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_requests_started ON requests(started_at);
	CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRequest saves one request outcome. An empty ID is filled in.
func (s *SQLiteStore) RecordRequest(ctx context.Context, e *models.RequestEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO requests (id, session_id, correlation_id, service, security, broker, start_date, end_date, query, status, error_code, error_message, records, partials, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.SessionID, int64(e.CorrelationID), e.Service, e.Security, e.Broker, e.Start, e.End, e.Query, e.Status,
		e.ErrorCode, e.ErrorMessage, e.Records, e.Partials, e.StartedAt.UTC(), e.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to record request: %v", errors.ErrDatabaseError, err)
	}
	return nil
}

// ListRequests returns journal entries, newest first.
func (s *SQLiteStore) ListRequests(ctx context.Context, filter RequestFilter) ([]models.RequestEntry, error) {
	query := "SELECT id, session_id, correlation_id, service, security, broker, start_date, end_date, query, status, error_code, error_message, records, partials, started_at, finished_at FROM requests WHERE 1=1"
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Security != "" {
		query += " AND security = ?"
		args = append(args, filter.Security)
	}
	if !filter.Since.IsZero() {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UTC())
	}

	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query requests: %v", errors.ErrDatabaseError, err)
	}
	defer rows.Close()

	var entries []models.RequestEntry
	for rows.Next() {
		var e models.RequestEntry
		var correlationID int64
		if err := rows.Scan(&e.ID, &e.SessionID, &correlationID, &e.Service, &e.Security, &e.Broker, &e.Start, &e.End,
			&e.Query, &e.Status, &e.ErrorCode, &e.ErrorMessage, &e.Records, &e.Partials, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan request: %v", errors.ErrDatabaseError, err)
		}
		e.CorrelationID = uint64(correlationID)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByStatus returns the number of requests per status since the given time.
func (s *SQLiteStore) CountByStatus(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM requests WHERE started_at >= ? GROUP BY status", since.UTC())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count requests: %v", errors.ErrDatabaseError, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: failed to scan count: %v", errors.ErrDatabaseError, err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
