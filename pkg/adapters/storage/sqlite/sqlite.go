package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// RunStorage implements RunStorage on SQLite. Records are stored as JSON
// documents next to the columns used for listing.
type RunStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the database file at path and prepares the schema.
func Open(path string, logger *zap.Logger) (*RunStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := New(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New initializes the schema in db and returns a store using it.
func New(db *sql.DB, logger *zap.Logger) (*RunStorage, error) {
	s := &RunStorage{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *RunStorage) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			submitted_at INTEGER NOT NULL,
			record BLOB NOT NULL
		);`,
	)
	return err
}

// SaveRun creates or replaces a run record
func (s *RunStorage) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, submitted_at, record)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, record = excluded.record`,
		record.ID,
		string(record.Status),
		record.SubmittedAt.UnixNano(),
		data,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", record.ID),
		zap.String("status", string(record.Status)))
	return nil
}

// GetRun retrieves a run record
func (s *RunStorage) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM runs WHERE id = ?`, runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decode(data)
}

// ListRuns returns every stored run record, newest first
func (s *RunStorage) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM runs ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*domain.RunRecord
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record, err := decode(data)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// DeleteRun removes a run record
func (s *RunStorage) DeleteRun(ctx context.Context, runID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Prune deletes finished runs submitted before cutoff and returns how many were removed.
func (s *RunStorage) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE submitted_at < ? AND status IN (?, ?, ?)`,
		cutoff.UnixNano(),
		string(domain.RunStatusCompleted),
		string(domain.RunStatusFailed),
		string(domain.RunStatusCancelled),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database
func (s *RunStorage) Close() error {
	return s.db.Close()
}

func decode(data []byte) (*domain.RunRecord, error) {
	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &record, nil
}
