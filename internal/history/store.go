package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/masking"
)

const schema = `
CREATE TABLE IF NOT EXISTS history_records (
	id          UUID PRIMARY KEY,
	source_text TEXT,
	target_text TEXT NOT NULL,
	mappings    JSONB NOT NULL DEFAULT '[]',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store is the PostgreSQL-backed history record store.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a history store and ensures its table exists.
func NewStore(db *sqlx.DB, logger *zap.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}

	return s, nil
}

// Create inserts a new history record.
func (s *Store) Create(ctx context.Context, sourceText *string, targetText string, mappings []masking.Mapping) (*Record, error) {
	record := &Record{
		ID:         uuid.NewString(),
		SourceText: sourceText,
		TargetText: targetText,
		Mappings:   MappingList(mappings),
	}

	query := `
		INSERT INTO history_records (id, source_text, target_text, mappings)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		record.ID, record.SourceText, record.TargetText, record.Mappings,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create history record: %w", err)
	}

	s.logger.Debug("History record created", zap.String("id", record.ID))
	return record, nil
}

// Update rewrites an existing record's content and bumps updated_at.
func (s *Store) Update(ctx context.Context, id string, sourceText *string, targetText string, mappings []masking.Mapping) (*Record, error) {
	record := &Record{
		ID:         id,
		SourceText: sourceText,
		TargetText: targetText,
		Mappings:   MappingList(mappings),
	}

	query := `
		UPDATE history_records
		SET source_text = $2, target_text = $3, mappings = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		id, record.SourceText, record.TargetText, record.Mappings,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("history record %s not found", id)
		}
		return nil, fmt.Errorf("failed to update history record: %w", err)
	}

	s.logger.Debug("History record updated", zap.String("id", id))
	return record, nil
}

// Latest returns the most recently updated record, or nil when the history
// is empty.
func (s *Store) Latest(ctx context.Context) (*Record, error) {
	var record Record
	query := `
		SELECT id, source_text, target_text, mappings, created_at, updated_at
		FROM history_records ORDER BY updated_at DESC LIMIT 1`
	if err := s.db.GetContext(ctx, &record, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest history record: %w", err)
	}
	return &record, nil
}

// Get returns one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var record Record
	query := `
		SELECT id, source_text, target_text, mappings, created_at, updated_at
		FROM history_records WHERE id = $1`
	if err := s.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("history record %s not found", id)
		}
		return nil, fmt.Errorf("failed to load history record: %w", err)
	}
	return &record, nil
}

// List returns records newest-first, up to limit (0 means no limit).
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, source_text, target_text, mappings, created_at, updated_at
		FROM history_records ORDER BY updated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list history records: %w", err)
	}
	return records, nil
}
