// Package rules persists user-authored masking rules and owns the JSON
// transfer format for rule import/export.
package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/masking"
)

const schema = `
CREATE TABLE IF NOT EXISTS masking_rules (
	id         UUID PRIMARY KEY,
	original   TEXT NOT NULL,
	masked     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	enabled    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT masking_rules_original_key UNIQUE (original),
	CONSTRAINT masking_rules_masked_key UNIQUE (masked)
)`

// Store is the PostgreSQL-backed rule store. Uniqueness of originals and
// targets is enforced here, not by the engine.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore creates a rule store and ensures its table exists.
func NewStore(db *sqlx.DB, logger *zap.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create rules table: %w", err)
	}

	return s, nil
}

type ruleRow struct {
	ID        string    `db:"id"`
	Original  string    `db:"original"`
	Masked    string    `db:"masked"`
	Kind      string    `db:"kind"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
}

func (r ruleRow) toRule() (masking.Rule, error) {
	kind, err := masking.ParseCategory(r.Kind)
	if err != nil {
		return masking.Rule{}, err
	}
	return masking.Rule{
		ID:        r.ID,
		Original:  r.Original,
		Masked:    r.Masked,
		Kind:      kind,
		Enabled:   r.Enabled,
		CreatedAt: r.CreatedAt,
	}, nil
}

// List returns all rules in creation order.
func (s *Store) List(ctx context.Context) ([]masking.Rule, error) {
	var rows []ruleRow
	query := `SELECT id, original, masked, kind, enabled, created_at FROM masking_rules ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	list := make([]masking.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toRule()
		if err != nil {
			s.logger.Warn("Skipping rule with unknown category",
				zap.String("id", row.ID),
				zap.String("kind", row.Kind))
			continue
		}
		list = append(list, rule)
	}
	return list, nil
}

// Create inserts a rule. Blank originals or targets are rejected; duplicate
// originals and targets map to ErrDuplicateOriginal / ErrDuplicateTarget.
func (s *Store) Create(ctx context.Context, rule masking.Rule) (masking.Rule, error) {
	if strings.TrimSpace(rule.Original) == "" || strings.TrimSpace(rule.Masked) == "" {
		return masking.Rule{}, ErrInvalidRule
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO masking_rules (id, original, masked, kind, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		rule.ID, rule.Original, rule.Masked, rule.Kind.String(), rule.Enabled, rule.CreatedAt)
	if err != nil {
		return masking.Rule{}, mapUniqueViolation(err)
	}

	s.logger.Debug("Rule created",
		zap.String("id", rule.ID),
		zap.String("kind", rule.Kind.String()))

	return rule, nil
}

// Update rewrites a rule's mutable fields.
func (s *Store) Update(ctx context.Context, rule masking.Rule) error {
	query := `UPDATE masking_rules SET original = $2, masked = $3, kind = $4, enabled = $5 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query,
		rule.ID, rule.Original, rule.Masked, rule.Kind.String(), rule.Enabled)
	if err != nil {
		return mapUniqueViolation(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM masking_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a rule by ID.
func (s *Store) Get(ctx context.Context, id string) (masking.Rule, error) {
	var row ruleRow
	query := `SELECT id, original, masked, kind, enabled, created_at FROM masking_rules WHERE id = $1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return masking.Rule{}, ErrNotFound
		}
		return masking.Rule{}, fmt.Errorf("failed to get rule: %w", err)
	}
	return row.toRule()
}

// mapUniqueViolation translates Postgres unique-constraint violations into
// the typed duplicate errors, keyed by constraint name.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "masking_rules_original_key":
			return ErrDuplicateOriginal
		case "masking_rules_masked_key":
			return ErrDuplicateTarget
		}
	}
	return fmt.Errorf("rule store: %w", err)
}
