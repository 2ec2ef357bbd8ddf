package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/humancheck/humancheck/internal/domain"
	"github.com/humancheck/humancheck/internal/domain/review"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecordDecision atomically inserts the decision and moves the review out
// of pending. The conditional UPDATE is the single writer gate: when two
// reviewers race, exactly one flips the status and the other gets
// review.ErrAlreadyDecided.
func (s *Store) RecordDecision(ctx context.Context, d *review.Decision, status review.Status) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin decision tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := d.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tag, err := tx.Exec(ctx,
		`UPDATE reviews SET status = $2, updated_at = $3, decided_at = $3
		 WHERE id = $1 AND status = 'pending'`,
		d.ReviewID, string(status), now,
	)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM reviews WHERE id = $1`, d.ReviewID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("record decision for %s: %w", d.ReviewID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check review status: %w", err)
		}
		return fmt.Errorf("record decision for %s (status %s): %w", d.ReviewID, current, review.ErrAlreadyDecided)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO decisions (id, review_id, kind, modified_action, notes, reviewer_id, reviewer_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.ReviewID, string(d.Kind), d.ModifiedAction, d.Notes, d.ReviewerID, d.ReviewerName, now,
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit decision tx: %w", err)
	}
	d.CreatedAt = now
	return nil
}

// GetDecision retrieves the decision for a review, if one exists.
func (s *Store) GetDecision(ctx context.Context, reviewID string) (*review.Decision, error) {
	const q = `SELECT id, review_id, kind, modified_action, notes, reviewer_id, reviewer_name, created_at
		FROM decisions WHERE review_id = $1`
	d := &review.Decision{}
	err := s.pool.QueryRow(ctx, q, reviewID).Scan(
		&d.ID, &d.ReviewID, &d.Kind, &d.ModifiedAction, &d.Notes,
		&d.ReviewerID, &d.ReviewerName, &d.CreatedAt,
	)
	if err != nil {
		return nil, notFoundWrap(err, "get decision for review %s", reviewID)
	}
	return d, nil
}

// marshalJSONB serializes a map for a JSONB column, keeping nil as SQL NULL.
func marshalJSONB(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return data, nil
}
