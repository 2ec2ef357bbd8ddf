package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/database"
)

const reviewColumns = `id, task_type, proposed_action, agent_reasoning, confidence_score,
	urgency, framework, metadata, status, assigned_to, assigned_team,
	created_at, updated_at, decided_at`

// CreateReview inserts a new review.
func (s *Store) CreateReview(ctx context.Context, r *review.Review) error {
	metadata, err := marshalJSONB(r.Metadata)
	if err != nil {
		return err
	}

	const q = `INSERT INTO reviews
		(id, task_type, proposed_action, agent_reasoning, confidence_score,
		 urgency, framework, metadata, status, assigned_to, assigned_team,
		 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = s.pool.Exec(ctx, q,
		r.ID, r.TaskType, r.ProposedAction, r.AgentReasoning, r.ConfidenceScore,
		string(r.Urgency), r.Framework, metadata, string(r.Status),
		r.AssignedTo, r.AssignedTeam, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// GetReview retrieves a review by ID.
func (s *Store) GetReview(ctx context.Context, id string) (*review.Review, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	r, err := scanReview(row)
	if err != nil {
		return nil, notFoundWrap(err, "get review %s", id)
	}
	return r, nil
}

// ListReviews returns reviews matching the filter, most recent first.
func (s *Store) ListReviews(ctx context.Context, filter database.ReviewFilter) ([]review.Review, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.TaskType != "" {
		args = append(args, filter.TaskType)
		where = append(where, fmt.Sprintf("task_type = $%d", len(args)))
	}
	if filter.Urgency != "" {
		args = append(args, string(filter.Urgency))
		where = append(where, fmt.Sprintf("urgency = $%d", len(args)))
	}

	q := `SELECT ` + reviewColumns + ` FROM reviews`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var result []review.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// CountReviews aggregates review counts by status and urgency.
func (s *Store) CountReviews(ctx context.Context) (*database.StatusCounts, error) {
	counts := &database.StatusCounts{
		ByStatus:  make(map[string]int),
		ByUrgency: make(map[string]int),
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, urgency, count(*) FROM reviews GROUP BY status, urgency`)
	if err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, urgency string
		var n int
		if err := rows.Scan(&status, &urgency, &n); err != nil {
			return nil, err
		}
		counts.Total += n
		counts.ByStatus[status] += n
		counts.ByUrgency[urgency] += n
	}
	return counts, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanReview(row scannable) (*review.Review, error) {
	r := &review.Review{}
	var metadata []byte
	err := row.Scan(
		&r.ID, &r.TaskType, &r.ProposedAction, &r.AgentReasoning, &r.ConfidenceScore,
		&r.Urgency, &r.Framework, &metadata, &r.Status, &r.AssignedTo, &r.AssignedTeam,
		&r.CreatedAt, &r.UpdatedAt, &r.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal review metadata: %w", err)
		}
	}
	return r, nil
}
