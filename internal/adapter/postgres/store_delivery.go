package postgres

import (
	"context"
	"fmt"

	"github.com/humancheck/humancheck/internal/domain"
	"github.com/humancheck/humancheck/internal/domain/delivery"
)

// AppendDelivery appends one delivery record. Records are keyed by
// distinct (review, target, recipient, event) tuples; no record is ever
// contended by two writers under correct routing.
func (s *Store) AppendDelivery(ctx context.Context, rec *delivery.Record) error {
	const q = `INSERT INTO delivery_records
		(id, review_id, target, recipient, event, status, message_id, failure_reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := s.pool.Exec(ctx, q,
		rec.ID, rec.ReviewID, rec.Target, rec.Recipient, string(rec.Event),
		string(rec.Status), rec.MessageID, rec.FailureReason, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append delivery record: %w", err)
	}
	return nil
}

// ListDeliveries returns all delivery records for a review, oldest first.
func (s *Store) ListDeliveries(ctx context.Context, reviewID string) ([]delivery.Record, error) {
	const q = `SELECT id, review_id, target, recipient, event, status, message_id, failure_reason, created_at
		FROM delivery_records WHERE review_id = $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, q, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var result []delivery.Record
	for rows.Next() {
		var rec delivery.Record
		if err := rows.Scan(
			&rec.ID, &rec.ReviewID, &rec.Target, &rec.Recipient, &rec.Event,
			&rec.Status, &rec.MessageID, &rec.FailureReason, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// UpdateDeliveryStatus advances a record along the sent to delivered to
// read progression driven by asynchronous channel confirmations. Any
// other transition (from failed, or backwards) is a conflict.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, id string, status delivery.Status) error {
	const q = `UPDATE delivery_records SET status = $2 WHERE id = $1
		AND ((status = 'sent' AND $2 IN ('delivered','read'))
		  OR (status = 'delivered' AND $2 = 'read'))`
	tag, err := s.pool.Exec(ctx, q, id, string(status))
	if err != nil {
		return fmt.Errorf("update delivery %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx, `SELECT status FROM delivery_records WHERE id = $1`, id).Scan(&current)
	if err != nil {
		return notFoundWrap(err, "delivery %s", id)
	}
	return fmt.Errorf("delivery %s: transition %s to %s: %w", id, current, status, domain.ErrConflict)
}
