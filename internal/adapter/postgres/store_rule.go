package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/humancheck/humancheck/internal/domain/routing"
)

const ruleColumns = `id, target, name, priority, conditions, recipients, enabled, created_at, updated_at`

// UpsertRule inserts or replaces a routing rule by ID.
func (s *Store) UpsertRule(ctx context.Context, r *routing.Rule) error {
	conditions, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("marshal rule conditions: %w", err)
	}

	const q = `INSERT INTO routing_rules
		(id, target, name, priority, conditions, recipients, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO UPDATE SET
			target = EXCLUDED.target,
			name = EXCLUDED.name,
			priority = EXCLUDED.priority,
			conditions = EXCLUDED.conditions,
			recipients = EXCLUDED.recipients,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at`
	_, err = s.pool.Exec(ctx, q,
		r.ID, r.Target, r.Name, r.Priority, conditions,
		pgTextArray(r.Recipients), r.Enabled, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", r.ID, err)
	}
	return nil
}

// GetRule retrieves a routing rule by ID.
func (s *Store) GetRule(ctx context.Context, id string) (*routing.Rule, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+ruleColumns+` FROM routing_rules WHERE id = $1`, id)
	r, err := scanRule(row)
	if err != nil {
		return nil, notFoundWrap(err, "get rule %s", id)
	}
	return r, nil
}

// ListRules returns routing rules ordered by priority descending, then
// creation order ascending (the engine's stable evaluation order).
func (s *Store) ListRules(ctx context.Context, enabledOnly bool) ([]routing.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM routing_rules`
	if enabledOnly {
		q += ` WHERE enabled = true`
	}
	q += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var result []routing.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// DeleteRule deletes a routing rule by ID.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM routing_rules WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete rule %s", id)
}

func scanRule(row scannable) (*routing.Rule, error) {
	r := &routing.Rule{}
	var conditions []byte
	err := row.Scan(
		&r.ID, &r.Target, &r.Name, &r.Priority, &conditions,
		&r.Recipients, &r.Enabled, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &r.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal rule conditions: %w", err)
		}
	}
	return r, nil
}
