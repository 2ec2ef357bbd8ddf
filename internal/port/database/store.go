// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/humancheck/humancheck/internal/domain/delivery"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/domain/routing"
)

// ReviewFilter narrows ListReviews results. Zero values mean no filter.
type ReviewFilter struct {
	Status   review.Status
	TaskType string
	Urgency  review.Urgency
	Limit    int
}

// StatusCounts aggregates reviews for the stats endpoint.
type StatusCounts struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	ByUrgency map[string]int `json:"by_urgency"`
}

// Store is the port interface for persistence. Implementations must
// provide at least read-committed isolation.
type Store interface {
	// Reviews
	CreateReview(ctx context.Context, r *review.Review) error
	GetReview(ctx context.Context, id string) (*review.Review, error)
	ListReviews(ctx context.Context, filter ReviewFilter) ([]review.Review, error)
	CountReviews(ctx context.Context) (*StatusCounts, error)

	// Decisions. RecordDecision atomically inserts the decision and flips
	// the review out of pending; it returns review.ErrAlreadyDecided when
	// the review has already left the pending state.
	RecordDecision(ctx context.Context, d *review.Decision, status review.Status) error
	GetDecision(ctx context.Context, reviewID string) (*review.Decision, error)

	// Routing rules
	UpsertRule(ctx context.Context, r *routing.Rule) error
	GetRule(ctx context.Context, id string) (*routing.Rule, error)
	ListRules(ctx context.Context, enabledOnly bool) ([]routing.Rule, error)
	DeleteRule(ctx context.Context, id string) error

	// Delivery log (append-only)
	AppendDelivery(ctx context.Context, rec *delivery.Record) error
	ListDeliveries(ctx context.Context, reviewID string) ([]delivery.Record, error)
	UpdateDeliveryStatus(ctx context.Context, id string, status delivery.Status) error
}
