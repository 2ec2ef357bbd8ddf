// Package service implements the review workflow: lifecycle control,
// rule-based routing, notification dispatch and blocking decision waits.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	hcotel "github.com/humancheck/humancheck/internal/adapter/otel"
	"github.com/humancheck/humancheck/internal/domain"
	"github.com/humancheck/humancheck/internal/domain/delivery"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/attachment"
	"github.com/humancheck/humancheck/internal/port/database"
	"github.com/humancheck/humancheck/internal/port/messagequeue"
)

// ErrAwaitTimeout is returned by AwaitDecision when the wait window
// elapses with the review still pending. The review itself is untouched;
// callers may wait again or poll later.
var ErrAwaitTimeout = errors.New("review still pending after wait timeout")

// asyncDispatchTimeout bounds the background notification fan-out that
// follows a lifecycle transition. It is deliberately generous: the
// per-attempt timeout inside the dispatcher is the real limit.
const asyncDispatchTimeout = 2 * time.Minute

// EventSink receives lifecycle events for live consumers such as the
// dashboard websocket hub. Implementations must not block.
type EventSink interface {
	ReviewCreated(rev *review.Review)
	ReviewDecided(rev *review.Review, dec *review.Decision)
}

// ReviewService coordinates the review lifecycle. Creation and decision
// recording return as soon as the state change is durable; routing,
// notification dispatch and event publishing happen in the background
// and never fail the caller.
type ReviewService struct {
	store        database.Store
	router       *RoutingService
	dispatcher   *DispatchService
	queue        messagequeue.Queue // nil disables the event bus
	waiter       *decisionWaiter
	sinks        []EventSink
	attachments  attachment.Validator // nil skips the gate
	metrics      *hcotel.Metrics      // nil disables instrument updates
	dashboardURL string
	logger       *slog.Logger
}

// NewReviewService creates the review workflow service. queue may be
// nil; dashboardURL, when set, is attached to outgoing notifications.
func NewReviewService(store database.Store, router *RoutingService, dispatcher *DispatchService, queue messagequeue.Queue, dashboardURL string, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		store:        store,
		router:       router,
		dispatcher:   dispatcher,
		queue:        queue,
		waiter:       newDecisionWaiter(),
		dashboardURL: dashboardURL,
		logger:       logger,
	}
}

// AddSink registers a lifecycle event consumer. Not safe to call after
// the service starts handling requests.
func (s *ReviewService) AddSink(sink EventSink) {
	s.sinks = append(s.sinks, sink)
}

// SetAttachmentValidator installs the external attachment validation
// collaborator. Reviews whose metadata carries an "attachments" entry
// are gated on its verdict at creation time.
func (s *ReviewService) SetAttachmentValidator(v attachment.Validator) {
	s.attachments = v
}

// SetMetrics installs the telemetry instruments. Not safe to call after
// the service starts handling requests.
func (s *ReviewService) SetMetrics(m *hcotel.Metrics) {
	s.metrics = m
}

// Create validates and persists a new pending review, then kicks off
// routing and notification dispatch in the background.
func (s *ReviewService) Create(ctx context.Context, req *review.CreateRequest) (*review.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.attachments != nil {
		if atts, ok := req.Metadata["attachments"]; ok {
			if err := s.attachments.Validate(ctx, atts); err != nil {
				return nil, fmt.Errorf("attachments rejected: %v: %w", err, domain.ErrValidation)
			}
		}
	}

	now := time.Now().UTC()
	rev := &review.Review{
		ID:              uuid.NewString(),
		TaskType:        req.TaskType,
		ProposedAction:  req.ProposedAction,
		AgentReasoning:  req.AgentReasoning,
		ConfidenceScore: req.ConfidenceScore,
		Urgency:         req.Urgency,
		Framework:       req.Framework,
		Metadata:        req.Metadata,
		Status:          review.StatusPending,
		AssignedTo:      req.AssignedTo,
		AssignedTeam:    req.AssignedTeam,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.CreateReview(ctx, rev); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	s.logger.Info("review created",
		"review_id", rev.ID,
		"task_type", rev.TaskType,
		"urgency", string(rev.Urgency))
	if s.metrics != nil {
		s.metrics.ReviewsCreated.Add(ctx, 1)
	}

	for _, sink := range s.sinks {
		sink.ReviewCreated(rev)
	}
	go s.afterCreate(rev)
	return rev, nil
}

// Get returns one review by ID.
func (s *ReviewService) Get(ctx context.Context, id string) (*review.Review, error) {
	return s.store.GetReview(ctx, id)
}

// List returns reviews matching the filter, newest first.
func (s *ReviewService) List(ctx context.Context, filter database.ReviewFilter) ([]review.Review, error) {
	return s.store.ListReviews(ctx, filter)
}

// Stats returns aggregate review counts.
func (s *ReviewService) Stats(ctx context.Context) (*database.StatusCounts, error) {
	return s.store.CountReviews(ctx)
}

// GetDecision returns the decision for a review, or domain.ErrNotFound
// while the review is pending.
func (s *ReviewService) GetDecision(ctx context.Context, reviewID string) (*review.Decision, error) {
	return s.store.GetDecision(ctx, reviewID)
}

// ListDeliveries returns the notification delivery log for a review.
func (s *ReviewService) ListDeliveries(ctx context.Context, reviewID string) ([]delivery.Record, error) {
	return s.store.ListDeliveries(ctx, reviewID)
}

// ConfirmDelivery applies an external delivery confirmation to a record.
func (s *ReviewService) ConfirmDelivery(ctx context.Context, recordID string, status delivery.Status) error {
	return s.store.UpdateDeliveryStatus(ctx, recordID, status)
}

// RecordDecision records the single terminal decision for a review.
// Exactly one caller wins: the store flips the review out of pending
// atomically with inserting the decision, and a loser gets
// review.ErrAlreadyDecided. All waiters blocked in AwaitDecision are
// woken with the recorded decision before the method returns.
func (s *ReviewService) RecordDecision(ctx context.Context, reviewID string, req *review.DecisionRequest) (*review.Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	status, _ := review.StatusForKind(req.Kind)

	rev, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	dec := &review.Decision{
		ID:             uuid.NewString(),
		ReviewID:       reviewID,
		Kind:           req.Kind,
		ModifiedAction: req.ModifiedAction,
		Notes:          req.Notes,
		ReviewerID:     req.ReviewerID,
		ReviewerName:   req.ReviewerName,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.store.RecordDecision(ctx, dec, status); err != nil {
		return nil, err
	}

	rev.Status = status
	rev.UpdatedAt = dec.CreatedAt
	rev.DecidedAt = &dec.CreatedAt

	if s.metrics != nil {
		s.metrics.DecisionsRecorded.Add(ctx, 1)
		s.metrics.DecisionLatency.Record(ctx, dec.CreatedAt.Sub(rev.CreatedAt).Seconds())
	}

	woken := s.waiter.deliver(reviewID, dec)
	s.logger.Info("decision recorded",
		"review_id", reviewID,
		"kind", string(dec.Kind),
		"status", string(status),
		"waiters_woken", woken)

	for _, sink := range s.sinks {
		sink.ReviewDecided(rev, dec)
	}
	go s.afterDecision(rev, dec)
	return dec, nil
}

// AwaitDecision blocks until the review is decided, the timeout elapses
// or ctx is canceled. A timeout returns ErrAwaitTimeout with the review
// still pending. Any number of callers may wait on the same review;
// they all receive the same decision.
func (s *ReviewService) AwaitDecision(ctx context.Context, reviewID string, timeout time.Duration) (*review.Decision, error) {
	// Register before the existence check so a decision recorded between
	// the two cannot be missed.
	ch := s.waiter.register(reviewID)
	defer s.waiter.unregister(reviewID, ch)

	rev, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if rev.Status.Terminal() {
		return s.store.GetDecision(ctx, reviewID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case dec := <-ch:
		return dec, nil
	case <-timer.C:
		return nil, ErrAwaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// afterCreate runs the post-creation fan-out: event bus publish, rule
// resolution and notification dispatch.
func (s *ReviewService) afterCreate(rev *review.Review) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncDispatchTimeout)
	defer cancel()

	s.publish(ctx, messagequeue.SubjectReviewCreated, messagequeue.ReviewCreatedPayload{
		ReviewID: rev.ID,
		TaskType: rev.TaskType,
		Urgency:  string(rev.Urgency),
	})

	targets, err := s.router.Resolve(ctx, rev)
	if err != nil {
		s.logger.Error("routing failed", "review_id", rev.ID, "error", err)
		return
	}
	if len(targets) == 0 {
		s.logger.Info("no routing targets matched", "review_id", rev.ID, "task_type", rev.TaskType)
		return
	}
	s.dispatcher.DispatchReviewCreated(ctx, rev, targets, s.notifyExtra(rev))
}

// afterDecision publishes the decision event and notifies the same
// targets that were alerted at creation time.
func (s *ReviewService) afterDecision(rev *review.Review, dec *review.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncDispatchTimeout)
	defer cancel()

	s.publish(ctx, messagequeue.SubjectReviewDecided, messagequeue.ReviewDecidedPayload{
		ReviewID: rev.ID,
		Kind:     string(dec.Kind),
		Status:   string(rev.Status),
	})

	targets, err := s.router.Resolve(ctx, rev)
	if err != nil {
		s.logger.Error("routing failed", "review_id", rev.ID, "error", err)
		return
	}
	if len(targets) == 0 {
		return
	}
	s.dispatcher.DispatchDecision(ctx, rev, dec, targets)
}

func (s *ReviewService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		s.logger.Warn("event publish failed", "subject", subject, "error", err)
	}
}

func (s *ReviewService) notifyExtra(rev *review.Review) map[string]string {
	if s.dashboardURL == "" {
		return nil
	}
	return map[string]string{
		"dashboard_url": fmt.Sprintf("%s/reviews/%s", s.dashboardURL, rev.ID),
	}
}
