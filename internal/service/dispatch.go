package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	hcotel "github.com/humancheck/humancheck/internal/adapter/otel"
	"github.com/humancheck/humancheck/internal/config"
	"github.com/humancheck/humancheck/internal/domain/delivery"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/database"
	"github.com/humancheck/humancheck/internal/port/messagequeue"
	"github.com/humancheck/humancheck/internal/port/notifier"
	"github.com/humancheck/humancheck/internal/resilience"
)

// DispatchService fans notifications out to resolved targets. Each
// (target, recipient) pair is one delivery attempt running under a
// global concurrency bound, with its own timeout and a per-target
// circuit breaker. Every attempt produces exactly one delivery record;
// attempt failures are logged and recorded but never surfaced to the
// review workflow.
type DispatchService struct {
	store     database.Store
	queue     messagequeue.Queue // nil disables result events
	notifiers map[string]notifier.Notifier
	sem       *semaphore.Weighted
	cfg       config.Dispatch
	metrics   *hcotel.Metrics // nil disables instrument updates
	logger    *slog.Logger

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// NewDispatchService creates a dispatch service. queue may be nil.
func NewDispatchService(store database.Store, queue messagequeue.Queue, notifiers map[string]notifier.Notifier, cfg config.Dispatch, logger *slog.Logger) *DispatchService {
	return &DispatchService{
		store:     store,
		queue:     queue,
		notifiers: notifiers,
		sem:       semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:       cfg,
		logger:    logger,
		breakers:  make(map[string]*resilience.Breaker),
	}
}

// SetMetrics installs the telemetry instruments. Not safe to call after
// the service starts dispatching.
func (s *DispatchService) SetMetrics(m *hcotel.Metrics) {
	s.metrics = m
}

// Notifier returns the configured notifier for a target, if any.
func (s *DispatchService) Notifier(target string) (notifier.Notifier, bool) {
	n, ok := s.notifiers[target]
	return n, ok
}

// Targets returns the configured target names.
func (s *DispatchService) Targets() []string {
	out := make([]string, 0, len(s.notifiers))
	for name := range s.notifiers {
		out = append(out, name)
	}
	return out
}

// DispatchReviewCreated notifies every resolved target about a new
// review. extra is forwarded to the notifiers (dashboard link etc.).
func (s *DispatchService) DispatchReviewCreated(ctx context.Context, rev *review.Review, targets []Dispatch, extra map[string]string) {
	s.fanOut(ctx, rev, targets, delivery.EventReviewCreated, func(ctx context.Context, n notifier.Notifier, recipient string) (notifier.Receipt, error) {
		return n.DeliverReview(ctx, rev, []string{recipient}, extra)
	})
}

// DispatchDecision notifies every resolved target that a decision was
// recorded.
func (s *DispatchService) DispatchDecision(ctx context.Context, rev *review.Review, dec *review.Decision, targets []Dispatch) {
	s.fanOut(ctx, rev, targets, delivery.EventDecisionMade, func(ctx context.Context, n notifier.Notifier, recipient string) (notifier.Receipt, error) {
		return n.DeliverDecision(ctx, rev, dec, []string{recipient})
	})
}

type deliverFunc func(ctx context.Context, n notifier.Notifier, recipient string) (notifier.Receipt, error)

func (s *DispatchService) fanOut(ctx context.Context, rev *review.Review, targets []Dispatch, event delivery.Event, deliver deliverFunc) {
	var wg sync.WaitGroup
	for _, t := range targets {
		n, ok := s.notifiers[t.Target]
		if !ok {
			// A rule can reference a target that is not configured; every
			// recipient still gets a failed record so the gap is visible.
			s.logger.Warn("dispatch target not configured", "target", t.Target, "review_id", rev.ID)
			for _, recipient := range t.Recipients {
				s.record(ctx, rev.ID, t.Target, recipient, event, notifier.Receipt{}, errTargetUnknown)
			}
			continue
		}

		for _, recipient := range t.Recipients {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				s.record(ctx, rev.ID, t.Target, recipient, event, notifier.Receipt{}, err)
				continue
			}
			wg.Add(1)
			go func(target, recipient string, n notifier.Notifier) {
				defer wg.Done()
				defer s.sem.Release(1)
				s.attempt(ctx, rev.ID, target, recipient, event, n, deliver)
			}(t.Target, recipient, n)
		}
	}
	wg.Wait()
}

// attempt runs a single delivery under its own timeout and the target's
// circuit breaker, then records the outcome.
func (s *DispatchService) attempt(ctx context.Context, reviewID, target, recipient string, event delivery.Event, n notifier.Notifier, deliver deliverFunc) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliverTimeout)
	defer cancel()

	attemptCtx, span := hcotel.StartDeliverySpan(attemptCtx, reviewID, target, recipient)
	start := time.Now()

	var receipt notifier.Receipt
	err := s.breaker(target).Execute(func() error {
		var derr error
		receipt, derr = deliver(attemptCtx, n, recipient)
		return derr
	})
	hcotel.EndSpan(span, err)
	if s.metrics != nil {
		s.metrics.DeliveryDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Warn("notification delivery failed",
			"review_id", reviewID,
			"target", target,
			"recipient", recipient,
			"event", string(event),
			"error", err)
	}
	s.record(ctx, reviewID, target, recipient, event, receipt, err)
}

var errTargetUnknown = errors.New("no notifier configured for target")

// record appends the delivery outcome and publishes a result event.
// Both are best-effort; a storage or queue failure only logs.
func (s *DispatchService) record(ctx context.Context, reviewID, target, recipient string, event delivery.Event, receipt notifier.Receipt, attemptErr error) {
	rec := &delivery.Record{
		ID:        uuid.NewString(),
		ReviewID:  reviewID,
		Target:    target,
		Recipient: recipient,
		Event:     event,
		Status:    delivery.StatusSent,
		MessageID: receipt.MessageID,
		CreatedAt: time.Now().UTC(),
	}
	if attemptErr != nil {
		rec.Status = delivery.StatusFailed
		rec.FailureReason = attemptErr.Error()
	}
	if s.metrics != nil {
		if attemptErr != nil {
			s.metrics.DeliveriesFailed.Add(ctx, 1)
		} else {
			s.metrics.DeliveriesSent.Add(ctx, 1)
		}
	}

	if err := s.store.AppendDelivery(ctx, rec); err != nil {
		s.logger.Error("delivery record append failed",
			"review_id", reviewID, "target", target, "error", err)
	}
	s.publishResult(ctx, rec)
}

func (s *DispatchService) publishResult(ctx context.Context, rec *delivery.Record) {
	if s.queue == nil {
		return
	}
	payload := messagequeue.NotificationResultPayload{
		ReviewID:  rec.ReviewID,
		Target:    rec.Target,
		Recipient: rec.Recipient,
		Status:    string(rec.Status),
		Reason:    rec.FailureReason,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectNotificationResult, data); err != nil {
		s.logger.Warn("notification result publish failed", "review_id", rec.ReviewID, "error", err)
	}
}

func (s *DispatchService) breaker(target string) *resilience.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[target]
	if !ok {
		b = resilience.NewBreaker(s.cfg.BreakerMaxFail, s.cfg.BreakerTimeout)
		s.breakers[target] = b
	}
	return b
}
