package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/humancheck/humancheck/internal/config"
	"github.com/humancheck/humancheck/internal/domain/delivery"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/messagequeue"
	"github.com/humancheck/humancheck/internal/port/notifier"
	"github.com/humancheck/humancheck/internal/resilience"
)

func dispatchConfig() config.Dispatch {
	return config.Dispatch{
		MaxConcurrent:  4,
		DeliverTimeout: time.Second,
		BreakerMaxFail: 3,
		BreakerTimeout: time.Minute,
	}
}

func testReview() *review.Review {
	return &review.Review{
		ID:             "rev-1",
		TaskType:       "deploy",
		ProposedAction: "roll out v2",
		Urgency:        review.UrgencyHigh,
		Status:         review.StatusPending,
	}
}

func TestDispatchRecordsOneRecordPerRecipient(t *testing.T) {
	store := newMemStore()
	slack := &fakeNotifier{name: "slack"}
	svc := NewDispatchService(store, nil, map[string]notifier.Notifier{"slack": slack}, dispatchConfig(), testLogger())

	svc.DispatchReviewCreated(context.Background(), testReview(), []Dispatch{
		{Target: "slack", Recipients: []string{"#ops", "#deploys", "#oncall"}},
	}, nil)

	recs := store.deliveryRecords()
	if len(recs) != 3 {
		t.Fatalf("got %d delivery records, want 3", len(recs))
	}
	for _, rec := range recs {
		if rec.Status != delivery.StatusSent {
			t.Errorf("record for %s status = %s, want sent", rec.Recipient, rec.Status)
		}
		if rec.MessageID == "" {
			t.Errorf("record for %s has no message id", rec.Recipient)
		}
		if rec.Event != delivery.EventReviewCreated {
			t.Errorf("record event = %s, want %s", rec.Event, delivery.EventReviewCreated)
		}
	}
	if got := len(slack.calls()); got != 3 {
		t.Errorf("notifier called %d times, want 3", got)
	}
}

func TestDispatchPartialFailureIsolated(t *testing.T) {
	store := newMemStore()
	q := newFakeQueue()
	slack := &fakeNotifier{name: "slack"}
	webhook := &fakeNotifier{name: "webhook", failWith: errors.New("endpoint down")}
	svc := NewDispatchService(store, q, map[string]notifier.Notifier{
		"slack":   slack,
		"webhook": webhook,
	}, dispatchConfig(), testLogger())

	svc.DispatchReviewCreated(context.Background(), testReview(), []Dispatch{
		{Target: "slack", Recipients: []string{"#ops"}},
		{Target: "webhook", Recipients: []string{"https://down.example/hook"}},
	}, nil)

	byTarget := map[string]delivery.Status{}
	for _, rec := range store.deliveryRecords() {
		byTarget[rec.Target] = rec.Status
	}
	if byTarget["slack"] != delivery.StatusSent {
		t.Errorf("slack status = %s, want sent despite webhook failing", byTarget["slack"])
	}
	if byTarget["webhook"] != delivery.StatusFailed {
		t.Errorf("webhook status = %s, want failed", byTarget["webhook"])
	}
	if q.published[messagequeue.SubjectNotificationResult] != 2 {
		t.Errorf("published %d result events, want 2", q.published[messagequeue.SubjectNotificationResult])
	}
}

func TestDispatchUnknownTargetProducesFailedRecords(t *testing.T) {
	store := newMemStore()
	svc := NewDispatchService(store, nil, map[string]notifier.Notifier{}, dispatchConfig(), testLogger())

	svc.DispatchReviewCreated(context.Background(), testReview(), []Dispatch{
		{Target: "pager", Recipients: []string{"oncall-a", "oncall-b"}},
	}, nil)

	recs := store.deliveryRecords()
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	for _, rec := range recs {
		if rec.Status != delivery.StatusFailed {
			t.Errorf("record status = %s, want failed", rec.Status)
		}
		if rec.FailureReason == "" {
			t.Error("failed record has no failure reason")
		}
	}
}

func TestDispatchBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	store := newMemStore()
	broken := &fakeNotifier{name: "slack", failWith: errors.New("channel gone")}
	cfg := dispatchConfig()
	cfg.MaxConcurrent = 1 // serialize so failures are consecutive
	svc := NewDispatchService(store, nil, map[string]notifier.Notifier{"slack": broken}, cfg, testLogger())

	rev := testReview()
	targets := []Dispatch{{Target: "slack", Recipients: []string{"#ops"}}}
	for range cfg.BreakerMaxFail + 1 {
		svc.DispatchReviewCreated(context.Background(), rev, targets, nil)
	}

	recs := store.deliveryRecords()
	last := recs[len(recs)-1]
	if last.FailureReason != resilience.ErrCircuitOpen.Error() {
		t.Errorf("last failure reason = %q, want circuit open", last.FailureReason)
	}
}

func TestDispatchDecisionFanOut(t *testing.T) {
	store := newMemStore()
	slack := &fakeNotifier{name: "slack"}
	svc := NewDispatchService(store, nil, map[string]notifier.Notifier{"slack": slack}, dispatchConfig(), testLogger())

	rev := testReview()
	rev.Status = review.StatusApproved
	dec := &review.Decision{ID: "dec-1", ReviewID: rev.ID, Kind: review.KindApprove}

	svc.DispatchDecision(context.Background(), rev, dec, []Dispatch{
		{Target: "slack", Recipients: []string{"#ops"}},
	})

	recs := store.deliveryRecords()
	if len(recs) != 1 || recs[0].Event != delivery.EventDecisionMade {
		t.Fatalf("records = %+v, want one decision-made record", recs)
	}
}
