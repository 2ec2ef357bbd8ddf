package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/humancheck/humancheck/internal/domain"
	"github.com/humancheck/humancheck/internal/domain/delivery"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/domain/routing"
	"github.com/humancheck/humancheck/internal/port/database"
	"github.com/humancheck/humancheck/internal/port/messagequeue"
	"github.com/humancheck/humancheck/internal/port/notifier"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory database.Store for service tests.
type memStore struct {
	mu         sync.Mutex
	reviews    map[string]*review.Review
	decisions  map[string]*review.Decision
	rules      map[string]*routing.Rule
	deliveries []delivery.Record
	listCalls  int
}

func newMemStore() *memStore {
	return &memStore{
		reviews:   make(map[string]*review.Review),
		decisions: make(map[string]*review.Decision),
		rules:     make(map[string]*routing.Rule),
	}
}

func (m *memStore) CreateReview(_ context.Context, r *review.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *memStore) GetReview(_ context.Context, id string) (*review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListReviews(_ context.Context, filter database.ReviewFilter) ([]review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []review.Review
	for _, r := range m.reviews {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) CountReviews(_ context.Context) (*database.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := &database.StatusCounts{
		ByStatus:  make(map[string]int),
		ByUrgency: make(map[string]int),
	}
	for _, r := range m.reviews {
		counts.Total++
		counts.ByStatus[string(r.Status)]++
		counts.ByUrgency[string(r.Urgency)]++
	}
	return counts, nil
}

func (m *memStore) RecordDecision(_ context.Context, d *review.Decision, status review.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[d.ReviewID]
	if !ok {
		return fmt.Errorf("review %s: %w", d.ReviewID, domain.ErrNotFound)
	}
	if r.Status != review.StatusPending {
		return fmt.Errorf("review %s: %w", d.ReviewID, review.ErrAlreadyDecided)
	}
	r.Status = status
	r.DecidedAt = &d.CreatedAt
	cp := *d
	m.decisions[d.ReviewID] = &cp
	return nil
}

func (m *memStore) GetDecision(_ context.Context, reviewID string) (*review.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[reviewID]
	if !ok {
		return nil, fmt.Errorf("decision for review %s: %w", reviewID, domain.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) UpsertRule(_ context.Context, r *routing.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rules[r.ID] = &cp
	return nil
}

func (m *memStore) GetRule(_ context.Context, id string) (*routing.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListRules(_ context.Context, enabledOnly bool) ([]routing.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []routing.Rule
	for _, r := range m.rules {
		if enabledOnly && !r.Enabled {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (m *memStore) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	delete(m.rules, id)
	return nil
}

func (m *memStore) AppendDelivery(_ context.Context, rec *delivery.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, *rec)
	return nil
}

func (m *memStore) ListDeliveries(_ context.Context, reviewID string) ([]delivery.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []delivery.Record
	for _, rec := range m.deliveries {
		if rec.ReviewID == reviewID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) UpdateDeliveryStatus(_ context.Context, id string, status delivery.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.deliveries {
		if m.deliveries[i].ID == id {
			if !delivery.NextStatus(m.deliveries[i].Status, status) {
				return fmt.Errorf("delivery %s: %w", id, domain.ErrConflict)
			}
			m.deliveries[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("delivery %s: %w", id, domain.ErrNotFound)
}

func (m *memStore) deliveryRecords() []delivery.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]delivery.Record, len(m.deliveries))
	copy(out, m.deliveries)
	return out
}

// fakeNotifier records deliveries and fails on demand.
type fakeNotifier struct {
	mu        sync.Mutex
	name      string
	failWith  error
	delivered []string // recipients, in call order
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Capabilities() notifier.Capabilities { return notifier.Capabilities{} }

func (f *fakeNotifier) DeliverReview(_ context.Context, _ *review.Review, recipients []string, _ map[string]string) (notifier.Receipt, error) {
	return f.deliver(recipients)
}

func (f *fakeNotifier) DeliverDecision(_ context.Context, _ *review.Review, _ *review.Decision, recipients []string) (notifier.Receipt, error) {
	return f.deliver(recipients)
}

func (f *fakeNotifier) TestConnection(context.Context) error { return f.failWith }

func (f *fakeNotifier) deliver(recipients []string) (notifier.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return notifier.Receipt{}, f.failWith
	}
	f.delivered = append(f.delivered, recipients...)
	return notifier.Receipt{MessageID: fmt.Sprintf("msg-%d", len(f.delivered))}, nil
}

func (f *fakeNotifier) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.delivered))
	copy(out, f.delivered)
	return out
}

// fakeCache is a TTL-less in-memory cache.Cache.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	hits int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// fakeQueue records published messages.
type fakeQueue struct {
	mu        sync.Mutex
	published map[string]int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{published: make(map[string]int)}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published[subject]++
	return nil
}

func (q *fakeQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *fakeQueue) Close() error { return nil }
