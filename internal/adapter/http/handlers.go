package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/humancheck/humancheck/internal/domain/delivery"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/domain/routing"
	"github.com/humancheck/humancheck/internal/port/database"
	"github.com/humancheck/humancheck/internal/service"
)

// defaultWaitTimeout bounds GET /reviews/{id}/wait when the client does
// not pass one. It stays under common proxy idle timeouts.
const (
	defaultWaitTimeout = 30 * time.Second
	maxWaitTimeout     = 5 * time.Minute
)

// Pinger reports backend liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Reviews    *service.ReviewService
	Routing    *service.RoutingService
	Dispatcher *service.DispatchService
	DB         Pinger
}

// ---------------------------------------------------------------------------
// Reviews
// ---------------------------------------------------------------------------

type blockingCreateResponse struct {
	Review   *review.Review   `json:"review"`
	TimedOut bool             `json:"timed_out"`
	Decision *review.Decision `json:"decision,omitempty"`
}

// CreateReview handles POST /reviews. With ?blocking=true the request
// additionally waits for the decision (bounded by the timeout query
// parameter) and returns it alongside the created review.
func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	blocking := r.URL.Query().Get("blocking") == "true"
	timeout, ok := parseWaitTimeout(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[review.CreateRequest](w, r)
	if !ok {
		return
	}
	rev, err := h.Reviews.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	if !blocking {
		writeJSON(w, http.StatusCreated, rev)
		return
	}

	dec, err := h.Reviews.AwaitDecision(r.Context(), rev.ID, timeout)
	switch {
	case err == nil:
		rev.Status, _ = review.StatusForKind(dec.Kind)
		writeJSON(w, http.StatusCreated, blockingCreateResponse{Review: rev, Decision: dec})
	case errors.Is(err, service.ErrAwaitTimeout):
		writeJSON(w, http.StatusCreated, blockingCreateResponse{Review: rev, TimedOut: true})
	default:
		writeDomainError(w, err, "review not found")
	}
}

// GetReview handles GET /reviews/{id}.
func (h *Handlers) GetReview(w http.ResponseWriter, r *http.Request) {
	rev, err := h.Reviews.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// ListReviews handles GET /reviews with optional status, task_type,
// urgency and limit query filters.
func (h *Handlers) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.ReviewFilter{
		Status:   review.Status(q.Get("status")),
		TaskType: q.Get("task_type"),
		Urgency:  review.Urgency(q.Get("urgency")),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	reviews, err := h.Reviews.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err, "reviews not found")
		return
	}
	if reviews == nil {
		reviews = []review.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

// RecordDecision handles POST /reviews/{id}/decision.
func (h *Handlers) RecordDecision(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[review.DecisionRequest](w, r)
	if !ok {
		return
	}
	dec, err := h.Reviews.RecordDecision(r.Context(), urlParam(r, "id"), &req)
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	writeJSON(w, http.StatusCreated, dec)
}

// GetDecision handles GET /reviews/{id}/decision.
func (h *Handlers) GetDecision(w http.ResponseWriter, r *http.Request) {
	dec, err := h.Reviews.GetDecision(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "review has no decision yet")
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

type waitResponse struct {
	TimedOut bool             `json:"timed_out"`
	Status   review.Status    `json:"status"`
	Decision *review.Decision `json:"decision,omitempty"`
}

// parseWaitTimeout reads the timeout query parameter, clamped to
// maxWaitTimeout. Writes a 400 and returns false on a malformed value.
func parseWaitTimeout(w http.ResponseWriter, r *http.Request) (time.Duration, bool) {
	raw := r.URL.Query().Get("timeout")
	if raw == "" {
		return defaultWaitTimeout, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		writeError(w, http.StatusBadRequest, "timeout must be a positive duration (e.g. 30s)")
		return 0, false
	}
	if d > maxWaitTimeout {
		d = maxWaitTimeout
	}
	return d, true
}

// AwaitDecision handles GET /reviews/{id}/wait?timeout=30s. The request
// blocks until the review is decided or the window elapses; a timeout is
// a normal response, not an error.
func (h *Handlers) AwaitDecision(w http.ResponseWriter, r *http.Request) {
	timeout, ok := parseWaitTimeout(w, r)
	if !ok {
		return
	}

	dec, err := h.Reviews.AwaitDecision(r.Context(), urlParam(r, "id"), timeout)
	switch {
	case err == nil:
		rev, gerr := h.Reviews.Get(r.Context(), urlParam(r, "id"))
		if gerr != nil {
			writeDomainError(w, gerr, "review not found")
			return
		}
		writeJSON(w, http.StatusOK, waitResponse{Status: rev.Status, Decision: dec})
	case errors.Is(err, service.ErrAwaitTimeout):
		writeJSON(w, http.StatusOK, waitResponse{TimedOut: true, Status: review.StatusPending})
	default:
		writeDomainError(w, err, "review not found")
	}
}

// ---------------------------------------------------------------------------
// Delivery log
// ---------------------------------------------------------------------------

// ListDeliveries handles GET /reviews/{id}/deliveries.
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	// 404 for an unknown review rather than an empty log.
	if _, err := h.Reviews.Get(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	recs, err := h.Reviews.ListDeliveries(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "review not found")
		return
	}
	if recs == nil {
		recs = []delivery.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

type deliveryStatusRequest struct {
	Status delivery.Status `json:"status"`
}

// ConfirmDelivery handles POST /deliveries/{id}/status, applying an
// external channel's delivered/read confirmation.
func (h *Handlers) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[deliveryStatusRequest](w, r)
	if !ok {
		return
	}
	if req.Status != delivery.StatusDelivered && req.Status != delivery.StatusRead {
		writeError(w, http.StatusBadRequest, "status must be delivered or read")
		return
	}
	if err := h.Reviews.ConfirmDelivery(r.Context(), urlParam(r, "id"), req.Status); err != nil {
		writeDomainError(w, err, "delivery record not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// ---------------------------------------------------------------------------
// Routing rules
// ---------------------------------------------------------------------------

// UpsertRule handles POST /routing-rules.
func (h *Handlers) UpsertRule(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[routing.UpsertRequest](w, r)
	if !ok {
		return
	}
	rule, err := h.Routing.Upsert(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "routing rule not found")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule handles GET /routing-rules/{id}.
func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := h.Routing.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "routing rule not found")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// ListRules handles GET /routing-rules.
func (h *Handlers) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Routing.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "routing rules not found")
		return
	}
	if rules == nil {
		rules = []routing.Rule{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// DeleteRule handles DELETE /routing-rules/{id}.
func (h *Handlers) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Routing.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "routing rule not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Notifiers
// ---------------------------------------------------------------------------

// ListNotifiers handles GET /notifiers.
func (h *Handlers) ListNotifiers(w http.ResponseWriter, r *http.Request) {
	targets := h.Dispatcher.Targets()
	sort.Strings(targets)

	type entry struct {
		Target string `json:"target"`
		Type   string `json:"type"`
	}
	out := make([]entry, 0, len(targets))
	for _, target := range targets {
		n, _ := h.Dispatcher.Notifier(target)
		out = append(out, entry{Target: target, Type: n.Name()})
	}
	writeJSON(w, http.StatusOK, out)
}

// TestNotifier handles POST /notifiers/{target}/test.
func (h *Handlers) TestNotifier(w http.ResponseWriter, r *http.Request) {
	target := urlParam(r, "target")
	n, ok := h.Dispatcher.Notifier(target)
	if !ok {
		writeError(w, http.StatusNotFound, "no notifier configured for target")
		return
	}
	if err := n.TestConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ---------------------------------------------------------------------------
// Stats and health
// ---------------------------------------------------------------------------

// Stats handles GET /stats.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.Reviews.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "degraded",
				"database": err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
