package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	hcotel "github.com/humancheck/humancheck/internal/adapter/otel"
	"github.com/humancheck/humancheck/internal/domain"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/domain/routing"
	"github.com/humancheck/humancheck/internal/port/cache"
	"github.com/humancheck/humancheck/internal/port/database"
)

const ruleCacheKey = "routing:rules:enabled"

// Dispatch is one resolved notification fan-out entry: a channel target
// and the deduplicated recipients every matching rule contributed to it.
type Dispatch struct {
	Target     string   `json:"target"`
	Recipients []string `json:"recipients"`
}

// RoutingService manages routing rules and resolves reviews to
// notification targets. Enabled rules are snapshot-cached with a short
// TTL so rule evaluation does not hit the database on every review.
type RoutingService struct {
	store   database.Store
	cache   cache.Cache // nil disables the snapshot cache
	ruleTTL time.Duration
	logger  *slog.Logger
}

// NewRoutingService creates a routing service. cache may be nil.
func NewRoutingService(store database.Store, c cache.Cache, ruleTTL time.Duration, logger *slog.Logger) *RoutingService {
	return &RoutingService{
		store:   store,
		cache:   c,
		ruleTTL: ruleTTL,
		logger:  logger,
	}
}

// Resolve evaluates every enabled rule against the review and returns the
// union of matching targets. All matches contribute, not just the first:
// rules are visited in priority order (higher first, creation order on
// ties), each matching rule's recipients are merged into its target's
// entry, and duplicates are dropped while first-seen order is kept.
func (s *RoutingService) Resolve(ctx context.Context, rev *review.Review) ([]Dispatch, error) {
	ctx, span := hcotel.StartRoutingSpan(ctx, rev.ID)
	defer span.End()

	rules, err := s.enabledRules(ctx)
	if err != nil {
		return nil, err
	}

	var (
		order   []string
		byName  = map[string]*Dispatch{}
		matched int
	)
	for i := range rules {
		rule := &rules[i]
		if !rule.Conditions.Matches(rev) {
			continue
		}
		matched++

		d, ok := byName[rule.Target]
		if !ok {
			d = &Dispatch{Target: rule.Target}
			byName[rule.Target] = d
			order = append(order, rule.Target)
		}
		d.Recipients = mergeRecipients(d.Recipients, rule.Recipients)
	}

	out := make([]Dispatch, 0, len(order))
	for _, target := range order {
		out = append(out, *byName[target])
	}
	s.logger.Debug("routing resolved",
		"review_id", rev.ID,
		"rules_evaluated", len(rules),
		"rules_matched", matched,
		"targets", len(out))
	return out, nil
}

// Upsert validates and stores a rule, then invalidates the snapshot cache.
// An empty request ID creates a new rule.
func (s *RoutingService) Upsert(ctx context.Context, req *routing.UpsertRequest) (*routing.Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule := &routing.Rule{
		ID:         req.ID,
		Target:     req.Target,
		Name:       req.Name,
		Priority:   req.Priority,
		Conditions: req.Conditions,
		Recipients: req.Recipients,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	} else {
		// The store keeps the original created_at on conflict; the rule we
		// hand back must carry the same timestamp, since creation order
		// breaks priority ties.
		existing, err := s.store.GetRule(ctx, rule.ID)
		switch {
		case err == nil:
			rule.CreatedAt = existing.CreatedAt
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("get rule: %w", err)
		}
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := s.store.UpsertRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("upsert rule: %w", err)
	}
	s.invalidate(ctx)
	s.logger.Info("routing rule upserted", "rule_id", rule.ID, "target", rule.Target, "enabled", rule.Enabled)
	return rule, nil
}

// Get returns one rule by ID.
func (s *RoutingService) Get(ctx context.Context, id string) (*routing.Rule, error) {
	return s.store.GetRule(ctx, id)
}

// List returns all rules ordered by priority (higher first).
func (s *RoutingService) List(ctx context.Context) ([]routing.Rule, error) {
	return s.store.ListRules(ctx, false)
}

// Delete removes a rule and invalidates the snapshot cache.
func (s *RoutingService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger.Info("routing rule deleted", "rule_id", id)
	return nil
}

// enabledRules returns the enabled rule snapshot, cache first. The store
// returns rules ordered by priority desc, creation asc; the snapshot
// preserves that order, re-sorting defensively after a cache round-trip.
func (s *RoutingService) enabledRules(ctx context.Context) ([]routing.Rule, error) {
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, ruleCacheKey); err == nil && ok {
			var rules []routing.Rule
			if err := json.Unmarshal(raw, &rules); err == nil {
				sortRules(rules)
				return rules, nil
			}
		}
	}

	rules, err := s.store.ListRules(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}
	sortRules(rules)

	if s.cache != nil {
		if raw, err := json.Marshal(rules); err == nil {
			if err := s.cache.Set(ctx, ruleCacheKey, raw, s.ruleTTL); err != nil {
				s.logger.Warn("rule cache set failed", "error", err)
			}
		}
	}
	return rules, nil
}

func (s *RoutingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ruleCacheKey); err != nil {
		s.logger.Warn("rule cache invalidation failed", "error", err)
	}
}

func sortRules(rules []routing.Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

// mergeRecipients appends the recipients not already present, keeping
// first-seen order.
func mergeRecipients(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, r := range dst {
		seen[r] = true
	}
	for _, r := range src {
		if !seen[r] {
			seen[r] = true
			dst = append(dst, r)
		}
	}
	return dst
}
