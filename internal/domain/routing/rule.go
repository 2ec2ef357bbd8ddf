// Package routing defines routing rules and the condition matcher that
// selects notification targets for a review.
package routing

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/humancheck/humancheck/internal/domain"
)

// Operator is a comparison operator usable in a rule condition.
type Operator string

const (
	OpEq          Operator = "="
	OpNe          Operator = "!="
	OpLt          Operator = "<"
	OpLe          Operator = "<="
	OpGt          Operator = ">"
	OpGe          Operator = ">="
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpMatches     Operator = "matches"
)

// Condition is a single predicate applied to one review field.
// A zero Operator means equality.
type Condition struct {
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any      `json:"value" yaml:"value"`
}

// ConditionSet maps a field name to its predicate. An empty set matches
// every review (catch-all rule). Field names address review attributes
// (task_type, urgency, confidence_score, framework) or metadata keys
// via dotted paths ("metadata.region"). The pseudo-fields
// min_confidence and max_confidence are inclusive bounds on the
// confidence score. Status is deliberately not matchable: a rule must
// resolve to the same targets at creation and at decision time.
//
// The reserved keys "and" and "or" hold a list of sub-sets and combine
// their results: "and" requires every sub-set to match, "or" at least
// one. Groups nest.
type ConditionSet map[string]Condition

// Rule is a reusable matching policy bound to one notification target.
// Priority orders evaluation (higher first); ties break by creation
// order. All enabled rules are evaluated, not just the first match, so
// one review can alert several channels at once.
type Rule struct {
	ID         string       `json:"id"`
	Target     string       `json:"target"`
	Name       string       `json:"name"`
	Priority   int          `json:"priority"`
	Conditions ConditionSet `json:"conditions,omitempty"`
	Recipients []string     `json:"recipients"`
	Enabled    bool         `json:"enabled"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// UpsertRequest holds the fields for creating or replacing a rule.
type UpsertRequest struct {
	ID         string       `json:"id,omitempty"`
	Target     string       `json:"target"`
	Name       string       `json:"name"`
	Priority   int          `json:"priority"`
	Conditions ConditionSet `json:"conditions,omitempty"`
	Recipients []string     `json:"recipients"`
	Enabled    *bool        `json:"enabled,omitempty"`
}

var (
	ErrTargetRequired     = fmt.Errorf("%w: rule target is required", domain.ErrValidation)
	ErrNameRequired       = fmt.Errorf("%w: rule name is required", domain.ErrValidation)
	ErrRecipientsRequired = fmt.Errorf("%w: rule requires at least one recipient", domain.ErrValidation)
)

// scalar fields a condition may address directly. Anything else must be
// a metadata path or a confidence bound.
var knownFields = map[string]bool{
	"task_type":        true,
	"proposed_action":  true,
	"urgency":          true,
	"framework":        true,
	"confidence_score": true,
	"min_confidence":   true,
	"max_confidence":   true,
}

var validOperators = map[Operator]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpIn: true, OpNotIn: true, OpContains: true, OpNotContains: true, OpMatches: true,
}

// Validate checks the request and its condition set. Malformed conditions
// are a configuration error surfaced here, at registration time; matching
// never fails on a well-formed review.
func (r *UpsertRequest) Validate() error {
	if r.Target == "" {
		return ErrTargetRequired
	}
	if r.Name == "" {
		return ErrNameRequired
	}
	if len(r.Recipients) == 0 {
		return ErrRecipientsRequired
	}
	return r.Conditions.Validate()
}

// Validate checks every condition in the set for a known field and a
// well-formed operator/value pair.
func (cs ConditionSet) Validate() error {
	for field, cond := range cs {
		if err := validateCondition(field, cond); err != nil {
			return err
		}
	}
	return nil
}

func validateCondition(field string, cond Condition) error {
	if field == "and" || field == "or" {
		return validateGroup(field, cond)
	}
	if !knownFields[field] && !isMetadataPath(field) {
		return fmt.Errorf("%w: unknown condition field %q", domain.ErrValidation, field)
	}

	op := cond.Operator
	if op == "" {
		op = OpEq
	}
	if !validOperators[op] {
		return fmt.Errorf("%w: unknown operator %q for field %q", domain.ErrValidation, cond.Operator, field)
	}

	switch field {
	case "min_confidence", "max_confidence":
		if _, ok := toFloat(cond.Value); !ok {
			return fmt.Errorf("%w: %s requires a numeric value", domain.ErrValidation, field)
		}
	}

	switch op {
	case OpLt, OpLe, OpGt, OpGe:
		if _, ok := toFloat(cond.Value); !ok {
			return fmt.Errorf("%w: operator %q on field %q requires a numeric value", domain.ErrValidation, op, field)
		}
	case OpIn, OpNotIn:
		if _, ok := toList(cond.Value); !ok {
			return fmt.Errorf("%w: operator %q on field %q requires a list value", domain.ErrValidation, op, field)
		}
	case OpMatches:
		s, ok := cond.Value.(string)
		if !ok {
			return fmt.Errorf("%w: operator %q on field %q requires a string pattern", domain.ErrValidation, op, field)
		}
		if _, err := regexp.Compile(s); err != nil {
			return fmt.Errorf("%w: invalid pattern for field %q: %v", domain.ErrValidation, field, err)
		}
	}
	return nil
}

// validateGroup checks an "and"/"or" logical group: no operator, a
// non-empty list of sub-sets, each valid in its own right.
func validateGroup(field string, cond Condition) error {
	if cond.Operator != "" {
		return fmt.Errorf("%w: group %q takes no operator", domain.ErrValidation, field)
	}
	groups, ok := conditionGroups(cond.Value)
	if !ok {
		return fmt.Errorf("%w: group %q requires a list of condition sets", domain.ErrValidation, field)
	}
	if len(groups) == 0 {
		return fmt.Errorf("%w: group %q must not be empty", domain.ErrValidation, field)
	}
	for _, sub := range groups {
		if err := sub.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// conditionGroups coerces a group value into its sub-sets. Values come
// either as Go-built ConditionSets or as generic maps after a JSON
// round-trip through the API or the rule store.
func conditionGroups(v any) ([]ConditionSet, bool) {
	switch list := v.(type) {
	case []ConditionSet:
		return list, true
	case []any:
		out := make([]ConditionSet, 0, len(list))
		for _, item := range list {
			switch sub := item.(type) {
			case ConditionSet:
				out = append(out, sub)
			case map[string]any:
				cs, ok := decodeConditionSet(sub)
				if !ok {
					return nil, false
				}
				out = append(out, cs)
			default:
				return nil, false
			}
		}
		return out, true
	}
	return nil, false
}

func decodeConditionSet(m map[string]any) (ConditionSet, bool) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, false
	}
	var cs ConditionSet
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, false
	}
	return cs, true
}

func isMetadataPath(field string) bool {
	return len(field) > len("metadata.") && field[:len("metadata.")] == "metadata."
}
