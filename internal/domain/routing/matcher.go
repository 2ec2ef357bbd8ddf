package routing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/humancheck/humancheck/internal/domain/review"
)

// Matches evaluates the condition set against a review. Every
// sub-condition must pass (logical AND); an empty set matches everything.
// A sub-condition addressing a field the review does not carry fails.
// Matching is pure and never panics on a validated condition set.
func (cs ConditionSet) Matches(rev *review.Review) bool {
	for field, cond := range cs {
		if !matchField(field, cond, rev) {
			return false
		}
	}
	return true
}

func matchField(field string, cond Condition, rev *review.Review) bool {
	switch field {
	case "and":
		groups, ok := conditionGroups(cond.Value)
		if !ok {
			return false
		}
		for _, sub := range groups {
			if !sub.Matches(rev) {
				return false
			}
		}
		return true
	case "or":
		groups, ok := conditionGroups(cond.Value)
		if !ok {
			return false
		}
		for _, sub := range groups {
			if sub.Matches(rev) {
				return true
			}
		}
		return false
	case "min_confidence":
		if rev.ConfidenceScore == nil {
			return false
		}
		bound, _ := toFloat(cond.Value)
		return *rev.ConfidenceScore >= bound
	case "max_confidence":
		if rev.ConfidenceScore == nil {
			return false
		}
		bound, _ := toFloat(cond.Value)
		return *rev.ConfidenceScore <= bound
	}

	actual, ok := fieldValue(field, rev)
	if !ok || actual == nil {
		return false
	}
	return applyOperator(cond, actual)
}

// fieldValue resolves a condition field to the review's value.
// Dotted paths walk into metadata; a missing key reports not-ok.
func fieldValue(field string, rev *review.Review) (any, bool) {
	if strings.HasPrefix(field, "metadata.") {
		return metadataValue(strings.TrimPrefix(field, "metadata."), rev.Metadata)
	}

	switch field {
	case "task_type":
		return rev.TaskType, true
	case "proposed_action":
		return rev.ProposedAction, true
	case "urgency":
		return string(rev.Urgency), true
	case "framework":
		if rev.Framework == "" {
			return nil, false
		}
		return rev.Framework, true
	case "confidence_score":
		if rev.ConfidenceScore == nil {
			return nil, false
		}
		return *rev.ConfidenceScore, true
	}
	return nil, false
}

func metadataValue(path string, metadata map[string]any) (any, bool) {
	if metadata == nil {
		return nil, false
	}
	var current any = metadata
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func applyOperator(cond Condition, actual any) bool {
	op := cond.Operator
	if op == "" {
		op = OpEq
	}

	switch op {
	case OpEq:
		return equal(actual, cond.Value)
	case OpNe:
		return !equal(actual, cond.Value)
	case OpLt, OpLe, OpGt, OpGe:
		a, ok := toFloat(actual)
		if !ok {
			return false
		}
		e, ok := toFloat(cond.Value)
		if !ok {
			return false
		}
		switch op {
		case OpLt:
			return a < e
		case OpLe:
			return a <= e
		case OpGt:
			return a > e
		default:
			return a >= e
		}
	case OpIn:
		list, _ := toList(cond.Value)
		for _, item := range list {
			if equal(actual, item) {
				return true
			}
		}
		return false
	case OpNotIn:
		list, _ := toList(cond.Value)
		for _, item := range list {
			if equal(actual, item) {
				return false
			}
		}
		return true
	case OpContains:
		return strings.Contains(toString(actual), toString(cond.Value))
	case OpNotContains:
		return !strings.Contains(toString(actual), toString(cond.Value))
	case OpMatches:
		pattern, ok := cond.Value.(string)
		if !ok {
			return false
		}
		// Anchored at the start: "dep" matches "deploy" but not "redeploy".
		re, err := regexp.Compile(`\A(?:` + pattern + `)`)
		if err != nil {
			return false
		}
		return re.MatchString(toString(actual))
	}
	return false
}

// equal compares scalars, treating any numeric pair numerically so JSON
// decoding differences (int vs float64) do not break equality.
func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
