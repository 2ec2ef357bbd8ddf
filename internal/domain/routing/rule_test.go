package routing

import (
	"errors"
	"testing"

	"github.com/humancheck/humancheck/internal/domain"
)

func validRequest() *UpsertRequest {
	return &UpsertRequest{
		Target:     "slack",
		Name:       "deploys to ops",
		Priority:   10,
		Recipients: []string{"#ops"},
		Conditions: ConditionSet{
			"task_type": {Value: "deploy"},
		},
	}
}

func TestUpsertRequestValid(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertRequestRequiredFields(t *testing.T) {
	req := validRequest()
	req.Target = ""
	if err := req.Validate(); !errors.Is(err, ErrTargetRequired) {
		t.Errorf("missing target: err = %v", err)
	}

	req = validRequest()
	req.Name = ""
	if err := req.Validate(); !errors.Is(err, ErrNameRequired) {
		t.Errorf("missing name: err = %v", err)
	}

	req = validRequest()
	req.Recipients = nil
	if err := req.Validate(); !errors.Is(err, ErrRecipientsRequired) {
		t.Errorf("missing recipients: err = %v", err)
	}
}

func TestConditionValidation(t *testing.T) {
	tests := []struct {
		name    string
		cs      ConditionSet
		wantErr bool
	}{
		{"empty set valid", ConditionSet{}, false},
		{"known field", ConditionSet{"urgency": {Value: "high"}}, false},
		{"metadata path", ConditionSet{"metadata.region": {Value: "eu"}}, false},
		{"unknown field", ConditionSet{"flavour": {Value: "x"}}, true},
		{"status not matchable", ConditionSet{"status": {Value: "pending"}}, true},
		{"bare metadata prefix", ConditionSet{"metadata.": {Value: "x"}}, true},
		{"unknown operator", ConditionSet{"task_type": {Operator: "~=", Value: "x"}}, true},
		{"numeric op with string", ConditionSet{"confidence_score": {Operator: OpGt, Value: "high"}}, true},
		{"numeric op with number", ConditionSet{"confidence_score": {Operator: OpGt, Value: 0.5}}, false},
		{"in with scalar", ConditionSet{"urgency": {Operator: OpIn, Value: "high"}}, true},
		{"in with list", ConditionSet{"urgency": {Operator: OpIn, Value: []any{"high"}}}, false},
		{"matches bad pattern", ConditionSet{"task_type": {Operator: OpMatches, Value: "("}}, true},
		{"matches non-string", ConditionSet{"task_type": {Operator: OpMatches, Value: 3}}, true},
		{"min_confidence non-numeric", ConditionSet{"min_confidence": {Value: "lots"}}, true},
		{"or group valid", ConditionSet{
			"or": {Value: []ConditionSet{
				{"task_type": {Value: "deploy"}},
				{"urgency": {Value: "critical"}},
			}},
		}, false},
		{"and group valid", ConditionSet{
			"and": {Value: []ConditionSet{
				{"task_type": {Value: "deploy"}},
				{"min_confidence": {Value: 0.5}},
			}},
		}, false},
		{"group with scalar value", ConditionSet{"or": {Value: "high"}}, true},
		{"group empty list", ConditionSet{"and": {Value: []ConditionSet{}}}, true},
		{"group with operator", ConditionSet{"or": {Operator: OpIn, Value: []ConditionSet{{"urgency": {Value: "high"}}}}}, true},
		{"group with invalid sub-set", ConditionSet{
			"or": {Value: []ConditionSet{
				{"flavour": {Value: "x"}},
			}},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cs.Validate()
			if tt.wantErr && !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
