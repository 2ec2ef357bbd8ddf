// Package review defines domain types for human review requests and decisions.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/humancheck/humancheck/internal/domain"
)

// Status represents the lifecycle state of a review.
// A review starts pending and moves to exactly one terminal state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// Terminal reports whether the status is a decided state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusModified
}

// Urgency is the ordered urgency level of a review request.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Level returns the numeric rank of the urgency (low=0 .. critical=3),
// or -1 for an unknown value.
func (u Urgency) Level() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyMedium:
		return 1
	case UrgencyHigh:
		return 2
	case UrgencyCritical:
		return 3
	}
	return -1
}

// Valid reports whether u is one of the four defined levels.
func (u Urgency) Valid() bool { return u.Level() >= 0 }

// Review represents a request for human judgment on a proposed agent action.
type Review struct {
	ID              string         `json:"id"`
	TaskType        string         `json:"task_type"`
	ProposedAction  string         `json:"proposed_action"`
	AgentReasoning  string         `json:"agent_reasoning,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Urgency         Urgency        `json:"urgency"`
	Framework       string         `json:"framework,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Status          Status         `json:"status"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
	AssignedTeam    string         `json:"assigned_team,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DecidedAt       *time.Time     `json:"decided_at,omitempty"`
}

// Kind is the human's resolution of a review.
type Kind string

const (
	KindApprove Kind = "approve"
	KindReject  Kind = "reject"
	KindModify  Kind = "modify"
)

// StatusForKind maps a decision kind to the review's terminal status.
func StatusForKind(k Kind) (Status, bool) {
	switch k {
	case KindApprove:
		return StatusApproved, true
	case KindReject:
		return StatusRejected, true
	case KindModify:
		return StatusModified, true
	}
	return "", false
}

// Decision is the terminal human resolution of a review. At most one
// decision exists per review; it is created once and never mutated.
type Decision struct {
	ID             string    `json:"id"`
	ReviewID       string    `json:"review_id"`
	Kind           Kind      `json:"kind"`
	ModifiedAction string    `json:"modified_action,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ReviewerID     string    `json:"reviewer_id,omitempty"`
	ReviewerName   string    `json:"reviewer_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateRequest holds the fields for submitting a new review. The
// optional assignment fields record which reviewer or team the caller
// wants the review directed to.
type CreateRequest struct {
	TaskType        string         `json:"task_type"`
	ProposedAction  string         `json:"proposed_action"`
	AgentReasoning  string         `json:"agent_reasoning,omitempty"`
	ConfidenceScore *float64       `json:"confidence_score,omitempty"`
	Urgency         Urgency        `json:"urgency,omitempty"`
	Framework       string         `json:"framework,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	AssignedTo      string         `json:"assigned_to,omitempty"`
	AssignedTeam    string         `json:"assigned_team,omitempty"`
}

// DecisionRequest holds the fields for recording a decision.
type DecisionRequest struct {
	Kind           Kind   `json:"kind"`
	ModifiedAction string `json:"modified_action,omitempty"`
	Notes          string `json:"notes,omitempty"`
	ReviewerID     string `json:"reviewer_id,omitempty"`
	ReviewerName   string `json:"reviewer_name,omitempty"`
}

var (
	ErrTaskTypeRequired       = fmt.Errorf("%w: task_type is required", domain.ErrValidation)
	ErrProposedActionRequired = fmt.Errorf("%w: proposed_action is required", domain.ErrValidation)
	ErrInvalidUrgency         = fmt.Errorf("%w: urgency must be one of low, medium, high, critical", domain.ErrValidation)
	ErrConfidenceRange        = fmt.Errorf("%w: confidence_score must be between 0 and 1", domain.ErrValidation)
	ErrInvalidKind            = fmt.Errorf("%w: kind must be one of approve, reject, modify", domain.ErrValidation)
	ErrModifiedActionRequired = fmt.Errorf("%w: modified_action is required when kind is modify", domain.ErrValidation)

	// ErrAlreadyDecided is returned when a decision is recorded against a
	// review that has already left the pending state. A second decision
	// attempt is an error, never a silent no-op.
	ErrAlreadyDecided = errors.New("review already decided")
)

// Validate checks the create request for correctness.
// An empty urgency defaults to medium.
func (r *CreateRequest) Validate() error {
	if r.TaskType == "" {
		return ErrTaskTypeRequired
	}
	if r.ProposedAction == "" {
		return ErrProposedActionRequired
	}
	if r.Urgency == "" {
		r.Urgency = UrgencyMedium
	}
	if !r.Urgency.Valid() {
		return ErrInvalidUrgency
	}
	if r.ConfidenceScore != nil && (*r.ConfidenceScore < 0 || *r.ConfidenceScore > 1) {
		return ErrConfidenceRange
	}
	return nil
}

// Validate checks the decision request for correctness.
func (r *DecisionRequest) Validate() error {
	if _, ok := StatusForKind(r.Kind); !ok {
		return ErrInvalidKind
	}
	if r.Kind == KindModify && r.ModifiedAction == "" {
		return ErrModifiedActionRequired
	}
	return nil
}
