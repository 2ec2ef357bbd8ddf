package review

import (
	"fmt"
	"strings"
)

// Summary renders a review as a short human-readable notification body.
// Channel adapters wrap this in their native formatting.
func (r *Review) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "New review request\n\nTask type: %s\nUrgency: %s\nProposed action:\n%s\n",
		r.TaskType, strings.ToUpper(string(r.Urgency)), r.ProposedAction)

	if r.AgentReasoning != "" {
		fmt.Fprintf(&b, "\nAgent reasoning:\n%s\n", r.AgentReasoning)
	}
	if r.ConfidenceScore != nil {
		fmt.Fprintf(&b, "\nConfidence: %.0f%%\n", *r.ConfidenceScore*100)
	}
	return b.String()
}

// DecisionSummary renders a decision as a short human-readable
// notification body.
func (d *Decision) DecisionSummary(r *Review) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Decision: %s\n\nTask type: %s\nOriginal action: %s\n",
		strings.ToUpper(string(d.Kind)), r.TaskType, r.ProposedAction)

	if d.ModifiedAction != "" {
		fmt.Fprintf(&b, "\nModified action: %s\n", d.ModifiedAction)
	}
	if d.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", d.Notes)
	}
	if d.ReviewerName != "" {
		fmt.Fprintf(&b, "\nReviewed by: %s\n", d.ReviewerName)
	}
	return b.String()
}
