// Package delivery defines the append-only notification delivery log.
package delivery

import "time"

// Event identifies which lifecycle transition triggered a notification.
type Event string

const (
	EventReviewCreated Event = "review.created"
	EventDecisionMade  Event = "review.decided"
)

// Status tracks a single delivery attempt. A record starts as sent or
// failed; sent records may later progress to delivered and read when the
// external channel confirms asynchronously.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Record is one attempt to notify one recipient through one target for
// one event. Records are appended, never rewritten; only the
// sent→delivered→read status progression is updated in place.
type Record struct {
	ID            string    `json:"id"`
	ReviewID      string    `json:"review_id"`
	Target        string    `json:"target"`
	Recipient     string    `json:"recipient"`
	Event         Event     `json:"event"`
	Status        Status    `json:"status"`
	MessageID     string    `json:"message_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NextStatus reports whether a status transition driven by an external
// confirmation is allowed.
func NextStatus(from, to Status) bool {
	switch from {
	case StatusSent:
		return to == StatusDelivered || to == StatusRead
	case StatusDelivered:
		return to == StatusRead
	}
	return false
}
