// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to
// lifecycle events. Publishing is best-effort relative to the review
// workflow: a queue outage never blocks creation or decision recording.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Close shuts down the queue connection.
	Close() error
}

// Subject constants for review lifecycle events.
const (
	SubjectReviewCreated      = "reviews.created"
	SubjectReviewDecided      = "reviews.decided"
	SubjectNotificationResult = "notifications.result"
)

// ReviewCreatedPayload is the schema for reviews.created messages.
type ReviewCreatedPayload struct {
	ReviewID string `json:"review_id"`
	TaskType string `json:"task_type"`
	Urgency  string `json:"urgency"`
}

// ReviewDecidedPayload is the schema for reviews.decided messages.
type ReviewDecidedPayload struct {
	ReviewID string `json:"review_id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
}

// NotificationResultPayload is the schema for notifications.result messages.
type NotificationResultPayload struct {
	ReviewID  string `json:"review_id"`
	Target    string `json:"target"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}
