package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/messagequeue"
)

// Event type constants for WebSocket messages.
const (
	EventReviewCreated  = "review.created"
	EventReviewDecided  = "review.decided"
	EventDeliveryResult = "delivery.result"
)

// ReviewCreatedEvent is broadcast when a new review enters the queue.
type ReviewCreatedEvent struct {
	Review *review.Review `json:"review"`
}

// ReviewDecidedEvent is broadcast when a decision is recorded.
type ReviewDecidedEvent struct {
	Review   *review.Review   `json:"review"`
	Decision *review.Decision `json:"decision"`
}

// DeliveryResultEvent is broadcast when a notification delivery attempt
// completes.
type DeliveryResultEvent struct {
	ReviewID  string `json:"review_id"`
	Target    string `json:"target"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// broadcastTimeout bounds a sink broadcast so a stalled client write
// cannot back-pressure the review workflow.
const broadcastTimeout = 5 * time.Second

// ReviewCreated implements the lifecycle event sink.
func (h *Hub) ReviewCreated(rev *review.Review) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	h.BroadcastEvent(ctx, EventReviewCreated, ReviewCreatedEvent{Review: rev})
}

// ReviewDecided implements the lifecycle event sink.
func (h *Hub) ReviewDecided(rev *review.Review, dec *review.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	h.BroadcastEvent(ctx, EventReviewDecided, ReviewDecidedEvent{Review: rev, Decision: dec})
}

// HandleNotificationResult is a message queue handler that relays
// delivery outcomes to dashboard clients. Wire it to the
// notifications.result subject.
func (h *Hub) HandleNotificationResult(ctx context.Context, _ string, data []byte) error {
	var payload messagequeue.NotificationResultPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	h.BroadcastEvent(ctx, EventDeliveryResult, DeliveryResultEvent{
		ReviewID:  payload.ReviewID,
		Target:    payload.Target,
		Recipient: payload.Recipient,
		Status:    payload.Status,
		Reason:    payload.Reason,
	})
	return nil
}
