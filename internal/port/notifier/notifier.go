// Package notifier defines the notification port (interface) and capabilities.
package notifier

import (
	"context"
	"errors"

	"github.com/humancheck/humancheck/internal/domain/review"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Receipt is the outcome of a successful delivery. MessageID is the
// opaque identifier assigned by the external channel, if any.
type Receipt struct {
	MessageID string `json:"message_id,omitempty"`
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Threads        bool `json:"threads"`
}

// Notifier is the port interface for delivering review notifications
// through one external channel. The core never depends on a channel's
// payload shape; adapters build the channel-native message themselves.
type Notifier interface {
	// Name returns the channel type identifier (e.g. "slack", "webhook").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// DeliverReview notifies recipients about a newly created review.
	// extra carries caller-supplied context such as a dashboard link.
	DeliverReview(ctx context.Context, rev *review.Review, recipients []string, extra map[string]string) (Receipt, error)

	// DeliverDecision notifies recipients that a decision was recorded.
	DeliverDecision(ctx context.Context, rev *review.Review, dec *review.Decision, recipients []string) (Receipt, error)

	// TestConnection verifies the channel is reachable and configured.
	TestConnection(ctx context.Context) error
}
