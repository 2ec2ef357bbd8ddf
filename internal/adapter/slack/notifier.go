// Package slack implements a notifier.Notifier for Slack webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/notifier"
)

const channelType = "slack"

// Notifier sends review notifications to Slack via incoming webhook.
// Recipients are channel names interpolated into the message header;
// the webhook itself targets the workspace configured in settings.
type Notifier struct {
	webhookURL string
	httpClient *http.Client
}

// NewNotifier creates a Slack notifier with the given webhook URL.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
}

func (n *Notifier) Name() string { return channelType }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{
		RichFormatting: true,
		Threads:        false,
	}
}

// slackMessage is the Slack Block Kit message payload.
type slackMessage struct {
	Channel string       `json:"channel,omitempty"`
	Blocks  []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DeliverReview posts a pending-review message to each recipient channel.
func (n *Notifier) DeliverReview(ctx context.Context, rev *review.Review, recipients []string, extra map[string]string) (notifier.Receipt, error) {
	header := fmt.Sprintf("%s Review requested: %s", urgencyEmoji(rev.Urgency), rev.TaskType)
	body := rev.Summary()
	if link := extra["dashboard_url"]; link != "" {
		body += fmt.Sprintf("\n<%s|Open in dashboard>", link)
	}
	return n.post(ctx, recipients, header, body)
}

// DeliverDecision posts a decision message to each recipient channel.
func (n *Notifier) DeliverDecision(ctx context.Context, rev *review.Review, dec *review.Decision, recipients []string) (notifier.Receipt, error) {
	header := fmt.Sprintf("%s Review %s: %s", kindEmoji(dec.Kind), dec.Kind, rev.TaskType)
	return n.post(ctx, recipients, header, dec.DecisionSummary(rev))
}

// TestConnection posts a minimal message to verify the webhook works.
func (n *Notifier) TestConnection(ctx context.Context) error {
	if n.webhookURL == "" {
		return notifier.ErrNotConfigured
	}
	_, err := n.post(ctx, nil, "humancheck connection test", "Channel configuration verified.")
	return err
}

func (n *Notifier) post(ctx context.Context, channels []string, header, body string) (notifier.Receipt, error) {
	if n.webhookURL == "" {
		return notifier.Receipt{}, notifier.ErrNotConfigured
	}

	msg := slackMessage{
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: header}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: body}},
		},
	}
	if len(channels) > 0 {
		msg.Channel = channels[0]
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "context",
			Text: &slackText{Type: "mrkdwn", Text: "_To: " + strings.Join(channels, ", ") + "_"},
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return notifier.Receipt{}, fmt.Errorf("slack marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return notifier.Receipt{}, fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req) //nolint:gosec // webhook URL from trusted config
	if err != nil {
		return notifier.Receipt{}, fmt.Errorf("slack send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return notifier.Receipt{}, fmt.Errorf("slack API %d: %s", resp.StatusCode, string(respBody))
	}

	// Incoming webhooks do not assign message IDs.
	return notifier.Receipt{}, nil
}

func urgencyEmoji(u review.Urgency) string {
	switch u {
	case review.UrgencyCritical:
		return ":red_circle:"
	case review.UrgencyHigh:
		return ":large_orange_circle:"
	case review.UrgencyMedium:
		return ":large_yellow_circle:"
	default:
		return ":large_green_circle:"
	}
}

func kindEmoji(k review.Kind) string {
	switch k {
	case review.KindApprove:
		return ":white_check_mark:"
	case review.KindReject:
		return ":x:"
	default:
		return ":pencil2:"
	}
}
