// Package webhook implements a notifier.Notifier posting JSON to a
// generic HTTP endpoint, one request per recipient URL.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/notifier"
)

const channelType = "webhook"

// Notifier posts review events as JSON payloads. Recipients are
// endpoint URLs. When a signing secret is configured, each request
// carries an HMAC-SHA256 signature of the body so receivers can verify
// origin.
type Notifier struct {
	secret     string
	httpClient *http.Client
}

// NewNotifier creates a webhook notifier with an optional signing secret.
func NewNotifier(secret string) *Notifier {
	return &Notifier{
		secret:     secret,
		httpClient: http.DefaultClient,
	}
}

func (n *Notifier) Name() string { return channelType }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{}
}

// payload is the wire format posted to receiver endpoints.
type payload struct {
	Event    string            `json:"event"`
	Review   *review.Review    `json:"review"`
	Decision *review.Decision  `json:"decision,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// receiverAck is the optional response body a receiver may return.
type receiverAck struct {
	MessageID string `json:"message_id"`
}

// DeliverReview posts the review to every recipient endpoint. The first
// failure aborts the batch; per-recipient isolation is the dispatcher's
// job, which calls this with a single recipient at a time.
func (n *Notifier) DeliverReview(ctx context.Context, rev *review.Review, recipients []string, extra map[string]string) (notifier.Receipt, error) {
	return n.post(ctx, recipients, payload{Event: "review.created", Review: rev, Extra: extra})
}

// DeliverDecision posts the decision to every recipient endpoint.
func (n *Notifier) DeliverDecision(ctx context.Context, rev *review.Review, dec *review.Decision, recipients []string) (notifier.Receipt, error) {
	return n.post(ctx, recipients, payload{Event: "review.decided", Review: rev, Decision: dec})
}

// TestConnection verifies the notifier is configured. Endpoint
// reachability is only known per recipient, at delivery time.
func (n *Notifier) TestConnection(_ context.Context) error {
	return nil
}

func (n *Notifier) post(ctx context.Context, urls []string, p payload) (notifier.Receipt, error) {
	if len(urls) == 0 {
		return notifier.Receipt{}, notifier.ErrNotConfigured
	}

	body, err := json.Marshal(p)
	if err != nil {
		return notifier.Receipt{}, fmt.Errorf("webhook marshal: %w", err)
	}

	var receipt notifier.Receipt
	for _, url := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return notifier.Receipt{}, fmt.Errorf("webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if n.secret != "" {
			req.Header.Set("X-Humancheck-Signature", sign(n.secret, body))
		}

		resp, err := n.httpClient.Do(req) //nolint:gosec // recipient URLs come from operator-managed rules
		if err != nil {
			return notifier.Receipt{}, fmt.Errorf("webhook send %s: %w", url, err)
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		if resp.StatusCode >= 400 {
			return notifier.Receipt{}, fmt.Errorf("webhook %s returned %d: %s", url, resp.StatusCode, string(respBody))
		}

		var ack receiverAck
		if err := json.Unmarshal(respBody, &ack); err == nil && ack.MessageID != "" {
			receipt.MessageID = ack.MessageID
		}
	}
	return receipt, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
