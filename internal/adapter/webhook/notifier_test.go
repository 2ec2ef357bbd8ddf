package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/port/notifier"
)

// Compile-time interface check.
var _ notifier.Notifier = (*Notifier)(nil)

func sampleReview() *review.Review {
	return &review.Review{
		ID:             "rev-1",
		TaskType:       "deploy",
		ProposedAction: "roll out v2",
		Urgency:        review.UrgencyMedium,
		Status:         review.StatusPending,
	}
}

func TestNotifierName(t *testing.T) {
	n := NewNotifier("")
	if n.Name() != "webhook" {
		t.Fatalf("expected 'webhook', got %q", n.Name())
	}
}

func TestDeliverReviewPostsPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message_id":"ext-42"}`))
	}))
	defer srv.Close()

	n := NewNotifier("")
	receipt, err := n.DeliverReview(context.Background(), sampleReview(), []string{srv.URL}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Event != "review.created" || got.Review == nil || got.Review.ID != "rev-1" {
		t.Errorf("payload = %+v", got)
	}
	if receipt.MessageID != "ext-42" {
		t.Errorf("message id = %q, want ext-42", receipt.MessageID)
	}
}

func TestDeliverDecisionPostsPayload(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rev := sampleReview()
	dec := &review.Decision{ID: "dec-1", ReviewID: rev.ID, Kind: review.KindModify, ModifiedAction: "staging only"}

	n := NewNotifier("")
	if _, err := n.DeliverDecision(context.Background(), rev, dec, []string{srv.URL}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Event != "review.decided" || got.Decision == nil || got.Decision.Kind != review.KindModify {
		t.Errorf("payload = %+v", got)
	}
}

func TestSignatureHeader(t *testing.T) {
	const secret = "topsecret"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
		if got := r.Header.Get("X-Humancheck-Signature"); got != want {
			t.Errorf("signature = %q, want %q", got, want)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(secret)
	if _, err := n.DeliverReview(context.Background(), sampleReview(), []string{srv.URL}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNoSignatureWithoutSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Humancheck-Signature") != "" {
			t.Error("unexpected signature header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier("")
	if _, err := n.DeliverReview(context.Background(), sampleReview(), []string{srv.URL}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeliverNoRecipients(t *testing.T) {
	n := NewNotifier("")
	_, err := n.DeliverReview(context.Background(), sampleReview(), nil, nil)
	if !errors.Is(err, notifier.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDeliverReceiverError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream broken"))
	}))
	defer srv.Close()

	n := NewNotifier("")
	_, err := n.DeliverReview(context.Background(), sampleReview(), []string{srv.URL}, nil)
	if err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestTestConnectionAlwaysPasses(t *testing.T) {
	if err := NewNotifier("").TestConnection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
