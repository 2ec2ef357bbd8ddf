package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/humancheck/humancheck/internal/domain/review"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("expected non-nil hub")
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastEventNoConnections(t *testing.T) {
	hub := NewHub()

	hub.BroadcastEvent(context.Background(), EventReviewCreated, ReviewCreatedEvent{
		Review: &review.Review{ID: "rev-1", Status: review.StatusPending},
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON — should log error, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestClientSurvivesHandlerReturn(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	sock, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer sock.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// HandleWS returned as soon as the handshake finished; the session
	// must outlive the request context it was accepted under.
	time.Sleep(50 * time.Millisecond)
	if got := hub.ConnectionCount(); got != 1 {
		t.Fatalf("connection count = %d after handler return, want 1", got)
	}

	hub.Broadcast(ctx, Message{Type: "review.created", Payload: []byte(`{"id":"rev-1"}`)})

	_, data, err := sock.Read(ctx)
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal broadcast: %v", err)
	}
	if msg.Type != "review.created" {
		t.Fatalf("broadcast type = %q, want review.created", msg.Type)
	}
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()

	// Removing a connection that was never added should not panic.
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &client{sock: nil, cancel: cancel}
	hub.remove(c)
}

func TestHubSinkMethods(t *testing.T) {
	hub := NewHub()

	rev := &review.Review{ID: "rev-1", Status: review.StatusApproved}
	dec := &review.Decision{ID: "dec-1", ReviewID: "rev-1", Kind: review.KindApprove}
	hub.ReviewCreated(rev)
	hub.ReviewDecided(rev, dec)
}

func TestHandleNotificationResult(t *testing.T) {
	hub := NewHub()

	err := hub.HandleNotificationResult(context.Background(), "notifications.result",
		[]byte(`{"review_id":"rev-1","target":"slack","recipient":"#ops","status":"sent"}`))
	if err != nil {
		t.Fatalf("HandleNotificationResult: %v", err)
	}

	if err := hub.HandleNotificationResult(context.Background(), "notifications.result", []byte(`{`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
