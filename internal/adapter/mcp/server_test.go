package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	hcmcp "github.com/humancheck/humancheck/internal/adapter/mcp"
	"github.com/humancheck/humancheck/internal/domain"
	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/service"
)

// --- Mocks ---

// mockWorkflow implements the ReviewWorkflow slice with canned behavior.
type mockWorkflow struct {
	reviews   map[string]*review.Review
	decisions map[string]*review.Decision
	// decideAfter, when set, resolves AwaitDecision with this decision.
	decideAfter *review.Decision
}

func newMockWorkflow() *mockWorkflow {
	return &mockWorkflow{
		reviews:   make(map[string]*review.Review),
		decisions: make(map[string]*review.Decision),
	}
}

func (m *mockWorkflow) Create(_ context.Context, req *review.CreateRequest) (*review.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rev := &review.Review{
		ID:             fmt.Sprintf("rev-%d", len(m.reviews)+1),
		TaskType:       req.TaskType,
		ProposedAction: req.ProposedAction,
		Urgency:        req.Urgency,
		Metadata:       req.Metadata,
		Status:         review.StatusPending,
	}
	m.reviews[rev.ID] = rev
	return rev, nil
}

func (m *mockWorkflow) Get(_ context.Context, id string) (*review.Review, error) {
	rev, ok := m.reviews[id]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", id, domain.ErrNotFound)
	}
	return rev, nil
}

func (m *mockWorkflow) GetDecision(_ context.Context, reviewID string) (*review.Decision, error) {
	dec, ok := m.decisions[reviewID]
	if !ok {
		return nil, fmt.Errorf("decision for review %s: %w", reviewID, domain.ErrNotFound)
	}
	return dec, nil
}

func (m *mockWorkflow) AwaitDecision(_ context.Context, reviewID string, _ time.Duration) (*review.Decision, error) {
	if m.decideAfter != nil {
		m.decideAfter.ReviewID = reviewID
		return m.decideAfter, nil
	}
	return nil, service.ErrAwaitTimeout
}

func callTool(t *testing.T, s *hcmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tools := s.MCPServer().ListTools()
	tool, ok := tools[name]
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func resultText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty result content")
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

// --- Tests ---

func TestNewServer(t *testing.T) {
	s := hcmcp.NewServer(hcmcp.ServerConfig{
		Addr:    ":3001",
		Name:    "test-server",
		Version: "0.1.0",
	}, hcmcp.ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestToolRegistration(t *testing.T) {
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{
		Reviews: newMockWorkflow(),
	})

	tools := s.MCPServer().ListTools()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}

	expectedTools := map[string]bool{
		"request_review":      false,
		"check_review_status": false,
		"get_review_decision": false,
	}
	for name := range tools {
		if _, ok := expectedTools[name]; ok {
			expectedTools[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestRequestReviewTimesOut(t *testing.T) {
	wf := newMockWorkflow()
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{Reviews: wf})

	result := callTool(t, s, "request_review", map[string]any{
		"task_type":       "deploy",
		"proposed_action": "roll out v2",
		"timeout_seconds": float64(1),
	})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var resp struct {
		ReviewID string `json:"review_id"`
		Status   string `json:"status"`
		TimedOut bool   `json:"timed_out"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !resp.TimedOut || resp.Status != "pending" || resp.ReviewID == "" {
		t.Fatalf("resp = %+v, want pending timed-out with review id", resp)
	}
}

func TestRequestReviewDecided(t *testing.T) {
	wf := newMockWorkflow()
	wf.decideAfter = &review.Decision{ID: "dec-1", Kind: review.KindApprove}
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{Reviews: wf})

	result := callTool(t, s, "request_review", map[string]any{
		"task_type":       "deploy",
		"proposed_action": "roll out v2",
	})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var resp struct {
		Status   string           `json:"status"`
		Decision *review.Decision `json:"decision"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.Status != "approved" || resp.Decision == nil || resp.Decision.Kind != review.KindApprove {
		t.Fatalf("resp = %+v, want approved with decision", resp)
	}
}

func TestRequestReviewValidation(t *testing.T) {
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{
		Reviews: newMockWorkflow(),
	})

	result := callTool(t, s, "request_review", map[string]any{
		"task_type": "deploy",
	})
	if !result.IsError {
		t.Fatal("expected error result for missing proposed_action")
	}
}

func TestCheckReviewStatus(t *testing.T) {
	wf := newMockWorkflow()
	wf.reviews["rev-9"] = &review.Review{ID: "rev-9", TaskType: "deploy", Status: review.StatusApproved}
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{Reviews: wf})

	result := callTool(t, s, "check_review_status", map[string]any{"review_id": "rev-9"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var rev review.Review
	if err := json.Unmarshal([]byte(resultText(t, result)), &rev); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if rev.Status != review.StatusApproved {
		t.Fatalf("status = %s, want approved", rev.Status)
	}
}

func TestCheckReviewStatusMissingArg(t *testing.T) {
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{
		Reviews: newMockWorkflow(),
	})

	result := callTool(t, s, "check_review_status", nil)
	if !result.IsError {
		t.Fatal("expected error result for missing review_id")
	}
}

func TestGetReviewDecision(t *testing.T) {
	wf := newMockWorkflow()
	wf.decisions["rev-9"] = &review.Decision{ID: "dec-9", ReviewID: "rev-9", Kind: review.KindReject}
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{Reviews: wf})

	result := callTool(t, s, "get_review_decision", map[string]any{"review_id": "rev-9"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var dec review.Decision
	if err := json.Unmarshal([]byte(resultText(t, result)), &dec); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if dec.Kind != review.KindReject {
		t.Fatalf("kind = %s, want reject", dec.Kind)
	}
}

func TestGetReviewDecisionPending(t *testing.T) {
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{
		Reviews: newMockWorkflow(),
	})

	result := callTool(t, s, "get_review_decision", map[string]any{"review_id": "rev-1"})
	if !result.IsError {
		t.Fatal("expected error result for pending review")
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := hcmcp.NewServer(hcmcp.ServerConfig{Name: "test", Version: "0.1.0"}, hcmcp.ServerDeps{})

	result := callTool(t, s, "request_review", map[string]any{
		"task_type":       "deploy",
		"proposed_action": "x",
	})
	if !result.IsError {
		t.Fatal("expected error result when deps are nil")
	}
}
