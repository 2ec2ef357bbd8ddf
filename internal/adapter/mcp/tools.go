package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/humancheck/humancheck/internal/domain/review"
	"github.com/humancheck/humancheck/internal/service"
)

// defaultToolWaitSeconds is how long request_review blocks for a human
// decision when the agent does not pass timeout_seconds.
const defaultToolWaitSeconds = 300

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.requestReviewTool(),
		s.checkReviewStatusTool(),
		s.getReviewDecisionTool(),
	)
}

func (s *Server) requestReviewTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("request_review",
		mcplib.WithDescription("Submit a proposed action for human review and block until a decision is made or the wait times out"),
		mcplib.WithString("task_type",
			mcplib.Required(),
			mcplib.Description("Category of the task, used for routing (e.g. deploy, payment)"),
		),
		mcplib.WithString("proposed_action",
			mcplib.Required(),
			mcplib.Description("The action awaiting approval, in plain language"),
		),
		mcplib.WithString("agent_reasoning",
			mcplib.Description("Why the agent proposes this action"),
		),
		mcplib.WithNumber("confidence_score",
			mcplib.Description("Agent self-assessed confidence between 0 and 1"),
		),
		mcplib.WithString("urgency",
			mcplib.Description("low, medium, high or critical (default medium)"),
		),
		mcplib.WithString("framework",
			mcplib.Description("Originating agent framework identifier"),
		),
		mcplib.WithObject("metadata",
			mcplib.Description("Arbitrary key-value context, addressable by routing rules"),
		),
		mcplib.WithNumber("timeout_seconds",
			mcplib.Description("How long to wait for a decision (default 300)"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleRequestReview,
	}
}

func (s *Server) checkReviewStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("check_review_status",
		mcplib.WithDescription("Check the current status of a review by ID"),
		mcplib.WithString("review_id",
			mcplib.Required(),
			mcplib.Description("The review ID to check"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCheckReviewStatus,
	}
}

func (s *Server) getReviewDecisionTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_review_decision",
		mcplib.WithDescription("Get the recorded decision for a decided review"),
		mcplib.WithString("review_id",
			mcplib.Required(),
			mcplib.Description("The review ID to look up"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetReviewDecision,
	}
}

// requestReviewResult is the JSON payload returned by request_review.
type requestReviewResult struct {
	ReviewID string           `json:"review_id"`
	Status   review.Status    `json:"status"`
	TimedOut bool             `json:"timed_out,omitempty"`
	Decision *review.Decision `json:"decision,omitempty"`
}

func (s *Server) handleRequestReview(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviews == nil {
		return mcplib.NewToolResultError("review workflow not configured"), nil
	}
	args := req.GetArguments()

	create := &review.CreateRequest{
		TaskType:       stringArg(args, "task_type"),
		ProposedAction: stringArg(args, "proposed_action"),
		AgentReasoning: stringArg(args, "agent_reasoning"),
		Urgency:        review.Urgency(stringArg(args, "urgency")),
		Framework:      stringArg(args, "framework"),
	}
	if score, ok := args["confidence_score"].(float64); ok {
		create.ConfidenceScore = &score
	}
	if meta, ok := args["metadata"].(map[string]any); ok {
		create.Metadata = meta
	}

	rev, err := s.deps.Reviews.Create(ctx, create)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to create review", err), nil
	}

	wait := time.Duration(defaultToolWaitSeconds) * time.Second
	if secs, ok := args["timeout_seconds"].(float64); ok && secs > 0 {
		wait = time.Duration(secs * float64(time.Second))
	}

	dec, err := s.deps.Reviews.AwaitDecision(ctx, rev.ID, wait)
	switch {
	case err == nil:
		status, _ := review.StatusForKind(dec.Kind)
		return marshalResult(requestReviewResult{ReviewID: rev.ID, Status: status, Decision: dec})
	case errors.Is(err, service.ErrAwaitTimeout):
		return marshalResult(requestReviewResult{ReviewID: rev.ID, Status: review.StatusPending, TimedOut: true})
	default:
		return mcplib.NewToolResultErrorFromErr("failed waiting for decision", err), nil
	}
}

func (s *Server) handleCheckReviewStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviews == nil {
		return mcplib.NewToolResultError("review workflow not configured"), nil
	}
	reviewID := stringArg(req.GetArguments(), "review_id")
	if reviewID == "" {
		return mcplib.NewToolResultError("review_id is required"), nil
	}

	rev, err := s.deps.Reviews.Get(ctx, reviewID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get review %s", reviewID), err,
		), nil
	}
	return marshalResult(rev)
}

func (s *Server) handleGetReviewDecision(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reviews == nil {
		return mcplib.NewToolResultError("review workflow not configured"), nil
	}
	reviewID := stringArg(req.GetArguments(), "review_id")
	if reviewID == "" {
		return mcplib.NewToolResultError("review_id is required"), nil
	}

	dec, err := s.deps.Reviews.GetDecision(ctx, reviewID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("no decision for review %s", reviewID), err,
		), nil
	}
	return marshalResult(dec)
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func marshalResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
