package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/mmrag/internal/cli/client"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 100
)

type AskInput struct {
	Question      string `json:"question" jsonschema:"the question to answer from the indexed documents"`
	SessionID     string `json:"session_id,omitempty" jsonschema:"session to continue; omit to start a new one"`
	IncludeImages bool   `json:"include_images,omitempty" jsonschema:"return the base64 images that were used as context"`
}

type AskOutput struct {
	Answer      string   `json:"answer"`
	SessionID   string   `json:"session_id"`
	ImagesCount int      `json:"images_count"`
	Images      []string `json:"images,omitempty"`
}

type ListSessionsInput struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default 20)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"pagination cursor from a previous call"`
}

type SessionOutput struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	UpdatedAt    string `json:"updated_at"`
}

type ListSessionsOutput struct {
	Sessions []SessionOutput `json:"sessions"`
	Cursor   string          `json:"cursor,omitempty"`
	HasMore  bool            `json:"has_more"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question using the user's indexed documents (text, tables and images). Pass session_id to ask a follow-up.",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List the user's chat sessions, most recently updated first",
	}, s.handleListSessions)
}

func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AskOutput{}, errors.New("question is required")
	}

	result, err := s.backend.Query(ctx, client.QueryRequest{
		Question:  question,
		SessionID: input.SessionID,
	})
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("query failed: %w", err)
	}

	out := AskOutput{
		Answer:      result.Answer,
		SessionID:   result.Meta.SessionID,
		ImagesCount: result.Meta.ImagesCount,
	}
	if input.IncludeImages {
		out.Images = result.Images
	}
	return nil, out, nil
}

func (s *Server) handleListSessions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	if limit > maxSessionLimit {
		limit = maxSessionLimit
	}

	page, err := s.backend.ListSessions(ctx, input.Cursor, limit)
	if err != nil {
		return nil, ListSessionsOutput{}, fmt.Errorf("list sessions failed: %w", err)
	}

	out := ListSessionsOutput{
		Sessions: make([]SessionOutput, len(page.Items)),
		Cursor:   page.Cursor,
		HasMore:  page.HasMore,
	}
	for i, sess := range page.Items {
		out.Sessions[i] = SessionOutput{
			ID:           sess.ID,
			Title:        sess.Title,
			MessageCount: sess.MessageCount,
			UpdatedAt:    sess.UpdatedAt,
		}
	}
	return nil, out, nil
}
