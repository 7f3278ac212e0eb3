package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/mmrag/internal/api"
	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/pagination"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	CreateSession(ctx context.Context, userID, title string) (*domain.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID string) (*service.SessionDetail, error)
	ListSessions(ctx context.Context, userID, cursor string, limit int) (*pagination.PageResult[*domain.ChatSession], error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
	Ask(ctx context.Context, userID, question, sessionID string) (*service.QueryResult, error)
}

type SessionHandler struct {
	svc ChatService
}

func NewSessionHandler(svc ChatService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type SessionResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type MessageResponse struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Images    []string `json:"images"`
	CreatedAt string   `json:"created_at"`
}

type SessionDetailResponse struct {
	*SessionResponse
	Messages []*MessageResponse `json:"messages"`
}

type SessionListResponse struct {
	Items   []*SessionResponse `json:"items"`
	Cursor  string             `json:"cursor,omitempty"`
	HasMore bool               `json:"has_more"`
}

func sessionToResponse(s *domain.ChatSession) *SessionResponse {
	return &SessionResponse{
		ID:           s.ID,
		Title:        s.Title,
		MessageCount: s.MessageCount,
		CreatedAt:    s.CreatedAt.Format(timeFormat),
		UpdatedAt:    s.UpdatedAt.Format(timeFormat),
	}
}

func messageToResponse(m *domain.ChatMessage) *MessageResponse {
	images := m.Images
	if images == nil {
		images = []string{}
	}
	return &MessageResponse{
		ID:        m.ID,
		Role:      string(m.Role),
		Content:   m.Content,
		Images:    images,
		CreatedAt: m.CreatedAt.Format(timeFormat),
	}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	session, err := h.svc.CreateSession(r.Context(), userID, req.Title)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	detail, err := h.svc.GetSession(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	msgs := make([]*MessageResponse, len(detail.Messages))
	for i, m := range detail.Messages {
		msgs[i] = messageToResponse(m)
	}

	api.Success(w, http.StatusOK, SessionDetailResponse{
		SessionResponse: sessionToResponse(detail.Session),
		Messages:        msgs,
	})
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	cursor, limit := pageParams(r)
	page, err := h.svc.ListSessions(r.Context(), userID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*SessionResponse, len(page.Items))
	for i, s := range page.Items {
		items[i] = sessionToResponse(s)
	}

	api.Success(w, http.StatusOK, SessionListResponse{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteSession(r.Context(), userID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// Query answers a question, creating a session when none is given. An answer
// built from an empty context is still a 200.
func (h *SessionHandler) Query(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.svc.Ask(r.Context(), userID, req.Question, req.SessionID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if result.Images == nil {
		result.Images = []string{}
	}

	api.Success(w, http.StatusOK, result)
}
