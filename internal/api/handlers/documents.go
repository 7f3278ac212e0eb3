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

type DocumentService interface {
	Upload(ctx context.Context, userID string, req service.UploadRequest) (*service.UploadResult, error)
	Get(ctx context.Context, userID, id string) (*domain.Document, error)
	List(ctx context.Context, userID, sessionID, cursor string, limit int) (*pagination.PageResult[*domain.Document], error)
	Delete(ctx context.Context, userID, id string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type UploadDocumentRequest struct {
	Filename  string              `json:"filename"`
	SessionID string              `json:"session_id"`
	Units     []service.UnitInput `json:"units"`
}

type DocumentResponse struct {
	ID         string   `json:"id"`
	SessionID  string   `json:"session_id,omitempty"`
	Filename   string   `json:"filename"`
	TextCount  int      `json:"text_count"`
	TableCount int      `json:"table_count"`
	ImageCount int      `json:"image_count"`
	SizeBytes  int64    `json:"size_bytes"`
	UnitIDs    []string `json:"unit_ids"`
	UploadedAt string   `json:"uploaded_at"`
}

type UploadDocumentResponse struct {
	Document *DocumentResponse   `json:"document"`
	Report   *domain.IndexReport `json:"report"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	unitIDs := d.UnitIDs
	if unitIDs == nil {
		unitIDs = []string{}
	}
	return &DocumentResponse{
		ID:         d.ID,
		SessionID:  d.SessionID,
		Filename:   d.Filename,
		TextCount:  d.TextCount,
		TableCount: d.TableCount,
		ImageCount: d.ImageCount,
		SizeBytes:  d.SizeBytes,
		UnitIDs:    unitIDs,
		UploadedAt: d.UploadedAt.Format(timeFormat),
	}
}

// Upload indexes pre-classified units. Units that could not be indexed are
// listed in the report; the request still succeeds.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UploadDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if len(req.Units) == 0 {
		api.Error(w, http.StatusBadRequest, "units are required")
		return
	}

	result, err := h.svc.Upload(r.Context(), userID, service.UploadRequest{
		Filename:  req.Filename,
		SessionID: req.SessionID,
		Units:     req.Units,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UploadDocumentResponse{
		Document: documentToResponse(result.Document),
		Report:   result.Report,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), userID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

// List pages the caller's documents, optionally narrowed by ?session_id=.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("session_id"))
}

// ListForSession serves /sessions/{id}/documents.
func (h *DocumentHandler) ListForSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	h.list(w, r, sessionID)
}

func (h *DocumentHandler) list(w http.ResponseWriter, r *http.Request, sessionID string) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	cursor, limit := pageParams(r)
	page, err := h.svc.List(r.Context(), userID, sessionID, cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		items[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), userID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
