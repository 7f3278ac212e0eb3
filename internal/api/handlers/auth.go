package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/mmrag/internal/api"
	"github.com/cloo-solutions/mmrag/internal/api/middleware"
	"github.com/cloo-solutions/mmrag/internal/domain"
)

type AuthService interface {
	ListAPIKeys(ctx context.Context, userID string) ([]*domain.APIKey, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type UserResponse struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      string            `json:"role"`
	Status    string            `json:"status"`
	CreatedAt string            `json:"created_at"`
	APIKeys   []*APIKeyResponse `json:"api_keys"`
}

// APIKeyResponse never carries the token; it is shown once at creation.
type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Revoked   bool   `json:"revoked"`
	CreatedAt string `json:"created_at"`
}

// Me returns the caller and the keys issued to them.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := h.svc.ListAPIKeys(r.Context(), user.ID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		Status:    string(user.Status),
		CreatedAt: user.CreatedAt.Format(timeFormat),
		APIKeys:   make([]*APIKeyResponse, len(keys)),
	}
	for i, k := range keys {
		resp.APIKeys[i] = &APIKeyResponse{
			ID:        k.ID,
			Name:      k.Name,
			Revoked:   k.IsRevoked(),
			CreatedAt: k.CreatedAt.Format(timeFormat),
		}
	}

	api.Success(w, http.StatusOK, resp)
}
