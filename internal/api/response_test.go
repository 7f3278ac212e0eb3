package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestJSON(t *testing.T) {
	t.Run("encodes body", func(t *testing.T) {
		w := httptest.NewRecorder()
		JSON(w, http.StatusOK, map[string]string{"answer": "42"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"answer":"42"}`, w.Body.String())
	})

	t.Run("nil body stays empty", func(t *testing.T) {
		w := httptest.NewRecorder()
		JSON(w, http.StatusNoContent, nil)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestSuccess_WrapsInDataEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, http.StatusCreated, map[string]string{"id": "doc-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"data":{"id":"doc-1"}}`, w.Body.String())
}

func TestError_DerivesCodeFromStatus(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusBadRequest, domain.ErrCodeValidation},
		{http.StatusRequestEntityTooLarge, domain.ErrCodeValidation},
		{http.StatusUnauthorized, domain.ErrCodeUnauthorized},
		{http.StatusForbidden, domain.ErrCodeForbidden},
		{http.StatusNotFound, domain.ErrCodeNotFound},
		{http.StatusConflict, domain.ErrCodeAlreadyExists},
		{http.StatusBadGateway, domain.ErrCodeUpstreamFailure},
		{http.StatusTeapot, domain.ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			Error(w, tt.status, "nope")

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, "nope", body.Message)
		})
	}
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", domain.ErrEmptyQuestion, http.StatusBadRequest},
		{"invalid operation", domain.NewDomainError(domain.ErrCodeInvalidOperation, "nope"), http.StatusBadRequest},
		{"not found", domain.ErrSessionNotFound, http.StatusNotFound},
		{"already exists", domain.ErrUserAlreadyExists, http.StatusConflict},
		{"unauthorized", domain.ErrInvalidAPIKey, http.StatusUnauthorized},
		{"inactive user", domain.ErrUserInactive, http.StatusForbidden},
		{"upstream", domain.ErrGenerationFailed, http.StatusBadGateway},
		{"wrapped", fmt.Errorf("loading: %w", domain.ErrDocumentNotFound), http.StatusNotFound},
		{"unknown code", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"plain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleError(t *testing.T) {
	t.Run("domain error keeps code and message", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(w, domain.ErrSessionNotFound)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, ErrorBody{Code: domain.ErrCodeNotFound, Message: "chat session not found"}, decodeError(t, w))
	})

	t.Run("cause is not rendered", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(w, domain.ErrGenerationFailed.Wrap(errors.New("dial tcp 10.0.0.1:443")))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "could not generate an answer", decodeError(t, w).Message)
		assert.NotContains(t, w.Body.String(), "10.0.0.1")
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		HandleError(w, errors.New("pq: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, domain.ErrCodeInternalError, body.Code)
		assert.NotContains(t, body.Message, "connection refused")
	})
}
