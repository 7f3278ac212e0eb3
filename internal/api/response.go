package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/cloo-solutions/mmrag/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorBody carries a machine-readable code next to the message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response with a code derived from the status
func Error(w http.ResponseWriter, status int, message string) {
	ErrorWithCode(w, status, codeForStatus(status), message)
}

// ErrorWithCode writes an error JSON response with an explicit code
func ErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeInvalidOperation: http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeAlreadyExists:    http.StatusConflict,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeForbidden:        http.StatusForbidden,
	domain.ErrCodeUpstreamFailure:  http.StatusBadGateway,
	domain.ErrCodeInternalError:    http.StatusInternalServerError,
}

// DomainErrorToHTTP maps domain error codes to HTTP status codes. Anything
// that is not a DomainError is a 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[domainErr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes an appropriate error response based on the error type.
// Causes wrapped inside a domain error are logged but never sent to clients.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		log.Printf("internal error: %v", err)
		ErrorWithCode(w, status, domain.ErrCodeInternalError, "internal server error")
		return
	}
	if domainErr.Err != nil {
		log.Printf("%s: %v", domainErr.Code, domainErr.Err)
	}
	ErrorWithCode(w, status, domainErr.Code, domainErr.Message)
}

// codeForStatus inverts statusByCode for errors raised without a domain
// error; 400 always reads as a validation failure.
func codeForStatus(status int) string {
	if status == http.StatusRequestEntityTooLarge {
		return domain.ErrCodeValidation
	}
	for code, s := range statusByCode {
		if s == status && code != domain.ErrCodeInvalidOperation {
			return code
		}
	}
	return domain.ErrCodeInternalError
}
