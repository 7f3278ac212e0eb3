package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Answers can take a while when the context carries several images.
const defaultTimeout = 2 * time.Minute

type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPIClientWithCmd resolves credentials from flags, env (including a .env
// file in the working directory), the global config and finally the default
// URL. A nil cmd skips the flags.
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var flagKey, flagURL string
	if cmd != nil {
		flagKey, _ = cmd.Flags().GetString("api-key")
		flagURL, _ = cmd.Flags().GetString("api-url")
	}

	source, apiKey, baseURL := GetCredentialSource(flagKey, flagURL)
	if source == SourceNone {
		return nil, fmt.Errorf("%s not set (run 'mmrag auth login' or set environment variable)", envAPIKey)
	}

	return NewAPIClientWithConfig(apiKey, baseURL)
}

func NewAPIClientWithConfig(apiKey, baseURL string) (*APIClient, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	return &APIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}, nil
}

// APIResponse represents the standard API response format.
type APIResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

type Document struct {
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

type Unit struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type UploadRequest struct {
	Filename  string `json:"filename"`
	SessionID string `json:"session_id,omitempty"`
	Units     []Unit `json:"units"`
}

type UploadResult struct {
	Document *Document          `json:"document"`
	Report   domain.IndexReport `json:"report"`
}

type Session struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type Message struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Images    []string `json:"images"`
	CreatedAt string   `json:"created_at"`
}

type SessionDetail struct {
	Session
	Messages []Message `json:"messages"`
}

type Page[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

type QueryRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type QueryMeta struct {
	Question    string `json:"question"`
	SessionID   string `json:"session_id"`
	ImagesCount int    `json:"images_count"`
}

type QueryResult struct {
	Answer string    `json:"answer"`
	Images []string  `json:"images"`
	Meta   QueryMeta `json:"meta"`
}

type APIKeyInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Revoked   bool   `json:"revoked"`
	CreatedAt string `json:"created_at"`
}

type Me struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Role      string       `json:"role"`
	Status    string       `json:"status"`
	CreatedAt string       `json:"created_at"`
	APIKeys   []APIKeyInfo `json:"api_keys"`
}

func (c *APIClient) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.call(ctx, http.MethodGet, "/v1/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *APIClient) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	var result QueryResult
	if err := c.call(ctx, http.MethodPost, "/v1/query", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) CreateSession(ctx context.Context, title string) (*Session, error) {
	var s Session
	body := map[string]string{"title": title}
	if err := c.call(ctx, http.MethodPost, "/v1/sessions", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *APIClient) ListSessions(ctx context.Context, cursor string, limit int) (*Page[Session], error) {
	var page Page[Session]
	if err := c.call(ctx, http.MethodGet, "/v1/sessions"+pageQuery(cursor, limit, nil), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) GetSession(ctx context.Context, id string) (*SessionDetail, error) {
	var s SessionDetail
	if err := c.call(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *APIClient) DeleteSession(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/v1/sessions/"+url.PathEscape(id), nil, nil)
}

// UploadDocument posts the units and reports bytes sent through onProgress.
func (c *APIClient) UploadDocument(ctx context.Context, req UploadRequest, onProgress ProgressFunc) (*UploadResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	body := &progressReader{
		reader:     bytes.NewReader(payload),
		total:      int64(len(payload)),
		onProgress: onProgress,
	}

	var result UploadResult
	if err := c.send(ctx, http.MethodPost, "/v1/documents", body, int64(len(payload)), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) ListDocuments(ctx context.Context, sessionID, cursor string, limit int) (*Page[Document], error) {
	extra := url.Values{}
	if sessionID != "" {
		extra.Set("session_id", sessionID)
	}
	var page Page[Document]
	if err := c.call(ctx, http.MethodGet, "/v1/documents"+pageQuery(cursor, limit, extra), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) GetDocument(ctx context.Context, id string) (*Document, error) {
	var d Document
	if err := c.call(ctx, http.MethodGet, "/v1/documents/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *APIClient) DeleteDocument(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/v1/documents/"+url.PathEscape(id), nil, nil)
}

func pageQuery(cursor string, limit int, extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *APIClient) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	var size int64
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
		size = int64(len(jsonData))
	}
	return c.send(ctx, method, path, reader, size, out)
}

func (c *APIClient) send(ctx context.Context, method, path string, body io.Reader, size int64, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.ContentLength = size
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return &APIError{
				StatusCode: resp.StatusCode,
				Message:    string(respBody),
			}
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if apiResp.Error != nil {
			apiErr.Code = apiResp.Error.Code
			apiErr.Message = apiResp.Error.Message
		}
		return apiErr
	}

	if out == nil || len(apiResp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(apiResp.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// ProgressFunc is a callback for reporting upload progress.
type ProgressFunc func(current, total int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.onProgress != nil {
		pr.onProgress(pr.current, pr.total)
	}
	return n, err
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
