//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/mmrag/internal/api/handlers"
	"github.com/cloo-solutions/mmrag/internal/cli/client"
	"github.com/cloo-solutions/mmrag/internal/domain"
	"github.com/cloo-solutions/mmrag/internal/jobs"
	"github.com/cloo-solutions/mmrag/internal/openai"
	"github.com/cloo-solutions/mmrag/internal/repository"
	"github.com/cloo-solutions/mmrag/internal/server"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/cloo-solutions/mmrag/internal/storage"
	"github.com/cloo-solutions/mmrag/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

const embeddingDims = openai.DefaultEmbeddingDimensions

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	LLM          *httptest.Server
	ServerURL    string
	ServerCloser func()
	Auth         *service.AuthService
	Repairs      *jobs.RepairWorker
	BinaryDir    string
	UserID       string
	APIKeyToken  string
	Client       *client.APIClient
}

// SetupE2EEnv starts Postgres and RustFS, a fake model endpoint, and the
// API server wired the same way `mmragd serve` wires it.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-units",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	llm := httptest.NewServer(fakeModelHandler())

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		RustFSC:   s3C,
		Pool:      pool,
		LLM:       llm,
	}
	env.ServerURL, env.ServerCloser = env.startServer(storage.NewS3DocumentStore(s3Client, storage.DefaultUnitPrefix), port)

	return env
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.LLM != nil {
		e.LLM.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Bootstrap creates a user and API key and points Client at the server.
func (e *E2ETestEnv) Bootstrap() {
	e.UserID, e.APIKeyToken = e.NewUser(fmt.Sprintf("e2e-%d@example.com", time.Now().UnixNano()))

	c, err := client.NewAPIClientWithConfig(e.APIKeyToken, e.ServerURL)
	if err != nil {
		e.T.Fatalf("failed to create API client: %v", err)
	}
	e.Client = c
}

// NewUser creates an active user and returns its id and a fresh token.
func (e *E2ETestEnv) NewUser(email string) (string, string) {
	user, err := e.Auth.CreateUser(e.Ctx, email, domain.UserRoleUser, domain.UserStatusActive)
	if err != nil {
		e.T.Fatalf("failed to create user: %v", err)
	}
	token, err := e.Auth.CreateAPIKey(e.Ctx, user.ID, "e2e")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}
	return user.ID, token
}

// BuildBinaries builds the mmrag and mmragd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "mmrag-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"mmrag", "mmragd"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

// RunCLI runs the mmrag CLI with the bootstrap credentials in the environment.
func (e *E2ETestEnv) RunCLI(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "mmrag"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("MMRAG_API_KEY=%s", e.APIKeyToken),
		fmt.Sprintf("MMRAG_API_URL=%s", e.ServerURL),
		fmt.Sprintf("HOME=%s", workDir),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func (e *E2ETestEnv) startServer(contents service.DocumentStore, port int) (string, func()) {
	pool := e.Pool

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              "test",
		BaseURL:             e.LLM.URL + "/v1",
		EmbeddingDimensions: embeddingDims,
		RateLimit:           openai.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000},
	})
	tokens, err := openai.GetTokenCounter()
	if err != nil {
		e.T.Fatalf("failed to load tokenizer: %v", err)
	}

	uuidGen := &service.DefaultUUIDGenerator{}
	vectors := repository.NewSummaryVectorRepository(pool)
	repairs := repository.NewRepairJobRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	summaries := service.NewSummaryIndex(llm, vectors)
	summarizer := service.NewSummarizer(llm, tokens, service.SummarizerConfig{Concurrency: 4, MaxTokens: 256})
	indexer := service.NewIndexer(summarizer, summaries, contents, repairs, uuidGen)
	orchestrator := service.NewOrchestrator(
		service.NewQueryClassifier(service.DefaultVocabulary()),
		service.NewRetriever(summaries, contents),
		service.NewContextAssembler(service.AssemblerConfig{CharBudget: 20000, HistoryTurns: 4, MaxImages: 4}),
		llm,
		service.OrchestratorConfig{TextK: 5, ImageK: 3, RetrieveAllLimit: 100},
	)

	e.Auth = service.NewAuthService(repository.NewUserRepository(pool), repository.NewAPIKeyRepository(pool), uuidGen)
	chat := service.NewChatService(sessionRepo, repository.NewMessageRepository(pool), txRunner, orchestrator, uuidGen)
	docs := service.NewDocumentService(indexer, documentRepo, sessionRepo, txRunner, vectors, contents, uuidGen)
	e.Repairs = jobs.NewRepairWorker(repairs, vectors, contents, 50)

	router := server.NewRouter(server.RouterConfig{
		AuthValidator:   e.Auth,
		AuthHandler:     handlers.NewAuthHandler(e.Auth),
		DocumentHandler: handlers.NewDocumentHandler(docs),
		SessionHandler:  handlers.NewSessionHandler(chat),
		HealthCheck:     pool.Ping,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// fakeModelHandler stands in for the chat and embeddings endpoints. Chat
// replies echo the prompt text so answers are checkable; embeddings hash
// words into a fixed-width unit vector so shared words score higher.
func fakeModelHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req goopenai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var text strings.Builder
		images := 0
		for _, m := range req.Messages {
			text.WriteString(m.Content)
			for _, part := range m.MultiContent {
				switch part.Type {
				case goopenai.ChatMessagePartTypeText:
					text.WriteString(part.Text)
					text.WriteString("\n")
				case goopenai.ChatMessagePartTypeImageURL:
					images++
				}
			}
		}

		reply := fmt.Sprintf("[images:%d] %s", images, lastLine(text.String()))
		writeJSON(w, goopenai.ChatCompletionResponse{
			ID:     "chatcmpl-e2e",
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []goopenai.ChatCompletionChoice{{
				Message:      goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant, Content: reply},
				FinishReason: goopenai.FinishReasonStop,
			}},
		})
	})

	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp := goopenai.EmbeddingResponse{Object: "list", Model: goopenai.EmbeddingModel(req.Model)}
		for i, in := range req.Input {
			resp.Data = append(resp.Data, goopenai.Embedding{
				Object:    "embedding",
				Embedding: hashEmbedding(in),
				Index:     i,
			})
		}
		writeJSON(w, resp)
	})

	return mux
}

func hashEmbedding(text string) []float32 {
	vec := make([]float32, embeddingDims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,:;!?\"'()")))
		vec[h.Sum32()%embeddingDims]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
