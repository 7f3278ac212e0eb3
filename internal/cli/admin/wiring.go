package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/mmrag/internal/config"
	"github.com/cloo-solutions/mmrag/internal/openai"
	"github.com/cloo-solutions/mmrag/internal/repository"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/cloo-solutions/mmrag/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	goopenai "github.com/sashabaranov/go-openai"
)

// app holds every service the HTTP surface and background workers need.
type app struct {
	auth      *service.AuthService
	chat      *service.ChatService
	documents *service.DocumentService

	repairs  *repository.RepairJobRepository
	vectors  service.VectorStore
	contents service.DocumentStore

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func newOpenAIClient(cfg *config.Config) *openai.Client {
	return openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		ChatModel:           cfg.ChatModel,
		EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		RateLimit: openai.RateLimitConfig{
			RequestsPerSecond: cfg.GenerationRPS,
			BurstSize:         cfg.GenerationBurst,
		},
	})
}

func newVectorBackend(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (service.VectorStore, func() error, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		store, err := storage.NewQdrantVectorStore(ctx, storage.QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
			Dimensions: cfg.EmbeddingDimensions,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Printf("vector tier: qdrant collection %q at %s:%d", cfg.QdrantCollection, cfg.QdrantHost, cfg.QdrantPort)
		return store, store.Close, nil
	default:
		log.Println("vector tier: pgvector")
		return repository.NewSummaryVectorRepository(pool), func() error { return nil }, nil
	}
}

func newDocumentBackend(ctx context.Context, cfg *config.Config) (service.DocumentStore, error) {
	if !cfg.HasS3() {
		log.Println("document tier: in-memory (set MMRAG_S3_ENDPOINT to persist content)")
		return storage.NewMemoryDocumentStore(), nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("document tier: S3 bucket '%s'", cfg.S3Bucket)
	return storage.NewS3DocumentStore(s3Client, storage.DefaultUnitPrefix), nil
}

func loadVocabulary(path string) (service.Vocabulary, error) {
	if path == "" {
		return service.DefaultVocabulary(), nil
	}
	v, err := service.LoadVocabulary(path)
	if err != nil {
		return service.Vocabulary{}, fmt.Errorf("failed to load classifier vocabulary: %w", err)
	}
	log.Printf("classifier vocabulary loaded from %s", path)
	return v, nil
}

func buildApp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*app, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("MMRAG_OPENAI_API_KEY is required to summarize and answer")
	}

	a := &app{}

	vectors, closeVectors, err := newVectorBackend(ctx, cfg, pool)
	if err != nil {
		return nil, err
	}
	a.vectors = vectors
	a.closers = append(a.closers, closeVectors)

	contents, err := newDocumentBackend(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.contents = contents

	vocab, err := loadVocabulary(cfg.ClassifierVocabularyFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	llm := newOpenAIClient(cfg)

	var tokens service.TokenTruncator
	if counter, err := openai.GetTokenCounter(); err != nil {
		log.Printf("token counter unavailable, summaries will not be clamped: %v", err)
	} else {
		tokens = counter
	}

	uuidGen := &service.DefaultUUIDGenerator{}

	userRepo := repository.NewUserRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	a.repairs = repository.NewRepairJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	summaries := service.NewSummaryIndex(llm, vectors)
	summarizer := service.NewSummarizer(llm, tokens, service.SummarizerConfig{
		Concurrency: cfg.SummaryConcurrency,
		MaxTokens:   cfg.SummaryMaxTokens,
	})
	indexer := service.NewIndexer(summarizer, summaries, contents, a.repairs, uuidGen)

	orchestrator := service.NewOrchestrator(
		service.NewQueryClassifier(vocab),
		service.NewRetriever(summaries, contents),
		service.NewContextAssembler(service.AssemblerConfig{
			CharBudget:   cfg.ContextCharBudget,
			HistoryTurns: cfg.HistoryTurns,
			MaxImages:    cfg.MaxImages,
		}),
		llm,
		service.OrchestratorConfig{
			TextK:            cfg.TopK,
			ImageK:           cfg.ImageTopK,
			RetrieveAllLimit: cfg.EnumerationLimit,
		},
	)

	a.auth = service.NewAuthService(userRepo, apiKeyRepo, uuidGen)
	a.chat = service.NewChatService(sessionRepo, messageRepo, txRunner, orchestrator, uuidGen)
	a.documents = service.NewDocumentService(indexer, documentRepo, sessionRepo, txRunner, vectors, contents, uuidGen)

	return a, nil
}
