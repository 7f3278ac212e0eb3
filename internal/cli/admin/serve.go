package admin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/mmrag/internal/api/handlers"
	"github.com/cloo-solutions/mmrag/internal/config"
	"github.com/cloo-solutions/mmrag/internal/database"
	"github.com/cloo-solutions/mmrag/internal/jobs"
	"github.com/cloo-solutions/mmrag/internal/server"
	"github.com/cloo-solutions/mmrag/internal/service"
	"github.com/cloo-solutions/mmrag/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	repairBatchSize = 50
	shutdownTimeout = 30 * time.Second
)

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the mmrag API server and the repair worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides MMRAG_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", "file://migrations", "Migration source URL")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	defer initTelemetry(cfg)()

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Println("connected to database")

	if skip, _ := cmd.Flags().GetBool("no-migrate"); !skip {
		source, _ := cmd.Flags().GetString("migrations")
		if err := migrateUp(cfg.DatabaseURL, source); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a, err := buildApp(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.InitUserEmail != "" {
		if err := bootstrapAdmin(ctx, a.auth, cfg.InitUserEmail, cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.RouterConfig{
			AuthValidator:   a.auth,
			AuthHandler:     handlers.NewAuthHandler(a.auth),
			DocumentHandler: handlers.NewDocumentHandler(a.documents),
			SessionHandler:  handlers.NewSessionHandler(a.chat),
			HealthCheck:     pool.Ping,
			MaxRequestBytes: cfg.MaxRequestBytes,
			MaxUploadBytes:  cfg.MaxUploadBytes,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	repairs := jobs.NewWorker("repair", jobs.NewRepairWorker(a.repairs, a.vectors, a.contents, repairBatchSize), cfg.RepairPollInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		repairs.Start(gctx)
		return nil
	})
	g.Go(func() error {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down...")
		repairs.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Println("server exited")
	return nil
}

// initTelemetry starts Sentry when a DSN is configured and returns its flush
// function. Development traces every request; other environments sample 10%.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	rate := 0.1
	if cfg.Environment == "development" {
		rate = 1.0
	}
	flush, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: rate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return flush
}

func bootstrapAdmin(ctx context.Context, auth *service.AuthService, email, token string) error {
	if token != "" && !service.IsValidAPIToken(token) {
		return fmt.Errorf("invalid MMRAG_INIT_API_KEY format (expected 'mmrag_<64 hex chars>')")
	}

	user, created, err := auth.EnsureBootstrapAdmin(ctx, email, token)
	if err != nil {
		return err
	}
	verb := "already exists"
	if created {
		verb = "created"
	}
	log.Printf("bootstrap: admin user '%s' %s (id: %s)", user.Email, verb, user.ID)
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: 2})
}
