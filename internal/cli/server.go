package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/opentdb"
	pgstore "trivia-quiz-service/internal/infra/postgres"
	redisstore "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/logger"
	"trivia-quiz-service/internal/progression"
	transport "trivia-quiz-service/internal/transport/http"
)

// snapshotSlack keeps a snapshot past the time budget so a late resume can still see and
// discard it.
const snapshotSlack = 5 * time.Minute

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, domain.TimeBudget+snapshotSlack)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	progressRepo := progressRepository(cfg, redisClient, pool)
	engine := progression.NewEngine(progressRepo, log.Named("progression"))

	var source app.QuestionSource
	var catalog transport.Catalog
	if cfg.OpenTDB.Offline {
		bank := memory.NewQuestionBank(memory.SampleQuestions())
		source, catalog = bank, bank
	} else {
		client := newOpenTDBClient(cfg, log)
		source, catalog = client, client
	}

	var sessions app.SessionRepository
	var snapshots app.SnapshotStore
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, redisTTL)
		snapshots = redisstore.NewSnapshotStore(redisClient, redisTTL)
	} else {
		sessions = memory.NewSessionStore()
		snapshots = memory.NewSnapshotStore()
	}

	service := app.NewQuizService(sessions, source, snapshots, engine, log.Named("session"))
	wsHandler := transport.NewWSHandler(service, engine, log.Named("ws"))
	apiHandler := transport.NewAPIHandler(catalog, engine, service, log.Named("api"))

	mux := http.NewServeMux()
	apiHandler.Register(mux)
	mux.HandleFunc("GET /ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: websocket connections outlive any sensible deadline.
	}

	go func() {
		log.Info("starting quiz service",
			zap.String("port", finalPort),
			zap.Bool("redis", redisClient != nil),
			zap.Bool("postgres", pool != nil),
			zap.Bool("offline", cfg.OpenTDB.Offline))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// progressRepository prefers Postgres (fronted by a TTL cache), then Redis, then memory.
func progressRepository(cfg config.Config, redisClient *redis.Client, pool *pgxpool.Pool) progression.Repository {
	switch {
	case pool != nil:
		ttl := config.TTLDuration(cfg.Progress.CacheTTL, time.Minute)
		return memory.NewProgressCache(pgstore.NewProgressRepository(pool), ttl)
	case redisClient != nil:
		return redisstore.NewProgressRepository(redisClient)
	default:
		return memory.NewProgressRepository()
	}
}

func newOpenTDBClient(cfg config.Config, log *zap.Logger) *opentdb.Client {
	timeout := config.TTLDuration(cfg.OpenTDB.Timeout, 10*time.Second)
	return opentdb.NewClient(cfg.OpenTDB.BaseURL, log.Named("opentdb"),
		opentdb.WithHTTPClient(&http.Client{Timeout: timeout}))
}
