package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-host-service/internal/app"
	"quiz-host-service/internal/config"
	"quiz-host-service/internal/infra/logger"
	"quiz-host-service/internal/infra/memory"
	"quiz-host-service/internal/infra/postgres"
	redisinfra "quiz-host-service/internal/infra/redis"
	transport "quiz-host-service/internal/transport/http"
)

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

// quizSource is what both the quiz caches and the seeding step need.
type quizSource interface {
	redisinfra.QuizSource
	memory.QuizSource
}

// backends holds the wired storage; closers run in reverse on shutdown.
type backends struct {
	quizzes  app.QuizRepository
	sessions app.SessionStore
	notifier app.Notifier
	source   quizSource
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if cfg.SeedSampleQuizzes() {
		if err := seedQuizzes(ctx, b.source, sampleQuizzes(time.Now())); err != nil {
			return fmt.Errorf("seed quizzes: %w", err)
		}
	}

	service := app.NewGameService(b.sessions, b.quizzes,
		app.WithNotifier(b.notifier),
		app.WithSessionCodeLength(cfg.Session.CodeLength),
		app.WithRequirePlayers(cfg.RequirePlayersToStart()),
		app.WithMaxUpdateRetries(cfg.Session.MaxUpdateRetries),
	)

	for sessionID, quizID := range cfg.Game.FixedSessions {
		session, err := service.EnsureSession(ctx, sessionID, quizID)
		if err != nil {
			return fmt.Errorf("ensure session %s: %w", sessionID, err)
		}
		slog.Info("fixed session ready", "session", session.ID, "quiz", session.QuizID, "status", session.Status)
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections are long lived
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting quiz service", "addr", server.Addr, "sessions", cfg.SessionBackend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("context canceled, shutting down server")
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	backend := cfg.SessionBackend()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		if err := redisClient.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg.Postgres.URL); err != nil {
			b.close()
			return nil, err
		}
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
	}

	b.source = memory.NewQuizCatalog()
	if pool != nil {
		b.source = postgres.NewQuizStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		b.quizzes = redisinfra.NewQuizRepository(redisClient, b.source, quizTTL)
		b.notifier = redisinfra.NewBroadcaster(redisClient)
	} else {
		b.quizzes = memory.NewQuizRepository(b.source, quizTTL)
		b.notifier = app.NewBroadcaster()
	}

	switch backend {
	case config.BackendMemory:
		b.sessions = memory.NewSessionStore()
	case config.BackendRedis:
		if redisClient == nil {
			b.close()
			return nil, fmt.Errorf("session backend redis requires redis.addr")
		}
		sessionTTL := config.TTLDuration(cfg.Session.TTL, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		b.sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	case config.BackendPostgres:
		if pool == nil {
			b.close()
			return nil, fmt.Errorf("session backend postgres requires postgres.url")
		}
		b.sessions = postgres.NewSessionStore(pool)
	default:
		b.close()
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
	return b, nil
}
