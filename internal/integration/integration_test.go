package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-host-service/internal/app"
	"quiz-host-service/internal/domain"
	"quiz-host-service/internal/infra/postgres"
	pgmigrations "quiz-host-service/internal/infra/postgres/migrations"
	infraredis "quiz-host-service/internal/infra/redis"
)

func TestGameEndToEndOnPostgresAndRedis(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	quizStore := postgres.NewQuizStore(pool)
	if err := quizStore.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	quizRepo := infraredis.NewQuizRepository(redisClient, quizStore, 5*time.Minute)
	sessionStore := postgres.NewSessionStore(pool)
	service := app.NewGameService(sessionStore, quizRepo, app.WithNotifier(infraredis.NewBroadcaster(redisClient)))

	session, err := service.CreateSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	updates, cancel, err := service.Subscribe(ctx, session.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	<-updates // initial snapshot

	alpha, err := service.JoinSession(ctx, session.ID, "Alpha")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	beta, err := service.JoinSession(ctx, session.ID, "Beta")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.StartSession(ctx, session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	answer, err := service.SubmitAnswer(ctx, session.ID, alpha.ID, 1, 5)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !answer.Correct || answer.Points != 750 {
		t.Fatalf("expected correct answer with 750 points, got %+v", answer)
	}
	if _, err := service.SubmitAnswer(ctx, session.ID, beta.ID, 0, 3); err != nil {
		t.Fatalf("submit: %v", err)
	}

	next, err := service.AdvanceQuestion(ctx, session.ID)
	if err != nil || next != app.NoMoreQuestions {
		t.Fatalf("expected game to finish, got %d (%v)", next, err)
	}

	lb, err := service.FinalResults(ctx, session.ID)
	if err != nil {
		t.Fatalf("final results: %v", err)
	}
	if len(lb.Entries) != 2 || lb.Entries[0].PlayerID != alpha.ID {
		t.Fatalf("expected alpha leading, got %+v", lb.Entries)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.Status == domain.StatusFinished {
				return
			}
		case <-deadline:
			t.Fatalf("never received finished state over redis pub/sub")
		}
	}
}

func TestPostgresSessionStoreCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	store := postgres.NewSessionStore(pool)

	created, err := store.CreateSession(ctx, domain.GameSession{ID: "ABC123", QuizID: "quiz-1", Status: domain.StatusWaiting, CurrentQuestionIndex: -1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateSession(ctx, created); !errors.Is(err, domain.ErrSessionExists) {
		t.Fatalf("expected duplicate create to fail, got %v", err)
	}

	created.Status = domain.StatusActive
	swapped, err := store.CompareAndSwap(ctx, created, 1)
	if err != nil || swapped.Version != 2 {
		t.Fatalf("expected cas to version 2, got %d (%v)", swapped.Version, err)
	}
	if _, err := store.CompareAndSwap(ctx, created, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected stale cas to conflict, got %v", err)
	}
	if _, err := store.CompareAndSwap(ctx, domain.GameSession{ID: "NOPE99"}, 1); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected missing session, got %v", err)
	}

	if _, err := pool.Exec(ctx, `INSERT INTO game_sessions (id, quiz_id, status, version, data) VALUES ('BAD001', 'quiz-1', 'waiting', 1, '[]'::jsonb)`); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	if _, err := store.GetSession(ctx, "BAD001"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected corrupt row to read as missing, got %v", err)
	}
	list, err := store.ListSessions(ctx)
	if err != nil || len(list) != 1 || list[0].Status != domain.StatusActive {
		t.Fatalf("expected only the valid session listed, got %+v (%v)", list, err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		Title:     "Warmup",
		CreatedAt: time.Now().UTC(),
		Questions: []domain.Question{{
			Question:           "What is 2 + 2?",
			Options:            []string{"3", "4", "5", "22"},
			CorrectOptionIndex: 1,
			TimeLimit:          20,
			Points:             1000,
		}},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
