package integration

import (
	"context"
	"database/sql"
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
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	pgstore "trivia-quiz-service/internal/infra/postgres"
	pgmigrations "trivia-quiz-service/internal/infra/postgres/migrations"
	infraredis "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/progression"
)

func TestAttemptSurvivesRestartAndFinalizes(t *testing.T) {
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

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	engine := progression.NewEngine(pgstore.NewProgressRepository(pool), nil)
	if _, err := engine.Register(ctx, "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	identity := domain.Identity{ID: "alice", Name: "Alice"}
	bank := memory.NewQuestionBank(memory.SampleQuestions())
	snapshots := infraredis.NewSnapshotStore(redisClient, 10*time.Minute)

	first := app.NewQuizService(infraredis.NewSessionStore(redisClient, time.Minute), bank, snapshots, engine, nil)
	session := first.Session(identity)
	state, err := session.Start(ctx, domain.Preferences{Amount: 3})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	correct := correctAnswers()
	if _, err := session.SubmitAnswer(ctx, correct[state.Questions[0].Prompt]); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// a second process sharing only Redis and Postgres
	second := app.NewQuizService(infraredis.NewSessionStore(redisClient, time.Minute), bank, snapshots, engine, nil)
	resumed, ok, err := second.Connect(ctx, identity)
	if err != nil || !ok {
		t.Fatalf("resume: ok=%v err=%v", ok, err)
	}
	restored := resumed.State()
	if restored.AttemptID != state.AttemptID || restored.CurrentIndex != 1 || restored.Score != 1 {
		t.Fatalf("unexpected restored state %+v", restored)
	}

	for i := 1; i < len(restored.Questions); i++ {
		if _, err := resumed.SubmitAnswer(ctx, correct[restored.Questions[i].Prompt]); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	summary, ok := resumed.Results()
	if !ok || summary.Progression == nil || summary.Progression.XPGained != 50 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	p, err := engine.Progress(ctx, "alice")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.XP != 50 || p.TotalQuizzes != 1 || len(p.History) != 1 || p.History[0].AttemptID != state.AttemptID {
		t.Fatalf("unexpected progress %+v", p)
	}
	if _, ok, _ := snapshots.Load(ctx, "alice"); ok {
		t.Fatalf("expected snapshot cleared after completion")
	}

	var xp int
	if err := pool.QueryRow(ctx, `SELECT xp FROM user_progress WHERE user_id=$1`, "alice").Scan(&xp); err != nil {
		t.Fatalf("query xp column: %v", err)
	}
	if xp != 50 {
		t.Fatalf("expected xp column 50, got %d", xp)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
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

func correctAnswers() map[string]string {
	out := make(map[string]string)
	for _, q := range memory.SampleQuestions() {
		out[q.Prompt] = q.CorrectAnswer
	}
	return out
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
