package integration

import (
	"context"
	"database/sql"
	"encoding/json"
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

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/domain"
	pginfra "classroom-activity-service/internal/infra/postgres"
	pgmigrations "classroom-activity-service/internal/infra/postgres/migrations"
	redisinfra "classroom-activity-service/internal/infra/redis"
)

func TestActivityLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, pgURL)
	defer db.Close()
	seedContent(t, ctx, db, sampleQuiz(), sampleRoster())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	quizzes := redisinfra.NewQuizRepository(redisClient, pginfra.NewQuizLoader(pool), 5*time.Minute)
	rosterLoader := pginfra.NewRosterLoader(pool)

	hub := app.NewEventHub()
	service := app.NewActivityService(
		pginfra.NewActivityRepository(db),
		pginfra.NewAnswerRepository(db),
		quizzes,
		rosterCache{loader: rosterLoader},
		app.FanoutNotifier{hub, redisinfra.NewNotifier(redisClient)},
	)

	events, cancel := hub.Subscribe()
	defer cancel()

	activity, err := service.CreateActivity(ctx, app.CreateActivityParams{
		OwnerID:  "teacher-1",
		RosterID: "roster-1",
		QuizID:   "quiz-1",
		Duration: 10,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if event := <-events; event.Type != domain.EventActivityUpdated {
		t.Fatalf("expected create event, got %s", event.Type)
	}

	if _, err := service.OpenActivity(ctx, activity.ID, "teacher-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := service.StartActivity(ctx, activity.ID, "teacher-1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Concurrent second start must lose against the row lock.
	if _, err := service.StartActivity(ctx, activity.ID, "teacher-1"); !domain.IsCode(err, domain.CodeInvalidState) {
		t.Fatalf("expected InvalidState on double start, got %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, activity.ID, "student-1", "q1", json.RawMessage(`"first"`)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	answer, err := service.SubmitAnswer(ctx, activity.ID, "student-1", "q1", json.RawMessage(`"second"`))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if string(answer.Value) != `"second"` {
		t.Fatalf("expected upsert to keep the latest value, got %s", answer.Value)
	}

	progress, err := service.GetProgress(ctx, activity.ID, "student-1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.AnsweredCount != 1 || progress.TotalCount != 2 {
		t.Fatalf("expected one stored answer of two questions, got %+v", progress)
	}

	// Let the 10s duration elapse so the activity finishes on its own.
	time.Sleep(11 * time.Second)

	results, err := service.GetResults(ctx, activity.ID, "teacher-1")
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	row := results.Matrix["student-1"]
	if len(row) != 2 || string(row[0].Answer) != `"second"` {
		t.Fatalf("expected matrix to carry the upserted answer, got %+v", row)
	}
}

// rosterCache satisfies app.RosterRepository directly from the loader;
// the in-memory TTL cache is exercised elsewhere.
type rosterCache struct {
	loader *pginfra.RosterLoader
}

func (c rosterCache) GetRoster(ctx context.Context, rosterID string) (domain.Roster, error) {
	return c.loader.LoadRoster(ctx, rosterID)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "activity", "POSTGRES_PASSWORD": "activitypass", "POSTGRES_DB": "activitydb"},
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
	dsn := fmt.Sprintf("postgres://activity:activitypass@%s:%s/activitydb?sslmode=disable", host, port.Port())
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

func openBun(t *testing.T, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func seedContent(t *testing.T, ctx context.Context, db *bun.DB, quiz domain.Quiz, roster domain.Roster) {
	t.Helper()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	quizData, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(quizData)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}

	rosterData, err := json.Marshal(roster)
	if err != nil {
		t.Fatalf("marshal roster: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO rosters (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, roster.ID, string(rosterData)); err != nil {
		t.Fatalf("insert roster: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID: "quiz-1",
		Questions: []domain.Question{
			{ID: "q1", Name: "Binary", Content: "What is 7 in binary?", Type: domain.QuestionFreeForm},
			{ID: "q2", Name: "Hex", Content: "What is 0x8 in binary?", Type: domain.QuestionFreeForm},
		},
	}
}

func sampleRoster() domain.Roster {
	return domain.Roster{
		ID:        "roster-1",
		TeacherID: "teacher-1",
		Students: []domain.Student{
			{ID: "student-1", DisplayName: "Alice"},
			{ID: "student-2", DisplayName: "Bob"},
		},
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
