package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/config"
	"classroom-activity-service/internal/domain"
	"classroom-activity-service/internal/infra/memory"
	pginfra "classroom-activity-service/internal/infra/postgres"
	redisinfra "classroom-activity-service/internal/infra/redis"
	transport "classroom-activity-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the activity server",
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

	if cfg.Postgres.URL != "" {
		if err := withMigrator(ctx, cfg, applyMigrations); err != nil {
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

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)

	var (
		activities app.ActivityRepository
		answers    app.AnswerRepository
		quizLoader memory.QuizLoader   = memory.NewStaticQuizLoader(sampleQuizzes())
		rosters    app.RosterRepository
		rosterLd   memory.RosterLoader = memory.NewStaticRosterLoader(sampleRosters())
	)

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		activities = pginfra.NewActivityRepository(db)
		answers = pginfra.NewAnswerRepository(db)
		quizLoader = pginfra.NewQuizLoader(pool)
		rosterLd = pginfra.NewRosterLoader(pool)
	} else {
		activities = memory.NewActivityStore()
		answers = memory.NewAnswerStore()
	}

	var quizzes app.QuizRepository
	if redisClient != nil {
		quizzes = redisinfra.NewQuizRepository(redisClient, quizLoader, contentTTL)
	} else {
		quizzes = memory.NewQuizRepository(quizLoader, contentTTL)
	}
	rosters = memory.NewRosterRepository(rosterLd, contentTTL)

	hub := app.NewEventHub()
	notifier := app.FanoutNotifier{hub}
	if redisClient != nil {
		notifier = append(notifier, redisinfra.NewNotifier(redisClient))
	}

	service := app.NewActivityService(activities, answers, quizzes, rosters, notifier)
	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/activities", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting activity service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes and sampleRosters seed demo content when no Postgres is
// configured; production points the loaders at the authoring database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID: "quiz-1",
			Questions: []domain.Question{
				{
					ID:      "q1",
					Name:    "Binary conversion",
					Content: "What is 7 in binary?",
					Type:    domain.QuestionFreeForm,
					Answer:  json.RawMessage(`{"pattern":"\\b(0b?)0*111\\b"}`),
				},
				{
					ID:      "q2",
					Name:    "Binary conversion",
					Content: "What is 0x8 in binary?",
					Type:    domain.QuestionFreeForm,
					Answer:  json.RawMessage(`{"pattern":"\\b(0b?)0*1000\\b"}`),
				},
			},
		},
	}
}

func sampleRosters() map[string]domain.Roster {
	return map[string]domain.Roster{
		"roster-1": {
			ID:        "roster-1",
			TeacherID: "teacher-1",
			Students: []domain.Student{
				{ID: "student-1", DisplayName: "Alice"},
				{ID: "student-2", DisplayName: "Bob"},
			},
		},
	}
}
