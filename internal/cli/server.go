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

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/auth"
	"quiz-eval-service/internal/config"
	"quiz-eval-service/internal/domain"
	"quiz-eval-service/internal/infra/memory"
	pgstore "quiz-eval-service/internal/infra/postgres"
	redistokens "quiz-eval-service/internal/infra/redis"
	"quiz-eval-service/internal/logging"
	transport "quiz-eval-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz evaluation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Color)
}

type storage interface {
	app.QuizReader
	app.QuizStore
	app.AttemptStore
	app.AccountStore
	app.ReportStore
}

// pgStorage serves quiz content reads from pgx and everything else from bun.
type pgStorage struct {
	*pgstore.QuizLoader
	*pgstore.Store
}

type backend struct {
	store   storage
	tokens  app.TokenStore
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend picks Postgres/Redis when configured and in-memory otherwise.
func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	b := &backend{}
	tokenTTL := config.TTLDuration(cfg.Redis.TokenTTL, 2*time.Hour)

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		db := pgstore.OpenDB(cfg.Postgres.URL)
		b.closers = append(b.closers, pool.Close, func() { _ = db.Close() })
		b.store = pgStorage{QuizLoader: pgstore.NewQuizLoader(pool), Store: pgstore.NewStore(db)}
		log.Info("using postgres storage")
	} else {
		var seed []domain.Quiz
		if cfg.Quiz.SeedSample {
			seed = append(seed, sampleQuiz())
		}
		b.store = memory.NewStore(seed...)
		log.Warn("postgres url not configured, using in-memory storage")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			_ = client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.tokens = redistokens.NewTokenStore(client, tokenTTL)
		log.Info("using redis submit tokens", "addr", cfg.Redis.Addr)
	} else {
		b.tokens = memory.NewTokenStore(tokenTTL)
	}
	return b, nil
}

func newIssuer(cfg config.Config) (*auth.Issuer, error) {
	return auth.NewIssuer(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.SessionTTL, 12*time.Hour))
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

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

	threshold, err := app.ParseThreshold(cfg.Quiz.PassingThreshold)
	if err != nil {
		return err
	}
	issuer, err := newIssuer(cfg)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	feed := app.NewResultsFeed()
	quizzes := app.NewQuizService(b.store, b.store, b.store, b.tokens,
		app.WithScorer(app.Scorer{Threshold: threshold, CountUnanswered: cfg.Quiz.CountUnanswered}),
		app.WithFeed(feed),
		app.WithLogger(log),
	)
	accounts := app.NewAccountService(b.store, issuer, cfg.Auth.BcryptCost, log)
	reports := app.NewReportService(b.store)

	if cfg.Bootstrap.AdminUsername != "" {
		if err := accounts.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.Deps{
			Quizzes:  quizzes,
			Accounts: accounts,
			Reports:  reports,
			Feed:     feed,
			Tokens:   issuer,
			Logger:   log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz evaluation service", "port", finalPort, "threshold", threshold.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
