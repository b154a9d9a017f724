package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"edulearn-quiz-service/internal/app"
	"edulearn-quiz-service/internal/catalog"
	"edulearn-quiz-service/internal/config"
	"edulearn-quiz-service/internal/infra/llm"
	"edulearn-quiz-service/internal/infra/memory"
	"edulearn-quiz-service/internal/infra/postgres"
	rediscache "edulearn-quiz-service/internal/infra/redis"
	"edulearn-quiz-service/internal/logger"
	transport "edulearn-quiz-service/internal/transport/http"
)

const (
	version              = "1.0.0"
	defaultPort          = "5000"
	defaultRateWindow    = 15 * time.Minute
	defaultRateMax       = 100
	defaultActivityTTL   = 5 * time.Minute
	shutdownGracePeriod  = 10 * time.Second
	serverReadTimeout    = 15 * time.Second
	serverWriteTimeout   = 90 * time.Second
	writeTimeoutHeadroom = 15 * time.Second
	generatorTimeoutBase = 60 * time.Second
)

// userStore is everything the services need from persistence.
type userStore interface {
	app.UserRepository
	app.ProgressStore
	app.ActivityLoader
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz API server",
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

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = defaultPort
	}

	health := transport.HealthInfo{Version: version, Database: "memory", Cache: "memory"}

	var store userStore = memory.NewStore()
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewStore(pool)
		health.Database = "postgres"
	} else {
		log.Warn("postgres not configured, users and results are kept in memory")
	}

	activityTTL := config.TTLDuration(cfg.Activity.TTL, defaultActivityTTL)
	rateWindow := config.TTLDuration(cfg.RateLimit.Window, defaultRateWindow)
	rateMax := cfg.RateLimit.Max
	if rateMax <= 0 {
		rateMax = defaultRateMax
	}

	var (
		activity app.ActivityCache
		limiter  transport.Limiter
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis ping failed, continuing", "addr", cfg.Redis.Addr, "err", err)
		}
		activity = rediscache.NewActivityCache(client, store, activityTTL)
		limiter = rediscache.NewRateLimiter(client, rateMax, rateWindow)
		health.Cache = "redis"
	} else {
		activity = memory.NewActivityCache(store, activityTTL)
		limiter = memory.NewRateLimiter(rateMax, rateWindow)
	}

	maxRetries := llm.DefaultMaxRetries
	if cfg.Generator.MaxRetries != nil {
		maxRetries = *cfg.Generator.MaxRetries
	}
	completer := llm.New(llm.Config{
		BaseURL:    cfg.Generator.BaseURL,
		APIKey:     cfg.Generator.APIKey,
		Model:      cfg.Generator.Model,
		Timeout:    config.TTLDuration(cfg.Generator.Timeout, generatorTimeoutBase),
		MaxRetries: maxRetries,
	}, log)
	health.Generator = cfg.Generator.APIKey != ""
	if !health.Generator {
		log.Warn("generation service api key not configured, quiz generation and tutor chat will fail")
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if logger.IsProduction(cfg.Log.Mode) {
			return errors.New("jwt secret not configured")
		}
		secret = uuid.NewString()
		log.Warn("jwt secret not configured, using an ephemeral secret; tokens will not survive a restart")
	}
	auth, err := app.NewAuthService(store, app.AuthConfig{
		Secret:     secret,
		TokenTTL:   config.TTLDuration(cfg.Auth.TokenTTL, app.DefaultTokenTTL),
		BcryptCost: cfg.Auth.BcryptCost,
	}, log)
	if err != nil {
		return err
	}
	health.Auth = true

	topics := catalog.Default()
	var genOpts []app.GeneratorOption
	if cfg.Generator.MaxTokens > 0 {
		genOpts = append(genOpts, app.WithMaxTokens(cfg.Generator.MaxTokens))
	}
	quizzes := app.NewQuizService(
		topics,
		app.NewGenerator(topics, completer, log, genOpts...),
		store,
		store,
		activity,
		app.NewProgressFeed(),
		log,
	)
	tutor := app.NewTutorService(completer, log)

	proxies, err := transport.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	handler := transport.NewRouter(transport.RouterDeps{
		Handlers:       transport.NewHandlers(quizzes, auth, tutor, health, log),
		Progress:       transport.NewProgressWSHandler(quizzes, log),
		Auth:           auth,
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: proxies,
		Log:            log,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: writeTimeoutFor(completer.MaxDuration()),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting quiz service", "port", finalPort, "database", health.Database, "cache", health.Cache)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err, ok := <-serveErr:
		if ok {
			log.Error("server failed", "err", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// writeTimeoutFor keeps the response writable for as long as a generation
// call may take, so slow retries and 502s still reach the client.
func writeTimeoutFor(generation time.Duration) time.Duration {
	if d := generation + writeTimeoutHeadroom; d > serverWriteTimeout {
		return d
	}
	return serverWriteTimeout
}
