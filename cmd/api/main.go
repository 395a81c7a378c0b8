package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"example.com/wellness/internal/api"
	"example.com/wellness/internal/assistant"
	"example.com/wellness/internal/auth"
	"example.com/wellness/internal/catalog"
	"example.com/wellness/internal/config"
	"example.com/wellness/internal/cooldown"
	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/logging"
	"example.com/wellness/internal/outbox"
	"example.com/wellness/internal/persistence/local"
	"example.com/wellness/internal/persistence/memory"
	"example.com/wellness/internal/persistence/postgres"
	"example.com/wellness/internal/persistence/supabase"
	httptransport "example.com/wellness/internal/transport/http"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("wellness api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	kv, err := local.Open(cfg.LocalStorePath)
	if err != nil {
		return err
	}
	defer kv.Close()

	defaults, err := catalog.Defaults()
	if err != nil {
		return err
	}

	var (
		remote domain.RemoteStore
		pool   *pgxpool.Pool
		authn  domain.Authenticator
	)
	switch cfg.RemoteBackend {
	case config.BackendPostgres:
		pool, err = pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		applied, err := postgres.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		if len(applied) > 0 {
			logger.Info("applied migrations", zap.Strings("versions", applied))
		}

		topic := ""
		if cfg.EventsEnabled() {
			topic = cfg.ActivityTopic
		}
		remote = postgres.NewRepository(pool, topic)
	case config.BackendSupabase:
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return err
		}
		remote = supabase.NewRepository(client)
	default:
		logger.Warn("using in-memory remote store; data is lost on restart")
		remote = memory.NewStore()
	}

	if cfg.SignInEnabled() {
		client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)
		if err != nil {
			return err
		}
		authn = supabase.NewAuthenticator(client)
	} else {
		logger.Info("email sign-in disabled; callers must present bearer tokens")
	}

	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; assistant replies need a per-device key")
	}
	gateway := assistant.NewGateway(
		assistant.NewGenAIGenerator(cfg.GeminiModel, cfg.GeminiBaseURL, &http.Client{Timeout: cfg.AITimeout}),
		assistant.Config{APIKey: cfg.GeminiAPIKey, Timeout: cfg.AITimeout},
		logger.Named("assistant"),
	)

	opts := []domain.Option{domain.WithLogger(logger)}
	offline := domain.NewOfflineStore(kv)
	activities := domain.NewActivityService(remote, offline, cooldown.NewTracker(cfg.CooldownWindow), defaults, opts...)
	syncSvc := domain.NewSyncService(remote, offline, opts...)

	handler := api.NewHandler(api.Services{
		Activities: activities,
		Sync:       syncSvc,
		Login:      domain.NewLoginService(authn, syncSvc, opts...),
		Chats:      domain.NewChatService(remote, offline, activities, gateway, opts...),
		Notes:      domain.NewNoteService(remote, opts...),
		Offline:    offline,
	}, api.WithLogger(logger), api.WithLocation(loc))

	router := handler.Routes(api.RouterConfig{
		Auth:           auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		AllowedOrigins: cfg.CORSOrigins,
	})

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:           cfg.HTTPAddress,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}, router, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("wellness api listening", zap.String("address", cfg.HTTPAddress), zap.String("backend", cfg.RemoteBackend))
		return httptransport.Run(ctx, server, 15*time.Second)
	})

	if cfg.MetricsAddress != "" {
		metricsSrv := httptransport.NewServer(httptransport.ServerConfig{Address: cfg.MetricsAddress, ReadHeaderTimeout: 5 * time.Second}, promhttp.Handler(), logger)
		g.Go(func() error {
			return httptransport.Run(ctx, metricsSrv, 5*time.Second)
		})
	}

	if cfg.EventsEnabled() {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		dispatcher := outbox.NewDispatcher(outbox.NewPgStore(pool), producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger.Named("outbox"))
		g.Go(func() error {
			dispatcher.Start(ctx)
			return nil
		})
	}

	return g.Wait()
}
