package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/example/ec-storefront/internal/api"
	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/infrastructure/store/memory"
	"github.com/example/ec-storefront/internal/infrastructure/store/mongodb"
	"github.com/example/ec-storefront/internal/infrastructure/store/postgres"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/metrics"
	"github.com/example/ec-storefront/internal/outbox"
	"github.com/example/ec-storefront/internal/query"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.ServiceName, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("api_starting",
		zap.String("store_backend", cfg.StoreBackend),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("kafka_topic", cfg.KafkaTopic),
	)

	s, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store_open_failed", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer func() {
		if err := s.Close(context.Background()); err != nil {
			logger.Warn("store_close_failed", zap.Error(err))
		}
	}()
	logger.Info("store_ready", zap.String("backend", cfg.StoreBackend))

	m := metrics.New(prometheus.DefaultRegisterer)

	cmdHandler := command.NewHandler(s, logger, m)
	queryHandler := query.NewHandler(s, logger)
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)

	var wg sync.WaitGroup
	if cfg.KafkaEnabled() {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()

		relay := outbox.NewRelay(s.Outbox(), producer, cfg.OutboxPollInterval, logger, m)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox_relay_stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("kafka_disabled", zap.String("detail", "events stay in the outbox until KAFKA_BROKERS is set"))
	}

	router := api.NewRouter(
		api.NewHandlers(cmdHandler, queryHandler),
		api.NewAuthHandlers(cmdHandler, queryHandler, jwtService),
		jwtService,
		api.RouterConfig{
			Logger:      logger,
			Metrics:     m,
			Gatherer:    prometheus.DefaultGatherer,
			CORSOrigins: cfg.CORSOrigins,
		},
	)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http_server_start", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http_server_failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutdown_started", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_server_shutdown_failed", zap.Error(err))
	}

	cancel()
	wg.Wait()
	logger.Info("shutdown_complete")
}

// openStore connects the configured backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s := postgres.New(db)
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return s, nil

	case config.BackendMongo:
		s, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		return s, nil

	default:
		return memory.New(), nil
	}
}
