package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/kafka"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/notification"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.ServiceName+"-notifier", cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if !cfg.KafkaEnabled() {
		logger.Fatal("config_invalid", zap.String("detail", "KAFKA_BROKERS is required for the notifier"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("notifier_starting",
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("group", cfg.NotifierGroup),
		zap.String("smtp_addr", cfg.SMTPHost+":"+cfg.SMTPPort),
		zap.String("smtp_from", cfg.SMTPFrom),
	)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	handler := notification.NewHandler(emailSvc, logger)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.NotifierGroup, logger)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("notifier_consuming")
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notifier_consumer_stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown_started", zap.String("signal", sig.String()))
	case <-done:
	}

	cancel()
	<-done
	logger.Info("shutdown_complete")
}
