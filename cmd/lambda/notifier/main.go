package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/infrastructure/msk"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/notification"
	"go.uber.org/zap"
)

var (
	notificationHandler *notification.Handler
	logger              *zap.Logger
)

func init() {
	cfg := config.Load()

	logger = logging.MustNewLogger(cfg.ServiceName+"-notifier-lambda", cfg.Env)
	zap.ReplaceGlobals(logger)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	notificationHandler = notification.NewHandler(emailSvc, logger)

	logger.Info("lambda_notifier_initialized", zap.String("smtp_addr", cfg.SMTPHost+":"+cfg.SMTPPort))
}

// handler processes one MSK batch. Undecodable records are logged and
// dropped; a failed notification fails the batch so it is redelivered.
func handler(ctx context.Context, batch events.KafkaEvent) error {
	converted, convErrs := msk.BatchConvert(batch)
	for _, err := range convErrs {
		logger.Warn("msk_record_undecodable", zap.Error(err))
	}

	var failed []error
	for _, event := range converted {
		if err := notificationHandler.HandleEvent(ctx, event); err != nil {
			logger.Error("notification_failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			failed = append(failed, err)
		}
	}

	logger.Info("msk_batch_processed",
		zap.Int("received", len(converted)+len(convErrs)),
		zap.Int("failed", len(failed)),
	)
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d notifications failed: %w", len(failed), len(converted), errors.Join(failed...))
	}
	return nil
}

func main() {
	lambda.Start(handler)
}
