// Package main is the entrypoint for the Billing Worker Lambda function.
//
// RevenueCat posts subscription webhooks to an API Gateway route that
// forwards the raw body onto the billing SQS queue. This worker consumes
// the queue and reconciles each event onto the athlete and club
// subscription flags.
//
// Handler flow, per SQS message:
//  1. Unmarshal the WebhookPayload. Malformed bodies are logged and
//     acknowledged; redelivery would not fix them.
//  2. Reconcile the event. A returned error marks the message as a batch
//     item failure so SQS redelivers it. Flag updates are idempotent.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"

	"recruitfluency/internal/billing"
	"recruitfluency/internal/config"
	"recruitfluency/internal/db"
)

// EventReconciler applies one billing event.
type EventReconciler interface {
	Reconcile(ctx context.Context, p billing.WebhookPayload) error
}

// Handler holds the dependencies for the billing worker Lambda handler.
type Handler struct {
	reconciler EventReconciler
	logger     *slog.Logger
}

// Handle processes an SQS batch using partial batch responses.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process billing event",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var payload billing.WebhookPayload
	if err := json.Unmarshal([]byte(record.Body), &payload); err != nil {
		h.logger.ErrorContext(ctx, "dropping malformed billing event",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	h.logger.InfoContext(ctx, "billing event received",
		"message_id", record.MessageId,
		"event_id", payload.Event.ID,
		"event_type", string(payload.Event.Type),
		"environment", payload.Event.Environment,
	)

	if err := h.reconciler.Reconcile(ctx, payload); err != nil {
		return fmt.Errorf("reconciling event %s: %w", payload.Event.ID, err)
	}
	return nil
}

func main() {
	logger := config.NewLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	logger.Info("Billing Worker Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger = config.NewLogger(os.Stdout, cfg.LogLevel).With(
		"service", cfg.Service,
		"version", cfg.Build.Version,
	)

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("Failed to parse database url", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("Failed to create database pool", "error", err)
		os.Exit(1)
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("Failed to ping database", "error", err)
		os.Exit(1)
	}

	registry := billing.NewEntitlementRegistry(cfg.Billing.BasicEntitlement, cfg.Billing.WhiteLabelEntitlement)
	handler := &Handler{
		reconciler: billing.NewReconciler(db.NewSubscriptionRepo(pool, logger), registry, logger),
		logger:     logger,
	}

	logger.Info("Billing Worker Lambda initialized",
		"basic_entitlement", cfg.Billing.BasicEntitlement,
		"white_label_entitlement", cfg.Billing.WhiteLabelEntitlement,
	)

	lambda.Start(handler.Handle)
}
