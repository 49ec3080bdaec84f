// Package main is the entrypoint for the Distributor Lambda function.
//
// An EventBridge rule invokes the function once a night with
// {"task":"distribute_athletes"}. Operators can invoke it manually with an
// optional reference_time. Each invocation walks every coach who has not
// received an introduction within the lookback window, samples up to five
// eligible athletes per coach, emails the introductions and records the
// successful ones.
//
// Handler flow:
//  1. Parse JobPayload and determine the reference time.
//  2. Acquire the distribution lock so overlapping runs do not double-send.
//  3. Record job start in job_history.
//  4. Run the distribution service.
//  5. Record job completion and release the lock.
//
// With APP_ENV=local the handler runs once against the payload on stdin
// (or the default payload when stdin is empty) instead of starting the
// Lambda runtime.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"recruitfluency/internal/config"
	"recruitfluency/internal/db"
	"recruitfluency/internal/external"
	"recruitfluency/internal/notifications/email"
	"recruitfluency/internal/scheduler"
	"recruitfluency/internal/telemetry"
	"recruitfluency/internal/types"
)

// distributionLockID is fixed rather than per-hour: a manual run must not
// overlap the nightly run regardless of when it is triggered.
const distributionLockID = "distribute_athletes"

// Distributor runs one distribution pass.
type Distributor interface {
	RunDistribution(ctx context.Context, now time.Time) (scheduler.RunResult, error)
}

// JobLocker abstracts the distributed lock.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID string, workerID string) error
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// Handler holds the dependencies for the distributor Lambda handler.
type Handler struct {
	Distributor Distributor
	JobLock     JobLocker // nil disables locking
	JobHistory  JobHistorian
	WorkerID    string
	LockTTL     time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Handle runs the task named in payload. An empty task means
// distribute_athletes so a bare manual invocation works.
func (h *Handler) Handle(ctx context.Context, payload scheduler.JobPayload) (string, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	if payload.ReferenceTime != nil {
		now = *payload.ReferenceTime
	}

	task := payload.Task
	if task == "" {
		task = scheduler.TaskDistributeAthletes
	}
	if task != scheduler.TaskDistributeAthletes {
		return "", types.NewAppError(types.ErrCodeValidationTask, fmt.Sprintf("unknown task type: %q", task), nil)
	}

	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	logger = logger.With("run_id", runID)

	logger.InfoContext(ctx, "distributor handler invoked",
		"task", string(task),
		"reference_time", now.UTC().Format(time.RFC3339),
		"worker_id", h.WorkerID,
	)

	if h.JobLock != nil {
		acquired, err := h.JobLock.Acquire(ctx, distributionLockID, h.WorkerID, h.LockTTL)
		if err != nil {
			logger.ErrorContext(ctx, "failed to acquire job lock",
				"lock_id", distributionLockID,
				"error", err,
			)
			return "", fmt.Errorf("acquiring job lock %s: %w", distributionLockID, err)
		}
		if !acquired {
			logger.InfoContext(ctx, "job lock not acquired, another run is in progress",
				"lock_id", distributionLockID,
			)
			return fmt.Sprintf("skipped: lock %s held by another worker", distributionLockID), nil
		}
		defer func() {
			if err := h.JobLock.Release(context.WithoutCancel(ctx), distributionLockID, h.WorkerID); err != nil {
				logger.WarnContext(ctx, "failed to release job lock",
					"lock_id", distributionLockID,
					"error", err,
				)
			}
		}()
	}

	// History is best effort; jobID 0 skips Finish.
	var jobID int64
	if h.JobHistory != nil {
		id, err := h.JobHistory.Start(ctx, string(task))
		if err != nil {
			logger.ErrorContext(ctx, "failed to start job history",
				"task", string(task),
				"error", err,
			)
		} else {
			jobID = id
		}
	}

	res, runErr := h.Distributor.RunDistribution(ctx, now)

	if jobID != 0 {
		status := "success"
		if runErr != nil {
			status = "failed"
		}
		if err := h.JobHistory.Finish(context.WithoutCancel(ctx), jobID, status, res.RecordsCommitted, runErr); err != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID,
				"error", err,
			)
		}
	}

	if runErr != nil {
		return "", fmt.Errorf("task %s %s at offset %d: %w", task, res.State, res.Offset, runErr)
	}

	result := fmt.Sprintf("task %s %s: %d coaches processed, %d failed, %d records committed",
		task, res.State, res.CoachesProcessed, res.CoachesFailed, res.RecordsCommitted)
	logger.InfoContext(ctx, result,
		"task", string(task),
		"pages", res.Pages,
	)
	return result, nil
}

func main() {
	logger := config.NewLogger(os.Stdout, os.Getenv("LOG_LEVEL"))
	logger.Info("Distributor Lambda initializing (cold start)")

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

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}
	if cfg.AWS.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
	}

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to initialize database pool", "error", err)
		os.Exit(1)
	}

	var metrics telemetry.Recorder = telemetry.Noop{}
	if cfg.Observability.MetricsEnabled && cfg.Environment != "local" {
		metrics = telemetry.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	dispatcher := email.NewIntroductionDispatcher(email.DispatcherConfig{
		Provider:       newEmailProvider(cfg, awsCfg, logger),
		Metrics:        metrics,
		Logger:         logger,
		TemplateAlias:  cfg.Email.IntroduceAthleteTemplate,
		FromAddress:    cfg.Email.FromAddress,
		FromName:       cfg.Email.FromName,
		SenderDomain:   cfg.Email.SenderDomain,
		ProfileURL:     cfg.Email.AthleteProfileURL,
		PhotoBaseURL:   cfg.Email.PhotoBaseURL,
		DefaultLogoURL: cfg.Email.DefaultLogoURL,
	})

	svc := scheduler.NewDistributionService(newPGStore(pool), dispatcher, scheduler.DistributionConfig{
		PageSize:        cfg.Distribution.PageSize,
		SampleSize:      cfg.Distribution.SampleSize,
		LookbackYears:   cfg.Distribution.LookbackYears,
		SendConcurrency: cfg.Distribution.SendConcurrency,
		Location:        cfg.Distribution.Location(),
	}, logger, scheduler.WithRunRecorder(metrics))

	workerID := uuid.New().String()
	handler := &Handler{
		Distributor: svc,
		JobHistory:  db.NewJobHistoryRepository(pool),
		WorkerID:    workerID,
		LockTTL:     cfg.Distribution.LockTTL,
		Logger:      logger,
	}
	if cfg.Distribution.LockEnabled {
		handler.JobLock = db.NewJobLockRepository(pool)
	}

	logger.Info("Distributor Lambda initialized",
		"worker_id", workerID,
		"email_provider", cfg.Email.Provider,
		"timezone", cfg.Distribution.Timezone,
		"lock_enabled", cfg.Distribution.LockEnabled,
	)

	if cfg.Environment == "local" {
		code := runLocal(ctx, handler, os.Stdin, logger)
		pool.Close()
		os.Exit(code)
	}

	lambda.Start(handler.Handle)
}

// runLocal runs one invocation from a JSON payload on r.
func runLocal(ctx context.Context, h *Handler, r io.Reader, logger *slog.Logger) int {
	raw, err := io.ReadAll(r)
	if err != nil {
		logger.Error("Failed to read stdin", "error", err)
		return 1
	}
	var payload scheduler.JobPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			logger.Error("Failed to parse stdin as job payload", "error", err)
			return 1
		}
	}
	result, err := h.Handle(ctx, payload)
	if err != nil {
		logger.Error("Handler execution failed", "error", err)
		return 1
	}
	logger.Info("Handler execution completed", "result", result)
	return 0
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

func newEmailProvider(cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) external.EmailProvider {
	switch {
	case cfg.Environment == "local" || cfg.Email.Provider == config.EmailProviderStub:
		logger.Warn("Using stub email provider")
		return external.NewStubEmailProvider(logger)
	case cfg.Email.Provider == config.EmailProviderSES:
		return external.NewSESClient(awsCfg, external.SESClientConfig{
			ConfigSetName: cfg.Email.SESConfigSet,
			Logger:        logger,
		})
	default:
		return external.NewPostmarkClient(&http.Client{Timeout: 10 * time.Second}, nil, external.PostmarkClientConfig{
			ServerToken: cfg.Email.PostmarkServerToken,
			BaseURL:     cfg.Email.PostmarkBaseURL,
			Tag:         "introduce-athlete",
			Logger:      logger,
		})
	}
}
