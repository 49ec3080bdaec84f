package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"recruitfluency/internal/types"
)

// DistributionDB is the read side of the job plus the transaction factory.
//
// The flow per page is:
//  1. ListPendingCoaches returns the next keyset page of coaches without a
//     distribution record since cutoff.
//  2. For each coach, BeginTx opens a transaction that counts the pool,
//     fetches the sampled positions and appends distribution records.
type DistributionDB interface {
	ListPendingCoaches(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]types.Coach, error)
	BeginTx(ctx context.Context) (DistributionTx, error)
}

// DistributionTx holds the per-coach operations. Rollback is safe after
// Commit.
type DistributionTx interface {
	CountEligibleAthletes(ctx context.Context, coach types.Coach, cutoff time.Time) (int, error)
	ListEligibleAthletesAt(ctx context.Context, coach types.Coach, cutoff time.Time, positions []int) ([]types.EligibleAthlete, error)
	RecordDistribution(ctx context.Context, rec types.DistributionRecord) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Notifier delivers one introduction. It never returns an error; false
// means the delivery failed and was already logged.
type Notifier interface {
	Notify(ctx context.Context, coach types.Coach, athlete types.EligibleAthlete) bool
}

// RunRecorder receives the run summary. Optional.
type RunRecorder interface {
	RecordRun(ctx context.Context, state string, coachesProcessed, coachesFailed, recordsCommitted int)
}

// DistributionConfig tunes a DistributionService.
type DistributionConfig struct {
	PageSize        int
	SampleSize      int
	LookbackYears   int
	SendConcurrency int
	Location        *time.Location
}

// ErrNoProgress terminates a run after PageSize consecutive coach failures,
// counted across page boundaries. A shorter streak is contained per coach.
var ErrNoProgress = errors.New("consecutive coach failures reached page size")

// DistributionService runs the coach-athlete distribution job.
type DistributionService struct {
	db       DistributionDB
	notifier Notifier
	metrics  RunRecorder
	cfg      DistributionConfig
	logger   *slog.Logger
	rng      *rand.Rand
}

// DistributionOption configures optional collaborators.
type DistributionOption func(*DistributionService)

// WithRand sets the random source used for sampling.
func WithRand(r *rand.Rand) DistributionOption {
	return func(s *DistributionService) { s.rng = r }
}

// WithRunRecorder sets the sink for run summaries.
func WithRunRecorder(m RunRecorder) DistributionOption {
	return func(s *DistributionService) { s.metrics = m }
}

// NewDistributionService creates a DistributionService. Zero config values
// fall back to the production defaults.
func NewDistributionService(db DistributionDB, notifier Notifier, cfg DistributionConfig, logger *slog.Logger, opts ...DistributionOption) *DistributionService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 5
	}
	if cfg.LookbackYears <= 0 {
		cfg.LookbackYears = 1
	}
	if cfg.SendConcurrency <= 0 {
		cfg.SendConcurrency = cfg.SampleSize
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &DistributionService{
		db:       db,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Cutoff is local midnight of now in the job timezone, minus the lookback
// window. Athletes introduced to a coach on or after the cutoff are not
// introduced again.
func (s *DistributionService) Cutoff(now time.Time) time.Time {
	local := now.In(s.cfg.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)
	return midnight.AddDate(-s.cfg.LookbackYears, 0, 0)
}

// RunDistribution walks every pending coach page by page. Per-coach
// failures are logged and skipped. A page fetch failure, PageSize coaches
// failing in a row, or a cancelled context ends the run in
// StateTerminatedWithError.
func (s *DistributionService) RunDistribution(ctx context.Context, now time.Time) (RunResult, error) {
	cutoff := s.Cutoff(now)
	res := RunResult{}
	cursor := ""
	consecutiveFailed := 0

	s.logger.InfoContext(ctx, "distribution started",
		"cutoff", cutoff.Format(time.RFC3339),
		"page_size", s.cfg.PageSize,
		"sample_size", s.cfg.SampleSize,
	)

	for {
		if err := ctx.Err(); err != nil {
			return s.terminate(ctx, res, cursor, err)
		}

		coaches, err := s.db.ListPendingCoaches(ctx, cutoff, cursor, s.cfg.PageSize)
		if err != nil {
			return s.terminate(ctx, res, cursor, fmt.Errorf("listing pending coaches: %w", err))
		}
		if len(coaches) == 0 {
			break
		}

		res.Pages++
		res.Offset += len(coaches)

		for _, coach := range coaches {
			if err := ctx.Err(); err != nil {
				return s.terminate(ctx, res, cursor, err)
			}

			out, err := s.processCoach(ctx, coach, cutoff, now)
			res.DeliveriesAttempted += out.attempted
			res.Delivered += out.delivered
			res.DeliveryFailures += out.attempted - out.delivered
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to distribute athletes to coach",
					"coach_id", coach.ID,
					"coach_email", coach.Email,
					"error", err,
				)
				res.CoachesFailed++
				consecutiveFailed++
				if consecutiveFailed >= s.cfg.PageSize {
					return s.terminate(ctx, res, coach.ID, ErrNoProgress)
				}
				continue
			}
			consecutiveFailed = 0
			res.CoachesProcessed++
			res.RecordsCommitted += out.committed
			if out.skipped {
				res.CoachesSkipped++
			}
		}
		cursor = coaches[len(coaches)-1].ID

		if len(coaches) < s.cfg.PageSize {
			break
		}
	}

	res.State = StateDone
	s.logger.InfoContext(ctx, "distribution complete",
		"pages", res.Pages,
		"coaches_processed", res.CoachesProcessed,
		"coaches_skipped", res.CoachesSkipped,
		"coaches_failed", res.CoachesFailed,
		"delivered", res.Delivered,
		"delivery_failures", res.DeliveryFailures,
		"records_committed", res.RecordsCommitted,
	)
	s.recordRun(ctx, res)
	return res, nil
}

func (s *DistributionService) terminate(ctx context.Context, res RunResult, cursor string, err error) (RunResult, error) {
	res.State = StateTerminatedWithError
	s.logger.ErrorContext(ctx, "distribution terminated",
		"offset", res.Offset,
		"after_coach_id", cursor,
		"coaches_processed", res.CoachesProcessed,
		"records_committed", res.RecordsCommitted,
		"error", err,
	)
	s.recordRun(ctx, res)
	return res, err
}

func (s *DistributionService) recordRun(ctx context.Context, res RunResult) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(context.WithoutCancel(ctx), string(res.State), res.CoachesProcessed, res.CoachesFailed, res.RecordsCommitted)
}

type coachOutcome struct {
	skipped   bool
	attempted int
	delivered int
	committed int
}

// processCoach samples, notifies and records for one coach inside its own
// transaction. Only delivered introductions are recorded; failed ones stay
// eligible for the next run.
func (s *DistributionService) processCoach(ctx context.Context, coach types.Coach, cutoff, now time.Time) (coachOutcome, error) {
	var out coachOutcome

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return out, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	poolSize, err := tx.CountEligibleAthletes(ctx, coach, cutoff)
	if err != nil {
		return out, fmt.Errorf("counting eligible athletes: %w", err)
	}
	if poolSize == 0 {
		s.logger.WarnContext(ctx, "no eligible athletes for coach",
			"coach_id", coach.ID,
			"gender", string(coach.Gender),
		)
		out.skipped = true
		return out, nil
	}

	positions := SamplePositions(s.rng, poolSize, s.cfg.SampleSize)
	athletes, err := tx.ListEligibleAthletesAt(ctx, coach, cutoff, positions)
	if err != nil {
		return out, fmt.Errorf("fetching sampled athletes: %w", err)
	}

	delivered := s.notifyAll(ctx, coach, athletes)
	out.attempted = len(athletes)

	for i, a := range athletes {
		if !delivered[i] {
			continue
		}
		out.delivered++
		rec := types.DistributionRecord{CoachID: coach.ID, AthleteID: a.ID, Date: now}
		if err := tx.RecordDistribution(ctx, rec); err != nil {
			return out, fmt.Errorf("recording distribution for athlete %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return out, fmt.Errorf("committing transaction: %w", err)
	}
	out.committed = out.delivered

	s.logger.InfoContext(ctx, "coach distribution committed",
		"coach_id", coach.ID,
		"pool_size", poolSize,
		"sampled", len(athletes),
		"delivered", out.delivered,
	)
	return out, nil
}

// notifyAll sends every introduction concurrently and waits for all of
// them. The result is indexed like athletes.
func (s *DistributionService) notifyAll(ctx context.Context, coach types.Coach, athletes []types.EligibleAthlete) []bool {
	delivered := make([]bool, len(athletes))
	var g errgroup.Group
	g.SetLimit(s.cfg.SendConcurrency)
	for i, a := range athletes {
		g.Go(func() error {
			delivered[i] = s.notifier.Notify(ctx, coach, a)
			return nil
		})
	}
	_ = g.Wait()
	return delivered
}
