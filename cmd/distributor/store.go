package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"recruitfluency/internal/db"
	"recruitfluency/internal/scheduler"
	"recruitfluency/internal/types"
)

// txPool is the part of *pgxpool.Pool the store needs.
type txPool interface {
	db.DBTX
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// pgStore adapts the db repositories to scheduler.DistributionDB. Coach
// pages are read on the pool; everything per coach runs on one pgx.Tx.
type pgStore struct {
	pool    txPool
	coaches *db.CoachRepository
}

var _ scheduler.DistributionDB = (*pgStore)(nil)

var coachTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}

func newPGStore(pool txPool) *pgStore {
	return &pgStore{pool: pool, coaches: db.NewCoachRepository(pool)}
}

func (s *pgStore) ListPendingCoaches(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]types.Coach, error) {
	return s.coaches.ListPendingPage(ctx, cutoff, afterID, limit)
}

func (s *pgStore) BeginTx(ctx context.Context) (scheduler.DistributionTx, error) {
	// REPEATABLE READ keeps the pool count and the positional fetch on one
	// snapshot; a concurrent billing update cannot shift the positions.
	tx, err := s.pool.BeginTx(ctx, coachTxOptions)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	return &pgTx{
		tx:            tx,
		athletes:      db.NewAthleteRepository(tx),
		distributions: db.NewDistributionRepository(tx),
	}, nil
}

type pgTx struct {
	tx            pgx.Tx
	athletes      *db.AthleteRepository
	distributions *db.DistributionRepository
}

func (t *pgTx) CountEligibleAthletes(ctx context.Context, coach types.Coach, cutoff time.Time) (int, error) {
	return t.athletes.CountEligible(ctx, coach, cutoff)
}

func (t *pgTx) ListEligibleAthletesAt(ctx context.Context, coach types.Coach, cutoff time.Time, positions []int) ([]types.EligibleAthlete, error) {
	return t.athletes.ListEligibleAt(ctx, coach, cutoff, positions)
}

func (t *pgTx) RecordDistribution(ctx context.Context, rec types.DistributionRecord) error {
	return t.distributions.Record(ctx, rec)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback after Commit returns pgx.ErrTxClosed, which callers ignore.
func (t *pgTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
