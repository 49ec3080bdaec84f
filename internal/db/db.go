// Package db provides the PostgreSQL repositories for coaches, athlete
// eligibility, distribution records, subscriptions and job bookkeeping.
// Every repository accepts DBTX, which *pgxpool.Pool and pgx.Tx both
// satisfy, so the same code runs inside or outside a transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// firstPageCursor sorts before every UUID; it starts keyset pagination.
const firstPageCursor = "00000000-0000-0000-0000-000000000000"
