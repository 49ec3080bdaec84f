package db

import (
	"context"
	"fmt"
	"log/slog"

	"recruitfluency/internal/types"
)

// subscriptionTable names a directory whose rows carry a payment-provider
// customer_id and an is_subscription_active flag.
type subscriptionTable string

const (
	athletesTable subscriptionTable = "athletes"
	clubsTable    subscriptionTable = "clubs"
)

// SubscriptionRepo keeps athlete and club subscription flags in step with
// the payment provider.
type SubscriptionRepo struct {
	db     DBTX
	logger *slog.Logger
}

func NewSubscriptionRepo(db DBTX, logger *slog.Logger) *SubscriptionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionRepo{db: db, logger: logger}
}

// FindAthletesByCustomerIDs returns the athletes owning any of customerIDs.
func (r *SubscriptionRepo) FindAthletesByCustomerIDs(ctx context.Context, customerIDs []string) ([]types.SubscriptionHolder, error) {
	return r.findByCustomerIDs(ctx, athletesTable, customerIDs)
}

// FindClubsByCustomerIDs returns the clubs owning any of customerIDs.
func (r *SubscriptionRepo) FindClubsByCustomerIDs(ctx context.Context, customerIDs []string) ([]types.SubscriptionHolder, error) {
	return r.findByCustomerIDs(ctx, clubsTable, customerIDs)
}

// SetAthletesActive sets the subscription flag on the given athlete ids.
func (r *SubscriptionRepo) SetAthletesActive(ctx context.Context, ids []string, active bool) error {
	return r.setActive(ctx, athletesTable, ids, active)
}

// SetClubsActive sets the subscription flag on the given club ids.
func (r *SubscriptionRepo) SetClubsActive(ctx context.Context, ids []string, active bool) error {
	return r.setActive(ctx, clubsTable, ids, active)
}

func (r *SubscriptionRepo) findByCustomerIDs(ctx context.Context, table subscriptionTable, customerIDs []string) ([]types.SubscriptionHolder, error) {
	if len(customerIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT id::text, customer_id FROM %s WHERE customer_id = ANY($1::text[])`, table),
		customerIDs,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, fmt.Sprintf("failed to query %s by customer id", table), err)
	}
	defer rows.Close()

	var holders []types.SubscriptionHolder
	for rows.Next() {
		var h types.SubscriptionHolder
		if err := rows.Scan(&h.ID, &h.CustomerID); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, fmt.Sprintf("failed to scan %s row", table), err)
		}
		holders = append(holders, h)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, fmt.Sprintf("error iterating %s", table), err)
	}
	return holders, nil
}

func (r *SubscriptionRepo) setActive(ctx context.Context, table subscriptionTable, ids []string, active bool) error {
	if len(ids) == 0 {
		return nil
	}

	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET is_subscription_active = $2,
		     updated_at = NOW()
		 WHERE id = ANY($1::text[]::uuid[])`, table),
		ids,
		active,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, fmt.Sprintf("failed to update %s subscription", table), err)
	}

	if tag.RowsAffected() != int64(len(ids)) {
		r.logger.WarnContext(ctx, "subscription update matched fewer rows than requested",
			"table", string(table),
			"requested", len(ids),
			"updated", tag.RowsAffected(),
		)
	}
	return nil
}
