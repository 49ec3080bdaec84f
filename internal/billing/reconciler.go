package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recruitfluency/internal/types"
)

// SubscriptionStore is the persistence the reconciler needs. Flag updates
// must be idempotent so a redelivered event is harmless.
type SubscriptionStore interface {
	FindAthletesByCustomerIDs(ctx context.Context, customerIDs []string) ([]types.SubscriptionHolder, error)
	FindClubsByCustomerIDs(ctx context.Context, customerIDs []string) ([]types.SubscriptionHolder, error)
	SetAthletesActive(ctx context.Context, ids []string, active bool) error
	SetClubsActive(ctx context.Context, ids []string, active bool) error
}

// Reconciler applies one webhook event to the subscription flags.
type Reconciler struct {
	store        SubscriptionStore
	entitlements *EntitlementRegistry
	logger       *slog.Logger
}

func NewReconciler(store SubscriptionStore, entitlements *EntitlementRegistry, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, entitlements: entitlements, logger: logger}
}

// Reconcile applies the event. A nil return means the event is fully
// handled, including events that were deliberately ignored. A non-nil error
// means at least one update failed and the event should be redelivered.
func (r *Reconciler) Reconcile(ctx context.Context, p WebhookPayload) error {
	ev := p.Event
	switch ev.Type {
	case EventInitialPurchase, EventRenewal:
		return r.applyEntitlements(ctx, ev, true)
	case EventExpiration:
		return r.applyEntitlements(ctx, ev, false)
	case EventTransfer:
		return r.transfer(ctx, ev)
	default:
		r.logger.InfoContext(ctx, "billing event ignored",
			"event_id", ev.ID,
			"event_type", string(ev.Type),
		)
		return nil
	}
}

func (r *Reconciler) applyEntitlements(ctx context.Context, ev Event, active bool) error {
	var errs []error
	for _, id := range ev.EntitlementIDs {
		ent, ok := r.entitlements.Lookup(id)
		if !ok {
			r.logger.WarnContext(ctx, "unknown entitlement",
				"entitlement_id", id,
				"customer_id", ev.AppUserID,
				"event_id", ev.ID,
			)
			continue
		}

		var err error
		switch ent {
		case EntitlementBasic:
			err = r.setByCustomer(ctx, "athletes", r.store.FindAthletesByCustomerIDs, r.store.SetAthletesActive, ev.AppUserID, active)
		case EntitlementWhiteLabel:
			err = r.setByCustomer(ctx, "clubs", r.store.FindClubsByCustomerIDs, r.store.SetClubsActive, ev.AppUserID, active)
		}
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to update subscription status",
				"entitlement", ent.String(),
				"customer_id", ev.AppUserID,
				"event_id", ev.ID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s entitlement: %w", ent, err))
		}
	}
	return errors.Join(errs...)
}

type findFunc func(context.Context, []string) ([]types.SubscriptionHolder, error)
type setFunc func(context.Context, []string, bool) error

func (r *Reconciler) setByCustomer(ctx context.Context, directory string, find findFunc, set setFunc, customerID string, active bool) error {
	holders, err := find(ctx, []string{customerID})
	if err != nil {
		return err
	}
	if len(holders) == 0 {
		r.logger.WarnContext(ctx, "customer not found in directory",
			"directory", directory,
			"customer_id", customerID,
		)
		return nil
	}
	return set(ctx, holderIDs(holders), active)
}

func (r *Reconciler) transfer(ctx context.Context, ev Event) error {
	prevA, err := r.store.FindAthletesByCustomerIDs(ctx, ev.TransferredFrom)
	if err != nil {
		return fmt.Errorf("transfer: find previous athletes: %w", err)
	}
	prevC, err := r.store.FindClubsByCustomerIDs(ctx, ev.TransferredFrom)
	if err != nil {
		return fmt.Errorf("transfer: find previous clubs: %w", err)
	}
	newA, err := r.store.FindAthletesByCustomerIDs(ctx, ev.TransferredTo)
	if err != nil {
		return fmt.Errorf("transfer: find new athletes: %w", err)
	}
	newC, err := r.store.FindClubsByCustomerIDs(ctx, ev.TransferredTo)
	if err != nil {
		return fmt.Errorf("transfer: find new clubs: %w", err)
	}

	warn := func(msg string) {
		r.logger.WarnContext(ctx, msg,
			"event_id", ev.ID,
			"transferred_from", ev.TransferredFrom,
			"transferred_to", ev.TransferredTo,
		)
	}

	switch {
	case len(newA) > 0 && len(newC) > 0:
		warn("transfer receivers found in both athletes and clubs; ignoring")
		return nil
	case len(newA) > 0 && len(prevA) == 0 && len(prevC) > 0:
		warn("transfer to athlete from a club subscription; ignoring")
		return nil
	case len(newC) > 0 && len(prevC) == 0 && len(prevA) > 0:
		warn("transfer to club from an athlete subscription; ignoring")
		return nil
	case len(newA) > 0:
		return moveSubscription(ctx, r.store.SetAthletesActive, prevA, newA)
	case len(newC) > 0:
		return moveSubscription(ctx, r.store.SetClubsActive, prevC, newC)
	default:
		warn("transfer receivers not found")
		return nil
	}
}

func moveSubscription(ctx context.Context, set setFunc, from, to []types.SubscriptionHolder) error {
	if err := set(ctx, holderIDs(from), false); err != nil {
		return fmt.Errorf("transfer: deactivate previous owners: %w", err)
	}
	if err := set(ctx, holderIDs(to), true); err != nil {
		return fmt.Errorf("transfer: activate new owners: %w", err)
	}
	return nil
}

func holderIDs(hs []types.SubscriptionHolder) []string {
	ids := make([]string, len(hs))
	for i, h := range hs {
		ids[i] = h.ID
	}
	return ids
}
