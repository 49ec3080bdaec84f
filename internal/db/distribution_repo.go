package db

import (
	"context"

	"recruitfluency/internal/types"
)

// DistributionRepository appends to coach_to_athlete. Rows are never
// updated or deleted here.
type DistributionRepository struct {
	db DBTX
}

func NewDistributionRepository(db DBTX) *DistributionRepository {
	return &DistributionRepository{db: db}
}

func (r *DistributionRepository) Record(ctx context.Context, rec types.DistributionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO coach_to_athlete (coach_id, athlete_id, date)
		 VALUES ($1::uuid, $2::uuid, $3)`,
		rec.CoachID,
		rec.AthleteID,
		rec.Date,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record distribution", err).
			WithDetails(map[string]any{"coach_id": rec.CoachID, "athlete_id": rec.AthleteID})
	}
	return nil
}
