package db

import (
	"context"
	"time"

	"recruitfluency/internal/types"
)

// CoachRepository reads the coach directory.
type CoachRepository struct {
	db DBTX
}

func NewCoachRepository(db DBTX) *CoachRepository {
	return &CoachRepository{db: db}
}

// ListPendingPage returns up to limit non-deleted coaches with no
// distribution record dated at or after cutoff, in id order, starting after
// afterID. Pass "" for the first page.
//
// The cursor is keyset rather than OFFSET: coaches served earlier in the
// same run leave the filtered set, which would shift OFFSET windows and skip
// coaches who have not been served yet.
func (r *CoachRepository) ListPendingPage(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]types.Coach, error) {
	if afterID == "" {
		afterID = firstPageCursor
	}

	rows, err := r.db.Query(ctx,
		`SELECT c.id::text, c.email, c.full_name, c.gender,
		        COALESCE(c.division, ''), COALESCE(c.institute, '')
		 FROM coaches c
		 WHERE c.is_deleted = false
		   AND c.id > $2::uuid
		   AND NOT EXISTS (
		       SELECT 1 FROM coach_to_athlete cta
		       WHERE cta.coach_id = c.id AND cta.date >= $1
		   )
		 ORDER BY c.id
		 LIMIT $3`,
		cutoff,
		afterID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list pending coaches", err)
	}
	defer rows.Close()

	var coaches []types.Coach
	for rows.Next() {
		var (
			c      types.Coach
			gender string
		)
		if err := rows.Scan(&c.ID, &c.Email, &c.FullName, &gender, &c.Division, &c.Institute); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan coach", err)
		}
		c.Gender = types.Gender(gender)
		coaches = append(coaches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating coaches", err)
	}

	return coaches, nil
}
