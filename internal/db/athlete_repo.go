package db

import (
	"context"
	"time"

	"recruitfluency/internal/types"
)

// eligibleAthletesFrom is the shared FROM/WHERE of a coach's eligibility
// pool. Parameters: $1 coach id, $2 coach gender, $3 cutoff, $4 user status.
const eligibleAthletesFrom = `
	FROM athletes a
	     JOIN users u ON u.id = a.user_id AND u.status = $4
	     LEFT JOIN clubs c ON c.id = a.club_id
	     LEFT JOIN white_labels wl ON wl.id = c.white_label_id
	WHERE a.gender = $2
	  AND a.is_subscription_active = true
	  AND a.video_url IS NOT NULL
	  AND a.id NOT IN (
	      SELECT cta.athlete_id FROM coach_to_athlete cta
	      WHERE cta.coach_id = $1::uuid AND cta.date >= $3
	  )`

// AthleteRepository answers eligibility queries. The count and the fetch see
// the same snapshot only when bound to a REPEATABLE READ transaction; under
// READ COMMITTED each statement takes its own.
type AthleteRepository struct {
	db DBTX
}

func NewAthleteRepository(db DBTX) *AthleteRepository {
	return &AthleteRepository{db: db}
}

// CountEligible returns the size of the coach's eligibility pool.
func (r *AthleteRepository) CountEligible(ctx context.Context, coach types.Coach, cutoff time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)`+eligibleAthletesFrom,
		coach.ID,
		string(coach.Gender),
		cutoff,
		string(types.UserStatusActive),
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count eligible athletes", err)
	}
	return count, nil
}

// ListEligibleAt returns the pool members at the given one-based positions.
// The pool is numbered by athlete creation time with id as tie-breaker, so
// positions drawn from CountEligible address a stable ordering.
func (r *AthleteRepository) ListEligibleAt(ctx context.Context, coach types.Coach, cutoff time.Time, positions []int) ([]types.EligibleAthlete, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	pos := make([]int64, len(positions))
	for i, p := range positions {
		pos[i] = int64(p)
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, email, full_name, club_name, league_name, graduation_year, primary_position,
		        club_id, club_title, club_file_id, club_active,
		        primary_color, accent_color, font_color, font_color_secondary,
		        input_background_color, input_border_color
		 FROM (
		     SELECT ROW_NUMBER() OVER (ORDER BY a.created_at, a.id) AS pos,
		            a.id::text AS id,
		            u.email,
		            u.full_name,
		            COALESCE(a.club_name, '') AS club_name,
		            COALESCE(a.league_name, '') AS league_name,
		            COALESCE(a.graduation_year, 0) AS graduation_year,
		            COALESCE(a.primary_position, '') AS primary_position,
		            c.id::text AS club_id,
		            COALESCE(c.title, '') AS club_title,
		            COALESCE(c.file_id, '') AS club_file_id,
		            COALESCE(c.is_subscription_active, false) AS club_active,
		            COALESCE(wl.primary_color, '') AS primary_color,
		            COALESCE(wl.accent_color, '') AS accent_color,
		            COALESCE(wl.font_color, '') AS font_color,
		            COALESCE(wl.font_color_secondary, '') AS font_color_secondary,
		            COALESCE(wl.input_background_color, '') AS input_background_color,
		            COALESCE(wl.input_border_color, '') AS input_border_color
		     `+eligibleAthletesFrom+`
		 ) AS pool
		 WHERE pos = ANY($5::bigint[])
		 ORDER BY pos`,
		coach.ID,
		string(coach.Gender),
		cutoff,
		string(types.UserStatusActive),
		pos,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch sampled athletes", err)
	}
	defer rows.Close()

	athletes := make([]types.EligibleAthlete, 0, len(positions))
	for rows.Next() {
		var (
			a      types.EligibleAthlete
			clubID *string
			club   types.Club
		)
		if err := rows.Scan(
			&a.ID,
			&a.Email,
			&a.FullName,
			&a.ClubName,
			&a.League,
			&a.GraduationYear,
			&a.Position,
			&clubID,
			&club.Title,
			&club.LogoFileID,
			&club.IsSubscriptionActive,
			&club.WhiteLabel.PrimaryColor,
			&club.WhiteLabel.AccentColor,
			&club.WhiteLabel.FontColor,
			&club.WhiteLabel.FontColorSecondary,
			&club.WhiteLabel.InputBackgroundColor,
			&club.WhiteLabel.InputBorderColor,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan eligible athlete", err)
		}
		if clubID != nil {
			club.ID = *clubID
			a.Club = &club
		}
		athletes = append(athletes, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating eligible athletes", err)
	}

	return athletes, nil
}
