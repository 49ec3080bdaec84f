package email

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"recruitfluency/internal/external"
	"recruitfluency/internal/types"
)

// DeliveryRecorder receives one observation per introduction attempt.
type DeliveryRecorder interface {
	RecordIntroduction(ctx context.Context, delivered bool)
}

// DispatcherConfig holds the dependencies of an IntroductionDispatcher.
type DispatcherConfig struct {
	Provider external.EmailProvider
	Metrics  DeliveryRecorder // optional
	Logger   *slog.Logger

	TemplateAlias  string
	FromAddress    string
	FromName       string
	SenderDomain   string
	ProfileURL     string
	PhotoBaseURL   string
	DefaultLogoURL string
}

// IntroductionDispatcher sends one coach one athlete's introduction email.
// It is safe for concurrent use.
type IntroductionDispatcher struct {
	provider external.EmailProvider
	metrics  DeliveryRecorder
	logger   *slog.Logger
	cfg      DispatcherConfig
}

func NewIntroductionDispatcher(cfg DispatcherConfig) *IntroductionDispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IntroductionDispatcher{
		provider: cfg.Provider,
		metrics:  cfg.Metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Notify delivers the introduction and reports whether the provider accepted
// it. Provider errors are logged here and go no further.
func (d *IntroductionDispatcher) Notify(ctx context.Context, coach types.Coach, athlete types.EligibleAthlete) bool {
	input := d.BuildMessage(coach, athlete)

	msgID, err := d.provider.Send(ctx, input)
	d.record(ctx, err == nil)
	if err != nil {
		level := slog.LevelError
		if IsBlocklistError(err) {
			level = slog.LevelWarn
		}
		d.logger.Log(ctx, level, "failed to send athlete introduction",
			"coach_id", coach.ID,
			"coach_email", coach.Email,
			"athlete_id", athlete.ID,
			"athlete_name", athlete.FullName,
			"reason", failureReason(err),
			"error", err.Error(),
		)
		return false
	}

	d.logger.DebugContext(ctx, "athlete introduction sent",
		"coach_id", coach.ID,
		"athlete_id", athlete.ID,
		"provider_message_id", msgID,
	)
	return true
}

// BuildMessage assembles the provider request for one introduction.
func (d *IntroductionDispatcher) BuildMessage(coach types.Coach, athlete types.EligibleAthlete) types.SendInput {
	model := map[string]any{
		"link":           d.profileLink(athlete.ID, coach.ID),
		"full_name":      athlete.FullName,
		"league":         athlete.League,
		"position":       athlete.Position,
		"coach_lastname": lastName(coach.FullName),
		"club_name":      clubName(athlete),
		"college_name":   coach.Institute,
		"grad_year":      gradYear(athlete.GraduationYear),
	}
	ResolveBranding(athlete.Club, d.cfg.PhotoBaseURL, d.cfg.DefaultLogoURL).apply(model)

	from := types.SenderIdentity{Name: d.cfg.FromName, Address: d.cfg.FromAddress}
	if addr := SenderAddress(athlete.FullName, d.cfg.SenderDomain, ""); addr != "" {
		from = types.SenderIdentity{Name: strings.TrimSpace(athlete.FullName), Address: addr}
	}

	return types.SendInput{
		To:            coach.Email,
		From:          from,
		ReplyTo:       athlete.Email,
		TemplateAlias: d.cfg.TemplateAlias,
		TemplateData:  model,
		ReferenceID:   coach.ID + "_" + athlete.ID,
	}
}

func (d *IntroductionDispatcher) profileLink(athleteID, coachID string) string {
	return d.cfg.ProfileURL + "?id=" + url.QueryEscape(athleteID) + "&coachId=" + url.QueryEscape(coachID)
}

func (d *IntroductionDispatcher) record(ctx context.Context, delivered bool) {
	if d.metrics != nil {
		d.metrics.RecordIntroduction(ctx, delivered)
	}
}

func lastName(fullName string) string {
	parts := strings.Fields(fullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// clubName prefers the linked club's title over the free-text name.
func clubName(a types.EligibleAthlete) string {
	if a.Club != nil && a.Club.Title != "" {
		return a.Club.Title
	}
	return a.ClubName
}

func gradYear(y int) string {
	if y <= 0 {
		return ""
	}
	return strconv.Itoa(y)
}
