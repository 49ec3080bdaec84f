package external

import (
	"context"
	"fmt"
	"log/slog"

	"recruitfluency/internal/types"
)

// StubEmailProvider logs sends and reports success. Used for
// EMAIL_PROVIDER=stub and APP_ENV=local.
type StubEmailProvider struct {
	logger *slog.Logger
}

func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.logger.InfoContext(ctx, "stub: Send email called",
		"to", input.To,
		"from", input.From.Address,
		"reply_to", input.ReplyTo,
		"template_alias", input.TemplateAlias,
	)
	return fmt.Sprintf("msg_stub_%s", input.ReferenceID), nil
}

var _ EmailProvider = (*StubEmailProvider)(nil)
