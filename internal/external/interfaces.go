package external

import (
	"context"

	"recruitfluency/internal/types"
)

// EmailProvider sends a provider-side template. Implementations return the
// provider's message ID and map failures onto types.AppError codes.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}
