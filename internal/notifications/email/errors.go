// Package email delivers athlete introductions to coaches through a
// provider-side template. Delivery failures are reported to the caller as a
// boolean and never as an error.
package email

import (
	"errors"

	"recruitfluency/internal/types"
)

// IsBlocklistError reports whether the provider refused the recipient
// outright (suppression list, inactive address).
func IsBlocklistError(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeEmailBlocked
	}
	return false
}

// failureReason is the short classification logged with a failed send.
func failureReason(err error) string {
	var appErr *types.AppError
	switch {
	case IsBlocklistError(err):
		return "recipient_blocked"
	case errors.As(err, &appErr):
		return string(appErr.Code)
	default:
		return "unknown"
	}
}
