package types

import "context"

type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID stores the job run identifier in the context. The distributor
// sets it once per invocation so outbound calls and log lines correlate.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// GetRunID retrieves the run identifier from the context, or "".
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
