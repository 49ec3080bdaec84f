package config

import "context"

// SecretProvider resolves secret values by key. SSMProvider backs deployed
// environments; EnvVarProvider backs local runs and tests.
type SecretProvider interface {
	// GetParametersBatch returns key -> plaintext for every key it could
	// resolve. Missing keys are omitted, not errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
