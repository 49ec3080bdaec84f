package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
)

// ValidationResult is shown to the operator after each input.
type ValidationResult struct {
	Valid   bool
	Message string
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DatabaseConnector opens and immediately closes a connection.
type DatabaseConnector interface {
	Connect(ctx context.Context, dsn string) error
}

type PgxConnector struct{}

func (c *PgxConnector) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

const defaultPostmarkBaseURL = "https://api.postmarkapp.com"

// Validator runs format checks and live probes against operator input.
type Validator struct {
	httpClient      HTTPClient
	dbConn          DatabaseConnector
	fields          *validator.Validate
	postmarkBaseURL string
}

func NewValidator() *Validator {
	return NewValidatorWithDeps(&http.Client{Timeout: 10 * time.Second}, &PgxConnector{}, defaultPostmarkBaseURL)
}

func NewValidatorWithDeps(httpClient HTTPClient, dbConn DatabaseConnector, postmarkBaseURL string) *Validator {
	if postmarkBaseURL == "" {
		postmarkBaseURL = defaultPostmarkBaseURL
	}
	return &Validator{
		httpClient:      httpClient,
		dbConn:          dbConn,
		fields:          validator.New(),
		postmarkBaseURL: strings.TrimRight(postmarkBaseURL, "/"),
	}
}

// validateTimeout bounds a whole probe, including DNS and TLS.
const validateTimeout = 15 * time.Second

// ValidateDatabaseURL checks the scheme and host, then connects with pgx.
func (v *Validator) ValidateDatabaseURL(ctx context.Context, rawURL string) ValidationResult {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ValidationResult{Message: "database URL must not be empty"}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("invalid URL format: %v", err)}
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return ValidationResult{Message: fmt.Sprintf("expected postgres:// or postgresql:// scheme, got %q", parsed.Scheme)}
	}
	if parsed.Hostname() == "" {
		return ValidationResult{Message: "database URL has no host"}
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return ValidationResult{Message: "database URL has no user"}
	}

	connCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	if err := v.dbConn.Connect(connCtx, rawURL); err != nil {
		return ValidationResult{Message: fmt.Sprintf("connection failed: %v", err)}
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("database connection verified (host=%s, db=%s)", parsed.Hostname(), strings.TrimPrefix(parsed.Path, "/")),
	}
}

// ValidatePostmarkToken probes GET /server, which any valid server token
// can read without side effects.
func (v *Validator) ValidatePostmarkToken(ctx context.Context, token string) ValidationResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return ValidationResult{Message: "Postmark server token must not be empty"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, v.postmarkBaseURL+"/server", nil)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)
	req.Header.Set("User-Agent", "RecruitFluency-Bootstrap/1.0")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return ValidationResult{Message: fmt.Sprintf("Postmark API probe failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ValidationResult{Message: "Postmark rejected the token (HTTP 401); check that it is a Server token, not an Account token"}
	case resp.StatusCode != http.StatusOK:
		return ValidationResult{Message: fmt.Sprintf("Postmark API returned HTTP %d: %s", resp.StatusCode, truncateBody(body, 200))}
	}

	var server struct {
		Name string `json:"Name"`
	}
	if err := json.Unmarshal(body, &server); err != nil || server.Name == "" {
		return ValidationResult{Message: "Postmark API response did not contain server details"}
	}

	return ValidationResult{Valid: true, Message: fmt.Sprintf("Postmark server verified: %s", server.Name)}
}

func (v *Validator) ValidateEmailAddress(_ context.Context, input string) ValidationResult {
	if err := v.fields.Var(strings.TrimSpace(input), "required,email"); err != nil {
		return ValidationResult{Message: fmt.Sprintf("%q is not a valid email address", input)}
	}
	return ValidationResult{Valid: true, Message: "email address format OK"}
}

// ValidateHTTPURL requires an absolute http(s) URL.
func (v *Validator) ValidateHTTPURL(_ context.Context, input string) ValidationResult {
	if err := v.fields.Var(strings.TrimSpace(input), "required,http_url"); err != nil {
		return ValidationResult{Message: fmt.Sprintf("%q is not an absolute http(s) URL", input)}
	}
	return ValidationResult{Valid: true, Message: "URL format OK"}
}

func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
