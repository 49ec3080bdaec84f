package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"recruitfluency/internal/types"
)

const postmarkAPIBase = "https://api.postmarkapp.com"

// Postmark API error codes with a meaning of their own. Anything else is a
// generic provider failure.
const (
	postmarkErrInactiveRecipient = 406
	postmarkErrTemplateNotFound  = 1101
)

// PostmarkClientConfig holds the configuration for creating a PostmarkClient.
type PostmarkClientConfig struct {
	ServerToken types.SecretString
	BaseURL     string // defaults to postmarkAPIBase
	Tag         string
	Logger      *slog.Logger
}

// PostmarkClient implements EmailProvider against the Postmark
// "send with template" endpoint, routed through BaseClient.
type PostmarkClient struct {
	base    *BaseClient
	token   types.SecretString
	baseURL string
	tag     string
	logger  *slog.Logger
}

// NewPostmarkClient builds a client on top of base. Pass nil to get a
// BaseClient with DefaultRetryPolicy.
func NewPostmarkClient(httpClient *http.Client, base *BaseClient, cfg PostmarkClientConfig) *PostmarkClient {
	if base == nil {
		base = NewBaseClient(httpClient, "postmark", DefaultRetryPolicy())
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = postmarkAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostmarkClient{
		base:    base,
		token:   cfg.ServerToken,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tag:     cfg.Tag,
		logger:  logger,
	}
}

type postmarkTemplateMessage struct {
	From          string            `json:"From"`
	To            string            `json:"To"`
	ReplyTo       string            `json:"ReplyTo,omitempty"`
	TemplateAlias string            `json:"TemplateAlias"`
	TemplateModel map[string]any    `json:"TemplateModel"`
	Tag           string            `json:"Tag,omitempty"`
	Metadata      map[string]string `json:"Metadata,omitempty"`
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

// Send posts the templated message. Postmark reports the outcome in the
// body's ErrorCode; 0 means accepted.
//
// Error mapping:
//   - ErrorCode 406 (inactive recipient) -> types.ErrCodeEmailBlocked
//   - 429 / 5xx -> retried by BaseClient, then upstream_rate_limited / upstream_unavailable
//   - anything else -> types.ErrCodeUpstreamEmailProvider
func (p *PostmarkClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	msg := postmarkTemplateMessage{
		From:          formatAddress(input.From),
		To:            input.To,
		ReplyTo:       input.ReplyTo,
		TemplateAlias: input.TemplateAlias,
		TemplateModel: input.TemplateData,
		Tag:           p.tag,
	}
	if input.ReferenceID != "" {
		msg.Metadata = map[string]string{"reference_id": input.ReferenceID}
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal Postmark message", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email/withTemplate", bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Postmark request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.token.Unmask())

	resp, err := p.base.Do(req)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			return "", appErr
		}
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider, "Postmark request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("Postmark returned status %d and response body was unreadable", resp.StatusCode), err)
	}

	var pr postmarkResponse
	if jsonErr := json.Unmarshal(raw, &pr); jsonErr != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("Postmark returned status %d with undecodable body: %s", resp.StatusCode, truncate(string(raw), 200)), jsonErr)
	}

	if resp.StatusCode == http.StatusOK && pr.ErrorCode == 0 {
		return pr.MessageID, nil
	}
	return "", mapPostmarkError(resp.StatusCode, pr)
}

func mapPostmarkError(status int, pr postmarkResponse) error {
	details := map[string]any{"http_status": status, "postmark_error_code": pr.ErrorCode}
	switch pr.ErrorCode {
	case postmarkErrInactiveRecipient:
		return types.NewAppError(types.ErrCodeEmailBlocked,
			fmt.Sprintf("Postmark blocked delivery: %s", pr.Message), nil).WithDetails(details)
	case postmarkErrTemplateNotFound:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("Postmark template not found: %s", pr.Message), nil).WithDetails(details)
	default:
		return types.NewAppError(types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("Postmark error (%d/%d): %s", status, pr.ErrorCode, pr.Message), nil).WithDetails(details)
	}
}

// formatAddress renders "Name <addr>" or the bare address.
func formatAddress(id types.SenderIdentity) string {
	if id.Name == "" {
		return id.Address
	}
	return fmt.Sprintf("%q <%s>", id.Name, id.Address)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ EmailProvider = (*PostmarkClient)(nil)
