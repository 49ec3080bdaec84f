package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"recruitfluency/internal/types"
)

type mockSESAPI struct {
	sendEmailFunc func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

func (m *mockSESAPI) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return m.sendEmailFunc(ctx, params, optFns...)
}

func TestSESSend_TemplatedMessage(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{MessageId: aws.String("ses-msg-1")}, nil
		},
	}
	client := NewSESClientWithAPI(api, SESClientConfig{ConfigSetName: "recruit-tracking"})

	msgID, err := client.Send(context.Background(), introductionInput())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "ses-msg-1" {
		t.Errorf("message id = %q", msgID)
	}

	if got := aws.ToString(captured.FromEmailAddress); got != `"Jo Smith" <jo.smith@recruit.soccer>` {
		t.Errorf("from = %q", got)
	}
	if len(captured.ReplyToAddresses) != 1 || captured.ReplyToAddresses[0] != "jo@example.com" {
		t.Errorf("reply-to = %v", captured.ReplyToAddresses)
	}
	tpl := captured.Content.Template
	if tpl == nil || aws.ToString(tpl.TemplateName) != "introduce-athlete" {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(tpl.TemplateData)), &data); err != nil {
		t.Fatalf("template data is not JSON: %v", err)
	}
	if data["full_name"] != "Jo Smith" {
		t.Errorf("template data = %v", data)
	}
	if aws.ToString(captured.ConfigurationSetName) != "recruit-tracking" {
		t.Errorf("config set = %q", aws.ToString(captured.ConfigurationSetName))
	}
	if len(captured.EmailTags) != 1 || aws.ToString(captured.EmailTags[0].Value) != "coach-1_ath-1" {
		t.Errorf("tags = %+v", captured.EmailTags)
	}
}

func TestSESSend_OmitsOptionalFields(t *testing.T) {
	var captured *sesv2.SendEmailInput
	api := &mockSESAPI{
		sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			captured = params
			return &sesv2.SendEmailOutput{}, nil
		},
	}
	in := introductionInput()
	in.ReplyTo = ""
	in.ReferenceID = ""
	in.From.Name = ""

	msgID, err := NewSESClientWithAPI(api, SESClientConfig{}).Send(context.Background(), in)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "" {
		t.Errorf("expected empty message id, got %q", msgID)
	}
	if captured.ReplyToAddresses != nil || captured.EmailTags != nil || captured.ConfigurationSetName != nil {
		t.Errorf("optional fields should be unset: %+v", captured)
	}
	if aws.ToString(captured.FromEmailAddress) != "jo.smith@recruit.soccer" {
		t.Errorf("from = %q", aws.ToString(captured.FromEmailAddress))
	}
}

func TestSESSend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorCode
	}{
		{"rejected", &sestypes.MessageRejected{Message: aws.String("bad address")}, types.ErrCodeEmailBlocked},
		{"suspended", &sestypes.AccountSuspendedException{Message: aws.String("suspended")}, types.ErrCodeEmailBlocked},
		{"throttled", &sestypes.TooManyRequestsException{Message: aws.String("slow down")}, types.ErrCodeUpstreamRateLimited},
		{"quota", &sestypes.LimitExceededException{Message: aws.String("quota")}, types.ErrCodeUpstreamRateLimited},
		{"paused", &sestypes.SendingPausedException{Message: aws.String("paused")}, types.ErrCodeUpstreamUnavailable},
		{"template missing", &sestypes.NotFoundException{Message: aws.String("no template")}, types.ErrCodeUpstreamEmailProvider},
		{"generic", errors.New("boom"), types.ErrCodeUpstreamEmailProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockSESAPI{
				sendEmailFunc: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
					return nil, tt.err
				},
			}
			_, err := NewSESClientWithAPI(api, SESClientConfig{}).Send(context.Background(), introductionInput())

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T", err)
			}
			if appErr.Code != tt.want {
				t.Errorf("code = %s, want %s", appErr.Code, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("original error should stay in the chain")
			}
		})
	}
}

func TestStubEmailProvider_LogsAndSucceeds(t *testing.T) {
	var buf bytes.Buffer
	stub := NewStubEmailProvider(slog.New(slog.NewJSONHandler(&buf, nil)))

	msgID, err := stub.Send(context.Background(), introductionInput())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msgID != "msg_stub_coach-1_ath-1" {
		t.Errorf("message id = %q", msgID)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"template_alias":"introduce-athlete"`)) {
		t.Errorf("expected template alias in log, got %s", buf.String())
	}
}
