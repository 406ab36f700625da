package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSESClient struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("ses-message-1")}, nil
}

func TestAWSSESEmailService_SendVerificationCode(t *testing.T) {
	client := &fakeSESClient{}
	s := NewAWSSESEmailServiceWithClient(client, "no-reply@example.com", discardLogger())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id, err := s.SendVerificationCode(context.Background(), "jane@example.com", "123456", now.Add(15*time.Minute))

	require.NoError(t, err)
	assert.Equal(t, "ses-message-1", id)
	require.NotNil(t, client.input)
	assert.Equal(t, "no-reply@example.com", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"jane@example.com"}, client.input.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "123456")
	assert.Contains(t, aws.ToString(client.input.Message.Body.Html.Data), "15 minute(s)")
}

func TestAWSSESEmailService_SendFailure(t *testing.T) {
	client := &fakeSESClient{err: errors.New("throttled")}
	s := NewAWSSESEmailServiceWithClient(client, "no-reply@example.com", discardLogger())

	_, err := s.SendVerificationCode(context.Background(), "jane@example.com", "123456", time.Now().Add(time.Minute))

	assert.ErrorContains(t, err, "throttled")
}

func TestLogEmailService_RedactsCodeInProduction(t *testing.T) {
	tests := []struct {
		env      string
		wantCode bool
	}{
		{"development", true},
		{"production", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			s := NewLogEmailService(slog.New(slog.NewJSONHandler(&buf, nil)), tt.env)

			id, err := s.SendVerificationCode(context.Background(), "jane@example.com", "654321", time.Now())

			require.NoError(t, err)
			assert.NotEmpty(t, id)
			assert.NotContains(t, buf.String(), "jane@example.com")
			if tt.wantCode {
				assert.Contains(t, buf.String(), "654321")
			} else {
				assert.NotContains(t, buf.String(), "654321")
			}
		})
	}
}
