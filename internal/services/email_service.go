package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/google/uuid"

	pkglogger "github.com/BradenHooton/sentinel/pkg/logger"
)

// EmailService delivers verification codes and returns the provider's message id
type EmailService interface {
	SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) (string, error)
}

// SESClient is the subset of the SES API used for delivery
type SESClient interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   SESClient
	fromAddress string
	logger      *slog.Logger
	now         func() time.Time
}

// NewAWSSESEmailService creates an SES email service from the default AWS credential chain
func NewAWSSESEmailService(ctx context.Context, region, fromAddress string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewAWSSESEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, logger), nil
}

// NewAWSSESEmailServiceWithClient creates an SES email service around an existing client
func NewAWSSESEmailServiceWithClient(client SESClient, fromAddress string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		sesClient:   client,
		fromAddress: fromAddress,
		logger:      logger,
		now:         time.Now,
	}
}

// SendVerificationCode emails the code to the address
func (s *AWSSESEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) (string, error) {
	minutes := int(expiresAt.Sub(s.now()).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h1>Your verification code</h1>
        <p>Enter this code to verify your email address:</p>
        <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
        <p>The code expires in %d minute(s). If you did not request it, you can ignore this email.</p>
        <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
    </div>
</body>
</html>
`, code, minutes)

	textBody := fmt.Sprintf(`Your verification code

Enter this code to verify your email address: %s

The code expires in %d minute(s). If you did not request it, you can ignore this email.

This is an automated message. Please do not reply to this email.
`, code, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Your verification code"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data: aws.String(htmlBody),
				},
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	s.logger.Info("verification email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", messageID))

	return messageID, nil
}

// LogEmailService writes verification codes to the log instead of sending them.
// The code itself is only logged outside production.
type LogEmailService struct {
	logger *slog.Logger
	env    string
}

// NewLogEmailService creates a LogEmailService
func NewLogEmailService(logger *slog.Logger, env string) *LogEmailService {
	return &LogEmailService{logger: logger, env: env}
}

func (s *LogEmailService) SendVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) (string, error) {
	messageID := "log-" + uuid.New().String()

	s.logger.InfoContext(ctx, "verification code issued",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		pkglogger.RedactedAttr("code", code, s.env),
		slog.Time("expires_at", expiresAt),
		slog.String("message_id", messageID))

	return messageID, nil
}
