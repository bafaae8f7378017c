package service

import (
	"context"
	"fmt"
	"html"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// sesAPI is the part of the SES client the email service uses
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService handles sending emails via Amazon SES
type EmailService struct {
	client    sesAPI
	fromEmail string
	fromName  string
	enabled   bool
	logger    *zap.Logger
}

// NewEmailService creates a new email service. An empty fromEmail yields a
// disabled service that accepts and drops every message.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName string, logger *zap.Logger) (*EmailService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if fromEmail == "" {
		logger.Info("email service disabled: SES_FROM_EMAIL not configured")
		return &EmailService{enabled: false, logger: logger}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email service enabled", zap.String("from", fromEmail), zap.String("region", awsRegion))

	return &EmailService{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
		enabled:   true,
		logger:    logger,
	}, nil
}

// IsEnabled returns whether the email service is enabled
func (s *EmailService) IsEnabled() bool {
	return s.enabled
}

const emailLayout = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #2e7d5b; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.code { font-size: 28px; letter-spacing: 6px; font-weight: bold; text-align: center; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header">
			<h1>%s</h1>
		</div>
		<div class="content">
			%s
		</div>
		<div class="footer">
			<p>This is an automated email from Kinship. Please do not reply.</p>
		</div>
	</div>
</body>
</html>
`

const emailFooter = `
---
This is an automated email from Kinship. Please do not reply.
`

// SendOTPEmail sends the one-time verification code
func (s *EmailService) SendOTPEmail(ctx context.Context, toEmail, otp string) error {
	if !s.enabled {
		s.logger.Debug("skipping email send (service disabled)", zap.String("kind", "otp"), zap.String("to", toEmail))
		return nil
	}

	subject := "Your Kinship verification code"
	content := fmt.Sprintf(`<p>Use the code below to verify your Kinship account.</p>
			<p class="code">%s</p>
			<p><strong>This code will expire in a few minutes.</strong></p>
			<p>If you didn't create an account, you can safely ignore this email.</p>`, html.EscapeString(otp))
	htmlBody := fmt.Sprintf(emailLayout, "Verify Your Account", content)
	textBody := fmt.Sprintf(`Use the code below to verify your Kinship account.

%s

This code will expire in a few minutes.

If you didn't create an account, you can safely ignore this email.
%s`, otp, emailFooter)

	return s.sendEmail(ctx, toEmail, subject, htmlBody, textBody)
}

// SendNotificationEmail sends a family notification
func (s *EmailService) SendNotificationEmail(ctx context.Context, toEmail, title, message string) error {
	if !s.enabled {
		s.logger.Debug("skipping email send (service disabled)", zap.String("kind", "notification"), zap.String("to", toEmail))
		return nil
	}

	content := fmt.Sprintf("<p>%s</p>", html.EscapeString(message))
	htmlBody := fmt.Sprintf(emailLayout, html.EscapeString(title), content)
	textBody := message + "\n" + emailFooter

	return s.sendEmail(ctx, toEmail, title, htmlBody, textBody)
}

// sendEmail sends an email using Amazon SES
func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(htmlBody),
						Charset: aws.String("UTF-8"),
					},
					Text: &types.Content{
						Data:    aws.String(textBody),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	fields := []zap.Field{zap.String("to", toEmail), zap.String("subject", subject)}
	if result != nil && result.MessageId != nil {
		fields = append(fields, zap.String("message_id", *result.MessageId))
	}
	s.logger.Info("email sent", fields...)
	return nil
}
