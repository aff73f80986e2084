// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package mailer sends transactional email (verification and password
// reset links) through AWS SES. When no sender address is configured it
// logs the links instead, which is the development default.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
)

const charset = "UTF-8"

// sesAPI is the slice of the SES client the mailer uses. Narrowed for testing.
type sesAPI interface {
	SendEmailWithContext(ctx aws.Context, input *ses.SendEmailInput, opts ...request.Option) (*ses.SendEmailOutput, error)
}

// Config holds mailer settings.
type Config struct {
	From    string // sender address; empty disables sending
	Region  string // AWS SES region
	SiteURL string // base URL used to build links
}

// Mailer sends transactional email.
type Mailer struct {
	svc     sesAPI
	from    string
	siteURL string
	logger  *slog.Logger
}

// New creates a Mailer. When cfg.From is empty the mailer runs in
// log-only mode and never talks to SES.
func New(cfg Config, logger *slog.Logger) (*Mailer, error) {
	m := &Mailer{
		from:    cfg.From,
		siteURL: cfg.SiteURL,
		logger:  logger,
	}
	if cfg.From == "" {
		return m, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	m.svc = ses.New(sess)
	return m, nil
}

// Enabled reports whether the mailer actually sends email.
func (m *Mailer) Enabled() bool {
	return m.svc != nil
}

// SendVerificationEmail sends the email address confirmation link.
func (m *Mailer) SendVerificationEmail(ctx context.Context, to, token string) error {
	link := m.buildLink("/verify-email", token)
	subject := "Confirm your email address"
	body := fmt.Sprintf(
		"Welcome to Blogd!\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nIf you did not create an account, you can ignore this message.\n",
		link)

	return m.send(ctx, to, subject, body, "verification")
}

// SendPasswordResetEmail sends the password reset link.
func (m *Mailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	link := m.buildLink("/reset-password", token)
	subject := "Reset your password"
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\nOpen the link below to choose a new password:\n\n%s\n\nThe link expires shortly. If you did not request a reset, you can ignore this message.\n",
		link)

	return m.send(ctx, to, subject, body, "password reset")
}

// buildLink appends a token query parameter to a site path.
func (m *Mailer) buildLink(path, token string) string {
	return m.siteURL + path + "?token=" + url.QueryEscape(token)
}

func (m *Mailer) send(ctx context.Context, to, subject, body, kind string) error {
	if m.svc == nil {
		// Development mode: surface the link in the log instead of sending.
		m.logger.Info("email sending disabled, logging instead",
			"kind", kind, "to", to, "subject", subject, "body", body)
		return nil
	}

	input := &ses.SendEmailInput{
		Source: aws.String(m.from),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(to)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{
				Charset: aws.String(charset),
				Data:    aws.String(subject),
			},
			Body: &ses.Body{
				Text: &ses.Content{
					Charset: aws.String(charset),
					Data:    aws.String(body),
				},
			},
		},
	}

	if _, err := m.svc.SendEmailWithContext(ctx, input); err != nil {
		return fmt.Errorf("sending %s email: %w", kind, err)
	}

	m.logger.Info("email sent", "kind", kind, "to", to)
	return nil
}
