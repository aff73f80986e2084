// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ses"
)

// fakeSES captures SendEmail inputs instead of talking to AWS.
type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmailWithContext(_ aws.Context, input *ses.SendEmailInput, _ ...request.Option) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, input)
	return &ses.SendEmailOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeMailer(fake *fakeSES) *Mailer {
	return &Mailer{
		svc:     fake,
		from:    "noreply@blogd.example",
		siteURL: "https://blogd.example",
		logger:  testLogger(),
	}
}

func TestSendVerificationEmail(t *testing.T) {
	fake := &fakeSES{}
	m := newFakeMailer(fake)

	if err := m.SendVerificationEmail(context.Background(), "new@example.com", "tok123"); err != nil {
		t.Fatalf("SendVerificationEmail: %v", err)
	}

	if len(fake.inputs) != 1 {
		t.Fatalf("sent = %d, want 1", len(fake.inputs))
	}
	input := fake.inputs[0]
	if got := aws.StringValue(input.Source); got != "noreply@blogd.example" {
		t.Errorf("source = %q", got)
	}
	if got := aws.StringValue(input.Destination.ToAddresses[0]); got != "new@example.com" {
		t.Errorf("to = %q", got)
	}
	body := aws.StringValue(input.Message.Body.Text.Data)
	if !strings.Contains(body, "https://blogd.example/verify-email?token=tok123") {
		t.Errorf("body missing verification link: %q", body)
	}
}

func TestSendPasswordResetEmail(t *testing.T) {
	fake := &fakeSES{}
	m := newFakeMailer(fake)

	if err := m.SendPasswordResetEmail(context.Background(), "user@example.com", "r+t"); err != nil {
		t.Fatalf("SendPasswordResetEmail: %v", err)
	}

	body := aws.StringValue(fake.inputs[0].Message.Body.Text.Data)
	// Token must be query escaped.
	if !strings.Contains(body, "/reset-password?token=r%2Bt") {
		t.Errorf("body missing escaped reset link: %q", body)
	}
}

func TestSendError(t *testing.T) {
	sendErr := errors.New("ses unavailable")
	m := newFakeMailer(&fakeSES{err: sendErr})

	err := m.SendPasswordResetEmail(context.Background(), "user@example.com", "tok")
	if !errors.Is(err, sendErr) {
		t.Errorf("err = %v, want wrapped send error", err)
	}
}

func TestLogOnlyMode(t *testing.T) {
	m, err := New(Config{SiteURL: "http://localhost:8080"}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Enabled() {
		t.Error("mailer without a sender address must be disabled")
	}

	// Sending in log-only mode succeeds without touching SES.
	if err := m.SendVerificationEmail(context.Background(), "dev@example.com", "tok"); err != nil {
		t.Errorf("log-only send: %v", err)
	}
}
