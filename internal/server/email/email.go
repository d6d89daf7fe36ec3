// Package email delivers verification codes through an HTTP webhook.
package email

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/voiceauth/internal/logging"
	"github.com/dmitrijs2005/voiceauth/internal/netx"
)

// Sender delivers a verification code to an email address.
type Sender interface {
	Send(ctx context.Context, email, code string) error
}

type payload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// WebhookSender posts {"email","code"} to a mail automation webhook.
// 200, 201 and 202 count as delivered.
type WebhookSender struct {
	url    string
	client *http.Client
	logger logging.Logger
}

func NewWebhookSender(url string, timeout time.Duration, logger logging.Logger) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (s *WebhookSender) Send(ctx context.Context, email, code string) error {
	resp, err := netx.DoJSON(ctx, s.client, http.MethodPost, s.url, nil, payload{Email: email, Code: code})
	if err != nil {
		s.logger.Error(ctx, "email webhook request failed", "email", email, "error", err)
		return fmt.Errorf("email webhook: %w", err)
	}

	switch resp.Status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		s.logger.Info(ctx, "verification code sent", "email", email)
		return nil
	}

	s.logger.Error(ctx, "email webhook rejected request", "email", email, "status", resp.Status, "body", string(resp.Body))
	return fmt.Errorf("email webhook: unexpected status %d", resp.Status)
}

// LogSender stands in when no webhook is configured. It reports success
// without delivering anything.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, email, _ string) error {
	s.logger.Warn(ctx, "email webhook not configured, verification code not delivered", "email", email)
	return nil
}

// NewSender picks the webhook sender when url is set and the logging
// fallback otherwise.
func NewSender(url string, timeout time.Duration, logger logging.Logger) Sender {
	if url == "" {
		return NewLogSender(logger)
	}
	return NewWebhookSender(url, timeout, logger)
}
