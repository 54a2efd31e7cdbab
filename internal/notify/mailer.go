// Package notify renders and delivers attendee emails.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a message and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// ResendMailer sends through Resend.
type ResendMailer struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// NewResendMailer creates a mailer sending as from. baseURL overrides the API endpoint
// when non-empty; httpClient may be nil.
func NewResendMailer(apiKey, from, baseURL string, httpClient *http.Client, logger *zap.Logger) (*ResendMailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client := resend.NewCustomClient(httpClient, apiKey)
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse resend base url: %w", err)
		}
		client.BaseURL = u
	}
	return &ResendMailer{client: client, from: from, logger: logger}, nil
}

// Send delivers msg.
func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	res, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", fmt.Errorf("resend: %w", err)
	}
	m.logger.Debug("email sent", zap.String("provider_id", res.Id), zap.String("subject", msg.Subject))
	return res.Id, nil
}
