package email

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendSender delivers messages through the Resend API.
type ResendSender struct {
	client    *resend.Client
	logger    *zap.Logger
	fromEmail string
	fromName  string
}

// ResendOption configures a ResendSender.
type ResendOption func(*ResendSender) error

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(rawURL string) ResendOption {
	return func(s *ResendSender) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid resend base url: %w", err)
		}
		s.client.BaseURL = u
		return nil
	}
}

// NewResendSender creates a Resend backed sender.
func NewResendSender(apiKey, fromEmail, fromName string, log *zap.Logger, opts ...ResendOption) (*ResendSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required: %w", dispatch.ErrSenderUnavailable)
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("from address is required")
	}

	s := &ResendSender{
		client:    resend.NewClient(apiKey),
		logger:    logger.OrNop(log),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Send implements dispatch.Sender.
func (s *ResendSender) Send(ctx context.Context, msg dispatch.Message) error {
	params := &resend.SendEmailRequest{
		From:    formatAddress(s.fromName, s.fromEmail),
		To:      []string{msg.Recipient},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: map[string]string{
			"X-Entity-Ref-ID": uuid.New().String(),
		},
	}
	if msg.Category != "" {
		params.Tags = []resend.Tag{{Name: "category", Value: tagValue(msg.Category)}}
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("%w: %v", dispatch.ErrSenderUnavailable, urlErr)
		}
		return pkgerrors.Wrap(err, "failed to send email")
	}

	s.logger.Debug("Email sent",
		zap.String("email_id", sent.Id),
		zap.String("to", msg.Recipient),
		zap.String("category", msg.Category),
	)
	return nil
}
