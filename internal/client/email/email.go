// Package email holds the send adapters that deliver a dispatch.Message.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/cyphera/cyphera-notify/internal/dispatch"
)

// UnavailableSender is used when no provider is configured. Every send fails
// with dispatch.ErrSenderUnavailable.
type UnavailableSender struct {
	Reason string
}

func (s UnavailableSender) Send(context.Context, dispatch.Message) error {
	if s.Reason == "" {
		return dispatch.ErrSenderUnavailable
	}
	return fmt.Errorf("%w: %s", dispatch.ErrSenderUnavailable, s.Reason)
}

func formatAddress(name, address string) string {
	if name == "" {
		return address
	}
	return (&mail.Address{Name: name, Address: address}).String()
}

// tagValue maps a category onto the characters Resend accepts in tag values
// (ASCII letters, digits, underscore and dash).
func tagValue(category string) string {
	var b strings.Builder
	for _, r := range category {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func extractDomain(address string) string {
	address = strings.TrimSpace(address)
	if parsed, err := mail.ParseAddress(address); err == nil {
		address = parsed.Address
	}
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return ""
}
