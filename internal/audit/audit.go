package audit

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/cyphera/cyphera-notify/internal/constants"
)

// Record is the audit entry written once per dispatched batch.
type Record struct {
	ID              string    `json:"id"`
	SentBy          string    `json:"sentBy"`
	Subject         string    `json:"subject"`
	RecipientCount  int       `json:"recipientCount"`
	SuccessfulCount int       `json:"successfulCount"`
	FailedCount     int       `json:"failedCount"`
	Category        string    `json:"category"`
	MessagePreview  string    `json:"messagePreview"`
	CorrelationID   string    `json:"correlationId,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Store appends audit records. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, record Record) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, record Record) error

func (f StoreFunc) Append(ctx context.Context, record Record) error {
	return f(ctx, record)
}

// MessagePreview returns the first MessagePreviewLength characters of body,
// followed by "..." when body was longer.
func MessagePreview(body string) string {
	if utf8.RuneCountInString(body) <= constants.MessagePreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:constants.MessagePreviewLength]) + "..."
}

// FanoutStore appends every record to each of its stores. All stores are
// attempted; the joined errors are returned.
type FanoutStore []Store

func (f FanoutStore) Append(ctx context.Context, record Record) error {
	var errs []error
	for _, store := range f {
		if err := store.Append(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
