package dispatch

import (
	"errors"
	"fmt"

	"github.com/cyphera/cyphera-notify/internal/constants"
)

var (
	ErrEmptyRecipients   = errors.New(constants.MsgEmptyRecipients)
	ErrMissingContent    = errors.New(constants.MsgMissingContent)
	ErrBatchTooLarge     = errors.New("batch too large")
	ErrMissingCredential = errors.New(constants.MsgMissingCredential)

	// ErrSenderUnavailable is returned by send adapters that are not configured
	// or cannot reach their provider at all.
	ErrSenderUnavailable = errors.New("email sender unavailable")
)

// BatchTooLargeError reports a batch above the configured limit.
type BatchTooLargeError struct {
	Limit int
	Size  int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("Maximum %d recipients allowed per batch", e.Limit)
}

// Is makes errors.Is(err, ErrBatchTooLarge) match.
func (e *BatchTooLargeError) Is(target error) bool {
	return target == ErrBatchTooLarge
}

// IsValidationError reports whether err is one of the request shape errors
// answered with 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyRecipients) ||
		errors.Is(err, ErrMissingContent) ||
		errors.Is(err, ErrBatchTooLarge)
}
