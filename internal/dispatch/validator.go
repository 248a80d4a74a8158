package dispatch

import (
	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/helpers"
)

// Validator checks a BatchRequest before any dispatch work starts.
type Validator struct {
	maxBatchSize int
}

// NewValidator creates a Validator. A non-positive limit uses MaxBatchSize.
func NewValidator(maxBatchSize int) *Validator {
	if maxBatchSize <= 0 {
		maxBatchSize = constants.MaxBatchSize
	}
	return &Validator{maxBatchSize: maxBatchSize}
}

// MaxBatchSize returns the configured recipient limit.
func (v *Validator) MaxBatchSize() int {
	return v.maxBatchSize
}

// Validate runs the checks in order and returns the first failure:
// empty recipients, missing subject or body, oversized batch, missing bearer
// credential.
func (v *Validator) Validate(req BatchRequest, authHeader string) (*ValidatedBatch, error) {
	if len(req.Recipients) == 0 {
		return nil, ErrEmptyRecipients
	}

	if req.Subject == "" || req.Body == "" {
		return nil, ErrMissingContent
	}

	if len(req.Recipients) > v.maxBatchSize {
		return nil, &BatchTooLargeError{Limit: v.maxBatchSize, Size: len(req.Recipients)}
	}

	token, ok := helpers.BearerToken(authHeader)
	if !ok {
		return nil, ErrMissingCredential
	}

	category := req.Category
	if category == "" {
		category = constants.DefaultCategory
	}

	recipients := make([]string, len(req.Recipients))
	copy(recipients, req.Recipients)

	return &ValidatedBatch{
		Recipients: recipients,
		Subject:    req.Subject,
		Body:       req.Body,
		Category:   category,
		Token:      token,
	}, nil
}
