package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OutcomeStatus is the result of a single recipient send.
type OutcomeStatus string

const (
	StatusSent   OutcomeStatus = "sent"
	StatusFailed OutcomeStatus = "failed"
)

// BatchRequest is the caller supplied bulk notification. Recipients keep their
// order and duplicates; a duplicated address is sent to once per occurrence.
type BatchRequest struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Category   string   `json:"category,omitempty"`
}

// UnmarshalJSON decodes a BatchRequest. A recipients value that is missing,
// null or not an array decodes to no recipients so the validator reports it
// as empty. An array holding anything other than strings is a malformed body.
func (r *BatchRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Recipients json.RawMessage `json:"recipients"`
		Subject    string          `json:"subject"`
		Body       string          `json:"body"`
		Category   string          `json:"category"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var recipients []string
	if len(raw.Recipients) > 0 {
		if err := json.Unmarshal(raw.Recipients, &recipients); err != nil {
			if bytes.HasPrefix(bytes.TrimSpace(raw.Recipients), []byte("[")) {
				return fmt.Errorf("recipients must be an array of strings: %w", err)
			}
			recipients = nil
		}
	}

	*r = BatchRequest{
		Recipients: recipients,
		Subject:    raw.Subject,
		Body:       raw.Body,
		Category:   raw.Category,
	}
	return nil
}

// ValidatedBatch is a BatchRequest that passed validation, together with the
// bearer token presented by the caller.
type ValidatedBatch struct {
	Recipients []string
	Subject    string
	Body       string
	Category   string
	Token      string
}

// Request returns the batch as a BatchRequest with the defaulted category.
func (b *ValidatedBatch) Request() BatchRequest {
	return BatchRequest{
		Recipients: b.Recipients,
		Subject:    b.Subject,
		Body:       b.Body,
		Category:   b.Category,
	}
}

// MessageFor builds the message sent to one recipient of the batch.
func (b *ValidatedBatch) MessageFor(recipient string) Message {
	return Message{
		Recipient: recipient,
		Subject:   b.Subject,
		Text:      b.Body,
		Category:  b.Category,
	}
}

// DispatchOutcome is the per-recipient result of a send attempt.
type DispatchOutcome struct {
	Recipient   string        `json:"recipient"`
	Status      OutcomeStatus `json:"status"`
	ErrorDetail string        `json:"error,omitempty"`
}

// BatchSummary partitions the outcomes of one batch.
// len(Successful)+len(Failed) == Total.
type BatchSummary struct {
	Total      int               `json:"total"`
	Successful []DispatchOutcome `json:"successful"`
	Failed     []DispatchOutcome `json:"failed"`
}

// BatchStats is the caller facing roll-up of a BatchSummary.
type BatchStats struct {
	TotalSent   int    `json:"totalSent"`
	TotalFailed int    `json:"totalFailed"`
	SuccessRate string `json:"successRate"`
}
