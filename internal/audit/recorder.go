package audit

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cyphera/cyphera-notify/internal/auth"
	"github.com/cyphera/cyphera-notify/internal/dispatch"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/cyphera/cyphera-notify/internal/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RetryConfig configures how often a failed append is retried.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Timeout         time.Duration
}

// DefaultRetryConfig retries twice within a five second budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Timeout:         5 * time.Second,
	}
}

// Recorder writes one audit record per batch. Recording is best effort: a
// failure is logged and never reaches the caller.
type Recorder struct {
	store  Store
	logger *zap.Logger
	retry  RetryConfig
	now    func() time.Time
	newID  func() string
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg RetryConfig) RecorderOption {
	return func(r *Recorder) {
		r.retry = cfg
	}
}

// WithNow sets the timestamp source.
func WithNow(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder appending to store.
func NewRecorder(store Store, log *zap.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: logger.OrNop(log),
		retry:  DefaultRetryConfig(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build assembles the audit record for a dispatched batch.
func (r *Recorder) Build(ctx context.Context, summary dispatch.BatchSummary, batch *dispatch.ValidatedBatch, caller auth.Caller) Record {
	return Record{
		ID:              r.newID(),
		SentBy:          caller.Identity,
		Subject:         batch.Subject,
		RecipientCount:  summary.Total,
		SuccessfulCount: len(summary.Successful),
		FailedCount:     len(summary.Failed),
		Category:        batch.Category,
		MessagePreview:  MessagePreview(batch.Body),
		CorrelationID:   middleware.CorrelationIDFromContext(ctx),
		Timestamp:       r.now(),
	}
}

// Record builds and appends the audit record. It does not return an error and
// is not interrupted by cancellation of ctx.
func (r *Recorder) Record(ctx context.Context, summary dispatch.BatchSummary, batch *dispatch.ValidatedBatch, caller auth.Caller) {
	record := r.Build(ctx, summary, batch, caller)
	log := middleware.LogWithCorrelationID(ctx, r.logger)

	ctx = context.WithoutCancel(ctx)
	if r.retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.retry.Timeout)
		defer cancel()
	}

	// Each store of a fan-out is retried on its own so a store that accepted
	// the record is never written again.
	targets := []Store{r.store}
	if fanout, ok := r.store.(FanoutStore); ok {
		targets = fanout
	}

	failed := 0
	for i, store := range targets {
		if err := r.appendWithRetry(ctx, store, record, log); err != nil {
			failed++
			log.Error("Failed to record bulk notification audit",
				zap.String("audit_id", record.ID),
				zap.String("sent_by", record.SentBy),
				zap.Int("store", i),
				zap.Error(err),
			)
		}
	}
	if failed == len(targets) {
		return
	}

	log.Info("Bulk notification audit recorded",
		zap.String("audit_id", record.ID),
		zap.String("sent_by", record.SentBy),
		zap.Int("recipient_count", record.RecipientCount),
		zap.Int("failed_count", record.FailedCount),
	)
}

func (r *Recorder) appendWithRetry(ctx context.Context, store Store, record Record, log *zap.Logger) error {
	operation := func() error {
		return store.Append(ctx, record)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = r.retry.InitialInterval
	expBackoff.MaxInterval = r.retry.MaxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(max(r.retry.MaxRetries, 0))), ctx)

	notify := func(err error, wait time.Duration) {
		log.Warn("Audit append failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}

	return backoff.RetryNotify(operation, policy, notify)
}
