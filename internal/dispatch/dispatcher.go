package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"go.uber.org/zap"
)

// Dispatcher fans a validated batch out to a Sender under a Pacer.
type Dispatcher struct {
	sender Sender
	pacer  Pacer
	clock  Clock
	logger *zap.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPacer sets the pacing policy.
func WithPacer(p Pacer) DispatcherOption {
	return func(d *Dispatcher) {
		d.pacer = p
	}
}

// WithClock sets the clock used to stamp the dispatch start.
func WithClock(c Clock) DispatcherOption {
	return func(d *Dispatcher) {
		d.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a Dispatcher. Without options it staggers recipients by
// DefaultStagger on the wall clock.
func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		clock:  RealClock,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pacer == nil {
		d.pacer = NewFixedStagger(constants.DefaultStagger, d.clock)
	}
	d.logger = logger.OrNop(d.logger)
	return d
}

// Dispatch sends the batch to every recipient and returns one outcome per
// recipient, in recipient order. Sends run concurrently and a failure never
// cancels its siblings. Cancelling ctx does not stop a started batch.
//
// The returned error is non-nil only when every send failed with
// ErrSenderUnavailable, in which case the outcomes are still returned.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *ValidatedBatch) ([]DispatchOutcome, error) {
	ctx = context.WithoutCancel(ctx)

	start := d.clock.Now()
	outcomes := make([]DispatchOutcome, len(batch.Recipients))
	errs := make([]error, len(batch.Recipients))

	var wg sync.WaitGroup
	for i, recipient := range batch.Recipients {
		wg.Add(1)
		go func(index int, recipient string) {
			defer wg.Done()

			err := d.sendOne(ctx, start, index, batch.MessageFor(recipient))
			errs[index] = err
			if err != nil {
				d.logger.Warn("Failed to send notification",
					zap.String("recipient", recipient),
					zap.Int("index", index),
					zap.Error(err),
				)
				outcomes[index] = DispatchOutcome{Recipient: recipient, Status: StatusFailed, ErrorDetail: err.Error()}
				return
			}
			outcomes[index] = DispatchOutcome{Recipient: recipient, Status: StatusSent}
		}(i, recipient)
	}
	wg.Wait()

	d.logger.Info("Batch dispatch completed",
		zap.Int("recipient_count", len(batch.Recipients)),
		zap.String("category", batch.Category),
		zap.Duration("duration", d.clock.Now().Sub(start)),
	)

	if allUnavailable(errs) {
		return outcomes, fmt.Errorf("dispatch aborted: %w", ErrSenderUnavailable)
	}
	return outcomes, nil
}

// sendOne waits for the recipient's pacing slot and sends. A panic in the
// sender is converted to an error for this recipient only.
func (d *Dispatcher) sendOne(ctx context.Context, start time.Time, index int, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panicked: %v", r)
		}
	}()

	if err := d.pacer.Wait(ctx, start, index); err != nil {
		return fmt.Errorf("pacing wait: %w", err)
	}
	return d.sender.Send(ctx, msg)
}

func allUnavailable(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !errors.Is(err, ErrSenderUnavailable) {
			return false
		}
	}
	return true
}
