package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBatch(rs ...string) *ValidatedBatch {
	return &ValidatedBatch{Recipients: rs, Subject: "Subject", Body: "Body", Category: "admin-bulk", Token: "t"}
}

func TestDispatcherOutcomes(t *testing.T) {
	errBounce := errors.New("mailbox unavailable")
	sender := SenderFunc(func(_ context.Context, msg Message) error {
		if msg.Recipient == "b@x.com" {
			return errBounce
		}
		return nil
	})

	d := NewDispatcher(sender, WithClock(newFakeClock()), WithLogger(zap.NewNop()))
	outcomes, err := d.Dispatch(context.Background(), newBatch("a@x.com", "b@x.com", "c@x.com"))
	require.NoError(t, err)

	assert.Equal(t, []DispatchOutcome{
		{Recipient: "a@x.com", Status: StatusSent},
		{Recipient: "b@x.com", Status: StatusFailed, ErrorDetail: "mailbox unavailable"},
		{Recipient: "c@x.com", Status: StatusSent},
	}, outcomes)

	summary := Aggregate(outcomes)
	assert.Equal(t, "66.7%", summary.Stats().SuccessRate)
}

func TestDispatcherPartitionHoldsForAnyFailurePattern(t *testing.T) {
	for mask := 0; mask < 1<<5; mask++ {
		t.Run(fmt.Sprintf("mask_%05b", mask), func(t *testing.T) {
			rs := recipients(5)
			failing := map[string]bool{}
			for i, r := range rs {
				if mask&(1<<i) != 0 {
					failing[r] = true
				}
			}

			sender := SenderFunc(func(_ context.Context, msg Message) error {
				if failing[msg.Recipient] {
					return errors.New("rejected")
				}
				return nil
			})
			d := NewDispatcher(sender, WithPacer(NewFixedStagger(0, nil)))

			outcomes, err := d.Dispatch(context.Background(), newBatch(rs...))
			require.NoError(t, err)
			summary := Aggregate(outcomes)

			assert.Equal(t, len(rs), summary.Total)
			assert.Equal(t, len(rs), len(summary.Successful)+len(summary.Failed))
			assert.Equal(t, len(failing), len(summary.Failed))
			for i, o := range outcomes {
				assert.Equal(t, rs[i], o.Recipient)
			}
		})
	}
}

func TestDispatcherDuplicatesSentPerOccurrence(t *testing.T) {
	var calls atomic.Int32
	sender := SenderFunc(func(context.Context, Message) error {
		calls.Add(1)
		return nil
	})

	d := NewDispatcher(sender, WithClock(newFakeClock()))
	outcomes, err := d.Dispatch(context.Background(), newBatch("a@x.com", "a@x.com"))
	require.NoError(t, err)

	assert.Len(t, outcomes, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcherStaggersRecipients(t *testing.T) {
	clock := newFakeClock()
	d := NewDispatcher(SenderFunc(func(context.Context, Message) error { return nil }), WithClock(clock))

	_, err := d.Dispatch(context.Background(), newBatch(recipients(4)...))
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}, clock.sortedDelays())
}

func TestDispatcherPanicIsolated(t *testing.T) {
	sender := SenderFunc(func(_ context.Context, msg Message) error {
		if msg.Recipient == "boom@x.com" {
			panic("nil pointer in adapter")
		}
		return nil
	})

	d := NewDispatcher(sender, WithClock(newFakeClock()))
	outcomes, err := d.Dispatch(context.Background(), newBatch("a@x.com", "boom@x.com"))
	require.NoError(t, err)

	assert.Equal(t, StatusSent, outcomes[0].Status)
	assert.Equal(t, StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].ErrorDetail, "send panicked")
}

func TestDispatcherAllUnavailable(t *testing.T) {
	sender := SenderFunc(func(context.Context, Message) error {
		return fmt.Errorf("resend: %w", ErrSenderUnavailable)
	})

	d := NewDispatcher(sender, WithClock(newFakeClock()))
	outcomes, err := d.Dispatch(context.Background(), newBatch("a@x.com", "b@x.com"))

	assert.ErrorIs(t, err, ErrSenderUnavailable)
	assert.Len(t, outcomes, 2)
}

func TestDispatcherPartialUnavailableIsNotAnError(t *testing.T) {
	sender := SenderFunc(func(_ context.Context, msg Message) error {
		if msg.Recipient == "a@x.com" {
			return ErrSenderUnavailable
		}
		return nil
	})

	d := NewDispatcher(sender, WithClock(newFakeClock()))
	_, err := d.Dispatch(context.Background(), newBatch("a@x.com", "b@x.com"))
	assert.NoError(t, err)
}

func TestDispatcherIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var mu sync.Mutex
	var seenErrs []error
	sender := SenderFunc(func(sendCtx context.Context, _ Message) error {
		mu.Lock()
		seenErrs = append(seenErrs, sendCtx.Err())
		mu.Unlock()
		return nil
	})

	d := NewDispatcher(sender, WithClock(newFakeClock()))
	outcomes, err := d.Dispatch(ctx, newBatch("a@x.com", "b@x.com", "c@x.com"))
	require.NoError(t, err)

	for _, o := range outcomes {
		assert.Equal(t, StatusSent, o.Status)
	}
	for _, e := range seenErrs {
		assert.NoError(t, e)
	}
}

func TestDispatcherMessageContent(t *testing.T) {
	var got Message
	sender := SenderFunc(func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})

	batch := newBatch("a@x.com")
	batch.Category = "maintenance"
	_, err := NewDispatcher(sender, WithClock(newFakeClock())).Dispatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, Message{Recipient: "a@x.com", Subject: "Subject", Text: "Body", Category: "maintenance"}, got)
}
