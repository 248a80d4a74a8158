package dispatch

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time so pacing can be driven by a fake in tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}

// Pacer decides when the recipient at index may start, given the time the
// batch dispatch started.
type Pacer interface {
	Wait(ctx context.Context, start time.Time, index int) error
}

// FixedStagger starts recipient i no earlier than start + i*interval.
// Recipients still run concurrently once their slot opens.
type FixedStagger struct {
	interval time.Duration
	clock    Clock
}

// NewFixedStagger creates a FixedStagger pacer. A nil clock uses RealClock.
func NewFixedStagger(interval time.Duration, clock Clock) *FixedStagger {
	if clock == nil {
		clock = RealClock
	}
	return &FixedStagger{interval: interval, clock: clock}
}

// Interval returns the per-recipient stagger.
func (p *FixedStagger) Interval() time.Duration {
	return p.interval
}

func (p *FixedStagger) Wait(ctx context.Context, start time.Time, index int) error {
	if index <= 0 || p.interval <= 0 {
		return nil
	}
	return sleepUntil(ctx, p.clock, start.Add(time.Duration(index)*p.interval))
}

// TokenBucket paces sends with a shared token bucket, so the rate holds
// across concurrent batches using the same pacer.
type TokenBucket struct {
	limiter *rate.Limiter
	clock   Clock
}

// ErrReservationRefused is returned when the bucket can never grant a token.
var ErrReservationRefused = errors.New("pacing: token reservation refused")

// NewTokenBucket creates a TokenBucket allowing perSecond sends with the given
// burst. A nil clock uses RealClock.
func NewTokenBucket(perSecond float64, burst int, clock Clock) *TokenBucket {
	if clock == nil {
		clock = RealClock
	}
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		clock:   clock,
	}
}

func (p *TokenBucket) Wait(ctx context.Context, _ time.Time, _ int) error {
	now := p.clock.Now()
	reservation := p.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return ErrReservationRefused
	}

	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	select {
	case <-p.clock.After(delay):
		return nil
	case <-ctx.Done():
		reservation.CancelAt(p.clock.Now())
		return ctx.Err()
	}
}

func sleepUntil(ctx context.Context, clock Clock, deadline time.Time) error {
	delay := deadline.Sub(clock.Now())
	if delay <= 0 {
		return nil
	}

	select {
	case <-clock.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
