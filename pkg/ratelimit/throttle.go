// Package ratelimit implements the fixed-rate cooperative throttle used to
// avoid flooding a Sonar server: every N-th outbound request is preceded by
// a fixed pause. The server sends no rate limit headers, so nothing here is
// adaptive.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for throttling.
var (
	throttleWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonar_harvest_throttle_waits_total",
		Help: "Total number of throttle pauses inserted before requests",
	})

	throttleWaitSecondsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sonar_harvest_throttle_wait_seconds_total",
		Help: "Total time spent paused by the throttle",
	})
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Throttle counts outbound requests and pauses before every N-th one.
//
// The counter starts at 1 and is checked before it is incremented, so with
// Every = k the pauses happen before requests k, 2k, 3k, ... (1-indexed).
// A Throttle is not safe for concurrent use; each worker owns its own.
type Throttle struct {
	every  int
	wait   time.Duration
	count  int
	sleep  SleepFunc
	logger zerolog.Logger
}

// Config holds throttle parameters.
type Config struct {
	// Every is the request interval at which a pause is inserted.
	Every int

	// Wait is the length of each pause.
	Wait time.Duration
}

// Validate checks the throttle parameters.
func (c Config) Validate() error {
	if c.Every <= 0 {
		return fmt.Errorf("throttle every must be > 0 (got %d)", c.Every)
	}
	if c.Wait < 0 {
		return fmt.Errorf("throttle wait must be >= 0 (got %s)", c.Wait)
	}
	return nil
}

// NewThrottle creates a throttle with its counter at 1.
func NewThrottle(cfg Config, logger zerolog.Logger) (*Throttle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Throttle{
		every:  cfg.Every,
		wait:   cfg.Wait,
		count:  1,
		sleep:  Sleep,
		logger: logger,
	}, nil
}

// SetSleep replaces the sleep function (for testing).
func (t *Throttle) SetSleep(fn SleepFunc) {
	t.sleep = fn
}

// Reset puts the counter back to 1. Retrievers call it at the start of every
// top-level retrieval.
func (t *Throttle) Reset() {
	t.count = 1
}

// Count returns the number the next request will be checked against.
func (t *Throttle) Count() int {
	return t.count
}

// Wait must be called before every outbound request. It pauses when the
// current count is a multiple of Every and always advances the counter.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.count%t.every == 0 {
		t.logger.Info().
			Int("requests_so_far", t.count).
			Dur("wait", t.wait).
			Msg("Waiting before next request")

		throttleWaitsTotal.Inc()
		throttleWaitSecondsTotal.Add(t.wait.Seconds())

		if err := t.sleep(ctx, t.wait); err != nil {
			return fmt.Errorf("throttle wait: %w", err)
		}
	}
	t.count++
	return nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
