package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recordingSleep records the request number at which each pause happened.
type recordingSleep struct {
	throttle *Throttle
	pausedAt []int
	waits    []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.pausedAt = append(r.pausedAt, r.throttle.Count())
	r.waits = append(r.waits, d)
	return nil
}

func newRecordingThrottle(t *testing.T, every int, wait time.Duration) (*Throttle, *recordingSleep) {
	t.Helper()
	th, err := NewThrottle(Config{Every: every, Wait: wait}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewThrottle() error = %v", err)
	}
	rec := &recordingSleep{throttle: th}
	th.SetSleep(rec.sleep)
	return th, rec
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Every: 10, Wait: 6500 * time.Millisecond}, false},
		{"zero wait", Config{Every: 1, Wait: 0}, false},
		{"zero every", Config{Every: 0, Wait: time.Second}, true},
		{"negative wait", Config{Every: 5, Wait: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestThrottle_PausesBeforeMultiplesOfEvery(t *testing.T) {
	tests := []struct {
		name     string
		every    int
		requests int
		want     []int
	}{
		{"every 10, 25 requests", 10, 25, []int{10, 20}},
		{"every 3, 9 requests", 3, 9, []int{3, 6, 9}},
		{"every 15, 14 requests", 15, 14, nil},
		{"every 1 pauses always", 1, 3, []int{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th, rec := newRecordingThrottle(t, tt.every, time.Second)

			for i := 0; i < tt.requests; i++ {
				if err := th.Wait(context.Background()); err != nil {
					t.Fatalf("Wait() error = %v", err)
				}
			}

			if len(rec.pausedAt) != len(tt.want) {
				t.Fatalf("paused at %v, want %v", rec.pausedAt, tt.want)
			}
			for i := range tt.want {
				if rec.pausedAt[i] != tt.want[i] {
					t.Errorf("pause %d at request %d, want %d", i, rec.pausedAt[i], tt.want[i])
				}
			}
			if th.Count() != tt.requests+1 {
				t.Errorf("Count() = %d, want %d", th.Count(), tt.requests+1)
			}
		})
	}
}

func TestThrottle_UsesConfiguredWait(t *testing.T) {
	th, rec := newRecordingThrottle(t, 2, 6500*time.Millisecond)

	for i := 0; i < 2; i++ {
		_ = th.Wait(context.Background())
	}

	if len(rec.waits) != 1 || rec.waits[0] != 6500*time.Millisecond {
		t.Errorf("waits = %v, want [6.5s]", rec.waits)
	}
}

func TestThrottle_Reset(t *testing.T) {
	th, rec := newRecordingThrottle(t, 3, time.Second)

	_ = th.Wait(context.Background())
	_ = th.Wait(context.Background())
	th.Reset()

	if th.Count() != 1 {
		t.Fatalf("Count() after Reset = %d, want 1", th.Count())
	}

	_ = th.Wait(context.Background())
	_ = th.Wait(context.Background())
	if len(rec.pausedAt) != 0 {
		t.Errorf("expected no pause after reset, got %v", rec.pausedAt)
	}

	_ = th.Wait(context.Background())
	if len(rec.pausedAt) != 1 {
		t.Errorf("expected pause on third request after reset, got %v", rec.pausedAt)
	}
}

func TestThrottle_CancelledContext(t *testing.T) {
	th, err := NewThrottle(Config{Every: 1, Wait: time.Hour}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewThrottle() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = th.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestSleep(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("Sleep returned early")
	}

	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep error = %v", err)
	}
}
