package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig holds the minimum duration of a failed authentication
type TimingConfig struct {
	BaseDelayMs   int // Minimum total duration
	RandomDelayMs int // Upper bound of added jitter
}

// TimingDelay pads failed authentications to a minimum duration so that
// "unknown email" and "wrong password" are indistinguishable by latency
type TimingDelay struct {
	config TimingConfig
	sleep  func(ctx context.Context, d time.Duration)
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{
		config: config,
		sleep:  sleepContext,
	}
}

// NoDelay returns a TimingDelay that never sleeps
func NoDelay() *TimingDelay {
	return NewTimingDelay(TimingConfig{})
}

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// target returns base delay plus crypto-random jitter
func (td *TimingDelay) target() time.Duration {
	delay := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.RandomDelayMs)))
		if err == nil {
			delay += time.Duration(n.Int64()) * time.Millisecond
		}
	}
	return delay
}

// PadFrom blocks until at least the target delay has passed since start.
// Returns early if ctx is cancelled.
func (td *TimingDelay) PadFrom(ctx context.Context, start time.Time) {
	if td == nil {
		return
	}

	remaining := td.target() - time.Since(start)
	if remaining <= 0 {
		return
	}
	td.sleep(ctx, remaining)
}
