// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package geocoder

import (
	"context"
	"sync"
	"time"
)

// IntervalLimiter enforces a minimum delay between consecutive requests from
// one worker process. The external service demands at least one second
// between requests, so every outbound call must pass through Wait first.
// The zero value performs no limiting.
type IntervalLimiter struct {
	mu          sync.Mutex
	last        time.Time
	minInterval time.Duration

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewIntervalLimiter builds a limiter with the given minimum inter-request
// interval.
func NewIntervalLimiter(minInterval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the minimum interval since the previous request has
// elapsed, then marks the current request as the latest. Requests are fully
// serialized: concurrent callers queue on the internal lock.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	if l == nil || l.minInterval <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() {
		if wait := l.minInterval - l.now().Sub(l.last); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	l.last = l.now()

	return nil
}
