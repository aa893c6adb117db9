// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source injected into everything that
// schedules work: the reconciliation watcher's tick loop and the
// snapshot timestamps taken by the port registry.
//
// Production code uses [Real]. Tests use [Fake], whose time moves only
// when [FakeClock.Advance] is called; [FakeClock.WaitForWaiters] lets
// a test block until the goroutine under test has registered its
// ticker, so advancing never races registration.
package clock

import "time"

// Clock is the subset of the time package the patchbay needs.
type Clock interface {
	Now() time.Time

	// After delivers the current time once d has elapsed. A
	// non-positive d delivers immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker delivers ticks every d. It panics if d <= 0, like
	// time.NewTicker. Slow consumers miss ticks rather than queue them.
	NewTicker(d time.Duration) *Ticker
}

// Ticker is a periodic event source. Stop it when done.
type Ticker struct {
	C <-chan time.Time

	stop  func()
	reset func(time.Duration)
}

// Stop ends the tick stream. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Reset changes the interval; the next tick arrives d after the call.
func (t *Ticker) Reset(d time.Duration) { t.reset(d) }

// Real returns the wall clock.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (wallClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop, reset: ticker.Reset}
}
