// Copyright 2026 The Patchbay Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	c.Advance(2 * time.Second)
	if got, want := c.Now(), epoch.Add(2*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestFakeAfter(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	channel := c.After(time.Second)

	c.Advance(500 * time.Millisecond)
	select {
	case <-channel:
		t.Fatal("After fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if c.Pending() != 0 {
		t.Errorf("Pending() = %d after fire, want 0", c.Pending())
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not deliver immediately")
	}
}

func TestFakeTicker(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	ticker := c.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		c.Advance(2 * time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d not delivered", i)
		}
	}

	// Two periods in one advance still leave a single buffered tick.
	c.Advance(4 * time.Second)
	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("second tick queued, want dropped")
	default:
	}
}

func TestFakeTickerStopAndReset(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()
	if c.Pending() != 0 {
		t.Fatalf("Pending() = %d after Stop, want 0", c.Pending())
	}

	c.Advance(time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}

	ticker.Reset(3 * time.Second)
	c.Advance(2 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("reset ticker fired before its new interval")
	default:
	}
	c.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("reset ticker did not fire")
	}
}

func TestFakeWaitForWaiters(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	fired := make(chan struct{})
	go func() {
		<-c.After(time.Minute)
		close(fired)
	}()

	c.WaitForWaiters(1)
	c.Advance(time.Minute)
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("goroutine not released by Advance")
	}
}

func TestFakeTickerPanicsOnZero(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}
