package util

import (
	"testing"
	"time"
)

func TestThrottleCountsSuppressedEvents(t *testing.T) {
	th := NewThrottle(40 * time.Millisecond)

	ok, skipped := th.Allow()
	if !ok || skipped != 0 {
		t.Fatalf("first event: got (%v, %d), want (true, 0)", ok, skipped)
	}
	for i := 0; i < 3; i++ {
		if ok, _ := th.Allow(); ok {
			t.Fatalf("event %d inside the interval should be throttled", i)
		}
	}

	time.Sleep(60 * time.Millisecond)
	ok, skipped = th.Allow()
	if !ok {
		t.Fatal("event after the interval should pass")
	}
	if skipped != 3 {
		t.Fatalf("suppressed = %d, want 3", skipped)
	}
}

func TestThrottleWithoutInterval(t *testing.T) {
	th := NewThrottle(0)
	for i := 0; i < 5; i++ {
		if ok, skipped := th.Allow(); !ok || skipped != 0 {
			t.Fatalf("event %d: got (%v, %d)", i, ok, skipped)
		}
	}
}
