package timeutil

import (
	"testing"
	"time"
)

var _ Clock = RealClock{}
var _ Clock = (*MockClock)(nil)

func TestRealClock(t *testing.T) {
	var c RealClock
	before := time.Now()
	c.Sleep(2 * time.Millisecond)
	now := c.Now()

	if now.Sub(before) < 2*time.Millisecond {
		t.Errorf("Sleep returned after %v, want at least 2ms", now.Sub(before))
	}
}

func TestMockClock(t *testing.T) {
	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	c := NewMockClock(start)

	if !c.Now().Equal(start) {
		t.Fatalf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(time.Minute)
	c.Sleep(20 * time.Millisecond)
	c.Sleep(40 * time.Millisecond)

	want := start.Add(time.Minute + 60*time.Millisecond)
	if !c.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 20*time.Millisecond || sleeps[1] != 40*time.Millisecond {
		t.Fatalf("Sleeps() = %v", sleeps)
	}
	sleeps[0] = 0
	if c.Sleeps()[0] != 20*time.Millisecond {
		t.Error("Sleeps() shares its backing array")
	}
}

func TestMockClock_NoSleeps(t *testing.T) {
	c := NewMockClock(time.Time{})
	if got := c.Sleeps(); len(got) != 0 {
		t.Errorf("Sleeps() = %v, want empty", got)
	}
}
