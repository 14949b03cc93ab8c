package session

import (
	"errors"
	"testing"
	"time"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func TestSequencerFiresOnceAcrossCoarseTicks(t *testing.T) {
	s := NewSequencer()
	calls := 0
	var firedAt time.Duration
	s.Schedule("tare", ms(2000), func() error {
		calls++
		firedAt = s.Elapsed()
		return nil
	})

	for _, e := range []int{0, 900, 1900, 2100, 3000} {
		if _, err := s.Advance(ms(e)); err != nil {
			t.Fatalf("Advance(%d): %v", e, err)
		}
	}
	if calls != 1 {
		t.Fatalf("action ran %d times, want 1", calls)
	}
	if firedAt != ms(2100) {
		t.Fatalf("fired at %v, want 2.1s", firedAt)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d", s.Pending())
	}
}

func TestSequencerExactThreshold(t *testing.T) {
	s := NewSequencer()
	calls := 0
	s.Schedule("x", ms(2000), func() error { calls++; return nil })
	fired, _ := s.Advance(ms(2000))
	if calls != 1 || len(fired) != 1 || fired[0].Name != "x" || fired[0].Threshold != ms(2000) {
		t.Fatalf("calls=%d fired=%+v", calls, fired)
	}
}

func TestSequencerTimeNeverGoesBackwards(t *testing.T) {
	s := NewSequencer()
	calls := 0
	s.Schedule("late", ms(1500), func() error { calls++; return nil })

	s.Advance(ms(1000))
	s.Advance(ms(200)) // jitter: ignored
	if s.Elapsed() != ms(1000) {
		t.Fatalf("elapsed = %v", s.Elapsed())
	}
	s.Advance(ms(1600))
	s.Advance(ms(100))
	s.Advance(ms(5000))
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSequencerOrderAndErrors(t *testing.T) {
	s := NewSequencer()
	var order []string
	boom := errors.New("boom")
	s.Schedule("a", ms(100), func() error { order = append(order, "a"); return nil })
	s.Schedule("b", ms(50), func() error { order = append(order, "b"); return boom })
	s.Schedule("c", ms(900), func() error { order = append(order, "c"); return nil })

	fired, err := s.Advance(ms(500))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(fired) != 2 || fired[1].Err == nil {
		t.Fatalf("fired = %+v", fired)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v", order)
	}
	// A failed action is still spent.
	if fired, _ := s.Advance(ms(600)); len(fired) != 0 {
		t.Fatalf("refired: %+v", fired)
	}
	if s.Pending() != 1 {
		t.Fatalf("pending = %d", s.Pending())
	}
}
