package syncer

import (
	"errors"
	"testing"
	"time"
)

func TestPollConfirmed(t *testing.T) {
	calls := 0
	outcome := Poll(5, time.Second, func(time.Duration) {}, func() (bool, error) {
		calls++
		return calls == 3, nil
	})
	if outcome != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %v", outcome)
	}
	if calls != 3 {
		t.Fatalf("expected 3 checks, got %d", calls)
	}
}

func TestPollTimedOutButSent(t *testing.T) {
	calls := 0
	outcome := Poll(4, time.Second, func(time.Duration) {}, func() (bool, error) {
		calls++
		return false, nil
	})
	if outcome != OutcomeTimedOut {
		t.Fatalf("expected timed-out-but-sent, got %v", outcome)
	}
	if calls != 4 {
		t.Fatalf("expected attempts exhausted, got %d", calls)
	}
}

func TestPollFailed(t *testing.T) {
	outcome := Poll(3, time.Second, func(time.Duration) {}, func() (bool, error) {
		return false, errors.New("boom")
	})
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %v", outcome)
	}
}

func TestPollRecoversFromEarlyError(t *testing.T) {
	calls := 0
	outcome := Poll(3, time.Second, func(time.Duration) {}, func() (bool, error) {
		calls++
		if calls == 1 {
			return false, errors.New("transient")
		}
		return true, nil
	})
	if outcome != OutcomeConfirmed {
		t.Fatalf("an early error followed by confirmation should confirm, got %v", outcome)
	}
}

func TestPollSleepsBetweenAttempts(t *testing.T) {
	var slept []time.Duration
	_ = Poll(3, 2*time.Second, func(d time.Duration) { slept = append(slept, d) }, func() (bool, error) {
		return false, nil
	})
	if len(slept) != 2 {
		t.Fatalf("expected sleep between attempts only, got %d", len(slept))
	}
	for _, d := range slept {
		if d != 2*time.Second {
			t.Fatalf("unexpected delay %v", d)
		}
	}
}

func TestPollMinimumOneAttempt(t *testing.T) {
	calls := 0
	_ = Poll(0, time.Second, func(time.Duration) {}, func() (bool, error) {
		calls++
		return true, nil
	})
	if calls != 1 {
		t.Fatalf("expected at least one attempt, got %d", calls)
	}
}
