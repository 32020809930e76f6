package syncer

import "time"

// Outcome is the tri-state result of a bounded confirmation poll.
type Outcome int

const (
	// OutcomeConfirmed: the checked condition came true.
	OutcomeConfirmed Outcome = iota
	// OutcomeTimedOut: attempts exhausted without an error. The work
	// was sent but never confirmed; callers proceed rather than fail.
	OutcomeTimedOut
	// OutcomeFailed: the last attempt ended in an error.
	OutcomeFailed
)

// Poll runs check up to attempts times with a fixed delay between
// tries. sleep is injectable so tests run instantly.
func Poll(attempts int, delay time.Duration, sleep func(time.Duration), check func() (bool, error)) Outcome {
	if attempts < 1 {
		attempts = 1
	}
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleep(delay)
		}
		ok, err := check()
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		if ok {
			return OutcomeConfirmed
		}
	}
	if lastErr != nil {
		return OutcomeFailed
	}
	return OutcomeTimedOut
}
