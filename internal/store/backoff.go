package store

import "time"

// linearBackOff waits step, 2*step, 3*step, ... between attempts.
// It implements backoff.BackOff; the attempt cap comes from WithMaxRetries.
type linearBackOff struct {
	step    time.Duration
	attempt int64
}

func newLinearBackOff(step time.Duration) *linearBackOff {
	return &linearBackOff{step: step}
}

// NextBackOff returns the delay before the next attempt.
func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.step * time.Duration(b.attempt)
}

// Reset restarts the sequence at one step.
func (b *linearBackOff) Reset() {
	b.attempt = 0
}
