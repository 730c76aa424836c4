package pipeline

import "time"

// SetBackoffForTesting shortens the retry delays.
func (p *Pipeline) SetBackoffForTesting(initial, maxDelay time.Duration) {
	p.initialBackoff = initial
	p.maxBackoff = maxDelay
}
