package uart

import "time"

// Default backoff bounds.
const (
	DefaultBaseDelay = 5 * time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// Backoff produces doubling delays between base and max.
//
// Not safe for concurrent use; each loop owns its own Backoff.
type Backoff struct {
	base time.Duration
	max  time.Duration
	next time.Duration
}

// NewBackoff creates a Backoff starting at base and capped at max.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if max < base {
		max = base
	}
	return &Backoff{base: base, max: max, next: base}
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// Reset makes the next delay the base delay again.
func (b *Backoff) Reset() {
	b.next = b.base
}
