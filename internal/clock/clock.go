// Package clock abstracts time for components that timestamp or sleep,
// so tests can run with deterministic time.
package clock

import "time"

// Clock provides the time operations the daemon depends on. Production
// code injects Real(); tests inject a Fake with recorded, immediate waits.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. Equivalent to time.After.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
