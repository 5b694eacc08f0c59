package domain

import "github.com/jonboulle/clockwork"

// clock stamps RunResult.GeneratedAt and drives the Pipeline's run timing
// and refresh ticker. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Clock returns the current time source.
func Clock() clockwork.Clock { return clock }
