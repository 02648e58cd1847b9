package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps ProcessedAt on cleaned records, dates chart subtitles and
// ages boundary cache entries.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for processing stamps and cache ages.
// Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the package clock.
func Now() time.Time {
	return clock.Now()
}
