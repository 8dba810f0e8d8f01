package wire

import "time"

// NewMonotonicClock returns a func() GondolaTime that stamps outgoing
// telemetry with microseconds elapsed since the clock was created,
// truncated to 48 bits. spec.md §1 explicitly excludes real clock
// synchronization ("the system only stamps outgoing telemetry with a
// coarse monotonic time value"), so this stands in for whatever the flight
// computer's actual gondola-time source would be; it is injected as a
// func() GondolaTime everywhere precisely so tests can substitute a
// deterministic one instead.
func NewMonotonicClock() func() GondolaTime {
	start := time.Now()
	return func() GondolaTime {
		return GondolaTimeFrom(uint64(time.Since(start).Microseconds()) & 0xFFFFFFFFFFFF)
	}
}
