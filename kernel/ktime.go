package kernel

import "fmt"

// Time is a point on the wide monotonic clock: the number of sleep timer
// overflows plus the 16-bit counter value within the current cycle.
type Time struct {
	Overflows uint64
	Remainder uint16
}

// TimeFromTicks splits a tick count into overflows and remainder.
func TimeFromTicks(ticks uint64) Time {
	return Time{Overflows: ticks >> 16, Remainder: uint16(ticks)}
}

// Ticks returns t as a tick count. It wraps if Overflows needs more than 48
// bits.
func (t Time) Ticks() uint64 { return t.Overflows<<16 | uint64(t.Remainder) }

// Add returns t+d, carrying remainder overflow into the overflow count.
func (t Time) Add(d Time) Time {
	if 0xFFFF-d.Remainder < t.Remainder {
		t.Overflows++
	}
	t.Remainder += d.Remainder
	t.Overflows += d.Overflows
	return t
}

// Cmp returns -1, 0 or +1 depending on whether t is before, equal to or
// after u.
func (t Time) Cmp(u Time) int {
	switch {
	case t.Overflows < u.Overflows:
		return -1
	case t.Overflows > u.Overflows:
		return 1
	case t.Remainder < u.Remainder:
		return -1
	case t.Remainder > u.Remainder:
		return 1
	}
	return 0
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t.Cmp(u) < 0 }

func (t Time) String() string {
	return fmt.Sprintf("%d:%05d", t.Overflows, t.Remainder)
}

// TicksFor converts a duration of sec seconds plus nsec nanoseconds into a
// wide time value at the given timer rate. Sub-tick nanoseconds truncate.
func TicksFor(sec, nsec uint32, ticksPerSecond uint32) Time {
	tps := uint64(ticksPerSecond)
	s := TimeFromTicks(uint64(sec) * tps)
	ns := TimeFromTicks(uint64(nsec) * tps / 1e9)
	return s.Add(ns)
}
