// Package accrual credits resources proportional to elapsed aligned time
// periods, carrying fractional remainders forward in thousandths so that
// sub-unit rates never lose precision to rounding.
package accrual

import (
	"math"
	"time"
)

// Boundary aligns a time to the enclosing period boundary. Aligning to
// wall-clock boundaries instead of "time since last tick" keeps periods
// comparable across empires and prevents drift from accumulating.
func Boundary(t time.Time, period time.Duration) time.Time {
	return t.UTC().Truncate(period)
}

// Periods counts whole periods between two boundary-aligned times.
func Periods(last, now time.Time, period time.Duration) int64 {
	elapsed := Boundary(now, period).Sub(Boundary(last, period))
	if elapsed <= 0 {
		return 0
	}
	return int64(elapsed / period)
}

// MicroPerPeriod converts an hourly rate to whole micro-units (thousandths)
// credited per period.
func MicroPerPeriod(ratePerHour float64, period time.Duration) int64 {
	return int64(math.Round(ratePerHour * period.Hours() * 1000))
}

// Accrue computes the whole units credited for the elapsed periods plus the
// carried remainder, and the new remainder in [0, 999].
func Accrue(ratePerHour float64, periods int64, remainder int, period time.Duration) (int64, int) {
	if periods <= 0 {
		return 0, remainder
	}

	micro := MicroPerPeriod(ratePerHour, period)*periods + int64(remainder)
	if micro < 0 {
		micro = 0
	}

	return micro / 1000, int(micro % 1000)
}
