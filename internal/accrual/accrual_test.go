package accrual

import (
	"testing"
	"time"
)

func TestBoundaryAligns(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 34, 56, 789, time.UTC)

	got := Boundary(ts, time.Minute)
	want := time.Date(2025, 3, 1, 12, 34, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Boundary = %v, want %v", got, want)
	}

	if !Boundary(got, time.Minute).Equal(got) {
		t.Error("Boundary of a boundary should be itself")
	}
}

func TestPeriods(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want int64
	}{
		{"same period", base.Add(10 * time.Second), base.Add(50 * time.Second), 0},
		{"one period", base, base.Add(time.Minute), 1},
		{"partial periods truncate", base.Add(30 * time.Second), base.Add(90 * time.Second), 1},
		{"many periods", base, base.Add(90 * time.Minute), 90},
		{"clock skew backwards", base.Add(time.Minute), base, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Periods(tt.last, tt.now, time.Minute); got != tt.want {
				t.Errorf("Periods = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMicroPerPeriod(t *testing.T) {
	// 0.5/hour over a one-minute period is 8.33 thousandths, rounded to 8
	if got := MicroPerPeriod(0.5, time.Minute); got != 8 {
		t.Errorf("MicroPerPeriod(0.5, 1m) = %d, want 8", got)
	}
	if got := MicroPerPeriod(60, time.Minute); got != 1000 {
		t.Errorf("MicroPerPeriod(60, 1m) = %d, want 1000", got)
	}
}

func TestAccrueCarriesRemainder(t *testing.T) {
	// 8 micro/period: 125 periods yield exactly one whole unit
	whole, remainder := Accrue(0.5, 125, 0, time.Minute)
	if whole != 1 || remainder != 0 {
		t.Errorf("Accrue(0.5, 125) = (%d, %d), want (1, 0)", whole, remainder)
	}

	whole, remainder = Accrue(0.5, 1000, 0, time.Minute)
	if whole != 8 || remainder != 0 {
		t.Errorf("Accrue(0.5, 1000) = (%d, %d), want (8, 0)", whole, remainder)
	}

	whole, remainder = Accrue(0.5, 3, 990, time.Minute)
	if whole != 1 || remainder != 14 {
		t.Errorf("Accrue(0.5, 3, 990) = (%d, %d), want (1, 14)", whole, remainder)
	}
}

func TestAccrueZeroPeriods(t *testing.T) {
	whole, remainder := Accrue(10, 0, 123, time.Minute)
	if whole != 0 || remainder != 123 {
		t.Errorf("Accrue with zero periods = (%d, %d), want (0, 123)", whole, remainder)
	}
}

// Splitting an accrual window into chunks must never change the total: the
// carried remainder preserves every thousandth.
func TestAccrueChunkingPreservesTotal(t *testing.T) {
	rates := []float64{0.02, 0.5, 1.7, 10.0 / 3.0}
	const totalPeriods = 977

	for _, rate := range rates {
		singleWhole, singleRem := Accrue(rate, totalPeriods, 0, time.Minute)

		var chunkedWhole int64
		remainder := 0
		for done := int64(0); done < totalPeriods; {
			step := int64(7)
			if done+step > totalPeriods {
				step = totalPeriods - done
			}
			w, r := Accrue(rate, step, remainder, time.Minute)
			chunkedWhole += w
			remainder = r
			done += step
		}

		if chunkedWhole != singleWhole || remainder != singleRem {
			t.Errorf("rate %v: chunked = (%d, %d), single = (%d, %d)",
				rate, chunkedWhole, remainder, singleWhole, singleRem)
		}
	}
}
