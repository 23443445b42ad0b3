package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBinStartRoundTrip(t *testing.T) {
	for _, interval := range []Interval{Day, Week, Month, Year} {
		t.Run(interval.String(), func(t *testing.T) {
			tm := time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC)
			bin, offset := Bin(tm, interval)
			start := BinStart(bin, interval)
			assert.Equal(t, tm.Unix(), start.Unix()+offset)
		})
	}
}

func TestBinOffsetWithinBinLength(t *testing.T) {
	tm := time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC)
	for _, interval := range []Interval{Day, Week, Month, Year} {
		_, offset := Bin(tm, interval)
		assert.GreaterOrEqual(t, offset, int64(0))
		assert.Less(t, offset, interval.Seconds())
	}
}

func TestBinsBetweenInclusiveRange(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	bins := BinsBetween(t1, t2, Day)

	loBin, _ := Bin(t1, Day)
	hiBin, _ := Bin(t2, Day)
	assert.Equal(t, int(hiBin-loBin)+1, len(bins))
	assert.Equal(t, loBin, bins[0])
	assert.Equal(t, hiBin, bins[len(bins)-1])
}

func TestBinsBetweenSwapsReversedInput(t *testing.T) {
	t1 := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bins := BinsBetween(t1, t2, Day) // t1 after t2

	forward := BinsBetween(t2, t1, Day)
	assert.Equal(t, forward, bins)
}

func TestBinsBetweenSingleInstant(t *testing.T) {
	tm := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bins := BinsBetween(tm, tm, Week)
	assert.Len(t, bins, 1)
}

func TestBinsBetweenCapsFanOut(t *testing.T) {
	t1 := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
	bins := BinsBetween(t1, t2, Day)
	assert.LessOrEqual(t, len(bins), 10001)
}

func TestIntervalSecondsOrdering(t *testing.T) {
	assert.Less(t, Day.Seconds(), Week.Seconds())
	assert.Less(t, Week.Seconds(), Month.Seconds())
	assert.Less(t, Month.Seconds(), Year.Seconds())
}
