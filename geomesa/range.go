package geomesa

import "bytes"

// Range is a closed-open byte interval [Start, End): a scan reads every row r
// with Start <= r < End (spec §3). A nil End means "to the end of the table".
type Range struct {
	Start []byte
	End   []byte
}

// Contains reports whether key falls within the range.
func (r Range) Contains(key []byte) bool {
	if bytes.Compare(key, r.Start) < 0 {
		return false
	}
	if r.End != nil && bytes.Compare(key, r.End) >= 0 {
		return false
	}
	return true
}

// PrefixRange returns the [prefix, prefix-incremented) range covering every
// key with the given prefix, following the teacher's
// datalog/storage/key_encoder_binary.go EncodePrefixRange construction:
// increment the last byte that isn't already 0xFF and drop the bytes after
// it. An all-0xFF (or empty) prefix has no such byte and yields a range
// with a nil End, unbounded above.
func PrefixRange(prefix []byte) Range {
	start := make([]byte, len(prefix))
	copy(start, prefix)

	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			end = end[:i+1]
			return Range{Start: start, End: end}
		}
	}
	// All bytes are 0xFF: there's no finite successor prefix, so the range
	// runs to the end of the keyspace.
	return Range{Start: start, End: nil}
}

// SortRanges sorts ranges by Start and merges adjacent/overlapping ones,
// per spec §4.7 "Sort ranges within a plan and merge adjacent ranges to
// minimise scanner calls."
func SortRanges(ranges []Range) []Range {
	if len(ranges) < 2 {
		return ranges
	}
	sortRangesByStart(ranges)

	merged := make([]Range, 0, len(ranges))
	cur := ranges[0]
	for _, r := range ranges[1:] {
		if cur.End != nil && bytes.Compare(r.Start, cur.End) <= 0 {
			if cur.End == nil || (r.End != nil && bytes.Compare(r.End, cur.End) > 0) {
				cur.End = r.End
			}
			continue
		}
		if cur.End == nil {
			// cur already runs unbounded; any subsequent range is absorbed.
			continue
		}
		merged = append(merged, cur)
		cur = r
	}
	merged = append(merged, cur)
	return merged
}

func sortRangesByStart(ranges []Range) {
	// Insertion sort is fine: plans rarely carry more than a few hundred
	// ranges and this keeps the dependency surface to stdlib bytes.Compare.
	for i := 1; i < len(ranges); i++ {
		for j := i; j > 0 && bytes.Compare(ranges[j-1].Start, ranges[j].Start) > 0; j-- {
			ranges[j-1], ranges[j] = ranges[j], ranges[j-1]
		}
	}
}

// Row is one record returned by a backend scan: a row key, column family,
// column qualifier, visibility expression and value (spec §6).
type Row struct {
	Key   []byte
	CF    string
	CQ    []byte
	Vis   string
	Value []byte
}

// Mutation is a single write to the backend: either a Put or a Delete of
// (row, cf, cq, vis[, value]).
type Mutation struct {
	Row    []byte
	CF     string
	CQ     []byte
	Vis    string
	Value  []byte
	Delete bool
}
