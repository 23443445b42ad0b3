package storage

import (
	"bytes"

	"github.com/geomesa/geomesa-core/geomesa"
)

// Every backend stores rows under one flat keyspace; table, column family
// and qualifier are folded into the physical key so that a single ordered
// scan can serve the (table, rowRange) query the rest of the engine issues.
// The physical key is: len(table)(1) . table . row . 0x00 . cf . 0x00 . cq
// Keeping table as a length-prefixed header (rather than just separator
// bytes) means a table name can itself contain 0x00 safely, and every row
// within one table sorts purely by its `row` bytes, which is the ordering
// the space-filling-curve ranges rely on.
const cfCqSeparator = 0x00

func tableHeader(table string) []byte {
	b := make([]byte, 0, len(table)+1)
	b = append(b, byte(len(table)))
	b = append(b, table...)
	return b
}

func physicalKey(table string, row []byte, cf string, cq []byte) []byte {
	header := tableHeader(table)
	out := make([]byte, 0, len(header)+len(row)+1+len(cf)+1+len(cq))
	out = append(out, header...)
	out = append(out, row...)
	out = append(out, cfCqSeparator)
	out = append(out, cf...)
	out = append(out, cfCqSeparator)
	out = append(out, cq...)
	return out
}

// rowBounds translates a (table, row-range) pair into the physical key
// bounds a backend iterator should scan between. A nil range End means "to
// the end of the table", which physically ends at the table header's
// prefix-increment.
func rowBounds(table string, r geomesa.Range) (lo, hi []byte) {
	header := tableHeader(table)
	lo = append(append([]byte{}, header...), r.Start...)
	if r.End == nil {
		hi = tablePrefixEnd(header)
		return lo, hi
	}
	hi = append(append([]byte{}, header...), r.End...)
	return lo, hi
}

// tablePrefixEnd returns the smallest key strictly greater than every key
// with the given table header prefix, following the teacher's
// datalog/storage/key_encoder_binary.go prefix-increment convention.
func tablePrefixEnd(header []byte) []byte {
	end := make([]byte, len(header))
	copy(end, header)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // all 0xFF: no finite successor, scan to the end of the keyspace
}

func hasTablePrefix(key []byte, table string) bool {
	header := tableHeader(table)
	return bytes.HasPrefix(key, header)
}

func rowOf(key []byte, table string) []byte {
	header := tableHeader(table)
	rest := key[len(header):]
	idx := bytes.IndexByte(rest, cfCqSeparator)
	if idx < 0 {
		return rest
	}
	return rest[:idx]
}

func cfCqOf(key []byte, table string) (cf string, cq []byte) {
	header := tableHeader(table)
	rest := key[len(header):]
	sep := bytes.IndexByte(rest, cfCqSeparator)
	if sep < 0 {
		return "", nil
	}
	afterRow := rest[sep+1:]
	sep2 := bytes.IndexByte(afterRow, cfCqSeparator)
	if sep2 < 0 {
		return string(afterRow), nil
	}
	return string(afterRow[:sep2]), afterRow[sep2+1:]
}
