package index

import (
	"encoding/binary"

	"github.com/geomesa/geomesa-core/geomesa"
)

// rowPrefix returns the leading "sharing? shard" bytes common to every row
// layout in spec §4.4's table, given the feature's id (for the shard hash).
// It is used only when building a concrete row; range builders start from
// sharingPrefix and add every shard byte themselves (see
// expandShardedRanges).
func rowPrefix(ft *geomesa.FeatureType, id string) []byte {
	var p []byte
	if ft.TableSharing {
		p = append(p, ft.SharingByte)
	}
	if ft.Shards > 1 {
		p = append(p, ShardOf(id, ft.Shards))
	}
	return p
}

// sharingPrefix returns just the table-sharing byte, used when building
// range prefixes that must enumerate every shard explicitly.
func sharingPrefix(ft *geomesa.FeatureType) []byte {
	if ft.TableSharing {
		return []byte{ft.SharingByte}
	}
	return nil
}

// encodeID renders a feature id as the trailing, trim-to-extract row
// component (spec §4.4 "Id extraction: trim prefix" — UTF-8 bytes of the id
// string, spec §6 "UTF-8 for string-typed ids").
func encodeID(id string) []byte {
	return []byte(id)
}

// decodeIDSuffix returns the id stored after a fixed-length prefix.
func decodeIDSuffix(row []byte, prefixLen int) string {
	if prefixLen > len(row) {
		return ""
	}
	return string(row[prefixLen:])
}

func putUint64BE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func putUint16BE(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// truncate3 returns the top 3 bytes of a big-endian uint64, the fixed byte
// prefix spec §4.4 mandates for XZ2/XZ3 rows ("3 bytes in the reference
// implementation... trading some false positives for index-size
// stability").
func truncate3(v uint64) []byte {
	full := putUint64BE(v)
	return full[:3]
}

func concatBytes(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
