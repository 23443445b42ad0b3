// Package index implements the row codec family of spec §4.4: one writer
// and one reader per index kind, each a pure function from (FeatureType,
// Feature) to the row coordinates the backend actually stores, grounded on
// the teacher's datalog/storage/key_encoder_binary.go (EncodeKey/DecodeKey/
// EncodePrefix/EncodePrefixRange) and badger_store.go's per-datom multi-index
// fan-out (assertDatom/retractDatom).
package index

import "github.com/cespare/xxhash/v2"

// Column families a row can belong to, per spec §4.4: "data" carries the
// full serialised feature, "index" a minimal covering projection, "bin" a
// pre-computed track point for the BIN aggregator.
const (
	CFData  = "d"
	CFIndex = "i"
	CFBin   = "b"
)

// ShardOf hashes id into [0, shards) to choose the row's shard byte. With
// shards<=1 there is no shard byte at all (spec §4.4: "present unless
// shards=1"); callers check that before calling ShardOf.
func ShardOf(id string, shards int) byte {
	if shards <= 1 {
		return 0
	}
	h := xxhash.Sum64String(id)
	return byte(h % uint64(shards))
}
