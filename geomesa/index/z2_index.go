package index

import (
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/sfc"
)

// WriteZ2 builds the single row a feature gets in the Z2 index: "sharing? ·
// shard · z(8) · id" (spec §4.4). Z2 is a full index (glossary: "whose value
// is the entire serialised feature; self-sufficient") so value carries the
// feature's already-serialised bytes.
func WriteZ2(ft *geomesa.FeatureType, f *geomesa.Feature, value []byte) ([]geomesa.Mutation, error) {
	geomAttr, ok := ft.DefaultGeometryAttribute()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no default geometry", geomesa.ErrSchemaConflict, ft.Name)
	}
	raw, _ := f.Value(ft, geomAttr.Name)
	g, _ := raw.(geomesa.Geometry)
	if g == nil {
		return nil, fmt.Errorf("%w: feature %s has no geometry value", geomesa.ErrSerde, f.ID)
	}
	env := g.Envelope()
	cx, cy := (env.MinX+env.MaxX)/2, (env.MinY+env.MaxY)/2
	z, err := sfc.Z2Encode(cx, cy)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	row := concatBytes(rowPrefix(ft, f.ID), putUint64BE(z), encodeID(f.ID))
	return []geomesa.Mutation{{Row: row, CF: CFData, Vis: f.Visibility.Expression, Value: value}}, nil
}

// RangesZ2 returns the byte ranges covering a query envelope against the Z2
// index, fanning the z-ranges out across every configured shard and (when
// the table is shared) prefixing the sharing byte.
func RangesZ2(ft *geomesa.FeatureType, minLon, minLat, maxLon, maxLat float64, precisionBits, targetRangeCount int) ([]geomesa.Range, error) {
	zRanges, err := sfc.Z2Ranges(minLon, minLat, maxLon, maxLat, precisionBits, targetRangeCount)
	if err != nil {
		return nil, err
	}
	return expandShardedRanges(ft, zRanges), nil
}

// ExtractIDZ2 trims the "sharing? shard z(8)" prefix to recover the id.
func ExtractIDZ2(ft *geomesa.FeatureType, row []byte) string {
	prefixLen := prefixLen(ft) + 8
	return decodeIDSuffix(row, prefixLen)
}

func prefixLen(ft *geomesa.FeatureType) int {
	n := 0
	if ft.TableSharing {
		n++
	}
	if ft.Shards > 1 {
		n++
	}
	return n
}

// expandShardedRanges turns a set of curve z-ranges into byte ranges, one
// per shard (or one total when shards<=1), each with the sharing byte
// prefixed when the table is shared. Every shard must be scanned because a
// feature's shard byte depends on its id hash, not on its position in the
// curve.
func expandShardedRanges(ft *geomesa.FeatureType, zRanges []sfc.Range) []geomesa.Range {
	sharing := sharingPrefix(ft)
	shards := ft.Shards
	if shards < 1 {
		shards = 1
	}
	out := make([]geomesa.Range, 0, len(zRanges)*shards)
	for s := 0; s < shards; s++ {
		var shardPrefix []byte
		if shards > 1 {
			shardPrefix = []byte{byte(s)}
		}
		prefix := concatBytes(sharing, shardPrefix)
		for _, zr := range zRanges {
			start := concatBytes(prefix, putUint64BE(zr.Lo))
			end := concatBytes(prefix, putUint64BE(zr.Hi+1))
			out = append(out, geomesa.Range{Start: start, End: end})
		}
	}
	return geomesa.SortRanges(out)
}
