package index

import (
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/sfc"
)

// WriteXZ2 builds the rows a non-point feature gets in the XZ2 index:
// "sharing? · shard · z(3) · id", one row per distinct covering cell once
// duplicates are removed (spec §4.4). A geometry collection indexes once
// per decomposed member, since each member may enclose a different cell.
// Full index: every row's value carries the feature's serialised bytes; the
// column qualifier carries the total duplicate-row count (spec §4.4 "Column
// qualifier carries the duplication count when XZ produces multiple rows,
// to enable client-side deduplication").
func WriteXZ2(ft *geomesa.FeatureType, f *geomesa.Feature, value []byte) ([]geomesa.Mutation, error) {
	geomAttr, ok := ft.DefaultGeometryAttribute()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no default geometry", geomesa.ErrSchemaConflict, ft.Name)
	}
	raw, _ := f.Value(ft, geomAttr.Name)
	g, _ := raw.(geomesa.Geometry)
	if g == nil {
		return nil, fmt.Errorf("%w: feature %s has no geometry value", geomesa.ErrSerde, f.ID)
	}

	seen := map[string]bool{}
	var rows [][]byte
	for _, member := range geomesa.Decompose(g) {
		env := member.Envelope()
		z, err := sfc.XZ2Index(env.MinX, env.MinY, env.MaxX, env.MaxY)
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		zPrefix := truncate3(z)
		row := concatBytes(rowPrefix(ft, f.ID), zPrefix, encodeID(f.ID))
		key := string(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}

	out := make([]geomesa.Mutation, 0, len(rows))
	dupCount := putUint16BE(uint16(len(rows)))
	for _, row := range rows {
		out = append(out, geomesa.Mutation{Row: row, CF: CFData, CQ: dupCount, Vis: f.Visibility.Expression, Value: value})
	}
	return out, nil
}

// RangesXZ2 returns the byte ranges covering a query envelope against the
// XZ2 index.
func RangesXZ2(ft *geomesa.FeatureType, minLon, minLat, maxLon, maxLat float64, targetRangeCount int) ([]geomesa.Range, error) {
	xzRanges, err := sfc.XZ2Ranges(minLon, minLat, maxLon, maxLat, targetRangeCount)
	if err != nil {
		return nil, err
	}
	return expandShardedXZRanges(ft, xzRanges), nil
}

// ExtractIDXZ2 trims the "sharing? shard z(3)" prefix to recover the id.
func ExtractIDXZ2(ft *geomesa.FeatureType, row []byte) string {
	return decodeIDSuffix(row, prefixLen(ft)+3)
}

func expandShardedXZRanges(ft *geomesa.FeatureType, xzRanges []sfc.Range) []geomesa.Range {
	sharing := sharingPrefix(ft)
	shards := ft.Shards
	if shards < 1 {
		shards = 1
	}
	out := make([]geomesa.Range, 0, len(xzRanges)*shards)
	for s := 0; s < shards; s++ {
		var shardPrefix []byte
		if shards > 1 {
			shardPrefix = []byte{byte(s)}
		}
		prefix := concatBytes(sharing, shardPrefix)
		for _, zr := range xzRanges {
			start := concatBytes(prefix, truncate3(zr.Lo))
			end := concatBytes(prefix, truncate3(zr.Hi+1))
			out = append(out, geomesa.Range{Start: start, End: end})
		}
	}
	return geomesa.SortRanges(out)
}
