package index

import (
	"fmt"
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/period"
	"github.com/geomesa/geomesa-core/geomesa/sfc"
)

// WriteZ3 builds the single row a point feature gets in the Z3 index:
// "sharing? · shard · bin(2) · z(8) · id" (spec §4.4). Full index: value
// carries the feature's serialised bytes.
func WriteZ3(ft *geomesa.FeatureType, f *geomesa.Feature, value []byte) ([]geomesa.Mutation, error) {
	geomAttr, ok := ft.DefaultGeometryAttribute()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no default geometry", geomesa.ErrSchemaConflict, ft.Name)
	}
	if ft.DefaultDate == "" {
		return nil, fmt.Errorf("%w: %s has no default date, cannot use Z3", geomesa.ErrSchemaConflict, ft.Name)
	}
	rawGeom, _ := f.Value(ft, geomAttr.Name)
	g, _ := rawGeom.(geomesa.Geometry)
	if g == nil {
		return nil, fmt.Errorf("%w: feature %s has no geometry value", geomesa.ErrSerde, f.ID)
	}
	rawDate, _ := f.Value(ft, ft.DefaultDate)
	t, _ := rawDate.(time.Time)

	env := g.Envelope()
	cx, cy := (env.MinX+env.MaxX)/2, (env.MinY+env.MaxY)/2
	bin, offset := period.Bin(t, ft.ZInterval)
	z, err := sfc.Z3Encode(cx, cy, offset, ft.ZInterval.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	row := concatBytes(rowPrefix(ft, f.ID), putUint16BE(bin), putUint64BE(z), encodeID(f.ID))
	return []geomesa.Mutation{{Row: row, CF: CFData, Vis: f.Visibility.Expression, Value: value}}, nil
}

// RangesZ3 returns the byte ranges covering a query envelope and time
// window, invoking the curve once per bin the window spans (spec §4.3).
func RangesZ3(ft *geomesa.FeatureType, minLon, minLat, maxLon, maxLat float64, t1, t2 time.Time, precisionBits, targetRangeCount int) ([]geomesa.Range, error) {
	interval := ft.ZInterval
	periodSeconds := interval.Seconds()
	bins := period.BinsBetween(t1, t2, interval)
	lastBin := bins[len(bins)-1]

	var out []geomesa.Range
	for _, bin := range bins {
		loSeconds := int64(0)
		hiSeconds := periodSeconds
		if bin == bins[0] {
			_, off := period.Bin(t1, interval)
			loSeconds = off
		}
		if bin == lastBin {
			_, off := period.Bin(t2, interval)
			hiSeconds = off + 1
		}
		zRanges, err := sfc.Z3Ranges(minLon, minLat, maxLon, maxLat, loSeconds, hiSeconds, periodSeconds, precisionBits, targetRangeCount)
		if err != nil {
			return nil, err
		}
		out = append(out, expandShardedBinRanges(ft, bin, zRanges)...)
	}
	return geomesa.SortRanges(out), nil
}

// ExtractIDZ3 trims the "sharing? shard bin(2) z(8)" prefix to recover the
// id.
func ExtractIDZ3(ft *geomesa.FeatureType, row []byte) string {
	prefixLen := prefixLen(ft) + 2 + 8
	return decodeIDSuffix(row, prefixLen)
}

func expandShardedBinRanges(ft *geomesa.FeatureType, bin uint16, zRanges []sfc.Range) []geomesa.Range {
	sharing := sharingPrefix(ft)
	shards := ft.Shards
	if shards < 1 {
		shards = 1
	}
	binBytes := putUint16BE(bin)
	out := make([]geomesa.Range, 0, len(zRanges)*shards)
	for s := 0; s < shards; s++ {
		var shardPrefix []byte
		if shards > 1 {
			shardPrefix = []byte{byte(s)}
		}
		prefix := concatBytes(sharing, shardPrefix, binBytes)
		for _, zr := range zRanges {
			start := concatBytes(prefix, putUint64BE(zr.Lo))
			end := concatBytes(prefix, putUint64BE(zr.Hi+1))
			out = append(out, geomesa.Range{Start: start, End: end})
		}
	}
	return out
}
