package index

import (
	"fmt"
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/period"
	"github.com/geomesa/geomesa-core/geomesa/sfc"
)

// WriteXZ3 builds the rows a non-point, time-stamped feature gets in the
// XZ3 index: "sharing? · shard · bin(2) · z(3) · id" (spec §4.4). Every
// row goes into the single bin holding the feature's default date; a
// feature is never filed under more than one bin. Full index: every row's value carries the feature's serialised bytes; the
// column qualifier carries the total duplicate-row count.
func WriteXZ3(ft *geomesa.FeatureType, f *geomesa.Feature, value []byte) ([]geomesa.Mutation, error) {
	geomAttr, ok := ft.DefaultGeometryAttribute()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no default geometry", geomesa.ErrSchemaConflict, ft.Name)
	}
	if ft.DefaultDate == "" {
		return nil, fmt.Errorf("%w: %s has no default date, cannot use XZ3", geomesa.ErrSchemaConflict, ft.Name)
	}
	raw, _ := f.Value(ft, geomAttr.Name)
	g, _ := raw.(geomesa.Geometry)
	if g == nil {
		return nil, fmt.Errorf("%w: feature %s has no geometry value", geomesa.ErrSerde, f.ID)
	}
	rawDate, _ := f.Value(ft, ft.DefaultDate)
	t, _ := rawDate.(time.Time)

	bin, offset := period.Bin(t, ft.ZInterval)
	periodSeconds := ft.ZInterval.Seconds()

	seen := map[string]bool{}
	var rows [][]byte
	for _, member := range geomesa.Decompose(g) {
		env := member.Envelope()
		z, err := sfc.XZ3Index(env.MinX, env.MinY, env.MaxX, env.MaxY, offset, offset+1, periodSeconds)
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		row := concatBytes(rowPrefix(ft, f.ID), putUint16BE(bin), truncate3(z), encodeID(f.ID))
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

// RangesXZ3 returns the byte ranges covering a query envelope and time
// window against the XZ3 index, invoking the curve once per bin spanned.
func RangesXZ3(ft *geomesa.FeatureType, minLon, minLat, maxLon, maxLat float64, t1, t2 time.Time, targetRangeCount int) ([]geomesa.Range, error) {
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
		xzRanges, err := sfc.XZ3Ranges(minLon, minLat, maxLon, maxLat, loSeconds, hiSeconds, periodSeconds, targetRangeCount)
		if err != nil {
			return nil, err
		}
		out = append(out, expandShardedXZBinRanges(ft, bin, xzRanges)...)
	}
	return geomesa.SortRanges(out), nil
}

// ExtractIDXZ3 trims the "sharing? shard bin(2) z(3)" prefix to recover the
// id.
func ExtractIDXZ3(ft *geomesa.FeatureType, row []byte) string {
	return decodeIDSuffix(row, prefixLen(ft)+2+3)
}

func expandShardedXZBinRanges(ft *geomesa.FeatureType, bin uint16, xzRanges []sfc.Range) []geomesa.Range {
	sharing := sharingPrefix(ft)
	shards := ft.Shards
	if shards < 1 {
		shards = 1
	}
	binBytes := putUint16BE(bin)
	out := make([]geomesa.Range, 0, len(xzRanges)*shards)
	for s := 0; s < shards; s++ {
		var shardPrefix []byte
		if shards > 1 {
			shardPrefix = []byte{byte(s)}
		}
		prefix := concatBytes(sharing, shardPrefix, binBytes)
		for _, zr := range xzRanges {
			start := concatBytes(prefix, truncate3(zr.Lo))
			end := concatBytes(prefix, truncate3(zr.Hi+1))
			out = append(out, geomesa.Range{Start: start, End: end})
		}
	}
	return out
}
