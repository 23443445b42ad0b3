package index

import "github.com/geomesa/geomesa-core/geomesa"

// WriteID builds the single row a feature gets in the Id index:
// "sharing? · id" (spec §4.4) — the canonical by-id lookup and the index
// of last resort for full scans. Full index: value carries the feature's
// serialised bytes.
func WriteID(ft *geomesa.FeatureType, f *geomesa.Feature, value []byte) []geomesa.Mutation {
	row := concatBytes(sharingPrefix(ft), encodeID(f.ID))
	return []geomesa.Mutation{{Row: row, CF: CFData, Vis: f.Visibility.Expression, Value: value}}
}

// RangeID returns the single-point range for an exact id lookup.
func RangeID(ft *geomesa.FeatureType, id string) geomesa.Range {
	row := concatBytes(sharingPrefix(ft), encodeID(id))
	return geomesa.PrefixRange(row)
}

// RangeIDSet returns one range per id in a concrete id set (spec §4.6
// "Id set present and small").
func RangeIDSet(ft *geomesa.FeatureType, ids []string) []geomesa.Range {
	out := make([]geomesa.Range, 0, len(ids))
	for _, id := range ids {
		out = append(out, RangeID(ft, id))
	}
	return geomesa.SortRanges(out)
}

// FullScanRange returns the range spanning every row in the Id index,
// which is where an unblocked full table scan reads from.
func FullScanRange(ft *geomesa.FeatureType) geomesa.Range {
	sharing := sharingPrefix(ft)
	if sharing == nil {
		return geomesa.Range{Start: nil, End: nil}
	}
	return geomesa.PrefixRange(sharing)
}

// ExtractIDId trims the "sharing?" prefix to recover the id.
func ExtractIDId(ft *geomesa.FeatureType, row []byte) string {
	n := 0
	if ft.TableSharing {
		n++
	}
	return decodeIDSuffix(row, n)
}
