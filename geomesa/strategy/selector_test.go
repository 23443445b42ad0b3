package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
)

func selectorTestFeatureType(t *testing.T) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "dtg", Type: geomesa.TDate},
		{Name: "species", Type: geomesa.TString, Indexed: geomesa.IndexJoin, Cardinality: geomesa.CardinalityHigh},
		{Name: "status", Type: geomesa.TString, Indexed: geomesa.IndexJoin, Cardinality: geomesa.CardinalityLow},
		{Name: "unindexed", Type: geomesa.TString},
	}, "geom", "dtg")
	require.NoError(t, err)
	// NewFeatureType disables Z2 once a default date is set; these tests
	// exercise both the spatial-only and spatial+temporal branches, so
	// re-enable Z2 alongside the Z3 index it already turned on.
	ft.EnabledIndexes[geomesa.IndexZ2] = true
	return ft
}

func cardinalityFor(ft *geomesa.FeatureType) func(string) geomesa.Cardinality {
	return func(attr string) geomesa.Cardinality {
		if a, ok := ft.AttributeByName(attr); ok {
			return a.Cardinality
		}
		return geomesa.CardinalityNormal
	}
}

func TestSelectHighCardinalityAttrEqWinsOutright(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		GeomUnion:   &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		AttrClauses: []filter.AttrClause{{Attr: "species", Op: filter.OpEq, Value: "osprey"}},
	}

	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindAttr, strat.Index)
	assert.Equal(t, "species", strat.Attr)
}

func TestSelectSpatialPicksZ3WhenTimeAndGeomPresent(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		Intervals: []filter.Interval{{T1: time.Unix(0, 0), T2: time.Unix(1000, 0)}},
	}

	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindZ3, strat.Index)
}

func TestSelectSpatialOnlyPicksZ2(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41}}

	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindZ2, strat.Index)
}

func TestSelectLowCardinalityAttrDoesNotBlockSpatialAlone(t *testing.T) {
	ft := selectorTestFeatureType(t)
	// A low-cardinality eq clause without a spatial facet must not suppress
	// spatial selection (there's nothing to suppress); it should fall
	// through and still resolve via rangeAttr/full-scan rules predictably.
	f := filter.Facets{
		AttrClauses: []filter.AttrClause{{Attr: "status", Op: filter.OpEq, Value: "active"}},
	}
	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindAttr, strat.Index)
	assert.Equal(t, "status", strat.Attr)
}

func TestSelectLowCardinalityEqWithSpatialPrefersSpatialCandidate(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		GeomUnion:   &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		AttrClauses: []filter.AttrClause{{Attr: "status", Op: filter.OpEq, Value: "active"}},
	}
	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	// A present low-cardinality equality must not block the spatial
	// candidate; it rides along as a residual clause instead of becoming
	// the primary via rangeAttr's eq-fallback.
	assert.Equal(t, KindZ2, strat.Index)
	found := false
	for _, s := range strat.Secondary {
		if cmp, ok := s.(filter.Cmp); ok && cmp.Attr == "status" && cmp.Value == "active" {
			found = true
		}
	}
	assert.True(t, found, "expected status='active' to ride along in Secondary, got %#v", strat.Secondary)
}

func TestSelectSmallIDSetBeatsSpatial(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		IDSet:     []string{"f1"},
	}
	strat, err := Select(ft, f, Hints{IDJoinThreshold: 1}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindID, strat.Index)
}

func TestSelectLargeIDSetDoesNotBeatSpatial(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		IDSet:     []string{"f1", "f2", "f3"},
	}
	strat, err := Select(ft, f, Hints{IDJoinThreshold: 1}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindZ2, strat.Index)
}

func TestSelectRangeAttrFallback(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		AttrClauses: []filter.AttrClause{{Attr: "species", Op: filter.OpGt, Value: "m"}},
	}
	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindAttr, strat.Index)
	assert.Equal(t, "species", strat.Attr)
}

func TestSelectNoCandidateFallsBackToFullScan(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		AttrClauses: []filter.AttrClause{{Attr: "unindexed", Op: filter.OpEq, Value: "x"}},
	}
	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindFullScan, strat.Index)
}

func TestSelectIndexHintForcesCandidateWhenLegal(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41}}
	strat, err := Select(ft, f, Hints{IndexHint: "z2"}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindZ2, strat.Index)
}

func TestSelectIndexHintIgnoredWhenIllegal(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41}}
	// z3 requires a time facet, which is absent here, so the hint must be
	// ignored and normal candidate selection applied instead.
	strat, err := Select(ft, f, Hints{IndexHint: "z3"}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindZ2, strat.Index)
}

func TestFinishMovesUnconsumedAttrClausesToSecondary(t *testing.T) {
	ft := selectorTestFeatureType(t)
	f := filter.Facets{
		GeomUnion: &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		AttrClauses: []filter.AttrClause{
			{Attr: "species", Op: filter.OpGt, Value: "m"},
		},
	}
	strat, err := Select(ft, f, Hints{}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Equal(t, KindZ2, strat.Index)
	require.Len(t, strat.Secondary, 1)
	cmp, ok := strat.Secondary[0].(filter.Cmp)
	require.True(t, ok)
	assert.Equal(t, "species", cmp.Attr)
	assert.Equal(t, filter.CmpGT, cmp.Op)
}

func TestFinishStrictBBoxReChecksSpatialClauses(t *testing.T) {
	ft := selectorTestFeatureType(t)
	bbox := filter.BBox{Attr: "geom", MinX: -75, MinY: 40, MaxX: -73, MaxY: 41}
	f := filter.Facets{
		GeomUnion:      &geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41},
		SpatialClauses: []filter.Pred{bbox},
	}
	strat, err := Select(ft, f, Hints{LooseBBox: false}, cardinalityFor(ft))
	require.NoError(t, err)
	assert.Contains(t, strat.Secondary, filter.Pred(bbox))
}
