package index

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomesa/geomesa-core/geomesa"
)

func z2FeatureType(t *testing.T) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
	}, "geom", "")
	require.NoError(t, err)
	return ft
}

func z3FeatureType(t *testing.T) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "dtg", Type: geomesa.TDate},
		{Name: "species", Type: geomesa.TString, Indexed: geomesa.IndexJoin},
	}, "geom", "dtg")
	require.NoError(t, err)
	return ft
}

func TestWriteZ2AndExtractID(t *testing.T) {
	ft := z2FeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.7}}}
	value := []byte("payload")

	muts, err := WriteZ2(ft, f, value)
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, value, muts[0].Value)
	assert.Equal(t, "f1", ExtractIDZ2(ft, muts[0].Row))
}

func TestRangesZ2ContainsWrittenRow(t *testing.T) {
	ft := z2FeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.7}}}
	muts, err := WriteZ2(ft, f, []byte("v"))
	require.NoError(t, err)

	ranges, err := RangesZ2(ft, -75, 40, -73, 41, 8, 100)
	require.NoError(t, err)
	require.NotEmpty(t, ranges)
	assert.True(t, anyContains(ranges, muts[0].Row))
}

func TestWriteZ3AndExtractID(t *testing.T) {
	ft := z3FeatureType(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.7}, now, "osprey"}}

	muts, err := WriteZ3(ft, f, []byte("v"))
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "f1", ExtractIDZ3(ft, muts[0].Row))
}

func TestRangesZ3ContainsWrittenRow(t *testing.T) {
	ft := z3FeatureType(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.7}, now, "osprey"}}
	muts, err := WriteZ3(ft, f, []byte("v"))
	require.NoError(t, err)

	ranges, err := RangesZ3(ft, -75, 40, -73, 41, now.Add(-time.Hour), now.Add(time.Hour), 8, 100)
	require.NoError(t, err)
	require.NotEmpty(t, ranges)
	assert.True(t, anyContains(ranges, muts[0].Row))
}

func TestWriteXZ2NonPointGeometryDedupesRows(t *testing.T) {
	ft := z2FeatureType(t)
	line := geomesa.LineString{Points: []geomesa.Point{{X: 0, Y: 0}, {X: 0.001, Y: 0.001}}}
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{line}}

	muts, err := WriteXZ2(ft, f, []byte("v"))
	require.NoError(t, err)
	require.NotEmpty(t, muts)
	for _, m := range muts {
		assert.Equal(t, "f1", ExtractIDXZ2(ft, m.Row))
		assert.Equal(t, len(muts), int(binary.BigEndian.Uint16(m.CQ)))
	}
}

func TestWriteXZ3NonPointGeometry(t *testing.T) {
	ft := z3FeatureType(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	line := geomesa.LineString{Points: []geomesa.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{line, now, "heron"}}

	muts, err := WriteXZ3(ft, f, []byte("v"))
	require.NoError(t, err)
	require.NotEmpty(t, muts)
	for _, m := range muts {
		assert.Equal(t, "f1", ExtractIDXZ3(ft, m.Row))
		assert.Equal(t, len(muts), int(binary.BigEndian.Uint16(m.CQ)))
	}
}

func TestWriteIDAndRangeID(t *testing.T) {
	ft := z2FeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}}}
	value := []byte("full-feature-bytes")

	muts := WriteID(ft, f, value)
	require.Len(t, muts, 1)
	assert.Equal(t, value, muts[0].Value)

	r := RangeID(ft, "f1")
	assert.True(t, r.Contains(muts[0].Row))
}

func TestWriteAttrEqRangeRoundTrip(t *testing.T) {
	ft := z3FeatureType(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, now, "osprey"}}

	muts, err := WriteAttr(ft, f, "species")
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "f1", ExtractIDAttr(ft, muts[0].Row))

	r, err := RangeAttrEq(ft, "species", geomesa.Value("osprey"))
	require.NoError(t, err)
	assert.True(t, r.Contains(muts[0].Row))

	other, err := RangeAttrEq(ft, "species", geomesa.Value("heron"))
	require.NoError(t, err)
	assert.False(t, other.Contains(muts[0].Row))
}

func TestWriteAttrSkipsNilValue(t *testing.T) {
	ft := z3FeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), nil}}

	muts, err := WriteAttr(ft, f, "species")
	require.NoError(t, err)
	assert.Empty(t, muts)
}

func attrNumericFeatureType(t *testing.T) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "dtg", Type: geomesa.TDate, Indexed: geomesa.IndexJoin},
		{Name: "count", Type: geomesa.TInt32, Indexed: geomesa.IndexJoin},
	}, "geom", "")
	require.NoError(t, err)
	return ft
}

// int32(0) LexEncodes to 0x80,0x00,0x00,0x00 — three embedded 0x00 bytes —
// which previously corrupted ExtractIDAttr's separator scan.
func TestWriteAttrInt32ZeroValueExtractIDSurvivesEmbeddedZeroBytes(t *testing.T) {
	ft := attrNumericFeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Time{}, int32(0)}}

	muts, err := WriteAttr(ft, f, "count")
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "f1", ExtractIDAttr(ft, muts[0].Row))

	r, err := RangeAttrEq(ft, "count", geomesa.Value(int32(0)))
	require.NoError(t, err)
	assert.True(t, r.Contains(muts[0].Row))
}

func TestWriteAttrInt32NegativeValueExtractIDSurvivesEmbeddedZeroBytes(t *testing.T) {
	ft := attrNumericFeatureType(t)
	f := &geomesa.Feature{ID: "feature-seven", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Time{}, int32(-2)}}

	muts, err := WriteAttr(ft, f, "count")
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "feature-seven", ExtractIDAttr(ft, muts[0].Row))
}

// The unix epoch LexEncodes to 0x80,0,0,0,0,0,0,0 — an all-but-one-byte run
// of 0x00 — so a date attribute is an even sharper regression check than an
// int32 for the same bug.
func TestWriteAttrDateEpochExtractIDSurvivesEmbeddedZeroBytes(t *testing.T) {
	ft := attrNumericFeatureType(t)
	f := &geomesa.Feature{ID: "f9", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.UnixMilli(0).UTC(), int32(1)}}

	muts, err := WriteAttr(ft, f, "dtg")
	require.NoError(t, err)
	require.Len(t, muts, 1)
	assert.Equal(t, "f9", ExtractIDAttr(ft, muts[0].Row))
}

func anyContains(ranges []geomesa.Range, key []byte) bool {
	for _, r := range ranges {
		if r.Contains(key) {
			return true
		}
	}
	return false
}
