package scan

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
	"github.com/geomesa/geomesa-core/geomesa/index"
	"github.com/geomesa/geomesa-core/geomesa/planner"
	"github.com/geomesa/geomesa-core/geomesa/strategy"
)

// fakeIterator replays a fixed slice of rows, grounded on MemoryBackend's
// own sliceIterator shape.
type fakeIterator struct {
	rows []geomesa.Row
	pos  int
}

func (it *fakeIterator) Next() bool {
	if it.pos >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}
func (it *fakeIterator) Row() geomesa.Row { return it.rows[it.pos-1] }
func (it *fakeIterator) Err() error       { return nil }
func (it *fakeIterator) Close() error     { return nil }

// fakeBackend filters a fixed row set by range and column family, mirroring
// MemoryBackend.Scan's own filtering, so the worker pool's range-splitting
// in ScanRanges doesn't hand back duplicate rows across tasks.
type fakeBackend struct {
	rows []geomesa.Row
}

func (b *fakeBackend) Scan(_ context.Context, _ string, ranges []geomesa.Range, cfs []string) (RowIterator, error) {
	cfSet := make(map[string]bool, len(cfs))
	for _, cf := range cfs {
		cfSet[cf] = true
	}
	var matched []geomesa.Row
	for _, r := range b.rows {
		if len(cfSet) > 0 && !cfSet[r.CF] {
			continue
		}
		for _, rg := range ranges {
			if rg.Contains(r.Key) {
				matched = append(matched, r)
				break
			}
		}
	}
	return &fakeIterator{rows: matched}, nil
}

// fakeDecoder maps a row's Key (the feature id, by convention in this test
// file) straight to a pre-built feature, side-stepping the real serde wire
// format entirely.
type fakeDecoder struct {
	byID map[string]*geomesa.Feature
}

func (d *fakeDecoder) Decode(_ *geomesa.FeatureType, row geomesa.Row) (*geomesa.Feature, error) {
	f, ok := d.byID[string(row.Key)]
	if !ok {
		return nil, fmt.Errorf("no fixture feature for row key %q", row.Key)
	}
	return f, nil
}

func pipelineTestFeatureType(t *testing.T) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "dtg", Type: geomesa.TDate},
		{Name: "species", Type: geomesa.TString},
		{Name: "count", Type: geomesa.TInt32},
	}, "geom", "dtg")
	require.NoError(t, err)
	return ft
}

func oneRangePlan(ft *geomesa.FeatureType, rowKeys ...string) *planner.ScanPlan {
	var ranges []geomesa.Range
	for _, k := range rowKeys {
		ranges = append(ranges, geomesa.Range{Start: []byte(k), End: append([]byte(k), 0)})
	}
	return &planner.ScanPlan{
		FeatureType: ft,
		Disjuncts: []planner.DisjunctPlan{
			{Strategy: strategy.FilterStrategy{Index: strategy.KindZ2}, Ranges: ranges},
		},
	}
}

func runPipeline(t *testing.T, backend *fakeBackend, decoder *fakeDecoder, plan *planner.ScanPlan) []*geomesa.Feature {
	t.Helper()
	p := &Pipeline{Backend: backend, Decoder: decoder}
	out, errs := p.Run(context.Background(), plan)

	var got []*geomesa.Feature
	for f := range out {
		got = append(got, f)
	}
	for err := range errs {
		require.NoError(t, err)
	}
	return got
}

func TestRunStreamsDecodedFeatures(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(1)}}
	f2 := &geomesa.Feature{ID: "f2", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 1}, time.Now().UTC(), "heron", int32(2)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFData}, {Key: []byte("f2"), CF: index.CFData}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1, "f2": f2}}
	plan := oneRangePlan(ft, "f1", "f2")

	got := runPipeline(t, backend, decoder, plan)
	assert.Len(t, got, 2)
}

func TestRunAppliesResidualFilter(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(1)}}
	f2 := &geomesa.Feature{ID: "f2", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 1}, time.Now().UTC(), "heron", int32(2)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFData}, {Key: []byte("f2"), CF: index.CFData}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1, "f2": f2}}
	plan := oneRangePlan(ft, "f1", "f2")
	plan.Disjuncts[0].Strategy.Secondary = []filter.Pred{filter.Cmp{Attr: "species", Op: filter.CmpEQ, Value: "osprey"}}

	got := runPipeline(t, backend, decoder, plan)
	require.Len(t, got, 1)
	assert.Equal(t, "f1", got[0].ID)
}

func TestRunDedupesRepeatedIDsAcrossDisjuncts(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(1)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFData}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1}}
	plan := oneRangePlan(ft, "f1")
	// Duplicate the disjunct to simulate the same feature surfacing from two
	// candidate ranges (e.g. an XZ2 decomposition), as plan.Dedupe is meant
	// to collapse.
	plan.Disjuncts = append(plan.Disjuncts, plan.Disjuncts[0])
	plan.Dedupe = true

	got := runPipeline(t, backend, decoder, plan)
	assert.Len(t, got, 1)
}

func TestRunAppliesTransformProjection(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(1)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFData}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1}}
	plan := oneRangePlan(ft, "f1")
	plan.Transform = []string{"species"}

	got := runPipeline(t, backend, decoder, plan)
	require.Len(t, got, 1)
	v, has := got[0].Value(ft, "species")
	require.True(t, has)
	assert.Equal(t, "osprey", v)
	_, hasGeom := got[0].Value(ft, "geom")
	assert.True(t, hasGeom, "Value still reports presence by position; transform clears the slot, not the attribute list")
	assert.Nil(t, got[0].Values[0], "geom slot should be cleared by the transform")
}

func TestRunEmptyPlanProducesNoRows(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	backend := &fakeBackend{}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{}}
	plan := &planner.ScanPlan{FeatureType: ft}

	got := runPipeline(t, backend, decoder, plan)
	assert.Empty(t, got)
}

func TestRunFullScanIsNotEmpty(t *testing.T) {
	plan := &planner.ScanPlan{FullScan: true}
	assert.False(t, plan.Empty())
}

func TestRunSortsBufferedResultsBySortKey(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(9)}}
	f2 := &geomesa.Feature{ID: "f2", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 1}, time.Now().UTC(), "heron", int32(1)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFData}, {Key: []byte("f2"), CF: index.CFData}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1, "f2": f2}}
	plan := oneRangePlan(ft, "f1", "f2")
	plan.Sort = []planner.SortKey{{Attr: "count"}}

	got := runPipeline(t, backend, decoder, plan)
	require.Len(t, got, 2)
	assert.Equal(t, "f2", got[0].ID)
	assert.Equal(t, "f1", got[1].ID)
}

func TestRunDensityAggregatorEmitsOneFeature(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: -74, Y: 40.5}, time.Now().UTC(), "osprey", int32(1)}}
	f2 := &geomesa.Feature{ID: "f2", Values: []geomesa.Value{geomesa.Point{X: -73.9, Y: 40.6}, time.Now().UTC(), "heron", int32(1)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFData}, {Key: []byte("f2"), CF: index.CFData}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1, "f2": f2}}
	plan := oneRangePlan(ft, "f1", "f2")
	plan.Density = &planner.DensityHint{Width: 4, Height: 4, Envelope: geomesa.Envelope{MinX: -75, MinY: 40, MaxX: -73, MaxY: 41}}

	got := runPipeline(t, backend, decoder, plan)
	require.Len(t, got, 1)
	assert.Equal(t, "density", got[0].ID)
	grid, ok := got[0].Values[0].([]float64)
	require.True(t, ok)
	var total float64
	for _, c := range grid {
		total += c
	}
	assert.InDelta(t, 2, total, 0.0001)
}

func TestRunBinAggregatorEmitsOnePackedFeature(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f1 := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: -74, Y: 40.5}, time.Now().UTC(), "osprey", int32(1)}}

	backend := &fakeBackend{rows: []geomesa.Row{{Key: []byte("f1"), CF: index.CFBin}}}
	decoder := &fakeDecoder{byID: map[string]*geomesa.Feature{"f1": f1}}
	plan := oneRangePlan(ft, "f1")
	plan.BinTrack = "species"

	got := runPipeline(t, backend, decoder, plan)
	require.Len(t, got, 1)
	assert.Equal(t, "bin", got[0].ID)
	packed, ok := got[0].Values[0].([]byte)
	require.True(t, ok)
	assert.Len(t, packed, binRecordSize)
}

func TestCfsForPlanSwitchesToBinColumnFamily(t *testing.T) {
	plan := &planner.ScanPlan{BinTrack: "species"}
	assert.Equal(t, []string{index.CFBin}, cfsForPlan(plan, true))
	assert.Equal(t, []string{index.CFData}, cfsForPlan(plan, false))
}

func TestApplyTransformNoOpWhenEmpty(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(1)}}
	out := applyTransform(ft, f, nil)
	assert.Same(t, f, out)
}

func TestSampleKeyForUsesSampleByAttribute(t *testing.T) {
	ft := pipelineTestFeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 0, Y: 0}, time.Now().UTC(), "osprey", int32(1)}}
	assert.Equal(t, "f1", sampleKeyFor(ft, f, ""))
	assert.Equal(t, "osprey", sampleKeyFor(ft, f, "species"))
}

func TestKeepIsDeterministicForTheSameKey(t *testing.T) {
	assert.Equal(t, Keep("f1", 0.5), Keep("f1", 0.5))
	assert.False(t, Keep("anything", 0))
	assert.True(t, Keep("anything", 1))
}

func decodeUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

func TestEncodeBinLayoutIs16BytesUnlabeled(t *testing.T) {
	rec := BinRecord{TrackID: 7, Ts: 1000, Lat: 40.5, Lon: -74.0}
	buf := EncodeBin(rec)
	require.Len(t, buf, binRecordSize)
	assert.Equal(t, uint32(7), decodeUint32(buf[0:4]))
	assert.Equal(t, uint32(1000), decodeUint32(buf[4:8]))
}

func TestEncodeBinLayoutIs24BytesLabeled(t *testing.T) {
	rec := BinRecord{TrackID: 7, Ts: 1000, Lat: 40.5, Lon: -74.0, HasLabel: true, Label: 42}
	buf := EncodeBin(rec)
	require.Len(t, buf, binRecordSizeLabeled)
}
