package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/index"
)

type fakeBackend struct {
	batches map[string][]geomesa.Mutation
	calls   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{batches: map[string][]geomesa.Mutation{}}
}

func (b *fakeBackend) WriteBatch(ctx context.Context, table string, mutations []geomesa.Mutation) error {
	b.batches[table] = append(b.batches[table], mutations...)
	b.calls++
	return nil
}

func z2FeatureType(t *testing.T) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "species", Type: geomesa.TString, Indexed: geomesa.IndexJoin},
	}, "geom", "")
	require.NoError(t, err)
	ft.EnabledIndexes[geomesa.IndexAttribute] = true
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
	ft.EnabledIndexes[geomesa.IndexAttribute] = true
	return ft
}

func TestWriteFeatureFlushesOneBatchPerEnabledIndex(t *testing.T) {
	ft := z2FeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 2}, "osprey"}}
	backend := newFakeBackend()
	w := NewWriter(backend)

	require.NoError(t, w.WriteFeature(context.Background(), ft, f))

	// Id, Z2 and Attribute are enabled; each gets its own table/batch.
	assert.Equal(t, 3, backend.calls)
	assert.Contains(t, backend.batches, geomesa.IndexTableName(ft.Name, geomesa.IndexID))
	assert.Contains(t, backend.batches, geomesa.IndexTableName(ft.Name, geomesa.IndexZ2))
	assert.Contains(t, backend.batches, geomesa.IndexTableName(ft.Name, geomesa.IndexAttribute))

	expected, err := mutationsFor(ft, f)
	require.NoError(t, err)
	var total int
	for _, muts := range expected {
		total += len(muts)
	}
	var got int
	for _, muts := range backend.batches {
		got += len(muts)
	}
	assert.Equal(t, total, got)
}

func TestWriteFeaturesRoutesEachIndexKindToItsOwnTable(t *testing.T) {
	ft := z2FeatureType(t)
	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 2}, "osprey"}}
	backend := newFakeBackend()
	w := NewWriter(backend)
	require.NoError(t, w.WriteFeature(context.Background(), ft, f))

	idTable := geomesa.IndexTableName(ft.Name, geomesa.IndexID)
	z2Table := geomesa.IndexTableName(ft.Name, geomesa.IndexZ2)
	attrTable := geomesa.IndexTableName(ft.Name, geomesa.IndexAttribute)
	require.NotEqual(t, idTable, z2Table)
	require.NotEqual(t, idTable, attrTable)
	require.NotEqual(t, z2Table, attrTable)

	// The Id table holds exactly one CFData row per feature, and only that
	// row: no foreign-index row leaked into it.
	idRows := 0
	for _, m := range backend.batches[idTable] {
		if id := index.ExtractIDId(ft, m.Row); id == "f1" && m.CF == index.CFData {
			idRows++
		}
	}
	assert.Equal(t, 1, idRows)
	assert.Len(t, backend.batches[idTable], 1)

	// Every row the attribute index wrote landed in the attribute table,
	// never in the Z2 table's row-byte range.
	for _, m := range backend.batches[attrTable] {
		assert.Equal(t, index.CFIndex, m.CF)
	}
	for _, m := range backend.batches[z2Table] {
		assert.Equal(t, index.CFData, m.CF)
	}
}

func TestWriteFeaturesUsesZ3WhenDateConfigured(t *testing.T) {
	ft := z3FeatureType(t)
	backend := newFakeBackend()
	w := NewWriter(backend)
	f := &geomesa.Feature{
		ID:     "f1",
		Values: []geomesa.Value{geomesa.Point{X: 1, Y: 2}, time.Now().UTC(), "osprey"},
	}

	require.NoError(t, w.WriteFeature(context.Background(), ft, f))

	muts, err := index.WriteZ3(ft, f, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, muts)
	assert.False(t, ft.EnabledIndexes[geomesa.IndexZ2])
	assert.True(t, ft.EnabledIndexes[geomesa.IndexZ3])
	assert.Contains(t, backend.batches, geomesa.IndexTableName(ft.Name, geomesa.IndexZ3))
	assert.NotContains(t, backend.batches, geomesa.IndexTableName(ft.Name, geomesa.IndexZ2))
}

func TestWriteFeaturesBatchesMultipleFeaturesInOneFlushPerTable(t *testing.T) {
	ft := z2FeatureType(t)
	features := []*geomesa.Feature{
		{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 2}, "osprey"}},
		{ID: "f2", Values: []geomesa.Value{geomesa.Point{X: 3, Y: 4}, "heron"}},
	}
	backend := newFakeBackend()
	w := NewWriter(backend)

	require.NoError(t, w.WriteFeatures(context.Background(), ft, features))

	// One flush per enabled index kind (Id, Z2, Attribute), not per feature.
	assert.Equal(t, 3, backend.calls, "all features for one index kind must flush in a single backend batch")

	var total int
	for _, f := range features {
		muts, err := mutationsFor(ft, f)
		require.NoError(t, err)
		for _, m := range muts {
			total += len(m)
		}
	}
	var got int
	for _, muts := range backend.batches {
		got += len(muts)
	}
	assert.Equal(t, total, got)
}

func TestWriteFeaturesEmptyInputDoesNotCallBackend(t *testing.T) {
	ft := z2FeatureType(t)
	backend := newFakeBackend()
	w := NewWriter(backend)

	require.NoError(t, w.WriteFeatures(context.Background(), ft, nil))
	assert.Equal(t, 0, backend.calls)
}

func TestMutationsForSkipsUnindexedAttributesInAttrIndex(t *testing.T) {
	ft, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "species", Type: geomesa.TString}, // not indexed
	}, "geom", "")
	require.NoError(t, err)
	ft.EnabledIndexes[geomesa.IndexAttribute] = true

	f := &geomesa.Feature{ID: "f1", Values: []geomesa.Value{geomesa.Point{X: 1, Y: 2}, "osprey"}}
	muts, err := mutationsFor(ft, f)
	require.NoError(t, err)

	// No attribute index row since species.Indexed == IndexNone: the
	// attribute kind either doesn't appear in the map, or maps to nothing.
	assert.Empty(t, muts[geomesa.IndexAttribute], "unindexed attribute must not produce an attribute-index row")
}
