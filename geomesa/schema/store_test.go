package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cache, err := NewCache(8, 64)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return NewStore(storage.NewMemoryBackend(), cache)
}

func testFeatureType(t *testing.T, name string) *geomesa.FeatureType {
	t.Helper()
	ft, err := geomesa.NewFeatureType(name, []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
		{Name: "dtg", Type: geomesa.TDate},
		{Name: "species", Type: geomesa.TString, Indexed: geomesa.IndexJoin},
	}, "geom", "dtg")
	require.NoError(t, err)
	return ft
}

func TestCreateAndGetSchema(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")

	require.NoError(t, s.CreateSchema(ctx, ft))

	got, err := s.GetSchema(ctx, "sighting")
	require.NoError(t, err)
	assert.Equal(t, ft.Name, got.Name)
	assert.Len(t, got.Attributes, 3)
	assert.True(t, got.EnabledIndexes[geomesa.IndexZ3])
}

func TestCreateSchemaIdempotentSameShape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")

	require.NoError(t, s.CreateSchema(ctx, ft))
	require.NoError(t, s.CreateSchema(ctx, ft)) // identical re-create is a no-op
}

func TestCreateSchemaConflictOnDifferentShape(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")
	require.NoError(t, s.CreateSchema(ctx, ft))

	other, err := geomesa.NewFeatureType("sighting", []geomesa.Attribute{
		{Name: "geom", Type: geomesa.TPoint},
	}, "geom", "")
	require.NoError(t, err)

	err = s.CreateSchema(ctx, other)
	assert.ErrorIs(t, err, geomesa.ErrSchemaConflict)
}

func TestGetSchemaNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.GetSchema(ctx, "nope")
	assert.ErrorIs(t, err, geomesa.ErrSchemaNotFound)
}

func TestAddAttribute(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")
	require.NoError(t, s.CreateSchema(ctx, ft))

	require.NoError(t, s.AddAttribute(ctx, "sighting", geomesa.Attribute{Name: "notes", Type: geomesa.TString}))

	got, err := s.GetSchema(ctx, "sighting")
	require.NoError(t, err)
	assert.Len(t, got.Attributes, 4)

	err = s.AddAttribute(ctx, "sighting", geomesa.Attribute{Name: "notes", Type: geomesa.TString})
	assert.ErrorIs(t, err, geomesa.ErrSchemaConflict)
}

func TestDeleteSchemaRemovesIndexAndStatsRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")
	require.NoError(t, s.CreateSchema(ctx, ft))
	require.NoError(t, s.SetCardinality(ctx, "sighting", "species", geomesa.CardinalityLow))

	require.NoError(t, s.DeleteSchema(ctx, "sighting"))

	_, err := s.GetSchema(ctx, "sighting")
	assert.ErrorIs(t, err, geomesa.ErrSchemaNotFound)
	assert.Equal(t, geomesa.CardinalityNormal, s.Cardinality(ctx, "sighting", "species"))
}

func TestCardinalityDefaultsToNormal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	assert.Equal(t, geomesa.CardinalityNormal, s.Cardinality(ctx, "sighting", "species"))
}

func TestSetAndGetCardinality(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")
	require.NoError(t, s.CreateSchema(ctx, ft))

	require.NoError(t, s.SetCardinality(ctx, "sighting", "species", geomesa.CardinalityHigh))
	assert.Equal(t, geomesa.CardinalityHigh, s.Cardinality(ctx, "sighting", "species"))
}

func TestCardinalitySourceAdapter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	ft := testFeatureType(t, "sighting")
	require.NoError(t, s.CreateSchema(ctx, ft))
	require.NoError(t, s.SetCardinality(ctx, "sighting", "species", geomesa.CardinalityLow))

	source := s.CardinalitySource(ctx, "sighting")
	assert.Equal(t, geomesa.CardinalityLow, source("species"))
	assert.Equal(t, geomesa.CardinalityNormal, source("unset-attr"))
}

func TestPrefixCollisionBetweenTypeNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	foo := testFeatureType(t, "foo")
	foobar := testFeatureType(t, "foobar")
	require.NoError(t, s.CreateSchema(ctx, foo))
	require.NoError(t, s.CreateSchema(ctx, foobar))

	require.NoError(t, s.DeleteSchema(ctx, "foo"))

	_, err := s.GetSchema(ctx, "foo")
	assert.ErrorIs(t, err, geomesa.ErrSchemaNotFound)

	got, err := s.GetSchema(ctx, "foobar")
	require.NoError(t, err)
	assert.Equal(t, "foobar", got.Name)
}
