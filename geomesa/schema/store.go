// Package schema implements the schema & metadata component of spec §4.9/§6:
// persist a FeatureType definition, its per-index enablement and
// per-attribute cardinality hints in a metadata table, written through the
// same backend adapter as feature data. Grounded on the teacher's
// datalog/storage/database.go, which plays the same schema-resolution role
// ahead of matcher/executor construction in that codebase.
package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
)

// dataIndexKinds enumerates every index kind CreateSchema/DeleteSchema might
// own a table for; IndexAttribute is one table shared by every indexed
// attribute, not one per attribute.
var dataIndexKinds = []geomesa.IndexKind{
	geomesa.IndexID, geomesa.IndexZ2, geomesa.IndexZ3,
	geomesa.IndexXZ2, geomesa.IndexXZ3, geomesa.IndexAttribute,
}

// Backend is the narrow slice of the storage adapter the schema store
// needs, defined here (Go convention: interface at point of use) rather
// than importing geomesa/storage; geomesa/storage's Backend implementations
// satisfy it structurally.
type Backend interface {
	CreateTable(ctx context.Context, table string) error
	TableExists(ctx context.Context, table string) (bool, error)
	DropTable(ctx context.Context, table string) error
	WriteBatch(ctx context.Context, table string, mutations []geomesa.Mutation) error
	Scan(ctx context.Context, table string, ranges []geomesa.Range, cfs []string) (RowIterator, error)
}

// RowIterator mirrors geomesa/storage.RowIterator.
type RowIterator interface {
	Next() bool
	Row() geomesa.Row
	Err() error
	Close() error
}

// MetadataTable is the single reserved table every schema store writes to.
const MetadataTable = "geomesa_metadata"

const metaCF = "m"

// Store is the schema & metadata store (spec §4.9 / C9).
type Store struct {
	backend Backend
	cache   *Cache
}

// NewStore creates a Store; cache may be nil to disable caching.
func NewStore(backend Backend, cache *Cache) *Store {
	return &Store{backend: backend, cache: cache}
}

func (s *Store) ensureTable(ctx context.Context) error {
	exists, err := s.backend.TableExists(ctx, MetadataTable)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.backend.CreateTable(ctx, MetadataTable)
}

// CreateSchema persists a new FeatureType and creates its per-type tables:
// one physical table per enabled index kind (geomesa.IndexTableName), so
// Z2/Z3/XZ2/XZ3/Id/attribute rows always live in physically distinct
// tables rather than sharing one. Re-creating an existing type with an
// identical definition is idempotent; a different shape is a conflict
// (spec §7 "SchemaConflict: attempt to re-create with different shape").
func (s *Store) CreateSchema(ctx context.Context, ft *geomesa.FeatureType) error {
	if err := ft.Validate(); err != nil {
		return err
	}
	if err := s.ensureTable(ctx); err != nil {
		return err
	}

	existing, ok, err := s.loadSchema(ctx, ft.Name)
	if err != nil {
		return err
	}
	if ok {
		if !sameShape(existing, ft) {
			return fmt.Errorf("%w: %s already exists with a different shape", geomesa.ErrSchemaConflict, ft.Name)
		}
		return nil
	}

	if err := s.ensureDataTables(ctx, ft); err != nil {
		return err
	}

	blob, err := json.Marshal(ft)
	if err != nil {
		return fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	muts := []geomesa.Mutation{{Row: sftRow(ft.Name), CF: metaCF, Value: blob}}
	for kind, enabled := range ft.EnabledIndexes {
		muts = append(muts, indexMutation(ft.Name, kind, enabled))
	}
	if err := s.backend.WriteBatch(ctx, MetadataTable, muts); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateSchema(ft.Name)
	}
	return nil
}

// ensureDataTables creates the physical table backing each of ft's enabled
// index kinds.
func (s *Store) ensureDataTables(ctx context.Context, ft *geomesa.FeatureType) error {
	for _, kind := range dataIndexKinds {
		if !ft.EnabledIndexes[kind] {
			continue
		}
		if err := s.backend.CreateTable(ctx, geomesa.IndexTableName(ft.Name, kind)); err != nil {
			return fmt.Errorf("schema: creating %s table for %s: %w", kind, ft.Name, err)
		}
	}
	return nil
}

// AddAttribute appends a new attribute to an existing FeatureType; the
// metadata store only ever grows a schema this way (spec's "updateSchema
// (attribute-add-only)" — removing or retyping an attribute would silently
// invalidate rows already written under the old shape).
func (s *Store) AddAttribute(ctx context.Context, typeName string, attr geomesa.Attribute) error {
	ft, ok, err := s.loadSchema(ctx, typeName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", geomesa.ErrSchemaNotFound, typeName)
	}
	if _, exists := ft.AttributeByName(attr.Name); exists {
		return fmt.Errorf("%w: %s already has attribute %q", geomesa.ErrSchemaConflict, typeName, attr.Name)
	}
	ft.Attributes = append(ft.Attributes, attr)
	if err := ft.Validate(); err != nil {
		return err
	}

	blob, err := json.Marshal(ft)
	if err != nil {
		return fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	if err := s.backend.WriteBatch(ctx, MetadataTable, []geomesa.Mutation{{Row: sftRow(typeName), CF: metaCF, Value: blob}}); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateSchema(typeName)
	}
	return nil
}

// DeleteSchema removes a FeatureType's schema, index-enablement and
// cardinality rows, and drops every per-index data table it owns (the
// counterpart to CreateSchema's ensureDataTables).
func (s *Store) DeleteSchema(ctx context.Context, typeName string) error {
	ft, ok, err := s.loadSchema(ctx, typeName)
	if err != nil {
		return err
	}

	muts := []geomesa.Mutation{{Row: sftRow(typeName), CF: metaCF, Delete: true}}

	idxRows, err := s.scanPrefix(ctx, idxPrefix(typeName))
	if err != nil {
		return err
	}
	for _, r := range idxRows {
		muts = append(muts, geomesa.Mutation{Row: r.Key, CF: r.CF, Delete: true})
	}
	statRows, err := s.scanPrefix(ctx, statsPrefix(typeName))
	if err != nil {
		return err
	}
	for _, r := range statRows {
		muts = append(muts, geomesa.Mutation{Row: r.Key, CF: r.CF, Delete: true})
	}

	if err := s.backend.WriteBatch(ctx, MetadataTable, muts); err != nil {
		return err
	}

	if ok {
		for _, kind := range dataIndexKinds {
			if !ft.EnabledIndexes[kind] {
				continue
			}
			table := geomesa.IndexTableName(ft.Name, kind)
			if exists, err := s.backend.TableExists(ctx, table); err == nil && exists {
				if err := s.backend.DropTable(ctx, table); err != nil {
					return fmt.Errorf("schema: dropping %s table for %s: %w", kind, typeName, err)
				}
			}
		}
	}

	if s.cache != nil {
		s.cache.InvalidateSchema(typeName)
	}
	return nil
}

// GetSchema resolves a FeatureType by name, consulting the cache first.
func (s *Store) GetSchema(ctx context.Context, typeName string) (*geomesa.FeatureType, error) {
	if s.cache != nil {
		if ft, ok := s.cache.GetSchema(typeName); ok {
			return ft, nil
		}
	}
	ft, ok, err := s.loadSchema(ctx, typeName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", geomesa.ErrSchemaNotFound, typeName)
	}
	if s.cache != nil {
		s.cache.PutSchema(typeName, ft)
	}
	return ft, nil
}

// SetCardinality records a cardinality hint for one attribute.
func (s *Store) SetCardinality(ctx context.Context, typeName, attr string, c geomesa.Cardinality) error {
	row := statsRow(typeName, attr)
	mut := geomesa.Mutation{Row: row, CF: metaCF, Value: []byte{byte(c)}}
	if err := s.backend.WriteBatch(ctx, MetadataTable, []geomesa.Mutation{mut}); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.PutCardinality(typeName, attr, c)
	}
	return nil
}

// Cardinality resolves an attribute's cardinality hint, defaulting to
// CardinalityNormal when no stat has been recorded (spec §6 "stats/<name>/<attr>
// carry cardinality hint").
func (s *Store) Cardinality(ctx context.Context, typeName, attr string) geomesa.Cardinality {
	if s.cache != nil {
		if c, ok := s.cache.GetCardinality(typeName, attr); ok {
			return c
		}
	}
	rows, err := s.scanPrefix(ctx, statsRow(typeName, attr))
	if err != nil || len(rows) == 0 || len(rows[0].Value) == 0 {
		return geomesa.CardinalityNormal
	}
	c := geomesa.Cardinality(rows[0].Value[0])
	if s.cache != nil {
		s.cache.PutCardinality(typeName, attr, c)
	}
	return c
}

// CardinalitySource adapts Store.Cardinality to planner.CardinalitySource's
// func(attr string) geomesa.Cardinality shape for a fixed feature type.
func (s *Store) CardinalitySource(ctx context.Context, typeName string) func(attr string) geomesa.Cardinality {
	return func(attr string) geomesa.Cardinality {
		return s.Cardinality(ctx, typeName, attr)
	}
}

func (s *Store) loadSchema(ctx context.Context, typeName string) (*geomesa.FeatureType, bool, error) {
	rows, err := s.scanPrefix(ctx, sftRow(typeName))
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	var ft geomesa.FeatureType
	if err := json.Unmarshal(rows[0].Value, &ft); err != nil {
		return nil, false, fmt.Errorf("%w: %v", geomesa.ErrSerde, err)
	}
	return &ft, true, nil
}

func (s *Store) scanPrefix(ctx context.Context, prefix []byte) ([]geomesa.Row, error) {
	r := geomesa.PrefixRange(prefix)
	it, err := s.backend.Scan(ctx, MetadataTable, []geomesa.Range{r}, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var rows []geomesa.Row
	for it.Next() {
		rows = append(rows, it.Row())
	}
	return rows, it.Err()
}

func sameShape(a, b *geomesa.FeatureType) bool {
	if len(a.Attributes) != len(b.Attributes) || a.DefaultGeometry != b.DefaultGeometry || a.DefaultDate != b.DefaultDate {
		return false
	}
	for i := range a.Attributes {
		if a.Attributes[i].Name != b.Attributes[i].Name || a.Attributes[i].Type != b.Attributes[i].Type {
			return false
		}
	}
	return true
}

func sftRow(typeName string) []byte      { return append([]byte("sft/"+typeName), 0x00) }
func idxPrefix(typeName string) []byte   { return []byte("idx/" + typeName + "/") }
func statsPrefix(typeName string) []byte { return []byte("stats/" + typeName + "/") }

func indexRowKey(typeName string, kind geomesa.IndexKind) []byte {
	return append([]byte(fmt.Sprintf("idx/%s/%s", typeName, kind)), 0x00)
}

func statsRow(typeName, attr string) []byte {
	return append([]byte(fmt.Sprintf("stats/%s/%s", typeName, attr)), 0x00)
}

func indexMutation(typeName string, kind geomesa.IndexKind, enabled bool) geomesa.Mutation {
	val := []byte{0}
	if enabled {
		val = []byte{1}
	}
	return geomesa.Mutation{Row: indexRowKey(typeName, kind), CF: metaCF, Value: val}
}
