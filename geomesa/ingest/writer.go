// Package ingest implements spec §4.5's write path: serialize a feature
// once, fan it out across every index the schema enables, and flush the
// resulting rows as one backend batch per index table (each index kind has
// its own table, so a call writes one batch per kind). Grounded on the
// teacher's datalog/storage/transaction.go Transaction.Commit, which
// collects per-datom index mutations across a batch of adds before a
// single flush to the store.
package ingest

import (
	"context"
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/index"
	"github.com/geomesa/geomesa-core/geomesa/serde"
)

// Backend is the narrow slice ingest needs from a storage backend, defined
// at the point of use so any Backend implementation satisfies it structurally.
type Backend interface {
	WriteBatch(ctx context.Context, table string, mutations []geomesa.Mutation) error
}

// Writer fans a stream of features out across ft's enabled indexes and
// flushes them to backend, one table per index kind (geomesa.IndexTableName):
// every index kind owns a physically distinct table, so a scan bounded to
// one index's row layout never sees another index's rows.
type Writer struct {
	Backend Backend
}

// NewWriter builds a Writer over backend.
func NewWriter(backend Backend) *Writer {
	return &Writer{Backend: backend}
}

// WriteFeature serializes f once and writes the rows every index enabled on
// ft produces for it.
func (w *Writer) WriteFeature(ctx context.Context, ft *geomesa.FeatureType, f *geomesa.Feature) error {
	return w.WriteFeatures(ctx, ft, []*geomesa.Feature{f})
}

// WriteFeatures batches every feature's mutations by index kind and flushes
// one batch per kind, so a caller ingesting many features at once pays one
// round trip per index table rather than one per feature.
func (w *Writer) WriteFeatures(ctx context.Context, ft *geomesa.FeatureType, features []*geomesa.Feature) error {
	batches := make(map[geomesa.IndexKind][]geomesa.Mutation)
	for _, f := range features {
		perKind, err := mutationsFor(ft, f)
		if err != nil {
			return err
		}
		for kind, muts := range perKind {
			batches[kind] = append(batches[kind], muts...)
		}
	}
	for kind, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		table := geomesa.IndexTableName(ft.Name, kind)
		if err := w.Backend.WriteBatch(ctx, table, batch); err != nil {
			return fmt.Errorf("ingest: write batch (%s): %w", kind, err)
		}
	}
	return nil
}

// mutationsFor serializes f and asks every index ft.EnabledIndexes enables
// for its rows, per spec §4.5, keyed by the index kind that produced them
// so WriteFeatures can route each to its own table.
func mutationsFor(ft *geomesa.FeatureType, f *geomesa.Feature) (map[geomesa.IndexKind][]geomesa.Mutation, error) {
	value, err := serde.Serialize(ft, f)
	if err != nil {
		return nil, fmt.Errorf("ingest: serialize %s: %w", f.ID, err)
	}

	out := make(map[geomesa.IndexKind][]geomesa.Mutation)
	if ft.EnabledIndexes[geomesa.IndexID] {
		out[geomesa.IndexID] = index.WriteID(ft, f, value)
	}
	if ft.EnabledIndexes[geomesa.IndexZ2] {
		muts, err := index.WriteZ2(ft, f, value)
		if err != nil {
			return nil, fmt.Errorf("ingest: z2 %s: %w", f.ID, err)
		}
		out[geomesa.IndexZ2] = muts
	}
	if ft.EnabledIndexes[geomesa.IndexZ3] {
		muts, err := index.WriteZ3(ft, f, value)
		if err != nil {
			return nil, fmt.Errorf("ingest: z3 %s: %w", f.ID, err)
		}
		out[geomesa.IndexZ3] = muts
	}
	if ft.EnabledIndexes[geomesa.IndexXZ2] {
		muts, err := index.WriteXZ2(ft, f, value)
		if err != nil {
			return nil, fmt.Errorf("ingest: xz2 %s: %w", f.ID, err)
		}
		out[geomesa.IndexXZ2] = muts
	}
	if ft.EnabledIndexes[geomesa.IndexXZ3] {
		muts, err := index.WriteXZ3(ft, f, value)
		if err != nil {
			return nil, fmt.Errorf("ingest: xz3 %s: %w", f.ID, err)
		}
		out[geomesa.IndexXZ3] = muts
	}
	if ft.EnabledIndexes[geomesa.IndexAttribute] {
		for _, a := range ft.Attributes {
			if a.Indexed == geomesa.IndexNone {
				continue
			}
			muts, err := index.WriteAttr(ft, f, a.Name)
			if err != nil {
				return nil, fmt.Errorf("ingest: attr %s.%s: %w", f.ID, a.Name, err)
			}
			out[geomesa.IndexAttribute] = append(out[geomesa.IndexAttribute], muts...)
		}
	}
	return out, nil
}
