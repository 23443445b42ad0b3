// Package storage implements the backend adapter of spec §3/§6: an ordered
// KV engine with four operations (create table, write a batch of
// (row, cf, cq, vis, value) mutations, scan a set of byte ranges returning
// rows in row-sorted order, drop/check tables). Grounded on the teacher's
// datalog/storage/store.go Store/Iterator/StoreTx interface trio, collapsed
// to the operations spec.md names explicitly.
package storage

import (
	"context"

	"github.com/geomesa/geomesa-core/geomesa"
)

// Backend is the adapter every index/schema/scan component is written
// against; geomesa/scan.Pipeline and geomesa/schema.Store both consume it
// through their own narrower, locally-defined interfaces (Go convention:
// define the interface at the point of use), which BadgerBackend and
// MemoryBackend satisfy structurally without importing this package.
type Backend interface {
	CreateTable(ctx context.Context, table string) error
	TableExists(ctx context.Context, table string) (bool, error)
	DropTable(ctx context.Context, table string) error
	WriteBatch(ctx context.Context, table string, mutations []geomesa.Mutation) error
	Scan(ctx context.Context, table string, ranges []geomesa.Range, cfs []string) (RowIterator, error)
}

// RowIterator streams rows in row-sorted order for one Scan call.
type RowIterator interface {
	Next() bool
	Row() geomesa.Row
	Err() error
	Close() error
}
