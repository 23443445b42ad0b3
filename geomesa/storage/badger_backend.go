package storage

import (
	"bytes"
	"context"

	"github.com/dgraph-io/badger/v4"

	"github.com/geomesa/geomesa-core/geomesa"
)

// BadgerBackend is the production Backend, grounded on the teacher's
// datalog/storage/badger_store.go: the same tuned badger.Options (larger
// memtables/block cache for a read-heavy workload, conflict detection off
// since the engine has no cross-write-transaction read dependencies to
// protect), batch writes through a badger WriteBatch (a plain mutation
// batch rather than the teacher's per-datom multi-index fan-out, since
// index fan-out already happened one layer up in geomesa/index), and the
// same txn.NewIterator/PrefetchSize/PrefetchValues scan shape.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens (or creates) a BadgerDB at path.
func NewBadgerBackend(path string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	opts.MemTableSize = 128 << 20
	opts.BlockCacheSize = 256 << 20
	opts.IndexCacheSize = 100 << 20
	opts.DetectConflicts = false
	opts.NumCompactors = 4
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, geomesa.NewBackendError("open", err, false)
	}
	return &BadgerBackend{db: db}, nil
}

// Close closes the underlying BadgerDB.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

func (b *BadgerBackend) CreateTable(_ context.Context, table string) error {
	key := tableMarkerKey(table)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte{1})
	})
	if err != nil {
		return geomesa.NewBackendError("create-table", err, true)
	}
	return nil
}

func (b *BadgerBackend) TableExists(_ context.Context, table string) (bool, error) {
	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(tableMarkerKey(table))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, geomesa.NewBackendError("table-exists", err, true)
	}
	return exists, nil
}

func (b *BadgerBackend) DropTable(_ context.Context, table string) error {
	header := tableHeader(table)
	err := b.db.Update(func(txn *badger.Txn) error {
		if delErr := txn.Delete(tableMarkerKey(table)); delErr != nil && delErr != badger.ErrKeyNotFound {
			return delErr
		}
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		var keys [][]byte
		for it.Seek(header); it.ValidForPrefix(header); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return geomesa.NewBackendError("drop-table", err, true)
	}
	return nil
}

func (b *BadgerBackend) WriteBatch(_ context.Context, table string, mutations []geomesa.Mutation) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, mut := range mutations {
		key := physicalKey(table, mut.Row, mut.CF, mut.CQ)
		if mut.Delete {
			if err := wb.Delete(key); err != nil {
				return geomesa.NewBackendError("write-batch", err, true)
			}
			continue
		}
		if err := wb.Set(key, encodeValue(mut.Vis, mut.Value)); err != nil {
			return geomesa.NewBackendError("write-batch", err, true)
		}
	}
	if err := wb.Flush(); err != nil {
		return geomesa.NewBackendError("write-batch", err, true)
	}
	return nil
}

func (b *BadgerBackend) Scan(ctx context.Context, table string, ranges []geomesa.Range, cfs []string) (RowIterator, error) {
	txn := b.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 1000
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)

	return &badgerRowIterator{
		ctx:    ctx,
		txn:    txn,
		it:     it,
		table:  table,
		ranges: geomesa.SortRanges(append([]geomesa.Range{}, ranges...)),
		cfSet:  toSet(cfs),
	}, nil
}

func tableMarkerKey(table string) []byte {
	return append([]byte("!table/"), table...)
}

// badgerRowIterator walks ranges in order, within each range seeking to its
// start and advancing until the range's end (spec §3 "scan... returning
// rows in row-sorted order").
type badgerRowIterator struct {
	ctx     context.Context
	txn     *badger.Txn
	it      *badger.Iterator
	table   string
	ranges  []geomesa.Range
	cfSet   map[string]bool
	rangeAt int
	seeked  bool
	cur     geomesa.Row
	err     error
}

func (it *badgerRowIterator) Next() bool {
	for {
		select {
		case <-it.ctx.Done():
			it.err = it.ctx.Err()
			return false
		default:
		}

		if it.rangeAt >= len(it.ranges) {
			return false
		}
		r := it.ranges[it.rangeAt]
		lo, hi := rowBounds(it.table, r)
		if !it.seeked {
			it.it.Seek(lo)
			it.seeked = true
		}
		if !it.it.Valid() || !hasTablePrefix(it.it.Item().Key(), it.table) || (hi != nil && bytes.Compare(it.it.Item().Key(), hi) >= 0) {
			it.rangeAt++
			it.seeked = false
			continue
		}

		item := it.it.Item()
		key := item.KeyCopy(nil)
		cf, cq := cfCqOf(key, it.table)
		if len(it.cfSet) > 0 && !it.cfSet[cf] {
			it.it.Next()
			continue
		}
		var vis string
		var value []byte
		valErr := item.Value(func(v []byte) error {
			vis, value = decodeValue(v)
			return nil
		})
		if valErr != nil {
			it.err = valErr
			return false
		}
		it.cur = geomesa.Row{Key: rowOf(key, it.table), CF: cf, CQ: cq, Vis: vis, Value: value}
		it.it.Next()
		return true
	}
}

func (it *badgerRowIterator) Row() geomesa.Row { return it.cur }
func (it *badgerRowIterator) Err() error       { return it.err }
func (it *badgerRowIterator) Close() error {
	it.it.Close()
	it.txn.Discard()
	return nil
}
