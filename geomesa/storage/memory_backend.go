package storage

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/geomesa/geomesa-core/geomesa"
)

// MemoryBackend is an in-memory sorted-map Backend for tests, grounded in
// shape on BadgerBackend's key scheme but backed by a plain Go map plus an
// on-demand sort instead of an LSM tree.
type MemoryBackend struct {
	mu     sync.RWMutex
	tables map[string]bool
	rows   map[string][]byte // physicalKey -> encoded value (see encodeValue)
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tables: make(map[string]bool),
		rows:   make(map[string][]byte),
	}
}

func (m *MemoryBackend) CreateTable(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = true
	return nil
}

func (m *MemoryBackend) TableExists(_ context.Context, table string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tables[table], nil
}

func (m *MemoryBackend) DropTable(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, table)
	header := tableHeader(table)
	for k := range m.rows {
		if bytes.HasPrefix([]byte(k), header) {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *MemoryBackend) WriteBatch(_ context.Context, table string, mutations []geomesa.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.tables[table] {
		return fmt.Errorf("%w: table %q does not exist", geomesa.ErrSchemaNotFound, table)
	}
	for _, mut := range mutations {
		key := physicalKey(table, mut.Row, mut.CF, mut.CQ)
		if mut.Delete {
			delete(m.rows, string(key))
			continue
		}
		m.rows[string(key)] = encodeValue(mut.Vis, mut.Value)
	}
	return nil
}

func (m *MemoryBackend) Scan(_ context.Context, table string, ranges []geomesa.Range, cfs []string) (RowIterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfSet := toSet(cfs)
	var rows []geomesa.Row
	for k, v := range m.rows {
		key := []byte(k)
		if !hasTablePrefix(key, table) {
			continue
		}
		cf, cq := cfCqOf(key, table)
		if len(cfSet) > 0 && !cfSet[cf] {
			continue
		}
		row := rowOf(key, table)
		if !inAnyRange(row, ranges) {
			continue
		}
		vis, value := decodeValue(v)
		rows = append(rows, geomesa.Row{Key: append([]byte{}, row...), CF: cf, CQ: cq, Vis: vis, Value: value})
	}
	sort.Slice(rows, func(i, j int) bool { return bytes.Compare(rows[i].Key, rows[j].Key) < 0 })
	return &sliceIterator{rows: rows}, nil
}

func inAnyRange(row []byte, ranges []geomesa.Range) bool {
	for _, r := range ranges {
		if r.Contains(row) {
			return true
		}
	}
	return false
}

func toSet(cfs []string) map[string]bool {
	if len(cfs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(cfs))
	for _, cf := range cfs {
		set[cf] = true
	}
	return set
}

// encodeValue/decodeValue pack the visibility expression alongside the raw
// value bytes, since the physical key carries only row/cf/cq.
func encodeValue(vis string, value []byte) []byte {
	out := make([]byte, 0, 2+len(vis)+len(value))
	visLen := len(vis)
	out = append(out, byte(visLen>>8), byte(visLen))
	out = append(out, vis...)
	out = append(out, value...)
	return out
}

func decodeValue(b []byte) (vis string, value []byte) {
	if len(b) < 2 {
		return "", nil
	}
	visLen := int(b[0])<<8 | int(b[1])
	if 2+visLen > len(b) {
		return "", nil
	}
	return string(b[2 : 2+visLen]), b[2+visLen:]
}

type sliceIterator struct {
	rows []geomesa.Row
	pos  int
}

func (it *sliceIterator) Next() bool {
	if it.pos >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Row() geomesa.Row { return it.rows[it.pos-1] }
func (it *sliceIterator) Err() error       { return nil }
func (it *sliceIterator) Close() error     { return nil }
