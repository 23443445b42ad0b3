// Package scan implements the scan pipeline of spec §4.8: drive the
// backend adapter over a planner.ScanPlan's ranges, apply any in-server
// aggregator, decode rows to features, apply the residual filter and
// transform, optionally sort and sample, and stream the result. Grounded on
// the teacher's datalog/executor/executor.go / query_executor.go staged
// execution and datalog/executor/worker_pool.go's WorkerPool.
package scan

import (
	"context"
	"math/big"
	"runtime"
	"sync"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/storage"
)

// Backend is the ordered-KV scan surface the pipeline drives (spec §3's
// four-operation contract, scan half only); geomesa/storage implementations
// satisfy it directly.
type Backend interface {
	Scan(ctx context.Context, table string, ranges []geomesa.Range, cfs []string) (RowIterator, error)
}

// RowIterator streams backend rows in row-sorted order within one Scan call,
// aliased to storage.RowIterator so a *storage.MemoryBackend/*BadgerBackend
// satisfies Backend directly instead of needing an adapter.
type RowIterator = storage.RowIterator

// task is one worker's unit of work: a contiguous slice of the plan's ranges.
type task struct {
	ranges []geomesa.Range
}

// ScanRanges runs ranges through backend across up to queryThreads parallel
// workers, each owning a task, merging rows into one bounded channel (spec
// §4.8 "the final merge is a bounded-buffer channel from each task to the
// consumer; backpressure: producer blocks when channel is full"). Ordering
// across tasks is not preserved, matching "across ranges there is no
// ordering guarantee unless the caller requested sort". Adapted from the
// teacher's WorkerPool: a job channel of indices drained by workerCount
// goroutines, generalized here from an order-preserving results array to a
// streaming channel, since cross-range order isn't required.
func ScanRanges(ctx context.Context, backend Backend, table string, cfs []string, ranges []geomesa.Range, queryThreads, bufferRows int) (<-chan geomesa.Row, <-chan error) {
	if queryThreads <= 0 {
		queryThreads = runtime.NumCPU()
	}
	if bufferRows <= 0 {
		bufferRows = 256
	}
	tasks := splitTasks(ranges, queryThreads*3)

	rows := make(chan geomesa.Row, bufferRows)
	errs := make(chan error, 1)

	if len(tasks) == 0 {
		close(rows)
		close(errs)
		return rows, errs
	}

	jobs := make(chan task, len(tasks))
	for _, t := range tasks {
		jobs <- t
	}
	close(jobs)

	workers := queryThreads
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	var once sync.Once
	reportErr := func(err error) {
		if err == nil {
			return
		}
		once.Do(func() { errs <- err })
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if err := scanTask(ctx, backend, table, cfs, t, rows); err != nil {
					reportErr(err)
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(rows)
		close(errs)
	}()

	return rows, errs
}

func scanTask(ctx context.Context, backend Backend, table string, cfs []string, t task, out chan<- geomesa.Row) error {
	it, err := backend.Scan(ctx, table, t.ranges, cfs)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		select {
		case out <- it.Row():
		case <-ctx.Done():
			return nil
		}
	}
	return it.Err()
}

// splitTasks partitions ranges into at least minTasks tasks, bisecting the
// widest range by byte midpoint when there aren't enough ranges to go
// around (spec §4.8 "the planner splits ranges to achieve at least
// queryThreads x 3 tasks").
func splitTasks(ranges []geomesa.Range, minTasks int) []task {
	if minTasks < 1 {
		minTasks = 1
	}
	work := make([]geomesa.Range, len(ranges))
	copy(work, ranges)

	for len(work) < minTasks {
		idx, mid, ok := widestSplittable(work)
		if !ok {
			break
		}
		r := work[idx]
		left := geomesa.Range{Start: r.Start, End: mid}
		right := geomesa.Range{Start: mid, End: r.End}
		work = append(work[:idx:idx], append([]geomesa.Range{left, right}, work[idx+1:]...)...)
	}

	tasks := make([]task, len(work))
	for i, r := range work {
		tasks[i] = task{ranges: []geomesa.Range{r}}
	}
	return tasks
}

// widestSplittable finds the range with the largest byte-distance span that
// has a finite End and a midpoint distinct from both endpoints.
func widestSplittable(ranges []geomesa.Range) (idx int, mid []byte, ok bool) {
	var best *big.Int
	for i, r := range ranges {
		if r.End == nil {
			continue
		}
		m := midpoint(r.Start, r.End)
		if bytesEqual(m, r.Start) || bytesEqual(m, r.End) {
			continue
		}
		span := spanOf(r.Start, r.End)
		if best == nil || span.Cmp(best) > 0 {
			best = span
			idx, mid, ok = i, m, true
		}
	}
	return idx, mid, ok
}

func spanOf(lo, hi []byte) *big.Int {
	n := len(lo)
	if len(hi) > n {
		n = len(hi)
	}
	a := new(big.Int).SetBytes(padTo(lo, n))
	b := new(big.Int).SetBytes(padTo(hi, n))
	return new(big.Int).Sub(b, a)
}

func midpoint(lo, hi []byte) []byte {
	n := len(lo)
	if len(hi) > n {
		n = len(hi)
	}
	a := new(big.Int).SetBytes(padTo(lo, n))
	b := new(big.Int).SetBytes(padTo(hi, n))
	sum := new(big.Int).Add(a, b)
	sum.Rsh(sum, 1)
	buf := sum.Bytes()
	out := make([]byte, n)
	copy(out[n-len(buf):], buf)
	return out
}

func padTo(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
