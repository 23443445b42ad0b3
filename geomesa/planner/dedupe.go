package planner

import "github.com/geomesa/geomesa-core/geomesa"

// Deduper removes repeated feature ids from a union of disjunct scans or
// from an XZ*/list-attribute index that may emit more than one row per
// feature (spec §4.7 step 4: "bounded-memory hash ring; spills beyond
// dedupBudget are best-effort with a warning").
type Deduper struct {
	budget int
	seen   map[string]struct{}
	spilt  bool
}

// NewDeduper creates a Deduper with the given id-count budget.
func NewDeduper(budget int) *Deduper {
	if budget <= 0 {
		budget = 1 << 20
	}
	return &Deduper{budget: budget, seen: make(map[string]struct{})}
}

// Admit reports whether id has not been seen before. Once the budget is
// exhausted, Admit always returns true (every row passes through) and
// Spilt reports true from then on — duplicates may leak through, which is
// the documented best-effort degradation, not a silent one.
func (d *Deduper) Admit(id string) bool {
	if d.spilt {
		return true
	}
	if _, ok := d.seen[id]; ok {
		return false
	}
	if len(d.seen) >= d.budget {
		d.spilt = true
		return true
	}
	d.seen[id] = struct{}{}
	return true
}

// Spilt reports whether the dedupe budget was exceeded during this scan.
func (d *Deduper) Spilt() bool { return d.spilt }

// Err returns ErrDedupeBudgetExceeded when the caller is running in strict
// mode and the budget spilt; callers running with strict=false should
// ignore this and just log the warning (see spec §7 "DedupeBudgetExceeded
// downgraded to warning + best-effort when strict=false").
func (d *Deduper) Err(strict bool) error {
	if d.spilt && strict {
		return geomesa.ErrDedupeBudgetExceeded
	}
	return nil
}
