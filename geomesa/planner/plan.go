// Package planner implements the query planner of spec §4.7: split a
// predicate into disjuncts, pick a strategy and enumerate ranges per
// disjunct, assemble the per-index scan-iterator stack, dedupe, sort/merge
// ranges, and attach transform/sort/sampling. Grounded on the teacher's
// datalog/planner/planner.go (Planner.Plan entry point, phase assembly)
// and datalog/planner/cache.go (PlanCache).
package planner

import (
	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/strategy"
)

// Hints mirrors spec §6's recognised query hints.
type Hints struct {
	IndexHint           string
	LooseBBox           bool
	RangeTarget         int
	QueryThreads        int
	Sampling            float64
	SampleBy            string
	BinTrack            string
	BinLabel            string
	BinSort             bool
	Density             *DensityHint
	Transform           []string
	Sort                []SortKey
	BlockFullTableScans bool
	IDJoinThreshold     int
	PrecisionBits       int
	MaxDnfTerms         int
	DedupeBudget        int
	SortBufferBytes     int64
}

// DensityHint configures the in-server density aggregator.
type DensityHint struct {
	Width, Height int
	Envelope      geomesa.Envelope
	WeightAttr    string
}

// SortKey is one (attribute, direction) pair of a requested output sort.
type SortKey struct {
	Attr string
	Desc bool
}

// DefaultHints returns the spec's documented defaults.
func DefaultHints() Hints {
	return Hints{
		LooseBBox:           true,
		RangeTarget:         0,
		QueryThreads:        8,
		BlockFullTableScans: false,
		IDJoinThreshold:     1,
		PrecisionBits:       8,
		MaxDnfTerms:         256,
		DedupeBudget:        1 << 20,
		SortBufferBytes:     64 << 20,
	}
}

// DisjunctPlan is the scan plan for one DNF conjunct: a chosen strategy
// plus the byte ranges its index produced.
type DisjunctPlan struct {
	Strategy strategy.FilterStrategy
	Ranges   []geomesa.Range
	MayDupe  bool // true for XZ2/XZ3 and list-attribute Attr indexes
}

// ScanPlan is the complete output of planning one query (spec §4.7).
type ScanPlan struct {
	FeatureType *geomesa.FeatureType
	Disjuncts   []DisjunctPlan
	Dedupe      bool
	Transform   []string
	Sort        []SortKey
	Sampling    float64
	SampleBy    string
	Density     *DensityHint
	BinTrack    string
	BinLabel    string
	BinSort     bool
	FullScan    bool
}

// Empty reports whether the plan reads no ranges at all.
func (p *ScanPlan) Empty() bool {
	if p == nil {
		return true
	}
	if p.FullScan {
		return false
	}
	for _, d := range p.Disjuncts {
		if len(d.Ranges) > 0 {
			return false
		}
	}
	return true
}
