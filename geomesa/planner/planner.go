package planner

import (
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
	"github.com/geomesa/geomesa-core/geomesa/index"
	"github.com/geomesa/geomesa-core/geomesa/strategy"
)

// CardinalitySource answers cardinality hints for an attribute, normally
// backed by the schema store's stats table.
type CardinalitySource func(attr string) geomesa.Cardinality

// Planner creates ScanPlans, mirroring the teacher's Planner struct: a
// small amount of shared configuration plus an optional cache, with
// Plan() checking the cache before doing real work.
type Planner struct {
	cache *PlanCache
}

// NewPlanner creates a Planner; cache may be nil to disable caching.
func NewPlanner(cache *PlanCache) *Planner {
	return &Planner{cache: cache}
}

// Plan is the entry point: spec §4.7 steps 1-6.
func (p *Planner) Plan(ft *geomesa.FeatureType, pred filter.Pred, hints Hints, cardinalityOf CardinalitySource) (*ScanPlan, error) {
	if p.cache != nil {
		if cached, ok := p.cache.Get(ft.Name, pred, hints); ok {
			return cached, nil
		}
	}

	plan, err := p.plan(ft, pred, hints, cardinalityOf)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		p.cache.Set(ft.Name, pred, hints, plan)
	}
	return plan, nil
}

func (p *Planner) plan(ft *geomesa.FeatureType, pred filter.Pred, hints Hints, cardinalityOf CardinalitySource) (*ScanPlan, error) {
	// Step 1: short-circuit constant predicates.
	switch pred.(type) {
	case filter.Exclude:
		return &ScanPlan{FeatureType: ft}, nil
	case filter.Include:
		if hints.BlockFullTableScans {
			return nil, fmt.Errorf("%w: query has no usable predicate", geomesa.ErrFullScanBlocked)
		}
		return &ScanPlan{FeatureType: ft, FullScan: true,
			Disjuncts: []DisjunctPlan{{
				Strategy: strategy.FilterStrategy{Index: strategy.KindFullScan},
				Ranges:   []geomesa.Range{index.FullScanRange(ft)},
			}},
			Transform: hints.Transform, Sort: hints.Sort, Sampling: hints.Sampling,
			SampleBy: hints.SampleBy, Density: hints.Density,
			BinTrack: hints.BinTrack, BinLabel: hints.BinLabel, BinSort: hints.BinSort,
		}, nil
	}

	// Step 2: normalise (C5) and split on OR.
	maxDnfTerms := hints.MaxDnfTerms
	if maxDnfTerms <= 0 {
		maxDnfTerms = 256
	}
	conjuncts, truncated := filter.Normalize(pred, maxDnfTerms)

	if truncated {
		if hints.BlockFullTableScans {
			return nil, fmt.Errorf("%w: predicate expands past maxDnfTerms", geomesa.ErrFullScanBlocked)
		}
		return &ScanPlan{FeatureType: ft, FullScan: true,
			Disjuncts: []DisjunctPlan{{
				Strategy: strategy.FilterStrategy{Index: strategy.KindFullScan, Secondary: []filter.Pred{pred}},
				Ranges:   []geomesa.Range{index.FullScanRange(ft)},
			}},
			Transform: hints.Transform, Sort: hints.Sort, Sampling: hints.Sampling,
			SampleBy: hints.SampleBy, Density: hints.Density,
			BinTrack: hints.BinTrack, BinLabel: hints.BinLabel, BinSort: hints.BinSort,
		}, nil
	}

	strategyHints := strategy.Hints{
		IndexHint:           hints.IndexHint,
		IDJoinThreshold:     hints.IDJoinThreshold,
		BlockFullTableScans: hints.BlockFullTableScans,
		LooseBBox:           hints.LooseBBox,
	}

	precisionBits := hints.PrecisionBits
	if precisionBits <= 0 {
		precisionBits = 8
	}
	rangeTarget := hints.RangeTarget
	if rangeTarget <= 0 {
		rangeTarget = 64
	}

	var disjuncts []DisjunctPlan
	sawFullScan := false
	for _, conjunct := range conjuncts {
		facets := filter.ExtractFacets(conjunct)
		strat, err := strategy.Select(ft, facets, strategyHints, cardinalityOf)
		if err != nil {
			return nil, err
		}
		if strat.Index == strategy.KindFullScan {
			if hints.BlockFullTableScans {
				return nil, fmt.Errorf("%w: conjunct has no usable index", geomesa.ErrFullScanBlocked)
			}
			sawFullScan = true
		}

		ranges, mayDupe, err := rangesFor(ft, strat, precisionBits, rangeTarget)
		if err != nil {
			return nil, err
		}
		disjuncts = append(disjuncts, DisjunctPlan{Strategy: strat, Ranges: ranges, MayDupe: mayDupe})
	}

	dedupe := false
	for _, d := range disjuncts {
		if d.MayDupe {
			dedupe = true
			break
		}
	}
	if len(disjuncts) > 1 {
		dedupe = true // union of disjuncts may repeat a feature across arms
	}

	mergeRangesWithinDisjuncts(disjuncts)

	return &ScanPlan{
		FeatureType: ft,
		Disjuncts:   disjuncts,
		Dedupe:      dedupe,
		FullScan:    sawFullScan,
		Transform:   hints.Transform,
		Sort:        hints.Sort,
		Sampling:    hints.Sampling,
		SampleBy:    hints.SampleBy,
		Density:     hints.Density,
		BinTrack:    hints.BinTrack,
		BinLabel:    hints.BinLabel,
		BinSort:     hints.BinSort,
	}, nil
}

// rangesFor asks the chosen index for byte ranges (spec §4.7 step 3: "ask
// the chosen index for ranges (C2 for SFCs, direct encoding for Id/Attr)").
func rangesFor(ft *geomesa.FeatureType, strat strategy.FilterStrategy, precisionBits, rangeTarget int) ([]geomesa.Range, bool, error) {
	f := strat.Facets
	switch strat.Index {
	case strategy.KindID:
		return index.RangeIDSet(ft, f.IDSet), false, nil

	case strategy.KindAttr:
		return rangesForAttr(ft, strat.Attr, f)

	case strategy.KindZ2:
		env := wholeWorldIfNil(f.GeomUnion)
		r, err := index.RangesZ2(ft, env.MinX, env.MinY, env.MaxX, env.MaxY, precisionBits, rangeTarget)
		return r, false, err

	case strategy.KindZ3:
		env := wholeWorldIfNil(f.GeomUnion)
		windows := allTimeIfEmpty(f.Intervals)
		var out []geomesa.Range
		for _, w := range windows {
			r, err := index.RangesZ3(ft, env.MinX, env.MinY, env.MaxX, env.MaxY, w.T1, w.T2, precisionBits, rangeTarget)
			if err != nil {
				return nil, false, err
			}
			out = append(out, r...)
		}
		return geomesa.SortRanges(out), false, nil

	case strategy.KindXZ2:
		env := wholeWorldIfNil(f.GeomUnion)
		r, err := index.RangesXZ2(ft, env.MinX, env.MinY, env.MaxX, env.MaxY, rangeTarget)
		return r, true, err

	case strategy.KindXZ3:
		env := wholeWorldIfNil(f.GeomUnion)
		windows := allTimeIfEmpty(f.Intervals)
		var out []geomesa.Range
		for _, w := range windows {
			r, err := index.RangesXZ3(ft, env.MinX, env.MinY, env.MaxX, env.MaxY, w.T1, w.T2, rangeTarget)
			if err != nil {
				return nil, false, err
			}
			out = append(out, r...)
		}
		return geomesa.SortRanges(out), true, nil

	case strategy.KindFullScan:
		return []geomesa.Range{index.FullScanRange(ft)}, false, nil

	default:
		return nil, false, fmt.Errorf("%w: unknown strategy index %v", geomesa.ErrUnsupportedPredicate, strat.Index)
	}
}

func rangesForAttr(ft *geomesa.FeatureType, attr string, f filter.Facets) ([]geomesa.Range, bool, error) {
	attrDef, _ := ft.AttributeByName(attr)
	mayDupe := attrDef.Type == geomesa.TList

	for _, c := range f.AttrClauses {
		if c.Attr != attr {
			continue
		}
		switch c.Op {
		case filter.OpEq:
			r, err := index.RangeAttrEq(ft, attr, c.Value)
			return []geomesa.Range{r}, mayDupe, err
		case filter.OpBetween, filter.OpLt, filter.OpLe, filter.OpGt, filter.OpGe:
			lo, hi := c.Value, c.Value2
			if c.Op != filter.OpBetween {
				lo, hi = rangeBoundFor(c)
			}
			r, err := index.RangeAttrBetween(ft, attr, lo, hi)
			return []geomesa.Range{r}, mayDupe, err
		case filter.OpPrefix:
			r, err := index.RangeAttrPrefix(ft, attr, c.Value.(string))
			return []geomesa.Range{r}, mayDupe, err
		}
	}
	return []geomesa.Range{index.FullScanRange(ft)}, mayDupe, nil
}

// rangeBoundFor turns a one-sided comparison into a (lo, hi) pair by
// substituting the attribute's natural domain edge on the open side;
// callers apply the original comparison again as a residual to get the
// exact (open vs closed) boundary right.
func rangeBoundFor(c filter.AttrClause) (lo, hi geomesa.Value) {
	switch c.Op {
	case filter.OpLt, filter.OpLe:
		return nil, c.Value
	case filter.OpGt, filter.OpGe:
		return c.Value, nil
	default:
		return nil, nil
	}
}

func wholeWorldIfNil(env *geomesa.Envelope) geomesa.Envelope {
	if env == nil {
		return geomesa.Envelope{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	}
	return *env
}

func allTimeIfEmpty(intervals []filter.Interval) []filter.Interval {
	if len(intervals) == 0 {
		return []filter.Interval{{}} // zero time.Time on both ends is resolved by BinsBetween as epoch
	}
	return intervals
}

func mergeRangesWithinDisjuncts(disjuncts []DisjunctPlan) {
	for i := range disjuncts {
		disjuncts[i].Ranges = geomesa.SortRanges(disjuncts[i].Ranges)
	}
}
