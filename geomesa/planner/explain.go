package planner

import (
	"errors"
	"fmt"

	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
)

// OperatorKind names one stage of the per-disjunct iterator stack the scan
// pipeline builds, per spec §9's named operator kinds (the source's
// reflective class-reference stack, replaced here by a closed tagged
// union).
type OperatorKind string

const (
	OpRowRegex          OperatorKind = "RowRegex"
	OpIndexValueDecoder OperatorKind = "IndexValueDecoder"
	OpResidualFilter    OperatorKind = "ResidualFilter"
	OpProjection        OperatorKind = "Projection"
	OpBinAggregator     OperatorKind = "BinAggregator"
	OpDensityAggregator OperatorKind = "DensityAggregator"
	OpSampling          OperatorKind = "Sampling"
	OpDedupe            OperatorKind = "Dedupe"
)

// DisjunctExplanation describes one disjunct's chosen strategy and the
// operator stack the scan pipeline will run over its ranges.
type DisjunctExplanation struct {
	Strategy   string
	Attr       string
	RangeCount int
	Operators  []OperatorKind
}

// Explanation is explain()'s deterministic output (spec §6 "explain(name,
// Predicate, Hints) -> Explanation — deterministic serialisation of
// strategy selection, range count, and iterator stack").
type Explanation struct {
	FullScanBlocked bool
	Reason          string
	Disjuncts       []DisjunctExplanation
	Operators       []OperatorKind // plan-wide stages, applied after all disjuncts scan
}

// Explain runs planning and renders the result as an Explanation instead of
// a ScanPlan. Per spec §7 "the explain path never throws for a syntactically
// valid predicate — it always produces either a plan or a FullScanBlocked
// explanation", a blocked full scan is reported in the Explanation rather
// than returned as an error.
func (p *Planner) Explain(ft *geomesa.FeatureType, pred filter.Pred, hints Hints, cardinalityOf CardinalitySource) (*Explanation, error) {
	plan, err := p.plan(ft, pred, hints, cardinalityOf)
	if err != nil {
		if errors.Is(err, geomesa.ErrFullScanBlocked) {
			return &Explanation{FullScanBlocked: true, Reason: err.Error()}, nil
		}
		return nil, err
	}
	return explainPlan(plan), nil
}

func explainPlan(plan *ScanPlan) *Explanation {
	exp := &Explanation{}
	for _, d := range plan.Disjuncts {
		de := DisjunctExplanation{
			Strategy:   d.Strategy.Index.String(),
			Attr:       d.Strategy.Attr,
			RangeCount: len(d.Ranges),
			Operators:  disjunctOperators(d),
		}
		exp.Disjuncts = append(exp.Disjuncts, de)
	}
	exp.Operators = planOperators(plan)
	return exp
}

func disjunctOperators(d DisjunctPlan) []OperatorKind {
	ops := []OperatorKind{OpIndexValueDecoder}
	if d.MayDupe {
		ops = append(ops, OpRowRegex)
	}
	if len(d.Strategy.Secondary) > 0 {
		ops = append(ops, OpResidualFilter)
	}
	return ops
}

func planOperators(plan *ScanPlan) []OperatorKind {
	var ops []OperatorKind
	if plan.Dedupe {
		ops = append(ops, OpDedupe)
	}
	if len(plan.Transform) > 0 {
		ops = append(ops, OpProjection)
	}
	if plan.Density != nil {
		ops = append(ops, OpDensityAggregator)
	}
	if plan.BinTrack != "" || plan.BinLabel != "" {
		ops = append(ops, OpBinAggregator)
	}
	if plan.Sampling > 0 {
		ops = append(ops, OpSampling)
	}
	return ops
}

// String renders a human-readable, deterministic explanation for the CLI
// and for test assertions.
func (e *Explanation) String() string {
	if e.FullScanBlocked {
		return fmt.Sprintf("FullScanBlocked: %s", e.Reason)
	}
	out := ""
	for i, d := range e.Disjuncts {
		out += fmt.Sprintf("disjunct %d: strategy=%s", i, d.Strategy)
		if d.Attr != "" {
			out += fmt.Sprintf("(%s)", d.Attr)
		}
		out += fmt.Sprintf(" ranges=%d ops=%v\n", d.RangeCount, d.Operators)
	}
	out += fmt.Sprintf("plan ops=%v", e.Operators)
	return out
}
