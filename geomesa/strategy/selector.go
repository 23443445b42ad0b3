// Package strategy implements the index selector of spec §4.6: given the
// facets extracted from one DNF conjunct, choose which index will answer
// it and split the conjunct into the primary predicate (fed to range
// enumeration) and the secondary/residual predicate (evaluated per row).
// Grounded on the teacher's planner/planner_patterns.go candidate
// scoring-and-tie-break style (score each pattern, then prefer the
// cheapest by a short, explicit rule chain).
package strategy

import (
	"github.com/geomesa/geomesa-core/geomesa"
	"github.com/geomesa/geomesa-core/geomesa/filter"
)

// Kind names which index a FilterStrategy reads from.
type Kind int

const (
	KindID Kind = iota
	KindAttr
	KindZ3
	KindZ2
	KindXZ3
	KindXZ2
	KindFullScan
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindAttr:
		return "attr"
	case KindZ3:
		return "z3"
	case KindZ2:
		return "z2"
	case KindXZ3:
		return "xz3"
	case KindXZ2:
		return "xz2"
	case KindFullScan:
		return "full-scan"
	default:
		return "unknown"
	}
}

// TableKind resolves which physical index table a scan against k must read
// (see geomesa.IndexTableName). A full table scan has no index rows of its
// own; it reads the complete feature value stored in the Id index, the only
// index whose rows carry the whole serialized feature.
func (k Kind) TableKind() geomesa.IndexKind {
	switch k {
	case KindAttr:
		return geomesa.IndexAttribute
	case KindZ3:
		return geomesa.IndexZ3
	case KindZ2:
		return geomesa.IndexZ2
	case KindXZ3:
		return geomesa.IndexXZ3
	case KindXZ2:
		return geomesa.IndexXZ2
	default: // KindID, KindFullScan
		return geomesa.IndexID
	}
}

// FilterStrategy is the selector's output for one conjunct (spec §4.6).
type FilterStrategy struct {
	Index     Kind
	Facets    filter.Facets
	Attr      string // populated when Index == KindAttr
	Secondary []filter.Pred
}

// Hints is the subset of query hints the selector consults.
type Hints struct {
	IndexHint           string
	IDJoinThreshold     int
	BlockFullTableScans bool
	LooseBBox           bool // when false, spatial leaves are re-checked exactly as residual
}

// Select implements spec §4.6's candidate enumeration and tie-break rules.
// ft supplies cardinality/enablement metadata via cardinalityOf (normally
// backed by the schema store).
func Select(ft *geomesa.FeatureType, f filter.Facets, hints Hints, cardinalityOf func(attr string) geomesa.Cardinality) (FilterStrategy, error) {
	if hints.IndexHint != "" {
		if k, attr, ok := forcedCandidate(ft, f, hints.IndexHint); ok {
			return finish(k, attr, f, hints), nil
		}
	}

	// Rule 2/3: a high-cardinality attribute equality wins outright; a
	// low-cardinality one is actively excluded in favour of spatial.
	if attr, ok := highCardinalityEqAttr(ft, f, cardinalityOf); ok {
		return finish(KindAttr, attr, f, hints), nil
	}

	hasSpatial := f.GeomUnion != nil
	hasTime := len(f.Intervals) > 0
	// Rule 3: a low-cardinality attribute equality alongside a spatial
	// predicate must not be picked as the primary; spatial wins instead and
	// the attribute rides along as a residual clause. This only ever
	// suppresses rangeAttr's eq-fallback branch below, never the spatial
	// candidates themselves.
	lowCardBlocksAttr := lowCardinalityEqPresent(ft, f, cardinalityOf) && hasSpatial

	// Rule 4: a small concrete id set beats spatial.
	idJoinThreshold := hints.IDJoinThreshold
	if idJoinThreshold <= 0 {
		idJoinThreshold = 1
	}
	if len(f.IDSet) > 0 && len(f.IDSet) <= idJoinThreshold {
		return finish(KindID, "", f, hints), nil
	}

	if hasSpatial {
		if hasTime {
			if ft.EnabledIndexes[geomesa.IndexZ3] {
				return finish(KindZ3, "", f, hints), nil
			}
			if ft.EnabledIndexes[geomesa.IndexXZ3] {
				return finish(KindXZ3, "", f, hints), nil
			}
		}
		if ft.EnabledIndexes[geomesa.IndexZ2] {
			return finish(KindZ2, "", f, hints), nil
		}
		if ft.EnabledIndexes[geomesa.IndexXZ2] {
			return finish(KindXZ2, "", f, hints), nil
		}
	}

	// Rule 7: attribute range, else full scan.
	if attr, ok := rangeAttr(ft, f, lowCardBlocksAttr, cardinalityOf); ok {
		return finish(KindAttr, attr, f, hints), nil
	}
	return finish(KindFullScan, "", f, hints), nil
}

// forcedCandidate honours an explicit query.indexHint, if that index is a
// legal candidate for the facets actually present.
func forcedCandidate(ft *geomesa.FeatureType, f filter.Facets, hint string) (Kind, string, bool) {
	switch hint {
	case "id":
		if len(f.IDSet) > 0 {
			return KindID, "", true
		}
	case "z3":
		if f.GeomUnion != nil && len(f.Intervals) > 0 && ft.EnabledIndexes[geomesa.IndexZ3] {
			return KindZ3, "", true
		}
	case "z2":
		if f.GeomUnion != nil && ft.EnabledIndexes[geomesa.IndexZ2] {
			return KindZ2, "", true
		}
	case "xz3":
		if f.GeomUnion != nil && len(f.Intervals) > 0 && ft.EnabledIndexes[geomesa.IndexXZ3] {
			return KindXZ3, "", true
		}
	case "xz2":
		if f.GeomUnion != nil && ft.EnabledIndexes[geomesa.IndexXZ2] {
			return KindXZ2, "", true
		}
	case "full-scan":
		return KindFullScan, "", true
	default:
		if attr, ok := ft.AttributeByName(hint); ok && attr.Indexed != geomesa.IndexNone {
			if _, has := eqClauseFor(f, hint); has {
				return KindAttr, hint, true
			}
		}
	}
	return 0, "", false
}

func highCardinalityEqAttr(ft *geomesa.FeatureType, f filter.Facets, cardinalityOf func(string) geomesa.Cardinality) (string, bool) {
	for _, c := range f.AttrClauses {
		if c.Op != filter.OpEq {
			continue
		}
		attr, ok := ft.AttributeByName(c.Attr)
		if !ok || attr.Indexed == geomesa.IndexNone {
			continue
		}
		if cardinalityOf(c.Attr) == geomesa.CardinalityHigh {
			return c.Attr, true
		}
	}
	return "", false
}

func lowCardinalityEqPresent(ft *geomesa.FeatureType, f filter.Facets, cardinalityOf func(string) geomesa.Cardinality) bool {
	for _, c := range f.AttrClauses {
		if c.Op != filter.OpEq {
			continue
		}
		if attr, ok := ft.AttributeByName(c.Attr); ok && attr.Indexed != geomesa.IndexNone && cardinalityOf(c.Attr) == geomesa.CardinalityLow {
			return true
		}
	}
	return false
}

// rangeAttr finds a fallback attribute candidate: a non-eq indexed range
// first, else an indexed equality. suppressLowCardEq skips an equality whose
// attribute carries a low-cardinality hint, per rule 3 above — that clause
// is left for finish to carry into Secondary instead.
func rangeAttr(ft *geomesa.FeatureType, f filter.Facets, suppressLowCardEq bool, cardinalityOf func(string) geomesa.Cardinality) (string, bool) {
	for _, c := range f.AttrClauses {
		if c.Op == filter.OpEq || c.Op == filter.OpNotNull {
			continue
		}
		if attr, ok := ft.AttributeByName(c.Attr); ok && attr.Indexed != geomesa.IndexNone {
			return c.Attr, true
		}
	}
	// an indexed equality also counts if no spatial candidate applied
	for _, c := range f.AttrClauses {
		if c.Op != filter.OpEq {
			continue
		}
		if attr, ok := ft.AttributeByName(c.Attr); ok && attr.Indexed != geomesa.IndexNone {
			if suppressLowCardEq && cardinalityOf(c.Attr) == geomesa.CardinalityLow {
				continue
			}
			return c.Attr, true
		}
	}
	return "", false
}

func eqClauseFor(f filter.Facets, attr string) (filter.AttrClause, bool) {
	for _, c := range f.AttrClauses {
		if c.Attr == attr && c.Op == filter.OpEq {
			return c, true
		}
	}
	return filter.AttrClause{}, false
}

// finish builds the FilterStrategy, moving every facet the chosen index
// doesn't consume into Secondary (spec §4.6 "secondary... residual
// evaluated on each row").
func finish(k Kind, attr string, f filter.Facets, hints Hints) FilterStrategy {
	secondary := make([]filter.Pred, len(f.Residual))
	copy(secondary, f.Residual)

	spatialIndex := k == KindZ2 || k == KindZ3 || k == KindXZ2 || k == KindXZ3
	if !hints.LooseBBox || !spatialIndex {
		secondary = append(secondary, f.SpatialClauses...)
	}

	if k != KindID && len(f.IDSet) > 0 {
		ids := make([]geomesa.Value, len(f.IDSet))
		for i, id := range f.IDSet {
			ids[i] = id
		}
		secondary = append(secondary, filter.In{Attr: filter.IDAttr, Values: ids})
	}

	for _, c := range f.AttrClauses {
		if k == KindAttr && c.Attr == attr && c.Op == filter.OpEq {
			continue // consumed exactly as the primary
		}
		secondary = append(secondary, attrClauseToPred(c))
	}
	return FilterStrategy{Index: k, Facets: f, Attr: attr, Secondary: secondary}
}

func attrClauseToPred(c filter.AttrClause) filter.Pred {
	switch c.Op {
	case filter.OpEq:
		return filter.Cmp{Attr: c.Attr, Op: filter.CmpEQ, Value: c.Value}
	case filter.OpLt:
		return filter.Cmp{Attr: c.Attr, Op: filter.CmpLT, Value: c.Value}
	case filter.OpLe:
		return filter.Cmp{Attr: c.Attr, Op: filter.CmpLE, Value: c.Value}
	case filter.OpGt:
		return filter.Cmp{Attr: c.Attr, Op: filter.CmpGT, Value: c.Value}
	case filter.OpGe:
		return filter.Cmp{Attr: c.Attr, Op: filter.CmpGE, Value: c.Value}
	case filter.OpBetween:
		return filter.Between{Attr: c.Attr, Lo: c.Value, Hi: c.Value2}
	case filter.OpPrefix:
		return filter.Like{Attr: c.Attr, Pattern: c.Value.(string) + "%"}
	case filter.OpNotNull:
		return filter.IsNotNull{Attr: c.Attr}
	default:
		return filter.Include{}
	}
}
