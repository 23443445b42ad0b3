// Package filter implements the predicate normaliser of spec §4.5: a closed
// tagged union of predicate shapes, De Morgan negation pushdown, DNF
// expansion with a term cap, and per-conjunct facet extraction. The
// predicate tree shape is grounded on the teacher's
// datalog/query/predicate.go (a Predicate interface over concrete leaf
// structs, each carrying its own Eval-style semantics) and the fan-out
// style of datalog/planner/predicate_rewriter.go.
package filter

import (
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
)

// Pred is the closed predicate tagged union: every predicate the engine
// understands implements predMarker, and nothing outside this package may
// add new cases.
type Pred interface {
	predMarker()
}

// IDAttr is the reserved attribute name for an In predicate over feature
// ids, which routes into a conjunct's idSet facet instead of attrClauses.
const IDAttr = "$id"

// And is a conjunction of clauses.
type And struct{ Clauses []Pred }

// Or is a disjunction of clauses.
type Or struct{ Clauses []Pred }

// Not negates a single clause.
type Not struct{ Clause Pred }

// BBox is a bounding-box intersection test against an attribute's geometry.
type BBox struct {
	Attr                   string
	MinX, MinY, MaxX, MaxY float64
}

// Intersects, Within and DWithin are the remaining topological predicates
// spec §4.5 names explicitly; Geom carries the comparison geometry and
// DWithin additionally carries a search radius in degrees (the domain unit
// every curve normalises against — see sfc.Normalize).
type Intersects struct {
	Attr string
	Geom geomesa.Geometry
}

type Within struct {
	Attr string
	Geom geomesa.Geometry
}

type DWithin struct {
	Attr     string
	Geom     geomesa.Geometry
	Distance float64
}

// Between is an inclusive numeric/lexical range predicate on an attribute.
type Between struct {
	Attr   string
	Lo, Hi geomesa.Value
}

// During is a half-open time-range predicate on an attribute (spec §4.5
// "half-open on the upper bound").
type During struct {
	Attr   string
	T1, T2 time.Time
}

// CmpOp is a scalar comparison operator.
type CmpOp int

const (
	CmpEQ CmpOp = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

// Cmp is a scalar comparison between an attribute and a constant.
type Cmp struct {
	Attr  string
	Op    CmpOp
	Value geomesa.Value
}

// In is a set-membership predicate; when Attr == IDAttr it is the engine's
// id-set predicate (Values hold feature id strings), otherwise it is
// desugared into an Or of Cmp(EQ) during DNF expansion (see dnf.go).
type In struct {
	Attr   string
	Values []geomesa.Value
}

// Like is a string pattern predicate. Only a trailing '%' wildcard is
// supported as a pushable prefix scan (spec's reference behaviour, see
// DESIGN.md Open Questions); any other pattern shape is left as residual.
type Like struct {
	Attr    string
	Pattern string
}

// IsNull and IsNotNull test attribute presence.
type IsNull struct{ Attr string }
type IsNotNull struct{ Attr string }

// Include and Exclude are the constant-true and constant-false predicates.
type Include struct{}
type Exclude struct{}

func (And) predMarker()        {}
func (Or) predMarker()         {}
func (Not) predMarker()        {}
func (BBox) predMarker()       {}
func (Intersects) predMarker() {}
func (Within) predMarker()     {}
func (DWithin) predMarker()    {}
func (Between) predMarker()    {}
func (During) predMarker()     {}
func (Cmp) predMarker()        {}
func (In) predMarker()         {}
func (Like) predMarker()       {}
func (IsNull) predMarker()     {}
func (IsNotNull) predMarker()  {}
func (Include) predMarker()    {}
func (Exclude) predMarker()    {}
