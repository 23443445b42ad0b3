package filter

import (
	"strings"
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
)

// AttrOp is the comparison shape of an attribute clause extracted from a
// conjunct, per spec §4.5's facet table.
type AttrOp int

const (
	OpEq AttrOp = iota
	OpLt
	OpLe
	OpGt
	OpGe
	OpBetween
	OpPrefix
	OpNotNull
)

// AttrClause is one (attr, op, operand) facet.
type AttrClause struct {
	Attr         string
	Op           AttrOp
	Value, Value2 geomesa.Value
}

// Interval is a half-open [T1, T2) time window.
type Interval struct{ T1, T2 time.Time }

// Facets is everything extracted from one DNF conjunct: each field may be
// empty, meaning the widest possible value (spec §4.5 "Empty geomUnion
// means the whole-world envelope; empty intervals means all-time").
type Facets struct {
	GeomUnion      *geomesa.Envelope
	Intervals      []Interval
	IDSet          []string
	AttrClauses    []AttrClause
	Residual       []Pred
	SpatialClauses []Pred // original BBox/Intersects/Within/DWithin leaves, for strict (non-loose-bbox) re-checking
}

// ExtractFacets classifies every leaf of a DNF conjunct into its facet
// bucket. conjunct is normally an And{...} produced by Normalize, but a
// bare leaf is accepted too.
func ExtractFacets(conjunct Pred) Facets {
	var leaves []Pred
	if and, ok := conjunct.(And); ok {
		leaves = and.Clauses
	} else {
		leaves = []Pred{conjunct}
	}

	var f Facets
	var idSets [][]string
	for _, leaf := range leaves {
		classify(leaf, &f, &idSets)
	}
	f.IDSet = intersectIDSets(idSets)
	return f
}

func classify(leaf Pred, f *Facets, idSets *[][]string) {
	switch v := leaf.(type) {
	case Include:
		// trivially true, contributes nothing
	case BBox:
		mergeEnvelope(f, geomesa.Envelope{MinX: v.MinX, MinY: v.MinY, MaxX: v.MaxX, MaxY: v.MaxY})
		f.SpatialClauses = append(f.SpatialClauses, v)
	case Intersects:
		mergeEnvelope(f, v.Geom.Envelope())
		f.SpatialClauses = append(f.SpatialClauses, v)
	case Within:
		mergeEnvelope(f, v.Geom.Envelope())
		f.SpatialClauses = append(f.SpatialClauses, v)
	case DWithin:
		env := v.Geom.Envelope()
		mergeEnvelope(f, geomesa.Envelope{
			MinX: env.MinX - v.Distance, MinY: env.MinY - v.Distance,
			MaxX: env.MaxX + v.Distance, MaxY: env.MaxY + v.Distance,
		})
		f.SpatialClauses = append(f.SpatialClauses, v)
	case During:
		f.Intervals = intersectIntervals(f.Intervals, []Interval{{T1: v.T1, T2: v.T2}})
	case Cmp:
		switch v.Op {
		case CmpEQ:
			f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpEq, Value: v.Value})
		case CmpLT:
			f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpLt, Value: v.Value})
		case CmpLE:
			f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpLe, Value: v.Value})
		case CmpGT:
			f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpGt, Value: v.Value})
		case CmpGE:
			f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpGe, Value: v.Value})
		default: // CmpNE has no pushable row-range shape
			f.Residual = append(f.Residual, v)
		}
	case Between:
		f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpBetween, Value: v.Lo, Value2: v.Hi})
	case In:
		if v.Attr == IDAttr {
			ids := make([]string, 0, len(v.Values))
			for _, val := range v.Values {
				if s, ok := val.(string); ok {
					ids = append(ids, s)
				}
			}
			*idSets = append(*idSets, ids)
		} else {
			// non-id In is desugared to Or before DNF expansion; reaching
			// here means it survived inside a nested Or — not pushable.
			f.Residual = append(f.Residual, v)
		}
	case Like:
		if prefix, ok := trailingWildcardPrefix(v.Pattern); ok {
			f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpPrefix, Value: prefix})
		} else {
			f.Residual = append(f.Residual, v)
		}
	case IsNotNull:
		f.AttrClauses = append(f.AttrClauses, AttrClause{Attr: v.Attr, Op: OpNotNull})
	default:
		// IsNull, Exclude, Not, And, Or (nested) and unrecognised leaves
		// are retained for client-side evaluation.
		f.Residual = append(f.Residual, v)
	}
}

func mergeEnvelope(f *Facets, env geomesa.Envelope) {
	if f.GeomUnion == nil {
		merged := env
		f.GeomUnion = &merged
		return
	}
	merged := f.GeomUnion.Union(env)
	f.GeomUnion = &merged
}

// intersectIntervals narrows acc to the overlap with add; if acc is empty
// (all-time) it is replaced by add.
func intersectIntervals(acc, add []Interval) []Interval {
	if len(acc) == 0 {
		return add
	}
	var out []Interval
	for _, a := range acc {
		for _, b := range add {
			lo := a.T1
			if b.T1.After(lo) {
				lo = b.T1
			}
			hi := a.T2
			if b.T2.Before(hi) {
				hi = b.T2
			}
			if lo.Before(hi) {
				out = append(out, Interval{T1: lo, T2: hi})
			}
		}
	}
	return out
}

// intersectIDSets implements "AND intersects" for multiple In(id) clauses
// within one conjunct (spec §4.5).
func intersectIDSets(sets [][]string) []string {
	if len(sets) == 0 {
		return nil
	}
	present := make(map[string]int)
	for _, s := range sets {
		seen := map[string]bool{}
		for _, id := range s {
			if !seen[id] {
				present[id]++
				seen[id] = true
			}
		}
	}
	var out []string
	for id, count := range present {
		if count == len(sets) {
			out = append(out, id)
		}
	}
	return out
}

// trailingWildcardPrefix accepts only patterns of the form "literal%" with
// no other wildcard characters, returning the literal prefix.
func trailingWildcardPrefix(pattern string) (string, bool) {
	if !strings.HasSuffix(pattern, "%") {
		return "", false
	}
	body := pattern[:len(pattern)-1]
	if strings.ContainsAny(body, "%_") {
		return "", false
	}
	return body, true
}
