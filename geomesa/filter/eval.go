package filter

import (
	"strings"
	"time"

	"github.com/geomesa/geomesa-core/geomesa"
)

// Eval evaluates pred against a feature and reports whether it passes. This
// is the residual-filter step of the scan pipeline (spec §4.8): whatever the
// chosen index's ranges don't already guarantee gets checked here, row by
// row, client-side. Grounded on the teacher's datalog/query/predicate.go
// Comparison.Eval switch-on-op shape, generalised from variable bindings to
// direct feature-attribute lookup.
func Eval(pred Pred, ft *geomesa.FeatureType, f *geomesa.Feature) bool {
	switch p := pred.(type) {
	case And:
		for _, c := range p.Clauses {
			if !Eval(c, ft, f) {
				return false
			}
		}
		return true

	case Or:
		for _, c := range p.Clauses {
			if Eval(c, ft, f) {
				return true
			}
		}
		return len(p.Clauses) == 0

	case Not:
		return !Eval(p.Clause, ft, f)

	case Include:
		return true

	case Exclude:
		return false

	case IsNull:
		v, has := f.Value(ft, p.Attr)
		return !has || v == nil

	case IsNotNull:
		v, has := f.Value(ft, p.Attr)
		return has && v != nil

	case Cmp:
		v, has := f.Value(ft, p.Attr)
		if !has || v == nil {
			return false
		}
		cmp := geomesa.CompareValues(v, p.Value)
		switch p.Op {
		case CmpEQ:
			return cmp == 0
		case CmpNE:
			return cmp != 0
		case CmpLT:
			return cmp < 0
		case CmpLE:
			return cmp <= 0
		case CmpGT:
			return cmp > 0
		case CmpGE:
			return cmp >= 0
		default:
			return false
		}

	case Between:
		v, has := f.Value(ft, p.Attr)
		if !has || v == nil {
			return false
		}
		return geomesa.CompareValues(v, p.Lo) >= 0 && geomesa.CompareValues(v, p.Hi) <= 0

	case During:
		v, has := f.Value(ft, p.Attr)
		if !has || v == nil {
			return false
		}
		t, ok := v.(time.Time)
		if !ok {
			return false
		}
		return !t.Before(p.T1) && t.Before(p.T2) // half-open on the upper bound

	case In:
		if p.Attr == IDAttr {
			for _, v := range p.Values {
				if id, ok := v.(string); ok && id == f.ID {
					return true
				}
			}
			return false
		}
		v, has := f.Value(ft, p.Attr)
		if !has || v == nil {
			return false
		}
		for _, candidate := range p.Values {
			if geomesa.CompareValues(v, candidate) == 0 {
				return true
			}
		}
		return false

	case Like:
		v, has := f.Value(ft, p.Attr)
		if !has || v == nil {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		if prefix, isPrefix := trailingWildcardPrefix(p.Pattern); isPrefix {
			return strings.HasPrefix(s, prefix)
		}
		return s == p.Pattern

	case BBox:
		g := geometryOf(ft, f, p.Attr)
		if g == nil {
			return false
		}
		env := g.Envelope()
		return env.Intersects(geomesa.Envelope{MinX: p.MinX, MinY: p.MinY, MaxX: p.MaxX, MaxY: p.MaxY})

	case Intersects:
		g := geometryOf(ft, f, p.Attr)
		if g == nil || p.Geom == nil {
			return false
		}
		return g.Envelope().Intersects(p.Geom.Envelope())

	case Within:
		g := geometryOf(ft, f, p.Attr)
		if g == nil || p.Geom == nil {
			return false
		}
		env, target := g.Envelope(), p.Geom.Envelope()
		return env.MinX >= target.MinX && env.MinY >= target.MinY &&
			env.MaxX <= target.MaxX && env.MaxY <= target.MaxY

	case DWithin:
		g := geometryOf(ft, f, p.Attr)
		if g == nil || p.Geom == nil {
			return false
		}
		target := p.Geom.Envelope()
		inflated := geomesa.Envelope{
			MinX: target.MinX - p.Distance, MinY: target.MinY - p.Distance,
			MaxX: target.MaxX + p.Distance, MaxY: target.MaxY + p.Distance,
		}
		return g.Envelope().Intersects(inflated)

	default:
		return false
	}
}

func geometryOf(ft *geomesa.FeatureType, f *geomesa.Feature, attr string) geomesa.Geometry {
	name := attr
	if name == "" {
		geomAttr, ok := ft.DefaultGeometryAttribute()
		if !ok {
			return nil
		}
		name = geomAttr.Name
	}
	raw, has := f.Value(ft, name)
	if !has {
		return nil
	}
	g, _ := raw.(geomesa.Geometry)
	return g
}
