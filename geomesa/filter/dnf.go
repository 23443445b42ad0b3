package filter

// Normalize applies spec §4.5 steps 1-3: push negations to the leaves
// (De Morgan, Not(Not p) -> p), desugar non-id In predicates into an Or of
// equalities, then expand to disjunctive normal form. It returns the list
// of conjuncts (each an And, possibly of a single clause) and whether the
// expansion was truncated because it exceeded maxDnfTerms — a truncated
// result is the "full scan + residual filter" fallback of spec §4.5, and
// the caller is expected to warn.
func Normalize(p Pred, maxDnfTerms int) (conjuncts []Pred, truncated bool) {
	pushed := pushNegations(p)
	desugared := desugarIn(pushed)
	return toDNF(desugared, maxDnfTerms)
}

// pushNegations eliminates Not(Not p) and pushes De Morgan negations down
// to the leaves. Leaves that can be negated directly (Cmp, IsNull,
// IsNotNull, Include, Exclude) are rewritten in place; leaves that cannot
// (the topological and In predicates) are left wrapped in Not, to be
// treated as opaque residual clauses by facet extraction.
func pushNegations(p Pred) Pred {
	switch v := p.(type) {
	case And:
		clauses := make([]Pred, len(v.Clauses))
		for i, c := range v.Clauses {
			clauses[i] = pushNegations(c)
		}
		return And{Clauses: clauses}
	case Or:
		clauses := make([]Pred, len(v.Clauses))
		for i, c := range v.Clauses {
			clauses[i] = pushNegations(c)
		}
		return Or{Clauses: clauses}
	case Not:
		return pushNegationInto(v.Clause)
	default:
		return p
	}
}

// pushNegationInto returns the negation of clause, recursing through
// And/Or/Not and rewriting the negatable leaves; everything else stays
// wrapped in Not.
func pushNegationInto(clause Pred) Pred {
	switch v := clause.(type) {
	case Not:
		return pushNegations(v.Clause) // Not(Not p) -> p
	case And:
		negated := make([]Pred, len(v.Clauses))
		for i, c := range v.Clauses {
			negated[i] = pushNegationInto(c)
		}
		return Or{Clauses: negated} // De Morgan
	case Or:
		negated := make([]Pred, len(v.Clauses))
		for i, c := range v.Clauses {
			negated[i] = pushNegationInto(c)
		}
		return And{Clauses: negated} // De Morgan
	case Cmp:
		return Cmp{Attr: v.Attr, Op: negateCmpOp(v.Op), Value: v.Value}
	case IsNull:
		return IsNotNull{Attr: v.Attr}
	case IsNotNull:
		return IsNull{Attr: v.Attr}
	case Include:
		return Exclude{}
	case Exclude:
		return Include{}
	default:
		return Not{Clause: pushNegations(v)}
	}
}

func negateCmpOp(op CmpOp) CmpOp {
	switch op {
	case CmpEQ:
		return CmpNE
	case CmpNE:
		return CmpEQ
	case CmpLT:
		return CmpGE
	case CmpLE:
		return CmpGT
	case CmpGT:
		return CmpLE
	case CmpGE:
		return CmpLT
	default:
		return op
	}
}

// desugarIn rewrites a non-id In predicate into an Or of equalities, so
// that DNF expansion and facet extraction never need to special-case
// attribute-valued In clauses; In{Attr: IDAttr} is left alone for the
// idSet facet.
func desugarIn(p Pred) Pred {
	switch v := p.(type) {
	case And:
		clauses := make([]Pred, len(v.Clauses))
		for i, c := range v.Clauses {
			clauses[i] = desugarIn(c)
		}
		return And{Clauses: clauses}
	case Or:
		clauses := make([]Pred, len(v.Clauses))
		for i, c := range v.Clauses {
			clauses[i] = desugarIn(c)
		}
		return Or{Clauses: clauses}
	case Not:
		return Not{Clause: desugarIn(v.Clause)}
	case In:
		if v.Attr == IDAttr {
			return v
		}
		clauses := make([]Pred, len(v.Values))
		for i, val := range v.Values {
			clauses[i] = Cmp{Attr: v.Attr, Op: CmpEQ, Value: val}
		}
		return Or{Clauses: clauses}
	default:
		return p
	}
}

// toDNF expands p into a flat list of And-conjuncts. Expansion is
// distributive: Or{A, B} under an And multiplies out into one conjunct per
// combination. The term count is checked once, after the full expansion;
// if it exceeds maxDnfTerms the result is discarded and the caller falls
// back to full scan + residual filter.
func toDNF(p Pred, maxDnfTerms int) (conjuncts []Pred, truncated bool) {
	terms := expand(p)
	if terms == nil {
		return []Pred{And{Clauses: []Pred{Include{}}}}, true
	}
	if len(terms) > maxDnfTerms {
		return []Pred{And{Clauses: []Pred{Include{}}}}, true
	}
	out := make([]Pred, 0, len(terms))
	for _, t := range terms {
		if containsExclude(t) {
			continue
		}
		out = append(out, And{Clauses: t})
	}
	if len(out) == 0 {
		out = []Pred{And{Clauses: []Pred{Exclude{}}}}
	}
	return out, false
}

// expand returns the set of conjunctions (each a slice of leaf clauses)
// representing p in DNF, or nil when p has no terms at all (an Or with no
// clauses, or an And containing one); toDNF treats nil as truncated.
func expand(p Pred) [][]Pred {
	switch v := p.(type) {
	case And:
		acc := [][]Pred{{}}
		for _, c := range v.Clauses {
			childTerms := expand(c)
			var next [][]Pred
			for _, prefix := range acc {
				for _, term := range childTerms {
					combined := make([]Pred, 0, len(prefix)+len(term))
					combined = append(combined, prefix...)
					combined = append(combined, term...)
					next = append(next, combined)
				}
			}
			acc = next
		}
		return acc
	case Or:
		var out [][]Pred
		for _, c := range v.Clauses {
			out = append(out, expand(c)...)
		}
		return out
	default:
		return [][]Pred{{v}}
	}
}

func containsExclude(clauses []Pred) bool {
	for _, c := range clauses {
		if _, ok := c.(Exclude); ok {
			return true
		}
	}
	return false
}
