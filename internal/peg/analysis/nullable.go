// Package analysis implements the static analyses that make generation
// correct: a nullability fixed point, the initial-name
// graph, Tarjan SCC-based left-recursion detection, and leader selection
// by elementary-cycle intersection.
package analysis

import "github.com/dekarrin/sturgeon/internal/peg/ir"

// Nullable computes the least fixed point of rule/alt/item nullability,
//. It mutates nothing on the IR; callers look up
// results in the returned sets.
type Nullable struct {
	rules   map[string]bool
	visited map[string]bool
	grammar *ir.Grammar
}

// ComputeNullable runs the fixed-point iteration to convergence (at most
// len(rules) passes, as the rule visitor only recurses into not-yet-visited
// rules, matching the reference's memoized-visit strategy).
func ComputeNullable(g *ir.Grammar) *Nullable {
	n := &Nullable{
		rules:   make(map[string]bool),
		visited: make(map[string]bool),
		grammar: g,
	}
	for _, r := range g.Rules() {
		n.visitRule(r)
	}
	return n
}

// Rule reports whether the named rule is nullable.
func (n *Nullable) Rule(name string) bool { return n.rules[name] }

func (n *Nullable) visitRule(r *ir.Rule) bool {
	if n.visited[r.Name] {
		return n.rules[r.Name]
	}
	n.visited[r.Name] = true
	if n.visitRhs(r.Rhs) {
		n.rules[r.Name] = true
	}
	return n.rules[r.Name]
}

func (n *Nullable) visitRhs(rhs *ir.Rhs) bool {
	for _, alt := range rhs.Alts {
		if n.visitAlt(alt) {
			return true
		}
	}
	return false
}

func (n *Nullable) visitAlt(alt *ir.Alt) bool {
	for _, item := range alt.Items {
		if !n.visitItem(item.Item) {
			return false
		}
	}
	return true
}

// visitItem implements the per-operator nullability table: Opt/Repeat0/
// Group propagate-or-true; Repeat1/Gather/Cut/Forced/lookaheads are
// non-nullable for left-recursion purposes; an empty StringLeaf is
// nullable, a non-empty one is not; a NameLeaf defers to the referenced
// rule, or is non-nullable if it names a token.
func (n *Nullable) visitItem(it ir.Item) bool {
	switch v := it.(type) {
	case ir.NameLeaf:
		if r, ok := n.grammar.Rule(v.Name); ok {
			return n.visitRule(r)
		}
		return false
	case ir.StringLeaf:
		return v.Literal == ""
	case ir.Group:
		return n.visitRhs(v.Rhs)
	case ir.Opt:
		return true
	case ir.Repeat0:
		return true
	case ir.Repeat1:
		return false
	case ir.Gather:
		return false
	case ir.PositiveLookahead:
		return false
	case ir.NegativeLookahead:
		return false
	case ir.Forced:
		return false
	case ir.Cut:
		return false
	default:
		return false
	}
}
