package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

func Test_ComputeLeftRecursion_NoRecursion(t *testing.T) {
	assert := assert.New(t)

	g := ir.NewGrammar()
	_ = g.AddRule(rule("start",
		ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}}, &ir.NamedItem{Item: ir.NameLeaf{Name: "expr"}}),
	))
	_ = g.AddRule(rule("expr", ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NUMBER"}})))

	nullable := ComputeNullable(g)
	_, err := ComputeLeftRecursion(g, nullable)
	assert.NoError(err)

	start, _ := g.Rule("start")
	expr, _ := g.Rule("expr")
	assert.False(start.LeftRecursive)
	assert.False(expr.LeftRecursive)
}

func Test_ComputeLeftRecursion_DirectSelfLoop(t *testing.T) {
	assert := assert.New(t)

	// expr : expr '+' term | term
	g := ir.NewGrammar()
	_ = g.AddRule(rule("expr",
		ir.NewAlt(
			&ir.NamedItem{Item: ir.NameLeaf{Name: "expr"}},
			&ir.NamedItem{Item: ir.StringLeaf{Literal: "+"}},
			&ir.NamedItem{Item: ir.NameLeaf{Name: "term"}},
		),
		ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "term"}}),
	))
	_ = g.AddRule(rule("term", ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}})))

	nullable := ComputeNullable(g)
	lr, err := ComputeLeftRecursion(g, nullable)
	assert.NoError(err)

	expr, _ := g.Rule("expr")
	term, _ := g.Rule("term")
	assert.True(expr.LeftRecursive)
	assert.True(expr.Leader)
	assert.False(term.LeftRecursive)
	assert.True(lr.Leaders["expr"])
}

func Test_InitialNames_LeadingLookaheadStopsScan(t *testing.T) {
	assert := assert.New(t)

	// start : &expr NAME
	g := ir.NewGrammar()
	_ = g.AddRule(rule("start",
		ir.NewAlt(
			&ir.NamedItem{Item: ir.PositiveLookahead{Atom: ir.NameLeaf{Name: "expr"}}},
			&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}},
		),
	))
	_ = g.AddRule(rule("expr", ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}})))

	nullable := ComputeNullable(g)
	graph := InitialNames(g, nullable)

	// a lookahead is zero-width but non-nullable for initial-name purposes:
	// it contributes no name of its own, and scanning must not fall through
	// to the item after it.
	assert.Empty(graph["start"])
}

func Test_ComputeLeftRecursion_MutualRecursion(t *testing.T) {
	assert := assert.New(t)

	// a : b 'x'
	// b : a 'y' | NAME
	g := ir.NewGrammar()
	_ = g.AddRule(rule("a",
		ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "b"}}, &ir.NamedItem{Item: ir.StringLeaf{Literal: "x"}}),
	))
	_ = g.AddRule(rule("b",
		ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "a"}}, &ir.NamedItem{Item: ir.StringLeaf{Literal: "y"}}),
		ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}}),
	))

	nullable := ComputeNullable(g)
	_, err := ComputeLeftRecursion(g, nullable)
	assert.NoError(err)

	a, _ := g.Rule("a")
	b, _ := g.Rule("b")
	assert.True(a.LeftRecursive)
	assert.True(b.LeftRecursive)

	// exactly one leader, chosen by lexicographically smallest name among
	// the cycle's vertices.
	assert.True(a.Leader)
	assert.False(b.Leader)
}
