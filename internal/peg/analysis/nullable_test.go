package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

func rule(name string, alts ...*ir.Alt) *ir.Rule {
	return &ir.Rule{Name: name, Rhs: &ir.Rhs{Alts: alts}}
}

func Test_ComputeNullable(t *testing.T) {
	testCases := []struct {
		name    string
		build   func() *ir.Grammar
		nullable map[string]bool
	}{
		{
			name: "empty string literal is nullable",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("start", ir.NewAlt(&ir.NamedItem{Item: ir.StringLeaf{Literal: ""}})))
				return g
			},
			nullable: map[string]bool{"start": true},
		},
		{
			name: "non-empty literal is not nullable",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("start", ir.NewAlt(&ir.NamedItem{Item: ir.StringLeaf{Literal: "x"}})))
				return g
			},
			nullable: map[string]bool{"start": false},
		},
		{
			name: "opt and repeat0 are always nullable",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("a", ir.NewAlt(&ir.NamedItem{Item: ir.Opt{Item: ir.NameLeaf{Name: "NAME"}}})))
				_ = g.AddRule(rule("b", ir.NewAlt(&ir.NamedItem{Item: ir.Repeat0{Elem: ir.NameLeaf{Name: "NAME"}}})))
				return g
			},
			nullable: map[string]bool{"a": true, "b": true},
		},
		{
			name: "repeat1 and gather are never nullable",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("a", ir.NewAlt(&ir.NamedItem{Item: ir.Repeat1{Elem: ir.NameLeaf{Name: "NAME"}}})))
				_ = g.AddRule(rule("b", ir.NewAlt(&ir.NamedItem{Item: ir.Gather{Sep: ir.StringLeaf{Literal: ","}, Elem: ir.NameLeaf{Name: "NAME"}}})))
				return g
			},
			nullable: map[string]bool{"a": false, "b": false},
		},
		{
			name: "nullability propagates through a rule reference",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("start", ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "opt_part"}})))
				_ = g.AddRule(rule("opt_part", ir.NewAlt(&ir.NamedItem{Item: ir.StringLeaf{Literal: ""}})))
				return g
			},
			nullable: map[string]bool{"start": true, "opt_part": true},
		},
		{
			name: "all items in an alt must be nullable for the alt to be nullable",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("start",
					ir.NewAlt(&ir.NamedItem{Item: ir.Opt{Item: ir.NameLeaf{Name: "NAME"}}}, &ir.NamedItem{Item: ir.StringLeaf{Literal: "x"}}),
				))
				return g
			},
			nullable: map[string]bool{"start": false},
		},
		{
			name: "a direct self-recursive rule with no base case is not nullable",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("start", ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "start"}})))
				return g
			},
			nullable: map[string]bool{"start": false},
		},
		{
			name: "lookaheads and forced are non-nullable for left-recursion analysis",
			build: func() *ir.Grammar {
				g := ir.NewGrammar()
				_ = g.AddRule(rule("a", ir.NewAlt(&ir.NamedItem{Item: ir.PositiveLookahead{Atom: ir.NameLeaf{Name: "NAME"}}})))
				_ = g.AddRule(rule("b", ir.NewAlt(&ir.NamedItem{Item: ir.NegativeLookahead{Atom: ir.NameLeaf{Name: "NAME"}}})))
				_ = g.AddRule(rule("c", ir.NewAlt(&ir.NamedItem{Item: ir.Forced{Atom: ir.NameLeaf{Name: "NAME"}}})))
				return g
			},
			nullable: map[string]bool{"a": false, "b": false, "c": false},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			n := ComputeNullable(tc.build())
			for name, want := range tc.nullable {
				assert.Equalf(want, n.Rule(name), "rule %q", name)
			}
		})
	}
}
