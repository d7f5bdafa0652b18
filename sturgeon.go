// Package sturgeon is a PEG (Parsing Expression Grammar) parser generator
// and the packrat runtime its generated parsers require. It targets
// languages whose lexical structure yields a stream of pre-tokenized units
// (names, numbers, strings, operators, indentation markers, newlines, end
// marker); it is not a general character-level scanner.
//
// The name continues a fish-themed naming convention: a sturgeon is
// armored in bony scutes, the way a packrat parser is plated in memo
// entries.
package sturgeon

import (
	"github.com/dekarrin/sturgeon/internal/peg/analysis"
	"github.com/dekarrin/sturgeon/internal/peg/codegen"
	"github.com/dekarrin/sturgeon/internal/peg/desugar"
	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// Re-exported IR constructors so callers building a Grammar (typically a
// bootstrap metagrammar parser) don't need to import internal/peg/ir
// directly.
type (
	Grammar    = ir.Grammar
	Rule       = ir.Rule
	Rhs        = ir.Rhs
	Alt        = ir.Alt
	NamedItem  = ir.NamedItem
	Item       = ir.Item
	NameLeaf   = ir.NameLeaf
	StringLeaf = ir.StringLeaf
	Group      = ir.Group
	Opt        = ir.Opt
	Repeat0    = ir.Repeat0
	Repeat1    = ir.Repeat1
	Gather     = ir.Gather
	PosLook    = ir.PositiveLookahead
	NegLook    = ir.NegativeLookahead
	Forced     = ir.Forced
	Cut        = ir.Cut
)

// NewGrammar returns an empty Grammar ready for rules to be added.
func NewGrammar() *Grammar { return ir.NewGrammar() }

// GenerateOptions controls generator back-end emission details not
// determined by the grammar itself.
type GenerateOptions = codegen.Options

// Generate runs the full pipeline over g — nullability, left-recursion
// /leader analysis, desugaring of `*`/`+`/`sep.X+`, then code generation —
// and returns the emitted Go source.
//
// g is mutated in place by analysis (LeftRecursive/Leader flags), by
// desugaring (synthetic rules appended), and by code generation (RuleID
// assignment); callers that
// need the pre-desugar grammar for inspection should keep their own copy.
func Generate(g *Grammar, opts GenerateOptions) ([]byte, error) {
	nullable := analysis.ComputeNullable(g)
	if _, err := analysis.ComputeLeftRecursion(g, nullable); err != nil {
		return nil, err
	}
	if err := desugar.Run(g); err != nil {
		return nil, err
	}
	return codegen.Generate(g, opts)
}
