// Package ir defines the grammar intermediate representation consumed by
// internal/peg/analysis, internal/peg/desugar, and internal/peg/codegen
//. It is a closed sum type over Item variants so analyses and
// generation can be written as exhaustive switches rather than name-based
// visitor dispatch.
package ir

import (
	"strings"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
)

// Grammar is a mapping from rule name to Rule, plus free-form
// meta-directives, with rule insertion order preserved (it governs
// emission order).
type Grammar struct {
	order []string
	rules map[string]*Rule
	Metas map[string]*string
}

// NewGrammar returns an empty Grammar ready for rules to be added.
func NewGrammar() *Grammar {
	return &Grammar{
		rules: make(map[string]*Rule),
		Metas: make(map[string]*string),
	}
}

// AddRule appends r to the grammar, preserving insertion order. It is an
// error to add a rule whose name is already present.
func (g *Grammar) AddRule(r *Rule) error {
	if _, exists := g.rules[r.Name]; exists {
		return diag.NewGrammarError(r.Name, "rule %q already defined", r.Name)
	}
	g.order = append(g.order, r.Name)
	g.rules[r.Name] = r
	return nil
}

// Rule looks up a rule by name.
func (g *Grammar) Rule(name string) (*Rule, bool) {
	r, ok := g.rules[name]
	return r, ok
}

// Rules returns every rule in insertion order.
func (g *Grammar) Rules() []*Rule {
	out := make([]*Rule, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.rules[name])
	}
	return out
}

// Len returns the number of rules in the grammar.
func (g *Grammar) Len() int { return len(g.order) }

// SetMeta records a meta-directive. value is nil for a bare directive like
// "@subheader" with no payload.
func (g *Grammar) SetMeta(name string, value *string) {
	g.Metas[name] = value
}

// HasTrailer reports whether a "@trailer" meta-directive supplies an
// alternate entry point in lieu of a "start" rule.
func (g *Grammar) HasTrailer() bool {
	_, ok := g.Metas["trailer"]
	return ok
}

// Rule is one named production. Name, if it does not begin with "_", is a
// user rule; names beginning with "_" are reserved for synthetics produced
// by internal/peg/desugar.
type Rule struct {
	Name           string
	TypeAnnotation string
	Rhs            *Rhs
	Memoize        bool

	// Set by internal/peg/analysis; zero value until then.
	LeftRecursive bool
	Leader        bool

	// RuleID is a dense integer assigned at generation time, used as part
	// of the runtime memo key. Unset
	// (0) until internal/peg/codegen assigns it; rule IDs start at 1 so the
	// zero value is recognizably "unassigned".
	RuleID int
}

// IsSynthetic reports whether r was produced by desugaring rather than
// authored by the grammar writer.
func (r *Rule) IsSynthetic() bool { return strings.HasPrefix(r.Name, "_") }

// IsLoop reports whether r is a synthetic `X*`/`X+` helper.
func (r *Rule) IsLoop() bool {
	return strings.HasPrefix(r.Name, "_loop0_") || strings.HasPrefix(r.Name, "_loop1_")
}

// IsGather reports whether r is a synthetic `sep.X+` helper.
func (r *Rule) IsGather() bool { return strings.HasPrefix(r.Name, "_gather_") }

// Rhs is an ordered, non-empty sequence of alternatives; PEG prioritized
// choice means the first matching Alt wins.
type Rhs struct {
	Alts []*Alt
}

// Alt is one alternative: an ordered sequence of named items, an optional
// cut index (set by the parser that built the IR if it saw a `~` token),
// and an optional opaque action expression passed through to emission
// verbatim.
type Alt struct {
	Items  []*NamedItem
	ICut   int // -1 if the alt contains no Cut
	Action string
	HasAct bool
}

// NewAlt returns an Alt with no cut recorded yet.
func NewAlt(items ...*NamedItem) *Alt {
	return &Alt{Items: items, ICut: -1}
}

// NamedItem binds an optional local variable name to an Item and an
// optional pass-through type annotation. Names beginning with "_" are
// reserved.
type NamedItem struct {
	Name           string
	Item           Item
	TypeAnnotation string
}

// Item is the sum type of grammar atoms/operators. Exhaustive switches in
// internal/peg/analysis and internal/peg/codegen type-switch over these
// concrete types.
type Item interface {
	isItem()
}

// NameLeaf references a rule or a token kind by name. The special name
// "ENDMARKER" renders as "$" in pretty-printing.
type NameLeaf struct{ Name string }

// StringLeaf is a quoted terminal: a keyword, soft keyword, or operator
// spelling. An empty Literal is the nullable empty-string literal.
type StringLeaf struct{ Literal string }

// Group is a parenthesized subgrammar. internal/peg/desugar inlines it at
// reference sites only when Rhs has exactly one alt with no action and that
// alt has exactly one item; every other group, including a one-alt
// action-less group of several items, is replaced with a reference to a
// synthetic "_tmp_N" rule.
type Group struct{ Rhs *Rhs }

// Opt matches item or empty.
type Opt struct{ Item Item }

// Repeat0 is `X*`: always nullable. Desugared away before codegen.
type Repeat0 struct{ Elem Item }

// Repeat1 is `X+`: never nullable. Desugared away before codegen.
type Repeat1 struct{ Elem Item }

// Gather is `sep.X+`: one Elem followed by zero or more (Sep Elem) pairs.
// Never nullable. Desugared away before codegen.
type Gather struct {
	Sep  Item
	Elem Item
}

// PositiveLookahead asserts atom matches without consuming input.
type PositiveLookahead struct{ Atom Item }

// NegativeLookahead asserts atom does not match, without consuming input.
type NegativeLookahead struct{ Atom Item }

// Forced ("&&") asserts atom must match; failure raises diag.ForcedError
// instead of backtracking.
type Forced struct{ Atom Item }

// Cut ("~") commits to the current alt: later alts of the containing Rhs
// are not attempted if a later item in this alt fails.
type Cut struct{}

func (NameLeaf) isItem()          {}
func (StringLeaf) isItem()        {}
func (Group) isItem()             {}
func (Opt) isItem()               {}
func (Repeat0) isItem()           {}
func (Repeat1) isItem()           {}
func (Gather) isItem()            {}
func (PositiveLookahead) isItem() {}
func (NegativeLookahead) isItem() {}
func (Forced) isItem()            {}
func (Cut) isItem()               {}
