package ir

import (
	"strings"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
)

// Validate enforces the grammar's shape invariants:
//  1. every NameLeaf resolves to a rule or a recognized token kind,
//  2. item binding names do not start with "_" (rule names are not
//     checked here; internal/peg/bootstrap rejects them at parse time),
//  3. the grammar defines "start" unless a "@trailer" meta is present.
//
// tokenKinds is the set of token-kind names (plus hard/soft keyword and
// operator spellings) the runtime recognizes via expect(); see
// internal/peg/runtime.BuiltinTokenKinds.
func Validate(g *Grammar, tokenKinds map[string]bool) error {
	if g.Len() == 0 {
		return diag.NewGrammarError("", "grammar defines no rules")
	}

	if _, hasStart := g.Rule("start"); !hasStart && !g.HasTrailer() {
		return diag.NewGrammarError("", "grammar without a @trailer meta-directive must define a 'start' rule")
	}

	for _, r := range g.Rules() {
		if err := validateRhs(g, r.Name, r.Rhs, tokenKinds); err != nil {
			return err
		}
	}
	return nil
}

func validateRhs(g *Grammar, ruleName string, rhs *Rhs, tokenKinds map[string]bool) error {
	if rhs == nil || len(rhs.Alts) == 0 {
		return diag.NewGrammarError(ruleName, "rhs must have at least one alternative")
	}
	for _, alt := range rhs.Alts {
		for _, item := range alt.Items {
			if item.Name != "" && strings.HasPrefix(item.Name, "_") {
				return diag.NewGrammarError(ruleName, "item names cannot start with underscore: %q", item.Name)
			}
			if err := validateItem(g, ruleName, item.Item, tokenKinds); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateItem(g *Grammar, ruleName string, it Item, tokenKinds map[string]bool) error {
	switch v := it.(type) {
	case NameLeaf:
		if _, ok := g.Rule(v.Name); ok {
			return nil
		}
		if v.Name == "ENDMARKER" || tokenKinds[v.Name] {
			return nil
		}
		return diag.NewGrammarError(ruleName, "dangling reference to rule %q", v.Name)
	case StringLeaf:
		return nil
	case Group:
		return validateRhs(g, ruleName, v.Rhs, tokenKinds)
	case Opt:
		return validateItem(g, ruleName, v.Item, tokenKinds)
	case Repeat0:
		return validateItem(g, ruleName, v.Elem, tokenKinds)
	case Repeat1:
		return validateItem(g, ruleName, v.Elem, tokenKinds)
	case Gather:
		if err := validateItem(g, ruleName, v.Sep, tokenKinds); err != nil {
			return err
		}
		return validateItem(g, ruleName, v.Elem, tokenKinds)
	case PositiveLookahead:
		return validateItem(g, ruleName, v.Atom, tokenKinds)
	case NegativeLookahead:
		return validateItem(g, ruleName, v.Atom, tokenKinds)
	case Forced:
		return validateItem(g, ruleName, v.Atom, tokenKinds)
	case Cut:
		return nil
	default:
		return diag.NewGrammarError(ruleName, "unknown item type %T", it)
	}
}
