// Package desugar replaces X*, X+, sep.X+ operators and non-trivial groups
// with references to synthetic helper rules, appended to the
// grammar's rule set in generation order. Synthetic names are prefixed with
// "_" so they can never collide with a user rule.
package desugar

import (
	"fmt"

	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// Desugarer walks a grammar's rule bodies and rewrites repetition/gather/
// group nodes into plain NameLeaf references, appending the synthetic rules
// it allocates to the grammar.
type Desugarer struct {
	grammar *ir.Grammar
	counter int
}

// Run desugars every user rule currently in g (synthetic rules created
// along the way are appended and also walked, since a loop body can itself
// contain nested repetition).
func Run(g *ir.Grammar) error {
	d := &Desugarer{grammar: g}
	// iterate by index since Rules() grows as we append synthetics.
	for i := 0; i < g.Len(); i++ {
		r := g.Rules()[i]
		newRhs, err := d.rhs(r.Rhs)
		if err != nil {
			return err
		}
		r.Rhs = newRhs
	}
	return nil
}

func (d *Desugarer) rhs(rhs *ir.Rhs) (*ir.Rhs, error) {
	newAlts := make([]*ir.Alt, len(rhs.Alts))
	for i, alt := range rhs.Alts {
		newAlt, err := d.alt(alt)
		if err != nil {
			return nil, err
		}
		newAlts[i] = newAlt
	}
	return &ir.Rhs{Alts: newAlts}, nil
}

func (d *Desugarer) alt(alt *ir.Alt) (*ir.Alt, error) {
	newItems := make([]*ir.NamedItem, len(alt.Items))
	for i, item := range alt.Items {
		newItem, err := d.item(item.Item)
		if err != nil {
			return nil, err
		}
		newItems[i] = &ir.NamedItem{Name: item.Name, Item: newItem, TypeAnnotation: item.TypeAnnotation}
	}
	return &ir.Alt{Items: newItems, ICut: alt.ICut, Action: alt.Action, HasAct: alt.HasAct}, nil
}

// item recursively desugars a single item, replacing Repeat0/Repeat1
// /Gather/non-trivial Group with a NameLeaf reference to a fresh synthetic
// rule, after first desugaring any nested items within it.
func (d *Desugarer) item(it ir.Item) (ir.Item, error) {
	switch v := it.(type) {
	case ir.Repeat0:
		elem, err := d.item(v.Elem)
		if err != nil {
			return nil, err
		}
		return d.loopRule(elem, false)
	case ir.Repeat1:
		elem, err := d.item(v.Elem)
		if err != nil {
			return nil, err
		}
		return d.loopRule(elem, true)
	case ir.Gather:
		sep, err := d.item(v.Sep)
		if err != nil {
			return nil, err
		}
		elem, err := d.item(v.Elem)
		if err != nil {
			return nil, err
		}
		return d.gatherRule(sep, elem)
	case ir.Group:
		newRhs, err := d.rhs(v.Rhs)
		if err != nil {
			return nil, err
		}
		if len(newRhs.Alts) == 1 && !newRhs.Alts[0].HasAct {
			// inline: a group with one action-less alt has no semantic
			// difference from its contents spliced in place. Since Item is
			// a single node (not a sequence), inlining a one-item alt
			// collapses to that item; a multi-item alt stays wrapped so the
			// sequencing is preserved.
			if len(newRhs.Alts[0].Items) == 1 {
				return newRhs.Alts[0].Items[0].Item, nil
			}
		}
		name := d.freshTmpRule(newRhs)
		return ir.NameLeaf{Name: name}, nil
	case ir.Opt:
		inner, err := d.item(v.Item)
		if err != nil {
			return nil, err
		}
		return ir.Opt{Item: inner}, nil
	case ir.PositiveLookahead:
		inner, err := d.item(v.Atom)
		if err != nil {
			return nil, err
		}
		return ir.PositiveLookahead{Atom: inner}, nil
	case ir.NegativeLookahead:
		inner, err := d.item(v.Atom)
		if err != nil {
			return nil, err
		}
		return ir.NegativeLookahead{Atom: inner}, nil
	case ir.Forced:
		inner, err := d.item(v.Atom)
		if err != nil {
			return nil, err
		}
		return ir.Forced{Atom: inner}, nil
	default:
		// NameLeaf, StringLeaf, Cut: no nested items to desugar.
		return it, nil
	}
}

// loopRule allocates "_loop0_N"/"_loop1_N" : elem* / elem+ { collect },
// returning a NameLeaf reference to it.
func (d *Desugarer) loopRule(elem ir.Item, isRepeat1 bool) (ir.Item, error) {
	d.counter++
	prefix := "_loop0_"
	if isRepeat1 {
		prefix = "_loop1_"
	}
	name := synthName(prefix, d.counter)
	rule := &ir.Rule{
		Name: name,
		Rhs:  &ir.Rhs{Alts: []*ir.Alt{ir.NewAlt(&ir.NamedItem{Item: elem})}},
	}
	if err := d.grammar.AddRule(rule); err != nil {
		return nil, err
	}
	return ir.NameLeaf{Name: name}, nil
}

// gatherRule allocates the pair of synthetic rules backing `sep.elem+`:
// a "_loop0_M" matching "sep elem" and returning elem, and a "_gather_N"
// combining "elem (sep elem)*" into the full non-empty list.
func (d *Desugarer) gatherRule(sep, elem ir.Item) (ir.Item, error) {
	d.counter++
	loopName := synthName("_loop0_", d.counter)
	loopAlt := &ir.Alt{
		Items: []*ir.NamedItem{
			{Item: sep},
			{Name: "elem", Item: elem},
		},
		ICut:   -1,
		Action: "elem",
		HasAct: true,
	}
	loopRule := &ir.Rule{Name: loopName, Rhs: &ir.Rhs{Alts: []*ir.Alt{loopAlt}}}
	if err := d.grammar.AddRule(loopRule); err != nil {
		return nil, err
	}

	d.counter++
	gatherName := synthName("_gather_", d.counter)
	gatherAlt := &ir.Alt{
		Items: []*ir.NamedItem{
			{Name: "elem", Item: elem},
			{Name: "seq", Item: ir.Repeat0{Elem: ir.NameLeaf{Name: loopName}}},
		},
		ICut: -1,
	}
	// the Repeat0 wrapping seq must itself be desugared into its own loop
	// rule; run item() on it so "seq" ends up referencing a plain NameLeaf.
	desugaredSeq, err := d.item(gatherAlt.Items[1].Item)
	if err != nil {
		return nil, err
	}
	gatherAlt.Items[1].Item = desugaredSeq

	gatherRule := &ir.Rule{Name: gatherName, Rhs: &ir.Rhs{Alts: []*ir.Alt{gatherAlt}}}
	if err := d.grammar.AddRule(gatherRule); err != nil {
		return nil, err
	}
	return ir.NameLeaf{Name: gatherName}, nil
}

// freshTmpRule allocates "_tmp_N : rhs" for a parenthesized subgrammar that
// cannot be inlined.
func (d *Desugarer) freshTmpRule(rhs *ir.Rhs) string {
	d.counter++
	name := synthName("_tmp_", d.counter)
	_ = d.grammar.AddRule(&ir.Rule{Name: name, Rhs: rhs})
	return name
}

func synthName(prefix string, n int) string {
	return fmt.Sprintf("%s%d", prefix, n)
}
