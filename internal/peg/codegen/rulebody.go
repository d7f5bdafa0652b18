package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// writeRule emits one parse procedure for r: a raw body closure, wrapped
// in ordinary Memoize, MemoizeLeftRec, or called directly, per
// shouldMemoize.
func (gen *generator) writeRule(buf *bytes.Buffer, r *ir.Rule) error {
	goName := goRuleName(r.Name)

	fmt.Fprintf(buf, "// rule_%s implements the grammar rule %q.\n", goName, r.Name)
	fmt.Fprintf(buf, "func (p *Parser) rule_%s() (interface{}, bool, error) {\n", goName)
	buf.WriteString("\tbody := func(p *Parser) (interface{}, bool, error) {\n")

	var bodyBuf []byte
	var err error
	if elem, minOne, ok := loopShape(r); ok {
		bodyBuf, err = gen.loopBody(elem, minOne)
	} else {
		bodyBuf, err = gen.altSequence(r)
	}
	if err != nil {
		return err
	}
	buf.Write(bodyBuf)

	buf.WriteString("\t}\n")

	switch {
	case r.Leader:
		fmt.Fprintf(buf, "\treturn p.MemoizeLeftRec(ruleID_%s, body)\n", goName)
	case gen.shouldMemoize(r):
		fmt.Fprintf(buf, "\treturn p.Memoize(ruleID_%s, \"\", body)\n", goName)
	default:
		buf.WriteString("\treturn body(p)\n")
	}
	buf.WriteString("}\n\n")

	return nil
}

// loopShape reports whether r is a synthetic accumulation-loop rule
// produced by desugaring `X*`/`X+`: a single action-less alt containing
// exactly one unnamed item, the element to repeat. A gather's "_loop0_"
// pair rule (matching "sep elem" once and returning elem via a custom
// action) carries the same name prefix but has two items and an action, so
// it does not match this shape and falls through to ordinary alt-sequence
// handling instead.
func loopShape(r *ir.Rule) (ir.Item, bool, bool) {
	if !r.IsLoop() || len(r.Rhs.Alts) != 1 {
		return nil, false, false
	}
	alt := r.Rhs.Alts[0]
	if alt.HasAct || len(alt.Items) != 1 {
		return nil, false, false
	}
	return alt.Items[0].Item, strings.HasPrefix(r.Name, "_loop1_"), true
}

// loopBody emits a real accumulation loop for a desugared `X*`/`X+` rule:
// match elem repeatedly, collecting each value, until it fails to match or
// stops advancing the stream position. A "_loop0_" rule succeeds
// unconditionally, possibly with an empty list; a "_loop1_" rule requires
// at least one match.
func (gen *generator) loopBody(elem ir.Item, minOne bool) ([]byte, error) {
	var buf bytes.Buffer

	expr, err := gen.matchExpr(elem)
	if err != nil {
		return nil, err
	}

	buf.WriteString("\t\tacc := make([]interface{}, 0)\n")
	buf.WriteString("\t\tfor {\n")
	buf.WriteString("\t\t\titerMark := p.Mark()\n")
	fmt.Fprintf(&buf, "\t\t\tv, ok, err := %s\n", expr)
	buf.WriteString("\t\t\tif err != nil {\n\t\t\t\treturn nil, false, err\n\t\t\t}\n")
	buf.WriteString("\t\t\tif !ok {\n\t\t\t\tp.Reset(iterMark)\n\t\t\t\tbreak\n\t\t\t}\n")
	buf.WriteString("\t\t\tacc = append(acc, v)\n")
	buf.WriteString("\t\t\tif p.Mark() == iterMark {\n\t\t\t\tbreak\n\t\t\t}\n")
	buf.WriteString("\t\t}\n")

	if minOne {
		buf.WriteString("\t\tif len(acc) == 0 {\n\t\t\treturn nil, false, nil\n\t\t}\n")
	}
	buf.WriteString("\t\treturn acc, true, nil\n")

	return buf.Bytes(), nil
}

// altSequence emits the body of a rule: save the mark, try each alt in
// order, reset between failures, fail after exhaustion.
func (gen *generator) altSequence(r *ir.Rule) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\t\tmark := p.Mark()\n")
	buf.WriteString("\t\tcut := false\n")
	buf.WriteString("\t\t_ = cut\n")

	for i, alt := range r.Rhs.Alts {
		if err := gen.writeAlt(&buf, r, i, alt); err != nil {
			return nil, err
		}
	}

	buf.WriteString("\t\tp.Reset(mark)\n")
	if strings.HasPrefix(r.Name, "invalid_") && gen.opts.InvalidRuleMarker != "" {
		fmt.Fprintf(&buf, "\t\t%s\n", gen.opts.InvalidRuleMarker)
	}
	buf.WriteString("\t\treturn nil, false, nil\n")
	return buf.Bytes(), nil
}

// writeAlt emits one alternative attempt: reset to mark, run a dedicated
// closure that binds named items in sequence and sets ok/val/err, check
// its outcome, and honor a cut that fired either in this alt or an earlier
// one in the same rhs.
func (gen *generator) writeAlt(buf *bytes.Buffer, r *ir.Rule, idx int, alt *ir.Alt) error {
	names := dedupeNames(alt)

	fmt.Fprintf(buf, "\t\t// alt %d\n", idx+1)
	buf.WriteString("\t\tp.Reset(mark)\n")
	buf.WriteString("\t\t{\n")
	buf.WriteString("\t\t\tvar aErr error\n")
	buf.WriteString("\t\t\tvar aOk bool\n")
	buf.WriteString("\t\t\tvar aVal interface{}\n")
	buf.WriteString("\t\t\tfunc() {\n")

	var boundNames []string
	for i, item := range alt.Items {
		if _, isCut := item.Item.(ir.Cut); isCut {
			buf.WriteString("\t\t\t\tcut = true\n")
			continue
		}

		expr, err := gen.matchExpr(item.Item)
		if err != nil {
			return err
		}

		fmt.Fprintf(buf, "\t\t\t\t_v%d, _ok%d, e := %s\n", i, i, expr)
		fmt.Fprintf(buf, "\t\t\t\tif e != nil {\n\t\t\t\t\taErr = e\n\t\t\t\t\treturn\n\t\t\t\t}\n")
		fmt.Fprintf(buf, "\t\t\t\tif !_ok%d {\n\t\t\t\t\treturn\n\t\t\t\t}\n", i)
		fmt.Fprintf(buf, "\t\t\t\t_ = _v%d\n", i)

		varName := names[i]
		if varName != "" {
			fmt.Fprintf(buf, "\t\t\t\t%s := _v%d\n\t\t\t\t_ = %s\n", varName, i, varName)
			boundNames = append(boundNames, varName)
		} else {
			boundNames = append(boundNames, fmt.Sprintf("_v%d", i))
		}
	}

	buf.WriteString("\t\t\t\taOk = true\n")
	action := gen.altAction(r, alt, boundNames)
	fmt.Fprintf(buf, "\t\t\t\taVal = %s\n", action)

	buf.WriteString("\t\t\t}()\n")
	buf.WriteString("\t\t\tif aErr != nil {\n\t\t\t\treturn nil, false, aErr\n\t\t\t}\n")
	buf.WriteString("\t\t\tif aOk {\n\t\t\t\treturn aVal, true, nil\n\t\t\t}\n")
	buf.WriteString("\t\t}\n")
	buf.WriteString("\t\tif cut {\n\t\t\treturn nil, false, nil\n\t\t}\n")

	return nil
}

// altAction produces the Go expression evaluated on a successful alt
// match: the opaque action if present (and actions are not being skipped);
// otherwise, for a gather rule's "elem (sep elem)*" alt, the first element
// prepended onto the accumulated rest so the gather yields one flat list
// instead of a nested [elem, rest] pair; otherwise a default tuple of the
// bound item values.
func (gen *generator) altAction(r *ir.Rule, alt *ir.Alt, boundNames []string) string {
	if alt.HasAct && !gen.opts.SkipActions {
		return "(" + alt.Action + ")"
	}
	if r.IsGather() && len(boundNames) == 2 {
		return fmt.Sprintf("append([]interface{}{%s}, %s.([]interface{})...)", boundNames[0], boundNames[1])
	}
	if len(boundNames) == 0 {
		return "nil"
	}
	if len(boundNames) == 1 {
		return boundNames[0]
	}
	return "[]interface{}{" + strings.Join(boundNames, ", ") + "}"
}

// dedupeNames returns, for each item index in alt, the local variable name
// to bind it under (empty string for unnamed items), resolving collisions
// by appending _1, _2, … in encounter order.
func dedupeNames(alt *ir.Alt) []string {
	seen := map[string]int{}
	out := make([]string, len(alt.Items))
	for i, item := range alt.Items {
		if item.Name == "" {
			continue
		}
		name := item.Name
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", item.Name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// matchExpr returns a Go expression of type (interface{}, bool, error)
// that attempts to match it against the current stream position. Composed
// recursively for Opt/Lookahead/Forced wrapping another item.
func (gen *generator) matchExpr(it ir.Item) (string, error) {
	switch v := it.(type) {
	case ir.NameLeaf:
		if _, isRule := gen.grammar.Rule(v.Name); isRule {
			return fmt.Sprintf("func() (interface{}, bool, error) { return p.rule_%s() }()", goRuleName(v.Name)), nil
		}
		return fmt.Sprintf("func() (interface{}, bool, error) { t, ok := p.Expect(%q); if !ok { return nil, false, nil }; return t, true, nil }()", v.Name), nil

	case ir.StringLeaf:
		return fmt.Sprintf("func() (interface{}, bool, error) { t, ok := p.Expect(%q); if !ok { return nil, false, nil }; return t, true, nil }()", v.Literal), nil

	case ir.Opt:
		inner, err := gen.matchExpr(v.Item)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"func() (interface{}, bool, error) { v, ok, err := %s; if err != nil { return nil, false, err }; if !ok { return nil, true, nil }; return v, true, nil }()",
			inner,
		), nil

	case ir.PositiveLookahead:
		inner, err := gen.matchExpr(v.Atom)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"func() (interface{}, bool, error) { ok, err := p.PositiveLookahead(func(p *Parser) (interface{}, bool, error) { return %s }); if err != nil { return nil, false, err }; if !ok { return nil, false, nil }; return nil, true, nil }()",
			inner,
		), nil

	case ir.NegativeLookahead:
		inner, err := gen.matchExpr(v.Atom)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"func() (interface{}, bool, error) { ok, err := p.NegativeLookahead(func(p *Parser) (interface{}, bool, error) { return %s }); if err != nil { return nil, false, err }; if !ok { return nil, false, nil }; return nil, true, nil }()",
			inner,
		), nil

	case ir.Forced:
		expected, err := gen.forcedExpectedLiteral(v.Atom)
		if err != nil {
			return "", err
		}
		inner, err := gen.matchExpr(v.Atom)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(
			"func() (interface{}, bool, error) { v, err := p.Forced(func(p *Parser) (interface{}, bool, error) { return %s }, %q); if err != nil { return nil, false, err }; return v, true, nil }()",
			inner, expected,
		), nil

	default:
		return "", fmt.Errorf("codegen: unsupported item type %T (grammar not fully desugared?)", it)
	}
}

// forcedExpectedLiteral derives the human-readable "expected X" text for a
// Forced assertion from the atom it wraps.
func (gen *generator) forcedExpectedLiteral(it ir.Item) (string, error) {
	switch v := it.(type) {
	case ir.NameLeaf:
		return v.Name, nil
	case ir.StringLeaf:
		return v.Literal, nil
	default:
		return "", nil
	}
}
