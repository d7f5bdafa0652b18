// Package bootstrap loads a line-oriented, indentation-sensitive grammar
// source format into an *ir.Grammar. It is a small hand-written
// recursive-descent reader over the raw source text (not a generated
// parser — bootstrapping a PEG generator's own input format with itself
// is circular), in the same unadorned recursive-descent style as a
// hand-rolled expression parser.
package bootstrap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// Parse reads grammar source text into a fresh *ir.Grammar, in this
// format:
//
//	[@meta_name [meta_value]]*
//	rule_name[type_annotation]? (memo)? : alt ('|' alt)*
//	    | alt
//	    | alt
func Parse(source, filename string) (*ir.Grammar, error) {
	lines := splitLogicalLines(source)
	p := &parser{lines: lines, filename: filename}
	g := ir.NewGrammar()

	for p.i < len(p.lines) {
		line := p.lines[p.i]
		trimmed := strings.TrimSpace(line.text)
		if trimmed == "" {
			p.i++
			continue
		}
		if strings.HasPrefix(trimmed, "@") {
			name, val := parseMeta(trimmed)
			if val != nil && strings.IndexAny((*val)[:1], "0123456789+-.") == 0 {
				if _, err := strconv.ParseFloat(*val, 64); err == nil {
					return nil, diag.NewGrammarError("", "meta-directive @%s has numeric value %s; only names and string literals are supported", name, *val)
				}
			}
			g.SetMeta(name, val)
			p.i++
			continue
		}
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		if err := g.AddRule(rule); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// logicalLine is one line of grammar source with comments stripped and its
// indentation level recorded, so continuation alts ("| alt", more indented
// than the rule header) can be recognized.
type logicalLine struct {
	text   string
	indent int
	number int
}

func splitLogicalLines(source string) []logicalLine {
	var out []logicalLine
	for i, raw := range strings.Split(source, "\n") {
		text := stripComment(raw)
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, logicalLine{text: text, indent: indentOf(text), number: i + 1})
	}
	return out
}

func stripComment(line string) string {
	inStr := false
	var strCh byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inStr {
			if c == '\\' {
				i++
				continue
			}
			if c == strCh {
				inStr = false
			}
			continue
		}
		if c == '"' || c == '\'' {
			inStr = true
			strCh = c
			continue
		}
		if c == '#' {
			return line[:i]
		}
	}
	return line
}

func indentOf(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' {
			n++
		} else if r == '\t' {
			n += 8
		} else {
			break
		}
	}
	return n
}

func parseMeta(trimmed string) (string, *string) {
	rest := strings.TrimPrefix(trimmed, "@")
	fields := strings.SplitN(rest, " ", 2)
	name := strings.TrimSpace(fields[0])
	if len(fields) == 1 || strings.TrimSpace(fields[1]) == "" {
		return name, nil
	}
	val := strings.TrimSpace(fields[1])
	return name, &val
}

type parser struct {
	lines    []logicalLine
	i        int
	filename string
}

func (p *parser) errorAt(line logicalLine, format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	return &diag.SyntaxError{
		Filename: p.filename,
		Message:  msg,
		Line:     line.number,
		Offset:   1,
		Text:     line.text,
	}
}

// parseRule consumes the header line and any continuation "| alt" lines
// more indented than it, returning the assembled Rule.
func (p *parser) parseRule() (*ir.Rule, error) {
	header := p.lines[p.i]
	headerIndent := header.indent
	p.i++

	name, typeAnn, memoize, rest, err := parseRuleHeader(strings.TrimSpace(header.text))
	if err != nil {
		return nil, p.errorAt(header, "%s", err.Error())
	}
	if strings.HasPrefix(name, "_") {
		return nil, p.errorAt(header, "rule name %q cannot start with underscore; that prefix is reserved for desugaring", name)
	}

	altTexts := []string{rest}

	for p.i < len(p.lines) {
		next := p.lines[p.i]
		if next.indent <= headerIndent {
			break
		}
		t := strings.TrimSpace(next.text)
		if !strings.HasPrefix(t, "|") {
			break
		}
		altTexts = append(altTexts, strings.TrimPrefix(t, "|"))
		p.i++
	}

	var alts []*ir.Alt
	for _, at := range altTexts {
		for _, piece := range splitTopLevel(at, '|') {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			alt, err := parseAlt(piece)
			if err != nil {
				return nil, p.errorAt(header, "rule %q: %s", name, err.Error())
			}
			alts = append(alts, alt)
		}
	}
	if len(alts) == 0 {
		return nil, p.errorAt(header, "rule %q has no alternatives", name)
	}

	return &ir.Rule{
		Name:           name,
		TypeAnnotation: typeAnn,
		Rhs:            &ir.Rhs{Alts: alts},
		Memoize:        memoize,
	}, nil
}

// parseRuleHeader splits "name[ann]? (memo)? : rest" into its parts.
func parseRuleHeader(header string) (name, typeAnn string, memoize bool, rest string, err error) {
	idx := strings.Index(header, ":")
	if idx < 0 {
		return "", "", false, "", fmt.Errorf("expected ':' in rule header %q", header)
	}
	left := strings.TrimSpace(header[:idx])
	rest = header[idx+1:]

	if b := strings.Index(left, "["); b >= 0 {
		e := strings.Index(left, "]")
		if e < 0 || e < b {
			return "", "", false, "", fmt.Errorf("unterminated type annotation in %q", left)
		}
		typeAnn = strings.TrimSpace(left[b+1 : e])
		left = strings.TrimSpace(left[:b] + left[e+1:])
	}

	left = strings.TrimSpace(left)
	if strings.HasSuffix(left, "(memo)") {
		memoize = true
		left = strings.TrimSpace(strings.TrimSuffix(left, "(memo)"))
	}

	name = left
	if name == "" {
		return "", "", false, "", fmt.Errorf("missing rule name in header %q", header)
	}
	return name, typeAnn, memoize, rest, nil
}

// splitTopLevel splits s on sep, ignoring occurrences inside (), [], or
// quoted strings, and inside a trailing "{ action }" block.
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	inStr := false
	var strCh byte
	last := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '\\' {
				i++
				continue
			}
			if c == strCh {
				inStr = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inStr = true
			strCh = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, s[last:])
	return out
}

// parseAlt parses one alternative: a sequence of named items, an optional
// cut marker, and an optional trailing "{ action }".
func parseAlt(s string) (*ir.Alt, error) {
	action, hasAct, body := extractAction(s)

	alt := ir.NewAlt()
	alt.Action = action
	alt.HasAct = hasAct

	for _, tok := range tokenizeItems(body) {
		if tok == "~" {
			alt.Items = append(alt.Items, &ir.NamedItem{Item: ir.Cut{}})
			alt.ICut = len(alt.Items) - 1
			continue
		}
		item, name, typeAnn, err := parseNamedItem(tok)
		if err != nil {
			return nil, err
		}
		alt.Items = append(alt.Items, &ir.NamedItem{Name: name, Item: item, TypeAnnotation: typeAnn})
	}
	return alt, nil
}

// extractAction splits a trailing "{ ... }" action off of s, respecting
// brace nesting so an action may itself contain braces.
func extractAction(s string) (action string, has bool, rest string) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "}") {
		return "", false, s
	}
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[i+1 : len(s)-1]), true, strings.TrimSpace(s[:i])
			}
		}
	}
	return "", false, s
}

// tokenizeItems splits an alt body into whitespace-separated item textual
// units, keeping parenthesized groups and quoted literals intact as single
// units.
func tokenizeItems(body string) []string {
	var toks []string
	depth := 0
	inStr := false
	var strCh byte
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		if inStr {
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(body) {
				i++
				cur.WriteByte(body[i])
				continue
			}
			if c == strCh {
				inStr = false
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			inStr = true
			strCh = c
			cur.WriteByte(c)
		case c == '(' || c == '[':
			depth++
			cur.WriteByte(c)
		case c == ')' || c == ']':
			depth--
			cur.WriteByte(c)
		case c == ' ' || c == '\t':
			if depth == 0 {
				flush()
			} else {
				cur.WriteByte(c)
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return toks
}

// parseNamedItem parses one token produced by tokenizeItems into an
// ir.Item, its optional binding name, and its optional type annotation.
func parseNamedItem(tok string) (ir.Item, string, string, error) {
	name := ""
	typeAnn := ""

	if eq := topLevelIndex(tok, '='); eq > 0 && isIdentifierPrefix(tok[:eq]) {
		name = tok[:eq]
		tok = tok[eq+1:]
	}

	// a leading "[" opens an optional group, not a type annotation.
	if b := strings.LastIndex(tok, "["); b > 0 && strings.HasSuffix(tok, "]") {
		typeAnn = tok[b+1 : len(tok)-1]
		tok = tok[:b]
	}

	item, err := parseItem(tok)
	if err != nil {
		return nil, "", "", err
	}
	return item, name, typeAnn, nil
}

func topLevelIndex(s string, b byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		default:
			if s[i] == b && depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isIdentifierPrefix(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return false
		}
		if i > 0 && !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// parseItem parses one atom plus trailing postfix/prefix operators:
// `&atom`, `!atom`, `&&atom`, `atom?`, `atom*`, `atom+`, `sep.atom+`.
func parseItem(tok string) (ir.Item, error) {
	switch {
	case strings.HasPrefix(tok, "&&"):
		inner, err := parseItem(tok[2:])
		if err != nil {
			return nil, err
		}
		return ir.Forced{Atom: inner}, nil
	case strings.HasPrefix(tok, "&"):
		inner, err := parseItem(tok[1:])
		if err != nil {
			return nil, err
		}
		return ir.PositiveLookahead{Atom: inner}, nil
	case strings.HasPrefix(tok, "!"):
		inner, err := parseItem(tok[1:])
		if err != nil {
			return nil, err
		}
		return ir.NegativeLookahead{Atom: inner}, nil
	}

	if strings.HasSuffix(tok, "?") {
		inner, err := parseItem(tok[:len(tok)-1])
		if err != nil {
			return nil, err
		}
		return ir.Opt{Item: inner}, nil
	}
	if strings.HasSuffix(tok, "*") {
		body := tok[:len(tok)-1]
		if dot := topLevelIndex(body, '.'); dot >= 0 {
			sep, err := parseAtom(body[:dot])
			if err != nil {
				return nil, err
			}
			elem, err := parseAtom(body[dot+1:])
			if err != nil {
				return nil, err
			}
			return ir.Opt{Item: ir.Gather{Sep: sep, Elem: elem}}, nil
		}
		inner, err := parseAtom(body)
		if err != nil {
			return nil, err
		}
		return ir.Repeat0{Elem: inner}, nil
	}
	if strings.HasSuffix(tok, "+") {
		body := tok[:len(tok)-1]
		if dot := topLevelIndex(body, '.'); dot >= 0 {
			sep, err := parseAtom(body[:dot])
			if err != nil {
				return nil, err
			}
			elem, err := parseAtom(body[dot+1:])
			if err != nil {
				return nil, err
			}
			return ir.Gather{Sep: sep, Elem: elem}, nil
		}
		inner, err := parseAtom(body)
		if err != nil {
			return nil, err
		}
		return ir.Repeat1{Elem: inner}, nil
	}

	return parseAtom(tok)
}

// parseAtom parses a bare atom: "(alts)", "[alts]", a quoted literal, or a
// bare name.
func parseAtom(tok string) (ir.Item, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil, fmt.Errorf("empty item")
	}

	if strings.HasPrefix(tok, "(") && strings.HasSuffix(tok, ")") {
		rhs, err := parseGroupedRhs(tok[1 : len(tok)-1])
		if err != nil {
			return nil, err
		}
		return ir.Group{Rhs: rhs}, nil
	}
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
		rhs, err := parseGroupedRhs(tok[1 : len(tok)-1])
		if err != nil {
			return nil, err
		}
		return ir.Opt{Item: ir.Group{Rhs: rhs}}, nil
	}
	if strings.HasPrefix(tok, "\"") || strings.HasPrefix(tok, "'") {
		lit, err := strconv.Unquote(normalizeQuote(tok))
		if err != nil {
			return nil, fmt.Errorf("bad string literal %q: %w", tok, err)
		}
		return ir.StringLeaf{Literal: lit}, nil
	}
	if !isIdentifierPrefix(tok) {
		return nil, fmt.Errorf("unrecognized item %q", tok)
	}
	return ir.NameLeaf{Name: tok}, nil
}

// normalizeQuote rewrites a single-quoted literal into a double-quoted one
// so strconv.Unquote (which only accepts " or ` delimiters for general
// text) can process it.
func normalizeQuote(tok string) string {
	if strings.HasPrefix(tok, "'") && strings.HasSuffix(tok, "'") && len(tok) >= 2 {
		inner := tok[1 : len(tok)-1]
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		return `"` + inner + `"`
	}
	return tok
}

// parseGroupedRhs parses the alt-separated body of a parenthesized or
// bracketed group.
func parseGroupedRhs(body string) (*ir.Rhs, error) {
	var alts []*ir.Alt
	for _, piece := range splitTopLevel(body, '|') {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		alt, err := parseAlt(piece)
		if err != nil {
			return nil, err
		}
		alts = append(alts, alt)
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("empty group")
	}
	return &ir.Rhs{Alts: alts}, nil
}
