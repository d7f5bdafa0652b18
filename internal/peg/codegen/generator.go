// Package codegen walks a desugared, analyzed grammar and emits a Go
// source file implementing one parse procedure per rule, isomorphic to the
// grammar IR, plus a top-level entry point.
//
// The emitted code is a direct transcription of the packrat alternation
// algorithm: for each rule, save the mark; for each alt in order, attempt
// its items left-to-right under short-circuit conjunction, evaluate the
// action (or a default tuple) on success, reset to the mark between alts,
// and abort the whole rhs if a later item fails after a Cut fired.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"regexp"
	"sort"
	"strings"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/ir"
	"github.com/dekarrin/sturgeon/internal/peg/runtime"
)

// Options controls details of emission that are not determined by the
// grammar itself.
type Options struct {
	// PackageName is the Go package name of the emitted file.
	PackageName string

	// SkipActions emits default-return bodies, ignoring { action }
	// clauses.
	SkipActions bool

	// Memoize overrides the per-rule memoization decision: "auto" leaves
	// it exactly to the analyses (explicit (memo) marker or
	// left-recursion requirement), "all" forces every rule to be
	// memoized, "none" forces no rule to be memoized except left-recursive
	// leaders (which always require seed growth regardless).
	Memoize string

	// InvalidRuleMarker, when non-empty, is emitted as a call before the
	// final "exhausted alts" return of any rule whose name has the prefix
	// "invalid_", so host code can hook in a more specific diagnostic.
	InvalidRuleMarker string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isIdentifierLiteral reports whether s would be lexed as a single NAME,
// and is therefore a keyword candidate rather than an operator spelling.
func isIdentifierLiteral(s string) bool {
	return s != "" && identRe.MatchString(s)
}

// Generate emits a complete Go source file for g and returns it. The grammar must
// already be desugared (internal/peg/desugar.Run) and analyzed
// (internal/peg/analysis.ComputeNullable + ComputeLeftRecursion) before
// calling Generate.
func Generate(g *ir.Grammar, opts Options) ([]byte, error) {
	if opts.PackageName == "" {
		opts.PackageName = "parser"
	}
	if opts.Memoize == "" {
		opts.Memoize = "auto"
	}

	tokenKinds := runtime.BuiltinTokenKinds()
	hardKW, softKW, operators := collectTerminals(g)
	for k := range hardKW {
		tokenKinds[k] = true
	}
	for k := range softKW {
		tokenKinds[k] = true
	}
	for k := range operators {
		tokenKinds[k] = true
	}

	if err := ir.Validate(g, tokenKinds); err != nil {
		return nil, err
	}

	assignRuleIDs(g)

	gen := &generator{
		grammar:   g,
		opts:      opts,
		hardKW:    hardKW,
		softKW:    softKW,
		operators: operators,
	}

	var buf bytes.Buffer
	gen.writeHeader(&buf)
	gen.writeTables(&buf)
	for _, r := range g.Rules() {
		if err := gen.writeRule(&buf, r); err != nil {
			return nil, err
		}
	}
	gen.writeEntryPoints(&buf)

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		// return the unformatted source alongside the error so a caller
		// can still inspect what went wrong; gofmt failures here mean a
		// bug in the generator itself, not a grammar error.
		return buf.Bytes(), fmt.Errorf("formatting generated source: %w", err)
	}
	return formatted, nil
}

type generator struct {
	grammar   *ir.Grammar
	opts      Options
	hardKW    map[string]bool
	softKW    map[string]bool
	operators map[string]bool
}

// assignRuleIDs gives every rule a dense integer id in grammar order,
// starting at 1, used as part of the runtime memo key.
func assignRuleIDs(g *ir.Grammar) {
	for i, r := range g.Rules() {
		r.RuleID = i + 1
	}
}

// collectTerminals scans every StringLeaf literal in the grammar and
// sorts it into hard keywords, soft keywords, or operator spellings. A
// literal that lexes as a bare identifier is a keyword, unless it is
// listed in the "@softkeywords" meta-directive (space-separated names),
// in which case it is a soft keyword instead.
func collectTerminals(g *ir.Grammar) (hard, soft, ops map[string]bool) {
	hard, soft, ops = map[string]bool{}, map[string]bool{}, map[string]bool{}

	declaredSoft := map[string]bool{}
	if v, ok := g.Metas["softkeywords"]; ok && v != nil {
		for _, name := range strings.Fields(*v) {
			declaredSoft[name] = true
		}
	}

	var walkItem func(it ir.Item)
	walkItem = func(it ir.Item) {
		switch v := it.(type) {
		case ir.StringLeaf:
			if v.Literal == "" {
				return
			}
			if isIdentifierLiteral(v.Literal) {
				if declaredSoft[v.Literal] {
					soft[v.Literal] = true
				} else {
					hard[v.Literal] = true
				}
			} else {
				ops[v.Literal] = true
			}
		case ir.Group:
			walkRhs(v.Rhs, walkItem)
		case ir.Opt:
			walkItem(v.Item)
		case ir.Repeat0:
			walkItem(v.Elem)
		case ir.Repeat1:
			walkItem(v.Elem)
		case ir.Gather:
			walkItem(v.Sep)
			walkItem(v.Elem)
		case ir.PositiveLookahead:
			walkItem(v.Atom)
		case ir.NegativeLookahead:
			walkItem(v.Atom)
		case ir.Forced:
			walkItem(v.Atom)
		}
	}

	for _, r := range g.Rules() {
		walkRhs(r.Rhs, walkItem)
	}
	return hard, soft, ops
}

func walkRhs(rhs *ir.Rhs, f func(ir.Item)) {
	for _, alt := range rhs.Alts {
		for _, item := range alt.Items {
			f(item.Item)
		}
	}
}

func (gen *generator) writeHeader(buf *bytes.Buffer) {
	fmt.Fprintf(buf, "// Code generated by the sturgeon PEG parser generator. DO NOT EDIT.\n")
	fmt.Fprintf(buf, "package %s\n\n", gen.opts.PackageName)
	buf.WriteString("import (\n")
	buf.WriteString("\t\"github.com/dekarrin/sturgeon/internal/peg/diag\"\n")
	buf.WriteString("\t\"github.com/dekarrin/sturgeon/internal/peg/runtime\"\n")
	buf.WriteString("\t\"github.com/dekarrin/sturgeon/internal/peg/stream\"\n")
	buf.WriteString("\t\"github.com/dekarrin/sturgeon/internal/peg/token\"\n")
	buf.WriteString(")\n\n")
}

func goMapLiteral(name string, set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "var %s = map[string]bool{\n", name)
	for _, k := range keys {
		fmt.Fprintf(&b, "\t%q: true,\n", k)
	}
	b.WriteString("}\n\n")
	return b.String()
}

func (gen *generator) writeTables(buf *bytes.Buffer) {
	buf.WriteString("// Parser is the runtime base type generated rule procedures are methods on.\n")
	buf.WriteString("type Parser = runtime.Parser\n\n")

	buf.WriteString(goMapLiteral("hardKeywords", gen.hardKW))
	buf.WriteString(goMapLiteral("softKeywords", gen.softKW))
	buf.WriteString(goMapLiteral("operatorSpellings", gen.operators))

	buf.WriteString("// NewParser constructs a parser over s using this grammar's keyword and\n")
	buf.WriteString("// operator tables.\n")
	buf.WriteString("func NewParser(s *stream.Stream, filename string) *Parser {\n")
	buf.WriteString("\treturn runtime.NewParser(s, filename, hardKeywords, softKeywords, operatorSpellings)\n")
	buf.WriteString("}\n\n")

	buf.WriteString("const (\n")
	for _, r := range gen.grammar.Rules() {
		fmt.Fprintf(buf, "\truleID_%s = %d\n", goRuleName(r.Name), r.RuleID)
	}
	buf.WriteString(")\n\n")
}

// goRuleName sanitizes a grammar rule name into a legal Go identifier
// fragment; synthetic names already are legal Go identifiers (leading
// underscore, alnum), so this mainly guards user rule names that happen to
// collide with Go keywords by suffixing an underscore.
func goRuleName(name string) string {
	if goKeywords[name] {
		return name + "_"
	}
	return name
}

var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

func (gen *generator) shouldMemoize(r *ir.Rule) bool {
	if r.Leader {
		return true // always goes through MemoizeLeftRec regardless
	}
	switch gen.opts.Memoize {
	case "all":
		return true
	case "none":
		return false
	default: // "auto"
		return r.Memoize || r.LeftRecursive
	}
}

func (gen *generator) entryRuleName() (string, error) {
	if _, ok := gen.grammar.Rule("start"); ok {
		return "start", nil
	}
	if v, ok := gen.grammar.Metas["trailer"]; ok && v != nil {
		if _, ruleOK := gen.grammar.Rule(*v); ruleOK {
			return *v, nil
		}
		return "", diag.NewGrammarError("", "@trailer names %q, which is not a rule in this grammar", *v)
	}
	return "", diag.NewGrammarError("", "grammar has neither a 'start' rule nor a usable @trailer meta-directive")
}

func (gen *generator) writeEntryPoints(buf *bytes.Buffer) {
	entry, err := gen.entryRuleName()
	if err != nil {
		fmt.Fprintf(buf, "// entry point error: %s\n", err)
		return
	}

	fmt.Fprintf(buf, "// Start invokes the grammar's entry rule (%q).\n", entry)
	buf.WriteString("func Start(p *Parser) (interface{}, bool, error) {\n")
	fmt.Fprintf(buf, "\treturn p.rule_%s()\n", goRuleName(entry))
	buf.WriteString("}\n\n")

	buf.WriteString("// ParseString constructs a parser over source using tok as the token\n")
	buf.WriteString("// producer and runs the grammar's entry rule, raising a SyntaxError at\n")
	buf.WriteString("// the furthest-reached position if the entry rule fails to match.\n")
	buf.WriteString("func ParseString(tok token.Producer, source, filename string) (interface{}, error) {\n")
	buf.WriteString("\ts := stream.FromText(tok, filename, source)\n")
	buf.WriteString("\tp := NewParser(s, filename)\n")
	buf.WriteString("\tv, ok, err := Start(p)\n")
	buf.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	buf.WriteString("\tif !ok {\n\t\treturn nil, p.SyntaxErrorAtFurthest()\n\t}\n")
	buf.WriteString("\treturn v, nil\n")
	buf.WriteString("}\n\n")

	buf.WriteString("// ParseFile is like ParseString but reads source_line diagnostics lazily\n")
	buf.WriteString("// from path instead of from an in-memory copy of the text.\n")
	buf.WriteString("func ParseFile(tok token.Producer, path string) (interface{}, error) {\n")
	buf.WriteString("\ts := stream.FromProducer(tok, path)\n")
	buf.WriteString("\tp := NewParser(s, path)\n")
	buf.WriteString("\tv, ok, err := Start(p)\n")
	buf.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	buf.WriteString("\tif !ok {\n\t\treturn nil, p.SyntaxErrorAtFurthest()\n\t}\n")
	buf.WriteString("\treturn v, nil\n")
	buf.WriteString("}\n")
}
