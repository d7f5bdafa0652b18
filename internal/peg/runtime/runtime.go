// Package runtime supplies the base procedures a generated parser (see
// internal/peg/codegen) is built on top of: mark/reset, terminal matching,
// lookahead, forced assertions, memoization, and the left-recursion
// seed-growth loop.
package runtime

import (
	"fmt"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/stream"
	"github.com/dekarrin/sturgeon/internal/peg/token"
)

// BuiltinTokenKinds is the set of token-kind names every Expect dispatch
// recognizes directly.
func BuiltinTokenKinds() map[string]bool {
	return map[string]bool{
		string(token.NAME):        true,
		string(token.NUMBER):      true,
		string(token.STRING):      true,
		string(token.NEWLINE):     true,
		string(token.INDENT):      true,
		string(token.DEDENT):      true,
		string(token.ENDMARKER):   true,
		string(token.OP):          true,
		string(token.TYPECOMMENT): true,
	}
}

// Rule is a generated parse procedure: it attempts to match its rule
// starting at the parser's current mark and returns (value, true, nil) on
// success, (nil, false, nil) on an ordinary backtrackable failure, or
// (nil, false, err) when a Forced/Indentation assertion inside it failed —
// that error must propagate without being caught by ordered-choice.
type Rule func(p *Parser) (interface{}, bool, error)

type memoKey struct {
	ruleID int
	start  int
	extra  string
}

type memoEntry struct {
	end   int
	value interface{}
	ok    bool
}

// seedState tracks an in-progress left-recursive leader's seed during
// growth.
type seedState struct {
	end   int
	value interface{}
	ok    bool
}

// Parser is the base object generated parsers embed. It owns the token
// stream and memo table for exactly one parse; it holds no mutable state
// shared across parses.
type Parser struct {
	Stream   *stream.Stream
	Filename string

	// HardKeywords are NAME texts the grammar reserves as keywords
	// (expect() dispatch case 1). SoftKeywords are recognized contextually
	// without being reserved (dispatch case 4).
	HardKeywords map[string]bool
	SoftKeywords map[string]bool

	// Operators maps an operator spelling to the OP kind token it matches
	// (dispatch case 3); the map's keys are the recognized spellings.
	Operators map[string]bool

	memo    map[memoKey]memoEntry
	seeds   map[memoKey]*seedState
	furthest int
}

// NewParser constructs a Parser over s. hardKeywords/softKeywords/operators
// are supplied by the generated parser's static tables.
func NewParser(s *stream.Stream, filename string, hardKeywords, softKeywords, operators map[string]bool) *Parser {
	return &Parser{
		Stream:       s,
		Filename:     filename,
		HardKeywords: hardKeywords,
		SoftKeywords: softKeywords,
		Operators:    operators,
		memo:         make(map[memoKey]memoEntry),
		seeds:        make(map[memoKey]*seedState),
	}
}

// Mark returns the current stream position.
func (p *Parser) Mark() int { return p.Stream.Mark() }

// Reset restores the current stream position to i.
func (p *Parser) Reset(i int) { p.Stream.Reset(i) }

// track records the furthest position the parse has advanced to, for the
// top-level diagnostic.
func (p *Parser) track() {
	if m := p.Stream.Mark(); m > p.furthest {
		p.furthest = m
	}
}

// Expect performs an atomic terminal match: on match it advances the
// stream and returns the token; on failure the stream position is
// unchanged and ok is false.
func (p *Parser) Expect(s string) (token.Token, bool) {
	t, err := p.Stream.Peek()
	if err != nil {
		return token.Token{}, false
	}

	matched := false
	switch {
	case p.HardKeywords[s]:
		matched = t.Kind == token.NAME && t.Text == s
	case BuiltinTokenKinds()[s]:
		matched = string(t.Kind) == s
	case p.Operators[s]:
		matched = t.Kind == token.OP && t.Text == s
	case p.SoftKeywords[s]:
		matched = t.Kind == token.NAME && t.Text == s
	default:
		matched = t.Kind == token.NAME && t.Text == s
	}

	if !matched {
		return token.Token{}, false
	}
	_, _ = p.Stream.Advance()
	p.track()
	return t, true
}

// PositiveLookahead saves the mark, runs f, restores it, and reports
// whether f matched.
func (p *Parser) PositiveLookahead(f Rule) (bool, error) {
	m := p.Mark()
	_, ok, err := f(p)
	p.Reset(m)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// NegativeLookahead is the converse of PositiveLookahead.
func (p *Parser) NegativeLookahead(f Rule) (bool, error) {
	ok, err := p.PositiveLookahead(f)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Forced runs f; on success it returns f's value, on failure it raises a
// diag.ForcedError at the current token's position rather than
// backtracking.
func (p *Parser) Forced(f Rule, expected string) (interface{}, error) {
	v, ok, err := f(p)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}

	t, peekErr := p.Stream.Peek()
	line, col := 0, 0
	var srcLine string
	if peekErr == nil {
		line, col = t.Start.Line, t.Start.Col
		srcLine = t.SourceLine
	}
	return nil, diag.NewForcedError(p.Filename, expected, line, col, srcLine)
}

// Memoize looks up (ruleID, start, key) in the memo table; on a hit it
// restores the saved end mark and returns the saved value, on a miss it
// runs f, records the result, and returns it.
func (p *Parser) Memoize(ruleID int, key string, f Rule) (interface{}, bool, error) {
	start := p.Mark()
	mk := memoKey{ruleID: ruleID, start: start, extra: key}

	if entry, ok := p.memo[mk]; ok {
		p.Reset(entry.end)
		p.track()
		return entry.value, entry.ok, nil
	}

	v, ok, err := f(p)
	if err != nil {
		return nil, false, err
	}

	p.memo[mk] = memoEntry{end: p.Mark(), value: v, ok: ok}
	return v, ok, nil
}

// MemoizeLeftRec implements the seed-growth protocol for a left-recursive
// leader rule: plant a failing seed, then repeatedly re-run f from the
// starting mark, keeping the result only if it advances strictly further
// than the current seed, until a run fails or makes no further progress.
func (p *Parser) MemoizeLeftRec(ruleID int, f Rule) (interface{}, bool, error) {
	start := p.Mark()
	mk := memoKey{ruleID: ruleID, start: start}

	if entry, ok := p.memo[mk]; ok {
		p.Reset(entry.end)
		p.track()
		return entry.value, entry.ok, nil
	}

	if s, inProgress := p.seeds[mk]; inProgress {
		p.Reset(s.end)
		p.track()
		return s.value, s.ok, nil
	}

	seed := &seedState{end: start, ok: false}
	p.seeds[mk] = seed

	for {
		p.Reset(start)
		v, ok, err := f(p)
		if err != nil {
			delete(p.seeds, mk)
			return nil, false, err
		}
		if !ok {
			break
		}
		end := p.Mark()
		if end <= seed.end {
			break
		}
		seed.end = end
		seed.value = v
		seed.ok = true
	}

	delete(p.seeds, mk)
	p.Reset(seed.end)
	p.track()
	p.memo[mk] = memoEntry{end: seed.end, value: seed.value, ok: seed.ok}
	return seed.value, seed.ok, nil
}

// Furthest returns the farthest mark the parse advanced to, used by the
// top-level entry point to build a diagnostic when the whole parse fails.
func (p *Parser) Furthest() int { return p.furthest }

// FurthestToken returns the token at the furthest-reached mark paired with
// the last non-whitespace token preceding it, so a top-level diagnostic
// can point at the last non-whitespace token's location.
func (p *Parser) FurthestToken() (token.Token, token.Token, bool) {
	saved := p.Mark()
	defer p.Reset(saved)

	p.Reset(p.furthest)
	t, err := p.Stream.Peek()
	if err != nil {
		return token.Token{}, token.Token{}, false
	}
	last, haveLast := p.Stream.LastNonWhitespace()
	if !haveLast {
		last = t
	}
	return t, last, true
}

// SyntaxErrorAtFurthest builds the generic top-level diagnostic raised
// when a parse's entry point returns no value.
func (p *Parser) SyntaxErrorAtFurthest() error {
	cur, last, ok := p.FurthestToken()
	if !ok {
		return &diag.SyntaxError{Filename: p.Filename, Message: "syntax error: unexpected end of input"}
	}
	msg := fmt.Sprintf("invalid syntax (unexpected %s)", describeToken(cur))
	return &diag.SyntaxError{
		Filename: p.Filename,
		Message:  msg,
		Line:     last.Start.Line,
		Offset:   last.Start.Col,
		Text:     last.SourceLine,
	}
}

func describeToken(t token.Token) string {
	if t.Kind == token.ENDMARKER {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}
