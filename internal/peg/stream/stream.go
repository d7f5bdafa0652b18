// Package stream implements the caching, mark/reset token stream that
// generated parsers run over. It wraps a token.Producer,
// retains every pulled token in an append-only buffer, applies a relevance
// filter at intake, and exposes peek/advance plus mark/reset for
// backtracking.
package stream

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/token"
	"golang.org/x/text/width"
)

// Stream is a lazy, random-access view over a token.Producer.
//
// It is not safe for concurrent use;
// stream exclusively.
type Stream struct {
	producer token.Producer
	buf      []token.Token
	pos      int
	done     bool
	filename string
	lines    []string // non-nil when constructed FromText with lines pre-split
}

// FromProducer wraps an arbitrary token.Producer. source_line falls back to reading filename from disk on demand.
func FromProducer(p token.Producer, filename string) *Stream {
	return &Stream{producer: p, filename: filename}
}

// FromText wraps p but serves SourceLine from the in-memory text instead of
// touching disk.
func FromText(p token.Producer, filename, text string) *Stream {
	return &Stream{producer: p, filename: filename, lines: strings.Split(text, "\n")}
}

// relevant applies the intake filter: drops non-logical newlines
// (token.NL), comments, and error tokens whose text is
// pure whitespace. It also collapses a consecutive pair of logical newlines
// by reporting whether this token should be dropped given the last kept
// token's kind.
func relevant(t token.Token, lastKind token.Kind, haveLast bool) bool {
	switch t.Kind {
	case token.NL, token.COMMENT:
		return false
	case token.ERRTOK:
		if strings.TrimSpace(t.Text) == "" {
			return false
		}
	case token.NEWLINE:
		if haveLast && lastKind == token.NEWLINE {
			return false
		}
	}
	return true
}

// pull reads from the producer until a relevant token is buffered. An
// ENDMARKER supplied by the producer is always buffered and sets done; a
// producer error is returned wrapped as a diag.TokenizerError.
func (s *Stream) pull() error {
	for {
		var lastKind token.Kind
		haveLast := len(s.buf) > 0
		if haveLast {
			lastKind = s.buf[len(s.buf)-1].Kind
		}

		t, err := s.producer.Next()
		if err != nil {
			return diag.WrapTokenizerError(err)
		}

		if relevant(t, lastKind, haveLast) {
			s.buf = append(s.buf, t)
			if t.Kind == token.ENDMARKER {
				s.done = true
			}
			return nil
		}
		if t.Kind == token.ENDMARKER {
			s.buf = append(s.buf, t)
			s.done = true
			return nil
		}
		// dropped token; loop and pull again
	}
}

// ensure guarantees buf has at least pos+1 entries, pulling as needed.
func (s *Stream) ensure(idx int) error {
	for len(s.buf) <= idx {
		if s.done {
			// producer exhausted and didn't end with ENDMARKER somehow;
			// synthesize one so peek/advance never index out of range.
			s.buf = append(s.buf, token.Token{Kind: token.ENDMARKER})
			continue
		}
		if err := s.pull(); err != nil {
			return err
		}
	}
	return nil
}

// Peek returns the token at the current index without advancing.
func (s *Stream) Peek() (token.Token, error) {
	if err := s.ensure(s.pos); err != nil {
		return token.Token{}, err
	}
	return s.buf[s.pos], nil
}

// Advance returns the token at the current index and increments it.
func (s *Stream) Advance() (token.Token, error) {
	t, err := s.Peek()
	if err != nil {
		return t, err
	}
	s.pos++
	return t, nil
}

// Mark returns the current index.
func (s *Stream) Mark() int { return s.pos }

// Reset restores the current index to i, which must be in [0, len(buf)].
func (s *Stream) Reset(i int) {
	if i < 0 {
		i = 0
	}
	if i > len(s.buf) {
		i = len(s.buf)
	}
	s.pos = i
}

// BufLen returns the number of tokens cached so far (test hook for the
// mark/reset round-trip property).
func (s *Stream) BufLen() int { return len(s.buf) }

// At returns the buffered token at index i; i must already have been
// reached via Peek/Advance/ensure. Used by diagnostics reporting the
// furthest-advanced mark.
func (s *Stream) At(i int) token.Token {
	if i < 0 || i >= len(s.buf) {
		return token.Token{}
	}
	return s.buf[i]
}

// LastNonWhitespace returns the most recent token strictly before the
// current index whose kind is not whitespace-like.
func (s *Stream) LastNonWhitespace() (token.Token, bool) {
	for i := s.pos - 1; i >= 0; i-- {
		if i >= len(s.buf) {
			continue
		}
		if !token.IsWhitespaceLike(s.buf[i].Kind) {
			return s.buf[i], true
		}
	}
	return token.Token{}, false
}

// SourceLine returns the n-th (1-indexed) source line, reading from disk on
// demand if the stream was not constructed from in-memory text. The file
// handle, if one is opened, is released before this function returns on
// every path.
func (s *Stream) SourceLine(n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid line number %d", n)
	}
	if s.lines != nil {
		if n-1 < len(s.lines) {
			return s.lines[n-1], nil
		}
		return "", nil
	}
	if s.filename == "" {
		return "", nil
	}

	f, err := os.Open(s.filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if line == n {
			return sc.Text(), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", nil
}

// DisplayWidth returns the terminal column width of s, accounting for
// East-Asian wide and fullwidth runes, so diagnostic carets (internal/peg
// /diag) land under the correct rune.
func DisplayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}
