// Package diag defines the error taxonomy raised by grammar analysis,
// desugaring, generation, and by parsers emitted from a generated grammar.
//
// Errors below the top-level alt of a parse are plain values (a parse
// procedure returning false), never exceptions; only GrammarError,
// SyntaxError (and its IndentationError subtype), and ForcedError unwind.
package diag

import (
	"fmt"

	"github.com/dekarrin/rosed"
)

// GrammarError is raised by the analyses, desugaring, or generator when the
// grammar itself is invalid. It is fatal to generation.
type GrammarError struct {
	Rule    string
	Message string
	wrap    error
}

func (e *GrammarError) Error() string {
	if e.Rule != "" {
		return fmt.Sprintf("grammar error in rule %q: %s", e.Rule, e.Message)
	}
	return fmt.Sprintf("grammar error: %s", e.Message)
}

func (e *GrammarError) Unwrap() error { return e.wrap }

// NewGrammarError returns a GrammarError with rule context.
func NewGrammarError(rule, format string, a ...interface{}) error {
	return &GrammarError{Rule: rule, Message: fmt.Sprintf(format, a...)}
}

// WrapGrammarError wraps an underlying error with rule context.
func WrapGrammarError(err error, rule, format string, a ...interface{}) error {
	return &GrammarError{Rule: rule, Message: fmt.Sprintf(format, a...), wrap: err}
}

// SyntaxError is raised by a parser's top-level entry point, or by a
// user-authored invalid_* production, when a parse fails to produce a
// value. It carries enough structured position data for both CLI and
// library consumers.
type SyntaxError struct {
	Filename  string
	Message   string
	Line      int
	Offset    int
	EndLine   int
	EndOffset int
	Text      string
}

func (e *SyntaxError) Error() string {
	name := e.Filename
	if name == "" {
		name = "<string>"
	}
	return fmt.Sprintf("%s:%d:%d: %s", name, e.Line, e.Offset, e.Message)
}

// Report renders a multi-line diagnostic with the offending source line and
// a caret, word-wrapped to width using rosed.
func (e *SyntaxError) Report(width int) string {
	header := e.Error()
	if width <= 0 {
		width = 80
	}
	wrapped := rosed.Edit(header).Wrap(width).String()
	if e.Text == "" {
		return wrapped
	}
	caretPos := e.Offset - 1
	if caretPos < 0 {
		caretPos = 0
	}
	caret := ""
	if caretPos <= len(e.Text) {
		caret = fmt.Sprintf("%s^", spaces(caretPos))
	}
	return wrapped + "\n" + e.Text + "\n" + caret
}

func spaces(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

// IndentationError is a SyntaxError subtype with a fixed message shape,
// raised when a rule expects INDENT after a colon-terminated header and
// does not find one.
type IndentationError struct {
	SyntaxError
	Header string
}

// NewIndentationError constructs the fixed "expected an indented block"
// message.
func NewIndentationError(filename, header string, line int, textLine string) *IndentationError {
	return &IndentationError{
		SyntaxError: SyntaxError{
			Filename: filename,
			Message:  fmt.Sprintf("expected an indented block after '%s' statement on line %d", header, line),
			Line:     line,
			Offset:   1,
			Text:     textLine,
		},
		Header: header,
	}
}

// ForcedError is raised immediately at a `&&X` site on failure, bypassing
// backtracking entirely.
type ForcedError struct {
	SyntaxError
	Expected string
}

// NewForcedError builds the "expected `expected`" diagnostic a Forced
// assertion raises.
func NewForcedError(filename, expected string, line, col int, textLine string) *ForcedError {
	return &ForcedError{
		SyntaxError: SyntaxError{
			Filename: filename,
			Message:  fmt.Sprintf("expected `%s`", expected),
			Line:     line,
			Offset:   col,
			Text:     textLine,
		},
		Expected: expected,
	}
}

// TokenizerError wraps an error surfaced by the upstream token.Producer
// unchanged; the stream never retries after one.
type TokenizerError struct {
	wrap error
}

func (e *TokenizerError) Error() string { return fmt.Sprintf("tokenizer error: %s", e.wrap) }
func (e *TokenizerError) Unwrap() error { return e.wrap }

// WrapTokenizerError wraps err from the upstream producer.
func WrapTokenizerError(err error) error {
	if err == nil {
		return nil
	}
	return &TokenizerError{wrap: err}
}
