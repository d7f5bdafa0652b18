// Package repl implements an interactive grammar tester: run an
// already-built generated parser against typed-in input, and inspect
// individual rules in isolation. It does not load or compile grammar files
// itself. Input is read through a GNU-readline-backed
// reader when attached to a real terminal, falling back to a plain buffered
// reader otherwise.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	shellwords "github.com/kballard/go-shellquote"
	"github.com/mattn/go-isatty"

	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

// CommandReader is the minimal surface repl needs from an input source,
// mirroring internal/input's DirectCommandReader/InteractiveCommandReader
// pair so the REPL doesn't care which one it was handed.
type CommandReader interface {
	ReadCommand() (string, error)
	Close() error
}

type directReader struct {
	r *bufio.Reader
}

func (d *directReader) ReadCommand() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (d *directReader) Close() error { return nil }

type interactiveReader struct {
	rl *readline.Instance
}

func (i *interactiveReader) ReadCommand() (string, error) {
	line, err := i.rl.Readline()
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (i *interactiveReader) Close() error { return i.rl.Close() }

// newReader picks readline-backed input when stdin/stdout are both real
// terminals and forceDirect was not requested, otherwise a plain buffered
// reader, the same decision internal/input's caller (engine.New) makes by
// comparing streams to os.Stdin/os.Stdout — here made explicit via isatty
// since in and out need not be the process's own stdio.
func newReader(in *os.File, out *os.File, forceDirect bool) (CommandReader, error) {
	if !forceDirect && isatty.IsTerminal(in.Fd()) && isatty.IsTerminal(out.Fd()) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt: "sturgeon> ",
			Stdin:  in,
			Stdout: out,
		})
		if err != nil {
			return nil, fmt.Errorf("initializing interactive-mode input reader: %w", err)
		}
		return &interactiveReader{rl: rl}, nil
	}
	return &directReader{r: bufio.NewReader(in)}, nil
}

// Generated is the subset of a generated parser package's surface the REPL
// drives: a whole-input entry point and a lookup of the other per-rule
// entry points exposed for ":rule NAME" testing.
type Generated struct {
	// ParseString runs the grammar's designated start/trailer rule.
	ParseString func(text, filename string) (interface{}, error)

	// Rules maps a grammar rule name to a function that runs just that
	// rule's entry point against text, for isolated debugging.
	Rules map[string]func(text, filename string) (interface{}, bool, error)
}

// Session runs an interactive or piped command loop over a Generated
// parser built from grammar.
type Session struct {
	reader    CommandReader
	out       io.Writer
	generated Generated
	grammar   *ir.Grammar
}

// New constructs a Session. forceDirect disables readline even when in/out
// are terminals.
func New(in, out *os.File, forceDirect bool, generated Generated, grammar *ir.Grammar) (*Session, error) {
	reader, err := newReader(in, out, forceDirect)
	if err != nil {
		return nil, err
	}
	return &Session{reader: reader, out: out, generated: generated, grammar: grammar}, nil
}

// Close releases any readline resources held by the session.
func (s *Session) Close() error {
	return s.reader.Close()
}

const help = `commands:
  :parse TEXT       run the grammar's start rule against TEXT
  :rule NAME TEXT   run a single named rule against TEXT
  :rules            list the grammar's rule names
  :help             show this message
  :quit             exit
any other line is treated as ":parse LINE"
`

// Run reads commands until ReadCommand returns io.EOF or a ":quit" command
// is entered.
func (s *Session) Run() error {
	fmt.Fprint(s.out, "sturgeon grammar tester -- type :help for commands\n")
	for {
		line, err := s.reader.ReadCommand()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, ":") {
			line = ":parse " + line
		}

		words, err := shellwords.Split(line[1:])
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}

		switch words[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprint(s.out, help)
		case "rules":
			s.printRules()
		case "parse":
			s.doParse(strings.Join(words[1:], " "))
		case "rule":
			if len(words) < 2 {
				fmt.Fprint(s.out, "error: :rule requires a rule name\n")
				continue
			}
			s.doRule(words[1], strings.Join(words[2:], " "))
		default:
			fmt.Fprintf(s.out, "error: unknown command %q (:help for a list)\n", words[0])
		}
	}
}

func (s *Session) printRules() {
	for _, r := range s.grammar.Rules() {
		fmt.Fprintf(s.out, "  %s\n", r.Name)
	}
}

func (s *Session) doParse(text string) {
	val, err := s.generated.ParseString(text, "<repl>")
	if err != nil {
		s.reportError(err)
		return
	}
	fmt.Fprintf(s.out, "=> %#v\n", val)
}

func (s *Session) doRule(name, text string) {
	rule, ok := s.generated.Rules[name]
	if !ok {
		fmt.Fprintf(s.out, "error: no such rule %q\n", name)
		return
	}
	val, matched, err := rule(text, "<repl>")
	if err != nil {
		s.reportError(err)
		return
	}
	if !matched {
		fmt.Fprintf(s.out, "no match\n")
		return
	}
	fmt.Fprintf(s.out, "=> %#v\n", val)
}

// reporter is implemented by *diag.SyntaxError and its IndentationError/
// ForcedError subtypes (Report is promoted from the embedded SyntaxError).
type reporter interface {
	Error() string
	Report(width int) string
}

func (s *Session) reportError(err error) {
	if rep, ok := err.(reporter); ok {
		fmt.Fprint(s.out, rep.Report(80))
		fmt.Fprintln(s.out)
		return
	}
	fmt.Fprintf(s.out, "error: %v\n", err)
}
