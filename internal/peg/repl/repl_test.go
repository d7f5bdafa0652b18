package repl

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/sturgeon/internal/peg/diag"
	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

func testGrammar() *ir.Grammar {
	g := ir.NewGrammar()
	_ = g.AddRule(&ir.Rule{Name: "start", Rhs: &ir.Rhs{Alts: []*ir.Alt{
		ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}}),
	}}})
	return g
}

func testGenerated() Generated {
	return Generated{
		ParseString: func(text, filename string) (interface{}, error) {
			if text == "bad" {
				return nil, &diag.SyntaxError{Filename: filename, Message: "unexpected token", Line: 1, Offset: 1, Text: text}
			}
			return text, nil
		},
		Rules: map[string]func(text, filename string) (interface{}, bool, error){
			"start": func(text, filename string) (interface{}, bool, error) {
				if text == "" {
					return nil, false, nil
				}
				return text, true, nil
			},
		},
	}
}

// runSession feeds commandScript (one command per line) to a forceDirect
// Session and returns everything written to its output.
func runSession(t *testing.T, commandScript string) string {
	t.Helper()

	inR, inW, err := os.Pipe()
	assert.NoError(t, err)
	outR, outW, err := os.Pipe()
	assert.NoError(t, err)

	captured := make(chan []byte, 1)
	go func() {
		data, _ := io.ReadAll(outR)
		captured <- data
	}()

	sess, err := New(inR, outW, true, testGenerated(), testGrammar())
	assert.NoError(t, err)

	_, err = inW.WriteString(commandScript)
	assert.NoError(t, err)
	assert.NoError(t, inW.Close())

	assert.NoError(t, sess.Run())
	assert.NoError(t, outW.Close())

	return string(<-captured)
}

func Test_Session_Help(t *testing.T) {
	out := runSession(t, ":help\n")
	assert.Contains(t, out, ":parse TEXT")
	assert.Contains(t, out, ":quit")
}

func Test_Session_Rules_ListsGrammarRuleNames(t *testing.T) {
	out := runSession(t, ":rules\n")
	assert.Contains(t, out, "start")
}

func Test_Session_BareLineIsTreatedAsParse(t *testing.T) {
	out := runSession(t, "hello world\n")
	assert.Contains(t, out, `"hello world"`)
}

func Test_Session_ParseReportsSyntaxError(t *testing.T) {
	out := runSession(t, ":parse bad\n")
	assert.Contains(t, out, "unexpected token")
}

func Test_Session_RuleCommand_RunsNamedRuleInIsolation(t *testing.T) {
	out := runSession(t, ":rule start hi\n")
	assert.Contains(t, out, `"hi"`)
}

func Test_Session_RuleCommand_UnknownRuleName(t *testing.T) {
	out := runSession(t, ":rule nope hi\n")
	assert.Contains(t, out, `no such rule "nope"`)
}

func Test_Session_RuleCommand_MissingArgument(t *testing.T) {
	out := runSession(t, ":rule\n")
	assert.Contains(t, out, ":rule requires a rule name")
}

func Test_Session_UnknownCommand(t *testing.T) {
	out := runSession(t, ":bogus\n")
	assert.Contains(t, out, `unknown command "bogus"`)
}

func Test_Session_QuitStopsTheLoop(t *testing.T) {
	out := runSession(t, ":quit\n:rules\n")
	assert.NotContains(t, out, "start", "commands after :quit must never run")
}

func Test_Session_EmptyLinesAreSkipped(t *testing.T) {
	out := runSession(t, "\n\n:help\n")
	assert.Contains(t, strings.TrimSpace(out), ":help")
}
