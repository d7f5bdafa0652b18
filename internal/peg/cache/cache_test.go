package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dekarrin/sturgeon/internal/peg/ir"
)

func grammarWith(ruleNames ...string) *ir.Grammar {
	g := ir.NewGrammar()
	for i, name := range ruleNames {
		r := &ir.Rule{
			Name: name,
			Rhs:  &ir.Rhs{Alts: []*ir.Alt{ir.NewAlt(&ir.NamedItem{Item: ir.NameLeaf{Name: "NAME"}})}},
		}
		r.RuleID = i + 1
		_ = g.AddRule(r)
	}
	return g
}

func Test_HashSource_StableAndDistinct(t *testing.T) {
	assert := assert.New(t)

	a := HashSource("start : NAME ;")
	b := HashSource("start : NAME ;")
	c := HashSource("start : NUMBER ;")

	assert.Equal(a, b)
	assert.NotEqual(a, c)
}

func Test_Build_Encode_Decode_RoundTrip(t *testing.T) {
	assert := assert.New(t)

	g := grammarWith("start", "expr")
	start, _ := g.Rule("start")
	start.LeftRecursive = true
	start.Leader = true

	snap := Build(g, "start : expr ;")
	data := Encode(snap)

	got, err := Decode(data)
	assert.NoError(err)
	assert.Equal(snap.SourceHash, got.SourceHash)
	assert.Equal(snap.RuleNames, got.RuleNames)
	assert.Equal(snap.RuleIDs, got.RuleIDs)
	assert.Equal(snap.LeftRecursive, got.LeftRecursive)
	assert.Equal(snap.Leader, got.Leader)
}

func Test_Decode_RejectsMismatchedFormatVersion(t *testing.T) {
	assert := assert.New(t)

	snap := Snapshot{Version: formatVersion + 1, SourceHash: "deadbeef"}
	data := Encode(snap)

	_, err := Decode(data)
	assert.Error(err)
}

func Test_Apply_RestoresAnalysisFields(t *testing.T) {
	assert := assert.New(t)

	g := grammarWith("start", "expr")
	snap := Snapshot{
		Version:       formatVersion,
		RuleNames:     []string{"start", "expr"},
		RuleIDs:       []int{7, 8},
		LeftRecursive: []bool{true, false},
		Leader:        []bool{true, false},
	}

	assert.NoError(Apply(g, snap))

	start, _ := g.Rule("start")
	expr, _ := g.Rule("expr")
	assert.Equal(7, start.RuleID)
	assert.True(start.LeftRecursive)
	assert.True(start.Leader)
	assert.Equal(8, expr.RuleID)
	assert.False(expr.LeftRecursive)
	assert.False(expr.Leader)
}

func Test_Apply_RejectsRuleCountMismatch(t *testing.T) {
	assert := assert.New(t)

	g := grammarWith("start")
	snap := Snapshot{
		Version:   formatVersion,
		RuleNames: []string{"start", "expr"},
		RuleIDs:   []int{1, 2},
	}

	err := Apply(g, snap)
	assert.Error(err)
}

func Test_Apply_RejectsRuleOrderMismatch(t *testing.T) {
	assert := assert.New(t)

	g := grammarWith("start", "expr")
	snap := Snapshot{
		Version:   formatVersion,
		RuleNames: []string{"expr", "start"},
		RuleIDs:   []int{1, 2},
	}

	err := Apply(g, snap)
	assert.Error(err)
}
