package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Grammar_AddRule(t *testing.T) {
	testCases := []struct {
		name      string
		existing  []string
		add       string
		expectErr bool
	}{
		{name: "first rule", existing: nil, add: "start", expectErr: false},
		{name: "second distinct rule", existing: []string{"start"}, add: "expr", expectErr: false},
		{name: "duplicate name", existing: []string{"start"}, add: "start", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			g := NewGrammar()
			for _, name := range tc.existing {
				assert.NoError(g.AddRule(&Rule{Name: name, Rhs: &Rhs{Alts: []*Alt{NewAlt()}}}))
			}

			err := g.AddRule(&Rule{Name: tc.add, Rhs: &Rhs{Alts: []*Alt{NewAlt()}}})
			if tc.expectErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
				r, ok := g.Rule(tc.add)
				assert.True(ok)
				assert.Equal(tc.add, r.Name)
			}
		})
	}
}

func Test_Grammar_Rules_PreservesInsertionOrder(t *testing.T) {
	assert := assert.New(t)

	g := NewGrammar()
	names := []string{"start", "expr", "term", "atom"}
	for _, n := range names {
		assert.NoError(g.AddRule(&Rule{Name: n, Rhs: &Rhs{Alts: []*Alt{NewAlt()}}}))
	}

	var got []string
	for _, r := range g.Rules() {
		got = append(got, r.Name)
	}
	assert.Equal(names, got)
	assert.Equal(len(names), g.Len())
}

func Test_Grammar_SetMeta_And_HasTrailer(t *testing.T) {
	assert := assert.New(t)

	g := NewGrammar()
	assert.False(g.HasTrailer())

	val := "file_input"
	g.SetMeta("trailer", &val)
	assert.True(g.HasTrailer())

	g.SetMeta("subheader", nil)
	v, ok := g.Metas["subheader"]
	assert.True(ok)
	assert.Nil(v)
}

func Test_Rule_IsSynthetic_IsLoop_IsGather(t *testing.T) {
	testCases := []struct {
		name         string
		ruleName     string
		expSynthetic bool
		expLoop      bool
		expGather    bool
	}{
		{name: "user rule", ruleName: "start", expSynthetic: false, expLoop: false, expGather: false},
		{name: "loop0 helper", ruleName: "_loop0_1", expSynthetic: true, expLoop: true, expGather: false},
		{name: "loop1 helper", ruleName: "_loop1_2", expSynthetic: true, expLoop: true, expGather: false},
		{name: "gather helper", ruleName: "_gather_3", expSynthetic: true, expLoop: false, expGather: true},
		{name: "tmp group helper", ruleName: "_tmp_4", expSynthetic: true, expLoop: false, expGather: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			r := &Rule{Name: tc.ruleName}
			assert.Equal(tc.expSynthetic, r.IsSynthetic())
			assert.Equal(tc.expLoop, r.IsLoop())
			assert.Equal(tc.expGather, r.IsGather())
		})
	}
}
