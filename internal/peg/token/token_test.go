package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_IsWhitespaceLike(t *testing.T) {
	testCases := []struct {
		name string
		kind Kind
		want bool
	}{
		{"newline", NEWLINE, true},
		{"indent", INDENT, true},
		{"dedent", DEDENT, true},
		{"endmarker", ENDMARKER, true},
		{"name", NAME, false},
		{"op", OP, false},
		{"comment", COMMENT, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tc.want, IsWhitespaceLike(tc.kind))
		})
	}
}

func Test_Position_String(t *testing.T) {
	assert := assert.New(t)
	p := Position{Line: 3, Col: 7}
	assert.Equal("3:7", p.String())
}

func Test_Token_String(t *testing.T) {
	assert := assert.New(t)
	tok := Token{Kind: NAME, Text: "foo", Start: Position{Line: 1, Col: 1}}
	assert.Equal(`NAME "foo" @ 1:1`, tok.String())
}

func Test_ProducerFunc_AdaptsFunctionToProducer(t *testing.T) {
	assert := assert.New(t)

	calls := 0
	var p Producer = ProducerFunc(func() (Token, error) {
		calls++
		if calls == 1 {
			return Token{Kind: NAME, Text: "x"}, nil
		}
		return Token{}, errors.New("exhausted")
	})

	tok, err := p.Next()
	assert.NoError(err)
	assert.Equal(NAME, tok.Kind)

	_, err = p.Next()
	assert.Error(err)
}
