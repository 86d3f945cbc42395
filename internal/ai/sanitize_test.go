package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeBalanced(t *testing.T) {
	in := `{"a": 1, "b": [1,2,3]}`
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitizeUnclosedBrace(t *testing.T) {
	out := Sanitize(`{"a": 1`)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestSanitizeUnclosedBracketAndBrace(t *testing.T) {
	out := Sanitize(`{"a": [1, 2`)
	assert.Equal(t, `{"a": [1, 2]}`, out)
}

func TestSanitizeUnterminatedString(t *testing.T) {
	out := Sanitize(`{"a": "b`)
	assert.Equal(t, `{"a": "b"}`, out)
}

func TestSanitizeDropsUnmatchedCloser(t *testing.T) {
	out := Sanitize(`{"a": 1}}`)
	assert.Equal(t, `{"a": 1}`, out)
}

func TestSanitizeIgnoresBracesInsideStrings(t *testing.T) {
	in := `{"a": "{not a brace}"}`
	assert.Equal(t, in, Sanitize(in))
}

func TestSanitizeHandlesEscapedQuote(t *testing.T) {
	in := `{"a": "say \"hi\""}`
	assert.Equal(t, in, Sanitize(in))
}
