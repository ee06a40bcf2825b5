package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenIDIsStable(t *testing.T) {
	token := strings.Repeat("x", 60)

	assert.Equal(t, TokenID(token), TokenID(token))
	assert.Len(t, TokenID(token), 16)
}

func TestTokenIDPartitionsTokens(t *testing.T) {
	a := TokenID(strings.Repeat("a", 60))
	b := TokenID(strings.Repeat("b", 60))

	assert.NotEqual(t, a, b)
}

func TestTokenIDNeverLeaksToken(t *testing.T) {
	token := "MTA5c2VjcmV0.bot.token-value-here-padding-padding"

	assert.NotContains(t, TokenID(token), "secret")
	assert.NotContains(t, token, TokenID(token))
}

func TestBytesToString(t *testing.T) {
	assert.Equal(t, "hello", BytesToString([]byte("hello")))
	assert.Equal(t, "", BytesToString(nil))
}
