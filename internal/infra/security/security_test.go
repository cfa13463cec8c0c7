package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.Error(t, h.Compare(hash, "wrong horse"))
	assert.False(t, h.NeedsRehash(hash))
	assert.True(t, BcryptHasher{Cost: 5}.NeedsRehash(hash))

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}

func TestRandomTokenGenerator(t *testing.T) {
	g := RandomTokenGenerator{}
	a, err := g.NewToken()
	require.NoError(t, err)
	b, err := g.NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, SessionTokenPrefix))
	assert.True(t, LooksLikeToken(a))
	assert.False(t, LooksLikeToken("bogus"))
	assert.False(t, LooksLikeToken(SessionTokenPrefix+"short"))
}
