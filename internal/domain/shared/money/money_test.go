package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m, err := New(12345, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, m.Currency)
	assert.Equal(t, "123.45 RUB", m.String())

	_, err = New(1, "euro")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	assert.True(t, Must(0, "usd").IsZero())
}
