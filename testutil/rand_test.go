package testutil

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomAlphaNum(t *testing.T) {
	_, err := RandomAlphaNum(0)
	require.Error(t, err)

	s, err := RandomAlphaNum(8)
	require.NoError(t, err)
	assert.Len(t, s, 8)
}

func TestRandomOwner(t *testing.T) {
	owner := RandomOwner()
	b, err := hex.DecodeString(owner)
	require.NoError(t, err)
	assert.Len(t, b, 32)
	assert.NotEqual(t, owner, RandomOwner())
}

func TestRandomAmount(t *testing.T) {
	for range 100 {
		v := RandomAmount(10, 20)
		assert.GreaterOrEqual(t, v, uint64(10))
		assert.LessOrEqual(t, v, uint64(20))
	}
}
