package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	assert.True(t, IsValidAddress("0x1"))
	assert.True(t, IsValidAddress("0x049D36570D4e46f48e99674bd3fcc84644DdD6b96F7C741B1562B82f9e004dC7"))
	assert.True(t, IsValidAddress("0x"+strings.Repeat("f", 64)))

	assert.False(t, IsValidAddress(""))
	assert.False(t, IsValidAddress("0x"))
	assert.False(t, IsValidAddress("049d36"))
	assert.False(t, IsValidAddress("0xZZ"))
	assert.False(t, IsValidAddress("0x"+strings.Repeat("f", 65)))
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabc", NormalizeAddress("0xABC"))
	assert.Equal(t, "0xabc", NormalizeAddress("0x000abc"))
	assert.Equal(t, "0xabc", NormalizeAddress("  0x0ABC "))
	assert.Equal(t, "0x0", NormalizeAddress("0x0000"))
	assert.Equal(t, NormalizeAddress("0x0ABC"), NormalizeAddress("0xabc"))
}
