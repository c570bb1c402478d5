package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroValueIsZero(t *testing.T) {
	var a Address
	assert.True(t, a.Zero())
}

func TestAllocatorNeverReturnsZero(t *testing.T) {
	var alloc Allocator
	for i := 0; i < 5; i++ {
		got := alloc.Next()
		assert.False(t, got.Zero())
	}
}

func TestAllocatorMonotonicAndUnique(t *testing.T) {
	var alloc Allocator
	seen := make(map[Address]bool)
	for i := 0; i < 100; i++ {
		a := alloc.Next()
		assert.False(t, seen[a], "address %v allocated twice", a)
		seen[a] = true
	}
}

func TestTokenStable(t *testing.T) {
	var alloc Allocator
	a := alloc.Next()
	assert.Equal(t, a.Token(), a.Token())
	assert.Equal(t, a.String(), a.Token())
}

func TestDistinctAddressesHaveDistinctTokens(t *testing.T) {
	var alloc Allocator
	a := alloc.Next()
	b := alloc.Next()
	assert.NotEqual(t, a.Token(), b.Token())
}
