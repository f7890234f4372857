package generation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardBeginIsMonotonic(t *testing.T) {
	var g Guard
	prev := g.Begin()
	for i := 0; i < 100; i++ {
		next := g.Begin()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestGuardSupersededTokenIsNotCurrent(t *testing.T) {
	var g Guard
	g1 := g.Begin()
	assert.True(t, g.IsCurrent(g1))

	g2 := g.Begin()
	assert.False(t, g.IsCurrent(g1))
	assert.True(t, g.IsCurrent(g2))
}

func TestGuardZeroTokenNeverCurrent(t *testing.T) {
	var g Guard
	assert.False(t, g.IsCurrent(0))
	assert.False(t, g.Do(0, func() { t.Fatal("must not run") }))
}

func TestGuardDoSkipsStaleToken(t *testing.T) {
	var g Guard
	g1 := g.Begin()
	g2 := g.Begin()

	ran := false
	assert.False(t, g.Do(g1, func() { ran = true }))
	assert.False(t, ran)

	assert.True(t, g.Do(g2, func() { ran = true }))
	assert.True(t, ran)
}

func TestGuardConcurrentBeginUnique(t *testing.T) {
	var g Guard
	var mu sync.Mutex
	seen := make(map[Token]bool)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok := g.Begin()
			mu.Lock()
			seen[tok] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestKeyedIndependentKeys(t *testing.T) {
	var k Keyed[int]
	a := k.Begin(1)
	b := k.Begin(2)

	assert.True(t, k.IsCurrent(1, a))
	assert.True(t, k.IsCurrent(2, b))
	assert.False(t, k.IsCurrent(1, b))

	a2 := k.Begin(1)
	assert.False(t, k.IsCurrent(1, a))
	assert.True(t, k.IsCurrent(1, a2))
	assert.True(t, k.IsCurrent(2, b), "other keys unaffected")
}

func TestKeyedDoneOnlyReleasesCurrent(t *testing.T) {
	var k Keyed[int]
	old := k.Begin(7)
	cur := k.Begin(7)

	k.Done(7, old)
	assert.Equal(t, 1, k.Len())
	assert.True(t, k.IsCurrent(7, cur))

	k.Done(7, cur)
	assert.Equal(t, 0, k.Len())
	assert.False(t, k.IsCurrent(7, cur))
}

func TestKeyedDo(t *testing.T) {
	var k Keyed[string]
	tok := k.Begin("a")
	ran := k.Do("a", tok, func() {})
	assert.True(t, ran)
	assert.False(t, k.Do("b", tok, func() {}))
}
