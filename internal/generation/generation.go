// Package generation issues monotonic tokens that let multi-step fetches
// detect when a newer request has superseded them.
//
// A sequence calls Begin once, then after every blocking call checks the
// token (or applies its writes through Do) before touching shared state.
// A superseded sequence is never cancelled outright; its effects are simply
// suppressed.
package generation

import "sync"

// Token identifies one issued generation. The zero Token is never current.
type Token uint64

// Guard tracks the latest token for a single logical operation, such as
// "refresh the global ticket list".
type Guard struct {
	mu      sync.Mutex
	current Token
}

// Begin issues a token strictly greater than every earlier one and marks it current.
func (g *Guard) Begin() Token {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	return g.current
}

// IsCurrent reports whether t is still the latest issued token.
func (g *Guard) IsCurrent(t Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return t != 0 && t == g.current
}

// Do runs fn only if t is current, holding the guard so that no Begin can
// interleave between the check and fn's writes. It reports whether fn ran.
func (g *Guard) Do(t Token, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t == 0 || t != g.current {
		return false
	}
	fn()
	return true
}

// Keyed is a family of guards indexed by key, used for per-entity
// operations like refreshing one ticket.
type Keyed[K comparable] struct {
	mu     sync.Mutex
	next   Token
	tokens map[K]Token
}

// Begin issues a new token for key, superseding any earlier one for that key.
// Tokens are globally monotonic across keys.
func (k *Keyed[K]) Begin(key K) Token {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.tokens == nil {
		k.tokens = make(map[K]Token)
	}
	k.next++
	k.tokens[key] = k.next
	return k.next
}

// IsCurrent reports whether t is the latest token for key.
func (k *Keyed[K]) IsCurrent(key K, t Token) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	cur, ok := k.tokens[key]
	return ok && t != 0 && cur == t
}

// Do runs fn only if t is current for key. See Guard.Do.
func (k *Keyed[K]) Do(key K, t Token, fn func()) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if cur, ok := k.tokens[key]; !ok || t == 0 || cur != t {
		return false
	}
	fn()
	return true
}

// Done releases the bookkeeping for key if t is still its current token.
// Later tokens for the same key are unaffected.
func (k *Keyed[K]) Done(key K, t Token) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if cur, ok := k.tokens[key]; ok && cur == t {
		delete(k.tokens, key)
	}
}

// Len returns the number of keys with an outstanding token.
func (k *Keyed[K]) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.tokens)
}
