package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces deterministic, zero-padded identifiers so that lexical order
// follows generation order.
type IDGenerator struct {
	mu      sync.Mutex
	prefix  string
	counter uint64
}

// NewIDGenerator yields identifiers with the given prefix, "id" when empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("%s-%04d", g.prefix, g.counter)
}

// NextFunc exposes Next for dependency injection.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued reports how many identifiers were generated.
func (g *IDGenerator) Issued() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counter
}

// Reset restarts the sequence under a new prefix.
func (g *IDGenerator) Reset(prefix string) {
	g.mu.Lock()
	if prefix != "" {
		g.prefix = prefix
	}
	g.counter = 0
	g.mu.Unlock()
}
