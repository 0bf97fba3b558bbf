// Package identity generates history entry ids.
package identity

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/doeshing/pmpilot/internal/ports"
)

// UUIDGenerator issues random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.New().String() }

// SequenceGenerator issues prefix-1, prefix-2, ... for tests.
type SequenceGenerator struct {
	Prefix string

	mu sync.Mutex
	n  int
}

func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "entry"
	}
	return fmt.Sprintf("%s-%d", prefix, g.n)
}

var (
	_ ports.IDGenerator = UUIDGenerator{}
	_ ports.IDGenerator = (*SequenceGenerator)(nil)
)
