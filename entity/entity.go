// Package entity holds the identity of entities tracked by the world.
package entity

import (
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// ID is the runtime id of an entity, unique for the lifetime of a process.
type ID uint32

// Handle identifies an entity to observers.
type Handle struct {
	ID   ID
	UUID uuid.UUID
	Type string
}

// IDGenerator hands out entity ids. The zero value starts at 1.
type IDGenerator struct {
	next atomic.Uint32
}

// Next returns an id that has not been returned before.
func (g *IDGenerator) Next() ID {
	return ID(g.next.Inc())
}

// NewHandle returns a handle with a fresh id and a random UUID.
func (g *IDGenerator) NewHandle(typ string) Handle {
	return Handle{ID: g.Next(), UUID: uuid.New(), Type: typ}
}
