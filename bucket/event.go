package bucket

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/strata/entity"
)

// Event is something that happened to an entity inside a bucket. Observers
// only ever emit Appear, Disappear, Move, Rotate and RotateHead; MoveAway and
// MoveInto are bucket-level events they translate.
type Event interface {
	Entity() entity.ID
}

// Appear makes an entity visible.
type Appear struct {
	Handle   entity.Handle
	Position mgl64.Vec3
}

// Disappear hides an entity.
type Disappear struct {
	ID entity.ID
}

// Move moves a visible entity by Delta.
type Move struct {
	ID    entity.ID
	Delta mgl64.Vec3
}

// MoveAway is published in the bucket an entity left.
type MoveAway struct {
	ID entity.ID
	To Coords
}

// MoveInto is published in the bucket an entity entered.
type MoveInto struct {
	Handle   entity.Handle
	Position mgl64.Vec3
	From     Coords
	Delta    mgl64.Vec3
}

// Rotate changes an entity's body rotation.
type Rotate struct {
	ID         entity.ID
	Yaw, Pitch float64
}

// RotateHead changes an entity's head yaw.
type RotateHead struct {
	ID  entity.ID
	Yaw float64
}

func (e Appear) Entity() entity.ID     { return e.Handle.ID }
func (e Disappear) Entity() entity.ID  { return e.ID }
func (e Move) Entity() entity.ID       { return e.ID }
func (e MoveAway) Entity() entity.ID   { return e.ID }
func (e MoveInto) Entity() entity.ID   { return e.Handle.ID }
func (e Rotate) Entity() entity.ID     { return e.ID }
func (e RotateHead) Entity() entity.ID { return e.ID }
