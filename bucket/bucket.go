// Package bucket tracks entities on a coarse horizontal grid and tells each
// observer which entities appear, move and disappear within its view.
package bucket

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/strata/entity"
	"github.com/oriumgames/strata/internal/queue"
)

// Size is the width of a bucket in blocks.
const Size = 16

// Coords identifies a bucket.
type Coords struct {
	X, Z int32
}

// CoordsOf returns the bucket holding pos.
func CoordsOf(pos mgl64.Vec3) Coords {
	return Coords{X: int32(math.Floor(pos[0] / Size)), Z: int32(math.Floor(pos[2] / Size))}
}

// Within returns every bucket whose offset from c is at most
// ceil(distance/Size) on both axes.
func (c Coords) Within(distance float64) []Coords {
	d := int32(math.Ceil(distance / Size))
	out := make([]Coords, 0, (2*d+1)*(2*d+1))
	for x := -d; x <= d; x++ {
		for z := -d; z <= d; z++ {
			out = append(out, Coords{X: c.X + x, Z: c.Z + z})
		}
	}
	return out
}

// Resident is an entity currently inside a bucket.
type Resident struct {
	Handle   entity.Handle
	Position mgl64.Vec3
}

// stamped is an event with its publication order across the tracker.
type stamped struct {
	seq uint64
	e   Event
}

// Subscription receives the events of one bucket.
type Subscription struct {
	coords Coords
	q      *queue.Queue[stamped]
}

// Coords returns the bucket the subscription listens to.
func (s *Subscription) Coords() Coords {
	return s.coords
}

// Drain returns the events published since the last call.
func (s *Subscription) Drain() []Event {
	batch := s.q.Drain()
	out := make([]Event, len(batch))
	for i, st := range batch {
		out[i] = st.e
	}
	return out
}

// Bucket is one grid cell. Residents and subscriptions change under the
// bucket's own lock, so subscribing and moving entities are atomic with
// respect to each other.
type Bucket struct {
	mu              sync.Mutex
	residents       map[entity.ID]Resident
	subs            map[*Subscription]struct{}
	unobservedSince time.Time
}

func newBucket() *Bucket {
	return &Bucket{
		residents:       make(map[entity.ID]Resident),
		subs:            make(map[*Subscription]struct{}),
		unobservedSince: time.Now(),
	}
}

// publish must be called with b.mu held.
func (b *Bucket) publish(seq uint64, e Event) {
	for s := range b.subs {
		s.q.Push(stamped{seq: seq, e: e})
	}
}

func (b *Bucket) snapshot() []Resident {
	out := make([]Resident, 0, len(b.residents))
	for _, r := range b.residents {
		out = append(out, r)
	}
	return out
}
