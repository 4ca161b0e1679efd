package world

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/internal/queue"
	"go.uber.org/atomic"
)

// Event is delivered to the listeners of a chunk.
type Event interface {
	ChunkPos() chunk.Coords
}

// ChunkLoaded is sent once the chunk's data is available. A listener that
// subscribes to a loaded chunk receives it immediately.
type ChunkLoaded struct {
	Chunk *Chunk
}

// ChunkLoadFailed is sent when every source declined the chunk. The chunk
// stays empty for the rest of the session.
type ChunkLoadFailed struct {
	Pos chunk.Coords
	Err error
}

// BlockChanged is sent after a block in the chunk was set.
type BlockChanged struct {
	Pos   cube.Pos
	State uint16
}

func (e ChunkLoaded) ChunkPos() chunk.Coords     { return e.Chunk.Pos() }
func (e ChunkLoadFailed) ChunkPos() chunk.Coords { return e.Pos }
func (e BlockChanged) ChunkPos() chunk.Coords    { return chunk.FromPos(e.Pos) }

var listenerIDs atomic.Uint64

// Listener is a subscriber's mailbox. The world pushes events into it while
// holding only the chunk's lock; the owner drains it at its own pace.
type Listener struct {
	id uint64
	q  *queue.Queue[Event]
}

// NewListener returns a listener with a process-unique id.
func NewListener() *Listener {
	return &Listener{id: listenerIDs.Inc(), q: queue.New[Event]()}
}

// ID returns the listener's subscriber id.
func (l *Listener) ID() uint64 {
	return l.id
}

// Signal is notified whenever events were queued since the last receive.
func (l *Listener) Signal() <-chan struct{} {
	return l.q.Signal()
}

// Drain returns every queued event in delivery order.
func (l *Listener) Drain() []Event {
	return l.q.Drain()
}

func (l *Listener) push(e Event) {
	l.q.Push(e)
}
