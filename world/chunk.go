package world

import (
	"fmt"
	"sync"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/chunk"
)

type chunkState uint8

const (
	stateLoading chunkState = iota
	stateLoaded
	stateFailed
	stateEvicted
)

// Chunk is the world's cache entry for one column: its load state, its data
// once loaded, and the listeners subscribed to it.
type Chunk struct {
	pos chunk.Coords

	mu              sync.RWMutex
	state           chunkState
	data            *chunk.Data
	err             error
	listeners       map[uint64]*Listener
	unobservedSince time.Time
}

func newChunk(pos chunk.Coords, now time.Time) *Chunk {
	return &Chunk{
		pos:             pos,
		listeners:       make(map[uint64]*Listener),
		unobservedSince: now,
	}
}

// Pos returns the chunk's coordinates.
func (c *Chunk) Pos() chunk.Coords {
	return c.pos
}

// Loaded reports whether the chunk holds data.
func (c *Chunk) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateLoaded
}

// Block returns the state at chunk-relative x, z and absolute y.
func (c *Chunk) Block(x, y, z int) (uint16, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateLoaded {
		return 0, false
	}
	return c.data.Block(x, y, z), true
}

// Payload builds the network form of the chunk.
func (c *Chunk) Payload() (chunk.Payload, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateLoaded {
		return chunk.Payload{}, fmt.Errorf("chunk %v is not loaded", c.pos)
	}
	return c.data.Payload(c.pos)
}

// Snapshot returns a copy of the chunk's data, or nil if it is not loaded.
func (c *Chunk) Snapshot() *chunk.Data {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateLoaded {
		return nil
	}
	return c.data.Clone()
}

// Listeners returns the number of subscribed listeners.
func (c *Chunk) Listeners() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

func (c *Chunk) subscribe(l *Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[l.id] = l
	c.unobservedSince = time.Time{}
	switch c.state {
	case stateLoaded:
		l.push(ChunkLoaded{Chunk: c})
	case stateFailed:
		l.push(ChunkLoadFailed{Pos: c.pos, Err: c.err})
	}
}

func (c *Chunk) unsubscribe(id uint64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.listeners[id]; !ok {
		return
	}
	delete(c.listeners, id)
	if len(c.listeners) == 0 && c.unobservedSince.IsZero() {
		c.unobservedSince = now
	}
}

func (c *Chunk) load(d *chunk.Data) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data, c.state = d, stateLoaded
	for _, l := range c.listeners {
		l.push(ChunkLoaded{Chunk: c})
	}
}

func (c *Chunk) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.err = stateFailed, err
	for _, l := range c.listeners {
		l.push(ChunkLoadFailed{Pos: c.pos, Err: err})
	}
}

func (c *Chunk) setBlock(pos cube.Pos, state uint16) bool {
	x, y, z := c.pos.Relative(pos)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateLoaded {
		return false
	}
	c.data.SetBlock(x, y, z, state)
	for _, l := range c.listeners {
		l.push(BlockChanged{Pos: pos, State: state})
	}
	return true
}

// idleFor returns how long a loaded chunk has had no listeners. ok is false
// while the chunk is observed or not loaded.
func (c *Chunk) idleFor(now time.Time) (d time.Duration, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateLoaded || len(c.listeners) > 0 || c.unobservedSince.IsZero() {
		return 0, false
	}
	return now.Sub(c.unobservedSince), true
}

// evict hands over the chunk's data. The chunk reads as unloaded afterwards.
func (c *Chunk) evict() *chunk.Data {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.data
	c.data, c.state = nil, stateEvicted
	return d
}
