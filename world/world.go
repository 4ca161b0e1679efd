// Package world implements the chunk cache at the centre of the engine:
// demand-driven loading from an ordered list of sources, change fan-out to
// subscribed listeners, and time-based eviction to a background saver.
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/chunk"
	"go.uber.org/atomic"
)

// Config holds the settings of a World.
type Config struct {
	// Log is the Logger to use for load and save errors. If nil, defaults to
	// slog.Default().
	Log *slog.Logger
	// Sources are consulted in order for chunks that are not in memory.
	Sources []Source
	// Store receives evicted chunks and every loaded chunk on shutdown. If
	// nil, chunks are discarded.
	Store Store
	// Air is the state id returned for blocks of chunks that are not loaded.
	Air uint16
	// UnloadAfter is how long a chunk must go without listeners before the
	// sweep evicts it. Defaults to 10 seconds.
	UnloadAfter time.Duration
	// MaxUnloadsPerTick caps the chunks evicted by one Tick. Defaults to 2.
	MaxUnloadsPerTick int
}

// World is the concurrent map from chunk coordinates to cached chunks.
type World struct {
	conf  Config
	saver *Saver

	mu     sync.RWMutex
	chunks map[chunk.Coords]*Chunk

	updatesMu sync.Mutex
	updates   map[cube.Pos]struct{}

	loads  sync.WaitGroup
	closed atomic.Bool

	loaded, failed, evicted atomic.Int64
}

// New creates a World from the config.
func (conf Config) New() *World {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("component", "world")
	if conf.Store == nil {
		conf.Store = NopStore{}
	}
	if conf.UnloadAfter <= 0 {
		conf.UnloadAfter = 10 * time.Second
	}
	if conf.MaxUnloadsPerTick <= 0 {
		conf.MaxUnloadsPerTick = 2
	}
	return &World{
		conf:    conf,
		saver:   NewSaver(conf.Store, conf.Log.With("component", "saver")),
		chunks:  make(map[chunk.Coords]*Chunk),
		updates: make(map[cube.Pos]struct{}),
	}
}

// Subscribe registers l for events of the chunk at pos. If the chunk is
// loaded, l receives ChunkLoaded immediately. If it is not in memory, it is
// created and loaded in the background; l receives ChunkLoaded or
// ChunkLoadFailed once the sources have been tried.
func (w *World) Subscribe(pos chunk.Coords, l *Listener) {
	w.mu.RLock()
	if c, ok := w.chunks[pos]; ok {
		c.subscribe(l)
		w.mu.RUnlock()
		return
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.chunks[pos]; ok {
		c.subscribe(l)
		return
	}
	c := newChunk(pos, time.Now())
	c.subscribe(l)
	w.chunks[pos] = c

	w.loads.Add(1)
	go w.load(c)
}

// Unsubscribe removes l from the chunk at pos. Once a chunk has no listeners
// its idle time starts counting towards eviction.
func (w *World) Unsubscribe(pos chunk.Coords, l *Listener) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if c, ok := w.chunks[pos]; ok {
		c.unsubscribe(l.id, time.Now())
	}
}

func (w *World) load(c *Chunk) {
	defer w.loads.Done()
	if d, ok := w.saver.Pending(c.pos); ok {
		c.load(d.Clone())
		w.loaded.Inc()
		return
	}
	for _, src := range w.conf.Sources {
		d, err := src.LoadChunk(c.pos)
		if err == nil {
			c.load(d)
			w.loaded.Inc()
			return
		}
		if !errors.Is(err, ErrChunkNotFound) {
			w.conf.Log.Error("load chunk", "pos", c.pos, "source", fmt.Sprintf("%T", src), "error", err)
		}
	}
	err := fmt.Errorf("chunk %v: %w", c.pos, ErrSourcesExhausted)
	w.conf.Log.Error("load chunk", "pos", c.pos, "error", err)
	w.failed.Inc()
	c.fail(err)
}

// Chunk returns the cached chunk at pos, loaded or not.
func (w *World) Chunk(pos chunk.Coords) (*Chunk, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[pos]
	return c, ok
}

// Block returns the state at pos, or air if its chunk is not loaded.
func (w *World) Block(pos cube.Pos) uint16 {
	cp := chunk.FromPos(pos)
	w.mu.RLock()
	c, ok := w.chunks[cp]
	w.mu.RUnlock()
	if !ok {
		return w.conf.Air
	}
	x, y, z := cp.Relative(pos)
	if id, ok := c.Block(x, y, z); ok {
		return id
	}
	return w.conf.Air
}

// SetBlock sets the block at pos and notifies the chunk's listeners. It
// returns false without doing anything if the chunk is not loaded or pos is
// outside the world's height.
func (w *World) SetBlock(pos cube.Pos, state uint16) bool {
	if pos.Y() < 0 || pos.Y() >= chunk.Height {
		return false
	}
	w.mu.RLock()
	c, ok := w.chunks[chunk.FromPos(pos)]
	if !ok || !c.setBlock(pos, state) {
		w.mu.RUnlock()
		return false
	}
	w.mu.RUnlock()

	w.updatesMu.Lock()
	w.updates[pos] = struct{}{}
	w.updatesMu.Unlock()
	return true
}

// NeighbourUpdates returns the positions set since the last call, sorted by
// y, then z, then x.
func (w *World) NeighbourUpdates() []cube.Pos {
	w.updatesMu.Lock()
	updates := w.updates
	w.updates = make(map[cube.Pos]struct{})
	w.updatesMu.Unlock()

	out := make([]cube.Pos, 0, len(updates))
	for pos := range updates {
		out = append(out, pos)
	}
	slices.SortFunc(out, func(a, b cube.Pos) int {
		if a.Y() != b.Y() {
			return a.Y() - b.Y()
		}
		if a.Z() != b.Z() {
			return a.Z() - b.Z()
		}
		return a.X() - b.X()
	})
	return out
}

// Tick runs the eviction sweep: at most MaxUnloadsPerTick loaded chunks that
// have been without listeners for longer than UnloadAfter are removed and
// handed to the saver. Idle time is read from each chunk at sweep time, so a
// chunk that was resubscribed is never evicted. Tick returns the number of
// chunks evicted.
func (w *World) Tick(now time.Time) int {
	evicted := 0

	w.mu.Lock()
	for pos, c := range w.chunks {
		if evicted >= w.conf.MaxUnloadsPerTick {
			break
		}
		if idle, ok := c.idleFor(now); ok && idle > w.conf.UnloadAfter {
			delete(w.chunks, pos)
			// Queued before the map is unlocked so a reload finds it pending.
			if d := c.evict(); d != nil {
				w.saver.Save(c.pos, d)
			}
			evicted++
		}
	}
	w.mu.Unlock()

	w.evicted.Add(int64(evicted))
	return evicted
}

// SaveAll queues a snapshot of every loaded chunk for saving without
// evicting anything.
func (w *World) SaveAll() {
	w.mu.RLock()
	chunks := make([]*Chunk, 0, len(w.chunks))
	for _, c := range w.chunks {
		chunks = append(chunks, c)
	}
	w.mu.RUnlock()

	for _, c := range chunks {
		if d := c.Snapshot(); d != nil {
			w.saver.Save(c.pos, d)
		}
	}
}

// Flush blocks until every save queued so far has been attempted.
func (w *World) Flush() {
	w.saver.Wait()
}

// Len returns the number of chunks in memory, loaded or not.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

// Stats is a snapshot of the world's counters.
type Stats struct {
	Cached, Loaded, Failed, Evicted int64
	Saved, SaveErrors               int64
}

// Stats returns the world's counters.
func (w *World) Stats() Stats {
	saved, saveErrors := w.saver.Stats()
	return Stats{
		Cached:     int64(w.Len()),
		Loaded:     w.loaded.Load(),
		Failed:     w.failed.Load(),
		Evicted:    w.evicted.Load(),
		Saved:      saved,
		SaveErrors: saveErrors,
	}
}

// Close waits for pending loads, saves every loaded chunk, waits for the
// saver to drain and closes the store.
func (w *World) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.loads.Wait()
	w.SaveAll()
	if err := w.saver.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
