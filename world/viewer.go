package world

import (
	"errors"
	"slices"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/chunk"
	"golang.org/x/time/rate"
)

// Viewer streams the chunks around one player. It subscribes to every chunk
// within its distance of the player's chunk, nearest first, and turns the
// events of those chunks into wire payloads and block changes.
//
// Viewer methods must be called from a single goroutine.
type Viewer struct {
	w        *World
	distance int32
	limiter  *rate.Limiter
	l        *Listener

	center  chunk.Coords
	started bool

	requested map[chunk.Coords]struct{}
	sent      map[chunk.Coords]struct{}
	backlog   []chunk.Coords
}

// NewViewer returns a viewer of w with a view distance in chunks. New
// subscriptions are throttled by limiter; a nil limiter subscribes to the
// whole range at once.
func NewViewer(w *World, distance int32, limiter *rate.Limiter) *Viewer {
	return &Viewer{
		w:         w,
		distance:  distance,
		limiter:   limiter,
		l:         NewListener(),
		requested: make(map[chunk.Coords]struct{}),
		sent:      make(map[chunk.Coords]struct{}),
	}
}

// Listener returns the mailbox the viewer's chunks deliver to.
func (v *Viewer) Listener() *Listener {
	return v.l
}

// Move updates the player's position. When the player entered another chunk,
// chunks that left the range are unsubscribed and new ones are queued.
func (v *Viewer) Move(pos cube.Pos) {
	center := chunk.FromPos(pos)
	if v.started && center == v.center {
		v.request()
		return
	}
	v.center, v.started = center, true

	for c := range v.requested {
		if !v.inRange(c) {
			v.w.Unsubscribe(c, v.l)
			delete(v.requested, c)
			delete(v.sent, c)
		}
	}
	v.backlog = v.backlog[:0]
	for x := -v.distance; x <= v.distance; x++ {
		for z := -v.distance; z <= v.distance; z++ {
			c := chunk.Coords{X: center.X + x, Z: center.Z + z}
			if _, ok := v.requested[c]; !ok {
				v.backlog = append(v.backlog, c)
			}
		}
	}
	slices.SortStableFunc(v.backlog, func(a, b chunk.Coords) int {
		return v.dist2(a) - v.dist2(b)
	})
	v.request()
}

// request subscribes to backlog chunks for as long as the limiter allows.
func (v *Viewer) request() {
	n := 0
	for _, c := range v.backlog {
		if v.limiter != nil && !v.limiter.Allow() {
			break
		}
		v.w.Subscribe(c, v.l)
		v.requested[c] = struct{}{}
		n++
	}
	v.backlog = v.backlog[n:]
}

func (v *Viewer) inRange(c chunk.Coords) bool {
	dx, dz := c.X-v.center.X, c.Z-v.center.Z
	return dx >= -v.distance && dx <= v.distance && dz >= -v.distance && dz <= v.distance
}

func (v *Viewer) dist2(c chunk.Coords) int {
	dx, dz := int(c.X-v.center.X), int(c.Z-v.center.Z)
	return dx*dx + dz*dz
}

// Pending returns the number of chunks in range that were not requested yet.
func (v *Viewer) Pending() int {
	return len(v.backlog)
}

// Poll requests more chunks if the limiter allows and drains the events
// received since the last call. Every loaded chunk in range is returned once
// as a payload. Chunks that could not be loaded are reported in err.
func (v *Viewer) Poll() (payloads []chunk.Payload, changes []BlockChanged, err error) {
	v.request()

	var errs []error
	for _, e := range v.l.Drain() {
		if _, ok := v.requested[e.ChunkPos()]; !ok {
			continue
		}
		switch e := e.(type) {
		case ChunkLoaded:
			pos := e.Chunk.Pos()
			if _, ok := v.sent[pos]; ok {
				continue
			}
			p, perr := e.Chunk.Payload()
			if perr != nil {
				errs = append(errs, perr)
				continue
			}
			v.sent[pos] = struct{}{}
			payloads = append(payloads, p)
		case BlockChanged:
			if _, ok := v.sent[e.ChunkPos()]; ok {
				changes = append(changes, e)
			}
		case ChunkLoadFailed:
			errs = append(errs, e.Err)
		}
	}
	return payloads, changes, errors.Join(errs...)
}

// Close unsubscribes from every chunk.
func (v *Viewer) Close() {
	for c := range v.requested {
		v.w.Unsubscribe(c, v.l)
	}
	clear(v.requested)
	clear(v.sent)
	v.backlog = nil
}
