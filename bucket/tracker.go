package bucket

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/strata/entity"
	"github.com/oriumgames/strata/internal/queue"
	"go.uber.org/atomic"
)

// Tracker maps bucket coordinates to buckets. Buckets are created on first
// use and only removed by Cleanup.
type Tracker struct {
	mu      sync.RWMutex
	buckets map[Coords]*Bucket

	// seq orders events across buckets.
	seq atomic.Uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{buckets: make(map[Coords]*Bucket)}
}

func (t *Tracker) bucket(c Coords) *Bucket {
	t.mu.RLock()
	b, ok := t.buckets[c]
	t.mu.RUnlock()
	if ok {
		return b
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.buckets[c]; ok {
		return b
	}
	b = newBucket()
	t.buckets[c] = b
	return b
}

// Add starts tracking an entity at pos.
func (t *Tracker) Add(h entity.Handle, pos mgl64.Vec3) {
	b := t.bucket(CoordsOf(pos))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.residents[h.ID] = Resident{Handle: h, Position: pos}
	b.publish(t.seq.Inc(), Appear{Handle: h, Position: pos})
}

// Remove stops tracking the entity last seen at pos.
func (t *Tracker) Remove(id entity.ID, pos mgl64.Vec3) {
	b := t.bucket(CoordsOf(pos))
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.residents[id]; !ok {
		return
	}
	delete(b.residents, id)
	b.publish(t.seq.Inc(), Disappear{ID: id})
}

// Move moves an entity from one position to another. Within a bucket it
// publishes a Move. Across buckets the old bucket gets a MoveAway naming the
// destination and the new one a MoveInto naming the origin, and the entity is
// relocated.
func (t *Tracker) Move(id entity.ID, from, to mgl64.Vec3) {
	fc, tc := CoordsOf(from), CoordsOf(to)
	delta := to.Sub(from)

	old := t.bucket(fc)
	old.mu.Lock()
	r, ok := old.residents[id]
	if !ok {
		old.mu.Unlock()
		return
	}
	if fc == tc {
		r.Position = to
		old.residents[id] = r
		old.publish(t.seq.Inc(), Move{ID: id, Delta: delta})
		old.mu.Unlock()
		return
	}
	delete(old.residents, id)
	old.publish(t.seq.Inc(), MoveAway{ID: id, To: tc})
	old.mu.Unlock()

	r.Position = to
	next := t.bucket(tc)
	next.mu.Lock()
	next.residents[id] = r
	next.publish(t.seq.Inc(), MoveInto{Handle: r.Handle, Position: to, From: fc, Delta: delta})
	next.mu.Unlock()
}

// Send publishes e in the bucket holding pos.
func (t *Tracker) Send(pos mgl64.Vec3, e Event) {
	b := t.bucket(CoordsOf(pos))
	b.mu.Lock()
	defer b.mu.Unlock()
	b.publish(t.seq.Inc(), e)
}

// Subscribe starts listening to bucket c and returns its residents at the
// moment of subscribing. Every later change arrives through the subscription.
func (t *Tracker) Subscribe(c Coords) (*Subscription, []Resident) {
	b := t.bucket(c)
	s := &Subscription{coords: c, q: queue.New[stamped]()}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[s] = struct{}{}
	b.unobservedSince = time.Time{}
	return s, b.snapshot()
}

// Unsubscribe stops s and returns the bucket's residents at that moment.
// Events still queued in s are discarded.
func (t *Tracker) Unsubscribe(s *Subscription) []Resident {
	b := t.bucket(s.coords)
	s.q.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
	if len(b.subs) == 0 && b.unobservedSince.IsZero() {
		b.unobservedSince = time.Now()
	}
	return b.snapshot()
}

// Entities returns the residents of bucket c.
func (t *Tracker) Entities(c Coords) []Resident {
	t.mu.RLock()
	b, ok := t.buckets[c]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// Len returns the number of buckets in the map.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buckets)
}

// Cleanup removes buckets that have no residents and no subscribers and
// have gone unobserved for at least olderThan. It returns the number removed.
func (t *Tracker) Cleanup(olderThan time.Duration) int {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for c, b := range t.buckets {
		b.mu.Lock()
		idle := len(b.residents) == 0 && len(b.subs) == 0 && now.Sub(b.unobservedSince) >= olderThan
		b.mu.Unlock()
		if idle {
			delete(t.buckets, c)
			removed++
		}
	}
	return removed
}
