package bucket

import (
	"cmp"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oriumgames/strata/entity"
)

// Observer is the per-viewer view onto a Tracker. It is not safe for
// concurrent use; the owning viewer calls Update once per tick.
type Observer struct {
	tracker  *Tracker
	self     entity.ID
	distance float64

	center  Coords
	started bool
	subs    map[Coords]*Subscription
	visible map[entity.ID]struct{}
}

// NewObserver creates an observer viewing every bucket within distance
// blocks of its position. Events about self are never reported; pass 0 to
// see every entity. The first Update subscribes to the initial coverage.
func NewObserver(t *Tracker, self entity.ID, distance float64) *Observer {
	return &Observer{
		tracker:  t,
		self:     self,
		distance: distance,
		subs:     make(map[Coords]*Subscription),
		visible:  make(map[entity.ID]struct{}),
	}
}

// Update drains pending bucket events, translating bucket crossings against
// the coverage held before this call, and then moves the coverage to pos if
// the viewer changed bucket. Events of different buckets are replayed in the
// order the tracker published them. It returns the events to show the viewer
// in order.
func (o *Observer) Update(pos mgl64.Vec3) []Event {
	var batch []stamped
	for _, s := range o.subs {
		batch = append(batch, s.q.Drain()...)
	}
	slices.SortFunc(batch, func(a, b stamped) int { return cmp.Compare(a.seq, b.seq) })

	var out []Event
	for _, st := range batch {
		out = o.translate(out, st.e)
	}
	if c := CoordsOf(pos); !o.started || c != o.center {
		out = o.moveTo(out, c)
	}
	return out
}

func (o *Observer) translate(out []Event, e Event) []Event {
	switch e := e.(type) {
	case MoveInto:
		if _, ok := o.subs[e.From]; ok {
			return o.emit(out, Move{ID: e.Handle.ID, Delta: e.Delta})
		}
		return o.emit(out, Appear{Handle: e.Handle, Position: e.Position})
	case MoveAway:
		if _, ok := o.subs[e.To]; ok {
			return out
		}
		return o.emit(out, Disappear{ID: e.ID})
	default:
		return o.emit(out, e)
	}
}

// emit appends e unless it is about the viewer itself or contradicts what
// the viewer already sees: a second appear, or anything about an entity
// that is not visible.
func (o *Observer) emit(out []Event, e Event) []Event {
	id := e.Entity()
	if o.self != 0 && id == o.self {
		return out
	}
	_, visible := o.visible[id]
	switch e.(type) {
	case Appear:
		if visible {
			return out
		}
		o.visible[id] = struct{}{}
	case Disappear:
		if !visible {
			return out
		}
		delete(o.visible, id)
	default:
		if !visible {
			return out
		}
	}
	return append(out, e)
}

func (o *Observer) moveTo(out []Event, c Coords) []Event {
	want := make(map[Coords]struct{})
	for _, bc := range c.Within(o.distance) {
		want[bc] = struct{}{}
	}
	for bc, s := range o.subs {
		if _, ok := want[bc]; ok {
			continue
		}
		delete(o.subs, bc)
		for _, r := range o.tracker.Unsubscribe(s) {
			out = o.emit(out, Disappear{ID: r.Handle.ID})
		}
	}
	for bc := range want {
		if _, ok := o.subs[bc]; ok {
			continue
		}
		s, residents := o.tracker.Subscribe(bc)
		o.subs[bc] = s
		for _, r := range residents {
			out = o.emit(out, Appear{Handle: r.Handle, Position: r.Position})
		}
	}
	o.center, o.started = c, true
	return out
}

// Coverage returns the buckets the observer is subscribed to.
func (o *Observer) Coverage() []Coords {
	out := make([]Coords, 0, len(o.subs))
	for c := range o.subs {
		out = append(out, c)
	}
	return out
}

// Close unsubscribes from every bucket.
func (o *Observer) Close() {
	for c, s := range o.subs {
		o.tracker.Unsubscribe(s)
		delete(o.subs, c)
	}
	clear(o.visible)
}
