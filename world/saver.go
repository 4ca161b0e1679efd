package world

import (
	"log/slog"
	"sync"

	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/internal/queue"
	"go.uber.org/atomic"
)

type saveJob struct {
	pos  chunk.Coords
	data *chunk.Data
}

// saveWorker is one generation of the saver's background goroutine.
type saveWorker struct {
	mailbox *queue.Queue[saveJob]
	done    chan struct{}
	crashed bool // written before done is closed
}

// Saver writes chunks to a Store on a background worker. Producers never
// block on the store. If the worker dies, the next Save starts a replacement
// and hands it every chunk that was not written yet.
type Saver struct {
	store Store
	log   *slog.Logger

	mu      sync.Mutex
	w       *saveWorker
	pending map[chunk.Coords]*chunk.Data
	failed  map[chunk.Coords]struct{}
	closed  bool

	saved  atomic.Int64
	errors atomic.Int64
}

// NewSaver starts a saver writing to store.
func NewSaver(store Store, log *slog.Logger) *Saver {
	if log == nil {
		log = slog.Default()
	}
	s := &Saver{
		store:   store,
		log:     log,
		pending: make(map[chunk.Coords]*chunk.Data),
		failed:  make(map[chunk.Coords]struct{}),
	}
	s.w = s.startWorker()
	return s
}

func (s *Saver) startWorker() *saveWorker {
	w := &saveWorker{mailbox: queue.New[saveJob](), done: make(chan struct{})}
	go s.run(w)
	return w
}

func (s *Saver) run(w *saveWorker) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("chunk saver crashed", "panic", r)
			w.crashed = true
			w.mailbox.Close()
		}
	}()
	for {
		_, ok := <-w.mailbox.Signal()
		for _, j := range w.mailbox.Drain() {
			s.write(j)
		}
		if !ok {
			return
		}
	}
}

func (s *Saver) write(j saveJob) {
	err := s.store.StoreChunk(j.pos, j.data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors.Inc()
		s.log.Error("save chunk", "pos", j.pos, "error", err)
		s.failed[j.pos] = struct{}{}
		return
	}
	s.saved.Inc()
	if s.pending[j.pos] == j.data {
		delete(s.pending, j.pos)
	}
}

// Save queues d to be written at pos. The saver owns d from now on. Saves
// that failed before are queued again first.
func (s *Saver) Save(pos chunk.Coords, d *chunk.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("save after close dropped", "pos", pos)
		return
	}
	s.pending[pos] = d
	s.requeueFailed()
	if s.w.mailbox.Push(saveJob{pos: pos, data: d}) {
		return
	}
	s.log.Warn("chunk saver stopped, starting a new worker")
	s.w = s.startWorker()
	s.requeuePending()
}

// requeueFailed must be called with s.mu held.
func (s *Saver) requeueFailed() {
	for pos := range s.failed {
		if d, ok := s.pending[pos]; ok {
			s.w.mailbox.Push(saveJob{pos: pos, data: d})
		}
	}
	clear(s.failed)
}

// requeuePending must be called with s.mu held.
func (s *Saver) requeuePending() {
	for pos, d := range s.pending {
		s.w.mailbox.Push(saveJob{pos: pos, data: d})
	}
	clear(s.failed)
}

// Pending returns the data queued for pos that has not been written yet.
// Callers must not modify it.
func (s *Saver) Pending(pos chunk.Coords) (*chunk.Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.pending[pos]
	return d, ok
}

// Wait blocks until every save queued so far has been attempted, retrying
// earlier failures once. Later saves go to a fresh worker.
func (s *Saver) Wait() {
	s.mu.Lock()
	s.requeueFailed()
	s.mu.Unlock()

	for range 2 {
		s.mu.Lock()
		old := s.w
		s.w = s.startWorker()
		s.mu.Unlock()

		old.mailbox.Close()
		<-old.done
		if !old.crashed {
			return
		}
		s.mu.Lock()
		s.requeuePending()
		s.mu.Unlock()
	}
}

// Close drains the saver and closes the store.
func (s *Saver) Close() error {
	s.Wait()

	s.mu.Lock()
	s.closed = true
	w := s.w
	s.mu.Unlock()

	w.mailbox.Close()
	<-w.done
	return s.store.Close()
}

// Stats returns the number of chunks written and the number of failed
// attempts.
func (s *Saver) Stats() (saved, failed int64) {
	return s.saved.Load(), s.errors.Load()
}
