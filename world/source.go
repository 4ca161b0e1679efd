package world

import (
	"errors"

	"github.com/oriumgames/strata/chunk"
)

var (
	// ErrChunkNotFound is returned by a Source that has no data for a chunk.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrSourcesExhausted is reported when every source declined a chunk.
	ErrSourcesExhausted = errors.New("no source could load chunk")
)

// Source loads chunks. World consults its sources in order and uses the
// first one that returns data.
type Source interface {
	// LoadChunk returns the column at pos, or an error wrapping
	// ErrChunkNotFound if the source has nothing for it.
	LoadChunk(pos chunk.Coords) (*chunk.Data, error)
}

// Store persists chunks.
type Store interface {
	StoreChunk(pos chunk.Coords, d *chunk.Data) error
	Close() error
}

// Provider is a Source that can also persist what it loads.
type Provider interface {
	Source
	Store
}

// Lister is implemented by stores that can enumerate their chunks.
type Lister interface {
	ListChunks() ([]chunk.Coords, error)
}

// NopStore discards everything stored in it.
type NopStore struct{}

func (NopStore) StoreChunk(chunk.Coords, *chunk.Data) error { return nil }
func (NopStore) Close() error                               { return nil }
