// Package pile stores a whole world in a single zstd-compressed file. The
// file is read into memory when opened and rewritten on save, so it suits
// small worlds: lobbies, minigame maps and tests.
package pile

import (
	"maps"
	"slices"

	"github.com/oriumgames/strata/chunk"
)

const (
	// MagicNumber is the Pile file format identifier "Pile".
	MagicNumber = 0x50696C65

	// CurrentVersion is the latest supported Pile format version.
	CurrentVersion = 1

	// Compression types
	CompressionNone = 0
	CompressionZstd = 1

	// maxChunks bounds the chunk count read from a file.
	maxChunks = 1_000_000
)

// World is the in-memory content of a Pile file.
type World struct {
	Version  int16
	UserData []byte

	chunks   map[int64]*Chunk
	dirty    map[int64]bool
	readOnly bool
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		Version: CurrentVersion,
		chunks:  make(map[int64]*Chunk),
		dirty:   make(map[int64]bool),
	}
}

// SetReadOnly marks the world as read-only, preventing modifications.
func (w *World) SetReadOnly(readOnly bool) {
	w.readOnly = readOnly
}

// IsReadOnly returns true if the world is marked as read-only.
func (w *World) IsReadOnly() bool {
	return w.readOnly
}

// Chunk returns the chunk at the given coordinates, or nil if not found.
func (w *World) Chunk(x, z int32) *Chunk {
	return w.chunks[chunkKey(x, z)]
}

// SetChunk sets a chunk at its coordinates. Silently ignored on read-only
// worlds.
func (w *World) SetChunk(c *Chunk) {
	if w.readOnly {
		return
	}
	w.setChunk(c)
	w.dirty[chunkKey(c.X, c.Z)] = true
}

// setChunk bypasses the read-only check. Used while decoding.
func (w *World) setChunk(c *Chunk) {
	w.chunks[chunkKey(c.X, c.Z)] = c
}

// Chunks returns all chunks in the world, ordered by key so that files are
// written deterministically.
func (w *World) Chunks() []*Chunk {
	keys := slices.Sorted(maps.Keys(w.chunks))
	chunks := make([]*Chunk, len(keys))
	for i, k := range keys {
		chunks[i] = w.chunks[k]
	}
	return chunks
}

// Positions returns the coordinates of every chunk in the world.
func (w *World) Positions() []chunk.Coords {
	out := make([]chunk.Coords, 0, len(w.chunks))
	for _, c := range w.Chunks() {
		out = append(out, chunk.Coords{X: c.X, Z: c.Z})
	}
	return out
}

// ClearDirty clears the dirty flag for all chunks.
func (w *World) ClearDirty() {
	clear(w.dirty)
}

// IsDirty returns true if any chunks have been modified.
func (w *World) IsDirty() bool {
	return len(w.dirty) > 0
}

// ChunkCount returns the number of chunks in the world.
func (w *World) ChunkCount() int {
	return len(w.chunks)
}

// Chunk is a column as stored in a Pile file. Only present sections are
// kept.
type Chunk struct {
	X, Z     int32
	Sections []Section
	// UserData stores arbitrary chunk metadata.
	UserData []byte
}

// Section is a 16x16x16 cube of blocks in paletted form:
//   - Palette holds canonical block state strings, e.g. minecraft:grass_block[snowy=false]
//   - Data holds palette indices packed at max(4, ceil(log2(len(Palette)))) bits
type Section struct {
	Y       int8
	Palette []string
	Data    []int64
}

// chunkKey creates a unique key for chunk coordinates.
func chunkKey(x, z int32) int64 {
	return int64(x)<<32 | int64(uint32(z))
}
