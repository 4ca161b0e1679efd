package chunk

import (
	"fmt"
	"math/bits"
)

const (
	// MinPaletteBits is the narrowest width a paletted section uses.
	MinPaletteBits = 4
	// MaxPaletteBits is the widest width a section keeps its palette at.
	// Growing past it switches the section to direct mode.
	MaxPaletteBits = 8
	// GlobalBits is the width of raw state ids in direct mode.
	GlobalBits = 15
)

// Palette maps block state ids to the small local indices stored in a
// section. Entries are only ever appended.
type Palette struct {
	entries []uint16
	index   map[uint16]uint32
}

// NewPalette creates a palette holding entries in order. Duplicate entries are
// kept so that stored indices stay valid; lookups return the first one.
func NewPalette(entries ...uint16) *Palette {
	p := &Palette{
		entries: make([]uint16, 0, max(len(entries), 1)),
		index:   make(map[uint16]uint32, len(entries)),
	}
	for _, e := range entries {
		p.entries = append(p.entries, e)
		if _, ok := p.index[e]; !ok {
			p.index[e] = uint32(len(p.entries) - 1)
		}
	}
	return p
}

// PaletteBits returns max(4, ceil(log2(n))), the width indices into a
// palette of n entries are stored at.
func PaletteBits(n int) uint8 {
	if n <= 1 {
		return MinPaletteBits
	}
	return uint8(max(bits.Len(uint(n-1)), MinPaletteBits))
}

// Bits returns the index width of the palette.
func (p *Palette) Bits() uint8 {
	return PaletteBits(len(p.entries))
}

// Len returns the number of entries.
func (p *Palette) Len() int {
	return len(p.entries)
}

// Entries returns the state ids in index order. The slice must not be
// modified.
func (p *Palette) Entries() []uint16 {
	return p.entries
}

// State returns the state id stored at local index i. An index without an
// entry means the section's data is corrupt, so State panics.
func (p *Palette) State(i uint32) uint16 {
	if int(i) >= len(p.entries) {
		panic(fmt.Sprintf("chunk: palette index %d has no entry (palette size %d)", i, len(p.entries)))
	}
	return p.entries[i]
}

// Index returns the local index of state.
func (p *Palette) Index(state uint16) (uint32, bool) {
	i, ok := p.index[state]
	return i, ok
}

// Add appends state and returns its index. If state is already present, the
// existing index is returned.
func (p *Palette) Add(state uint16) uint32 {
	if i, ok := p.index[state]; ok {
		return i
	}
	p.entries = append(p.entries, state)
	i := uint32(len(p.entries) - 1)
	p.index[state] = i
	return i
}

// Clone returns a copy of the palette.
func (p *Palette) Clone() *Palette {
	return NewPalette(p.entries...)
}
