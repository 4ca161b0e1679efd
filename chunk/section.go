package chunk

import (
	"bytes"
	"fmt"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/oriumgames/strata/packed"
)

// NonAirHint is written in place of the non-air block count. Consumers may
// only treat it as a hint.
const NonAirHint = 4096

// Section is a 16x16x16 cube of blocks. It starts out paletted and switches
// to direct mode, storing raw state ids at GlobalBits, once its palette would
// need more than MaxPaletteBits. The switch is one-way.
type Section struct {
	palette *Palette // nil in direct mode
	states  *packed.Array
}

// NewSection returns a section filled with air.
func NewSection(air uint16) *Section {
	return &Section{
		palette: NewPalette(air),
		states:  packed.Zeroed(SectionVolume, MinPaletteBits),
	}
}

// NewPalettedSection builds a section from palette indices packed at the
// palette's width. It fails if the words do not match the width or refer to
// indices past the palette.
func NewPalettedSection(p *Palette, words []uint64) (*Section, error) {
	if p.Len() == 0 {
		return nil, fmt.Errorf("empty palette")
	}
	if p.Len() > 1<<MaxPaletteBits {
		return nil, fmt.Errorf("palette of %d entries exceeds %d bits", p.Len(), MaxPaletteBits)
	}
	b := p.Bits()
	if want := packed.WordCount(SectionVolume, b); len(words) != want {
		return nil, fmt.Errorf("%d state words for %d-bit palette, want %d", len(words), b, want)
	}
	states := packed.NewLength(words, b, SectionVolume)
	for i := range SectionVolume {
		if int(states.Get(i)) >= p.Len() {
			return nil, fmt.Errorf("block %d refers to palette index %d of %d", i, states.Get(i), p.Len())
		}
	}
	return &Section{palette: p, states: states}, nil
}

// NewDirectSection builds a direct-mode section from raw state ids packed at
// GlobalBits.
func NewDirectSection(words []uint64) (*Section, error) {
	if want := packed.WordCount(SectionVolume, GlobalBits); len(words) != want {
		return nil, fmt.Errorf("%d state words for direct section, want %d", len(words), want)
	}
	return &Section{states: packed.NewLength(words, GlobalBits, SectionVolume)}, nil
}

func sectionIndex(x, y, z int) int {
	if uint(x) >= Width || uint(y) >= SectionHeight || uint(z) >= Width {
		panic(fmt.Sprintf("chunk: section position (%d, %d, %d) out of range", x, y, z))
	}
	return x | z<<4 | y<<8
}

// Block returns the state id at x, y, z, each in [0, 16).
func (s *Section) Block(x, y, z int) uint16 {
	return s.stateAt(sectionIndex(x, y, z))
}

// SetBlock stores state at x, y, z, each in [0, 16).
func (s *Section) SetBlock(x, y, z int, state uint16) {
	i := sectionIndex(x, y, z)
	if s.palette == nil {
		s.states.Set(i, uint32(state))
		return
	}
	local, ok := s.palette.Index(state)
	if !ok {
		if s.palette.Len() >= 1<<MaxPaletteBits {
			s.toDirect()
			s.states.Set(i, uint32(state))
			return
		}
		local = s.palette.Add(state)
		if b := s.palette.Bits(); b != s.states.Bits() {
			s.states.SetBits(b)
		}
	}
	s.states.Set(i, local)
}

// toDirect rewrites every block as its raw state id and drops the palette.
func (s *Section) toDirect() {
	direct := packed.Zeroed(SectionVolume, GlobalBits)
	for i := range SectionVolume {
		direct.Set(i, uint32(s.palette.State(s.states.Get(i))))
	}
	s.states, s.palette = direct, nil
}

// Direct reports whether the section stores raw state ids.
func (s *Section) Direct() bool {
	return s.palette == nil
}

// Palette returns the section's palette, or nil in direct mode.
func (s *Section) Palette() *Palette {
	return s.palette
}

// States returns the packed block array. In paletted mode it holds palette
// indices, in direct mode raw state ids.
func (s *Section) States() *packed.Array {
	return s.states
}

// Uniform reports whether every block in the section is state.
func (s *Section) Uniform(state uint16) bool {
	if s.palette != nil {
		if local, ok := s.palette.Index(state); ok && s.palette.Len() == 1 {
			return local == 0
		}
	}
	for i := range SectionVolume {
		if s.stateAt(i) != state {
			return false
		}
	}
	return true
}

func (s *Section) stateAt(i int) uint16 {
	v := s.states.Get(i)
	if s.palette == nil {
		return uint16(v)
	}
	return s.palette.State(v)
}

// Clone returns a deep copy of the section.
func (s *Section) Clone() *Section {
	c := &Section{states: s.states.Clone()}
	if s.palette != nil {
		c.palette = s.palette.Clone()
	}
	return c
}

// AppendWire appends the network form of the section to b.
func (s *Section) AppendWire(b []byte) []byte {
	buf := bytes.NewBuffer(b)
	_, _ = s.WriteTo(buf)
	return buf.Bytes()
}

// WriteTo writes the network form of the section: the non-air hint, the bit
// width, the palette if any, and the length-prefixed state words.
func (s *Section) WriteTo(w io.Writer) (n int64, err error) {
	fields := []pk.FieldEncoder{pk.Short(NonAirHint), pk.UnsignedByte(s.states.Bits())}
	if s.palette != nil {
		fields = append(fields, pk.VarInt(s.palette.Len()))
		for _, id := range s.palette.Entries() {
			fields = append(fields, pk.VarInt(id))
		}
	}
	words := s.states.Words()
	fields = append(fields, pk.VarInt(len(words)))
	for _, word := range words {
		fields = append(fields, pk.Long(word))
	}
	for _, f := range fields {
		nn, err := f.WriteTo(w)
		n += nn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
