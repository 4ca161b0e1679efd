package chunk

import "github.com/oriumgames/strata/packed"

// BiomeCount is the number of biome entries sent with a chunk.
const BiomeCount = 1024

// Data is a fully loaded chunk column: up to SectionCount sections, bottom
// to top. Absent sections read as air. Data is not safe for concurrent use;
// the world guards it with the owning chunk's lock.
type Data struct {
	air      uint16
	sections [SectionCount]*Section
}

// NewData returns an empty column.
func NewData(air uint16) *Data {
	return &Data{air: air}
}

// Air returns the state id treated as empty space.
func (d *Data) Air() uint16 {
	return d.air
}

// Block returns the state at chunk-relative x, z and absolute y. Positions
// above or below the column are air.
func (d *Data) Block(x, y, z int) uint16 {
	if y < 0 || y >= Height {
		return d.air
	}
	s := d.sections[y>>4]
	if s == nil {
		return d.air
	}
	return s.Block(x, y&15, z)
}

// SetBlock stores state at chunk-relative x, z and absolute y, creating the
// section if it is absent. y must be within [0, Height).
func (d *Data) SetBlock(x, y, z int, state uint16) {
	if y < 0 || y >= Height {
		panic("chunk: y out of range")
	}
	s := d.sections[y>>4]
	if s == nil {
		s = NewSection(d.air)
		d.sections[y>>4] = s
	}
	s.SetBlock(x, y&15, z, state)
}

// Section returns section i, or nil if it is absent.
func (d *Data) Section(i int) *Section {
	return d.sections[i]
}

// SetSection replaces section i. A nil section removes it.
func (d *Data) SetSection(i int, s *Section) {
	d.sections[i] = s
}

// Bitmask returns a mask with bit i set for every present section i.
func (d *Data) Bitmask() uint16 {
	var mask uint16
	for i, s := range d.sections {
		if s != nil {
			mask |= 1 << i
		}
	}
	return mask
}

// Biomes returns the biome list sent with the chunk.
func (d *Data) Biomes() []int32 {
	return make([]int32, BiomeCount)
}

// HeightMap computes the MOTION_BLOCKING heightmap: for every column, in
// x + z*16 order, one above the highest non-air block, or zero.
func (d *Data) HeightMap() *packed.Array {
	hm := packed.Zeroed(Width*Width, 9)
	for z := range Width {
		for x := range Width {
			hm.Set(x|z<<4, uint32(d.columnHeight(x, z)))
		}
	}
	return hm
}

func (d *Data) columnHeight(x, z int) int {
	for i := SectionCount - 1; i >= 0; i-- {
		s := d.sections[i]
		if s == nil {
			continue
		}
		for y := SectionHeight - 1; y >= 0; y-- {
			if s.Block(x, y, z) != d.air {
				return i*SectionHeight + y + 1
			}
		}
	}
	return 0
}

// AppendSections appends the network form of every present section, bottom
// to top.
func (d *Data) AppendSections(b []byte) []byte {
	for _, s := range d.sections {
		if s != nil {
			b = s.AppendWire(b)
		}
	}
	return b
}

// Clone returns a deep copy of the column.
func (d *Data) Clone() *Data {
	c := &Data{air: d.air}
	for i, s := range d.sections {
		if s != nil {
			c.sections[i] = s.Clone()
		}
	}
	return c
}
