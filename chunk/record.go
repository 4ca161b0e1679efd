package chunk

import (
	"fmt"

	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/packed"
)

// SectionRecord is the store-independent persisted form of a section:
// a named palette and palette indices packed at PaletteBits(len(Palette)).
type SectionRecord struct {
	Y       int8
	Palette []block.State
	States  []int64
}

// Records converts every present section to its persisted form. Direct-mode
// sections are compacted into a fresh palette.
func (d *Data) Records(reg block.Registry) ([]SectionRecord, error) {
	records := make([]SectionRecord, 0, SectionCount)
	for i, s := range d.sections {
		if s == nil {
			continue
		}
		ids, states := s.persisted()
		rec := SectionRecord{Y: int8(i), Palette: make([]block.State, len(ids)), States: states.Int64s()}
		for j, id := range ids {
			st, ok := reg.Resolve(id)
			if !ok {
				return nil, fmt.Errorf("section %d: unknown block state %d", i, id)
			}
			rec.Palette[j] = st
		}
		records = append(records, rec)
	}
	return records, nil
}

// persisted returns the palette and packed indices the section is stored
// with.
func (s *Section) persisted() ([]uint16, *packed.Array) {
	if s.palette != nil {
		return s.palette.Entries(), s.states
	}
	p := NewPalette()
	indices := make([]uint32, SectionVolume)
	for i := range SectionVolume {
		indices[i] = p.Add(uint16(s.states.Get(i)))
	}
	return p.Entries(), packed.FromValues(indices, p.Bits())
}

// FromRecords rebuilds a column from persisted sections. Palette entries the
// registry does not know are loaded as air and returned in unknown. Records
// outside the column's height, or without a palette, are skipped.
func FromRecords(reg block.Registry, records []SectionRecord) (d *Data, unknown []block.State, err error) {
	air := block.Air(reg)
	d = NewData(air)
	for _, rec := range records {
		if rec.Y < 0 || int(rec.Y) >= SectionCount || len(rec.Palette) == 0 {
			continue
		}
		ids := make([]uint16, len(rec.Palette))
		for i, st := range rec.Palette {
			id, ok := reg.StateFor(st.Name, st.Properties)
			if !ok {
				unknown = append(unknown, st)
				id = air
			}
			ids[i] = id
		}
		s, err := sectionFromPersisted(ids, packed.Uint64s(rec.States))
		if err != nil {
			return nil, unknown, fmt.Errorf("section %d: %w", rec.Y, err)
		}
		d.sections[rec.Y] = s
	}
	return d, unknown, nil
}

func sectionFromPersisted(ids []uint16, words []uint64) (*Section, error) {
	if len(ids) <= 1<<MaxPaletteBits {
		return NewPalettedSection(NewPalette(ids...), words)
	}
	b := PaletteBits(len(ids))
	if want := packed.WordCount(SectionVolume, b); len(words) != want {
		return nil, fmt.Errorf("%d state words for %d-entry palette, want %d", len(words), len(ids), want)
	}
	indices := packed.NewLength(words, b, SectionVolume)
	direct := packed.Zeroed(SectionVolume, GlobalBits)
	for i := range SectionVolume {
		local := indices.Get(i)
		if int(local) >= len(ids) {
			return nil, fmt.Errorf("block %d refers to palette index %d of %d", i, local, len(ids))
		}
		direct.Set(i, uint32(ids[local]))
	}
	return &Section{states: direct}, nil
}
