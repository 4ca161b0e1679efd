package pile

import (
	"fmt"

	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
)

// chunkFromData converts a column to its Pile form.
func chunkFromData(pos chunk.Coords, d *chunk.Data, reg block.Registry) (*Chunk, error) {
	records, err := d.Records(reg)
	if err != nil {
		return nil, err
	}
	c := &Chunk{X: pos.X, Z: pos.Z, Sections: make([]Section, len(records))}
	for i, rec := range records {
		s := Section{Y: rec.Y, Palette: make([]string, len(rec.Palette)), Data: rec.States}
		for j, st := range rec.Palette {
			s.Palette[j] = st.String()
		}
		c.Sections[i] = s
	}
	return c, nil
}

// data converts the chunk back to a column. Block states the registry does
// not know are returned in unknown and read as air.
func (c *Chunk) data(reg block.Registry) (d *chunk.Data, unknown []block.State, err error) {
	records := make([]chunk.SectionRecord, len(c.Sections))
	for i, s := range c.Sections {
		rec := chunk.SectionRecord{Y: s.Y, Palette: make([]block.State, len(s.Palette)), States: s.Data}
		for j, str := range s.Palette {
			st, err := block.ParseState(str)
			if err != nil {
				return nil, nil, fmt.Errorf("section %d palette entry %d: %w", s.Y, j, err)
			}
			rec.Palette[j] = st
		}
		records[i] = rec
	}
	return chunk.FromRecords(reg, records)
}
