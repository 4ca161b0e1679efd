// Package anvil reads and writes chunks in the region file format of Java
// Edition 1.16: one file of 32x32 chunks per region, each chunk a
// compressed NBT compound.
package anvil

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Tnze/go-mc/nbt"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
)

// DataVersion is the data version of 1.16.5 written with every chunk.
const DataVersion = 2586

// Compression types stored in the first byte of a sector.
const (
	CompressionGzip = 1
	CompressionZlib = 2
	CompressionNone = 3
)

// maxSectorBytes is the largest chunk a region can hold: the sector count
// in the location table is a single byte.
const maxSectorBytes = 255 * 4096

// ErrChunkTooLarge is returned when a compressed chunk does not fit in the
// sectors a region file can address.
var ErrChunkTooLarge = errors.New("chunk too large for region file")

type chunkTag struct {
	DataVersion int32    `nbt:"DataVersion"`
	Level       levelTag `nbt:"Level"`
}

type levelTag struct {
	XPos       int32        `nbt:"xPos"`
	ZPos       int32        `nbt:"zPos"`
	Status     string       `nbt:"Status"`
	Sections   []sectionTag `nbt:"Sections"`
	Heightmaps heightmapTag `nbt:"Heightmaps"`
	Biomes     []int32      `nbt:"Biomes"`
}

type heightmapTag struct {
	MotionBlocking []int64 `nbt:"MOTION_BLOCKING"`
}

type sectionTag struct {
	Y           uint8        `nbt:"Y"`
	Palette     []paletteTag `nbt:"Palette"`
	BlockStates []int64      `nbt:"BlockStates"`
}

type paletteTag struct {
	Name       string            `nbt:"Name"`
	Properties map[string]string `nbt:"Properties"`
}

// encodeChunk builds the NBT compound of a column.
func encodeChunk(pos chunk.Coords, d *chunk.Data, reg block.Registry) ([]byte, error) {
	records, err := d.Records(reg)
	if err != nil {
		return nil, err
	}
	tag := chunkTag{
		DataVersion: DataVersion,
		Level: levelTag{
			XPos:       pos.X,
			ZPos:       pos.Z,
			Status:     "full",
			Sections:   make([]sectionTag, len(records)),
			Heightmaps: heightmapTag{MotionBlocking: d.HeightMap().Int64s()},
			Biomes:     d.Biomes(),
		},
	}
	for i, rec := range records {
		s := sectionTag{Y: uint8(rec.Y), Palette: make([]paletteTag, len(rec.Palette)), BlockStates: rec.States}
		for j, st := range rec.Palette {
			s.Palette[j] = paletteTag{Name: st.Name, Properties: st.Properties}
			if s.Palette[j].Properties == nil {
				s.Palette[j].Properties = map[string]string{}
			}
		}
		tag.Level.Sections[i] = s
	}
	return nbt.Marshal(tag)
}

// decodeChunk parses the NBT compound of a column.
func decodeChunk(data []byte, reg block.Registry) (pos chunk.Coords, d *chunk.Data, unknown []block.State, err error) {
	var tag chunkTag
	if err := nbt.Unmarshal(data, &tag); err != nil {
		return pos, nil, nil, fmt.Errorf("decode chunk nbt: %w", err)
	}
	pos = chunk.Coords{X: tag.Level.XPos, Z: tag.Level.ZPos}
	records := make([]chunk.SectionRecord, 0, len(tag.Level.Sections))
	for _, s := range tag.Level.Sections {
		rec := chunk.SectionRecord{Y: int8(s.Y), Palette: make([]block.State, len(s.Palette)), States: s.BlockStates}
		for i, p := range s.Palette {
			rec.Palette[i] = block.State{Name: p.Name, Properties: p.Properties}
			if len(p.Properties) == 0 {
				rec.Palette[i].Properties = nil
			}
		}
		records = append(records, rec)
	}
	d, unknown, err = chunk.FromRecords(reg, records)
	return pos, d, unknown, err
}

// compress prefixes data with its compression type. Data is zlib-compressed
// at level unless raw is set.
func compress(data []byte, level int, raw bool) ([]byte, error) {
	var buf bytes.Buffer
	if raw {
		buf.Grow(len(data) + 1)
		buf.WriteByte(CompressionNone)
		buf.Write(data)
	} else {
		buf.WriteByte(CompressionZlib)
		w, err := zlib.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}
	if buf.Len()+4 >= maxSectorBytes {
		return nil, fmt.Errorf("%d bytes: %w", buf.Len(), ErrChunkTooLarge)
	}
	return buf.Bytes(), nil
}

// decompress strips the compression type of a sector and inflates it.
func decompress(sector []byte) ([]byte, error) {
	if len(sector) == 0 {
		return nil, errors.New("empty sector")
	}
	var r io.Reader
	switch sector[0] {
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(sector[1:]))
		if err != nil {
			return nil, err
		}
		defer gr.Close()
		r = gr
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(sector[1:]))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	case CompressionNone:
		return sector[1:], nil
	default:
		return nil, fmt.Errorf("unknown compression type %d", sector[0])
	}
	return io.ReadAll(r)
}
