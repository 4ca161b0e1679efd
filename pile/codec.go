package pile

import (
	"fmt"
	"io"

	"github.com/oriumgames/strata/chunk"
)

// encodeWorld encodes a World into a buffer.
func encodeWorld(buf *buffer, w *World) {
	encodeWorldHeader(buf, w, w.ChunkCount())
	for _, c := range w.Chunks() {
		encodeChunk(buf, c)
	}
}

// encodeWorldHeader writes the user data and chunk count that precede the
// chunks.
func encodeWorldHeader(buf *buffer, w *World, chunks int) {
	buf.WriteBytes(w.UserData)
	buf.WriteVarInt(int64(chunks))
}

// encodeChunk encodes a Chunk into a buffer.
func encodeChunk(buf *buffer, c *Chunk) {
	buf.WriteInt32(c.X)
	buf.WriteInt32(c.Z)

	buf.WriteVarInt(int64(len(c.Sections)))
	for i := range c.Sections {
		encodeSection(buf, &c.Sections[i])
	}

	buf.WriteBytes(c.UserData)
}

// encodeSection encodes a Section into a buffer.
func encodeSection(buf *buffer, s *Section) {
	buf.WriteInt8(s.Y)

	buf.WriteVarInt(int64(len(s.Palette)))
	for _, state := range s.Palette {
		buf.WriteString(state)
	}

	buf.WriteVarInt(int64(len(s.Data)))
	for _, val := range s.Data {
		buf.WriteInt64(val)
	}
}

// decodeWorld decodes a World from a reader.
func decodeWorld(r io.Reader) (*World, error) {
	rd := newReader(r)
	w := NewWorld()

	userData, err := rd.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("read user data: %w", err)
	}
	w.UserData = userData

	chunkCount, err := rd.ReadCount(maxChunks)
	if err != nil {
		return nil, fmt.Errorf("read chunk count: %w", err)
	}
	for i := range chunkCount {
		c, err := decodeChunk(rd)
		if err != nil {
			return nil, fmt.Errorf("decode chunk %d (total: %d): %w", i, chunkCount, err)
		}
		w.setChunk(c)
	}
	return w, nil
}

// decodeChunk decodes a Chunk from a reader.
func decodeChunk(rd *reader) (*Chunk, error) {
	c := &Chunk{}
	var err error
	if c.X, err = rd.ReadInt32(); err != nil {
		return nil, fmt.Errorf("read x: %w", err)
	}
	if c.Z, err = rd.ReadInt32(); err != nil {
		return nil, fmt.Errorf("read z: %w", err)
	}

	sectionCount, err := rd.ReadCount(chunk.SectionCount)
	if err != nil {
		return nil, fmt.Errorf("read section count: %w", err)
	}
	c.Sections = make([]Section, sectionCount)
	for i := range c.Sections {
		if err := decodeSection(rd, &c.Sections[i]); err != nil {
			return nil, fmt.Errorf("decode section %d: %w", i, err)
		}
	}

	if c.UserData, err = rd.ReadBytes(); err != nil {
		return nil, fmt.Errorf("read user data: %w", err)
	}
	return c, nil
}

// decodeSection decodes a Section from a reader.
func decodeSection(rd *reader, s *Section) error {
	var err error
	if s.Y, err = rd.ReadInt8(); err != nil {
		return fmt.Errorf("read y: %w", err)
	}

	paletteLen, err := rd.ReadCount(chunk.SectionVolume)
	if err != nil {
		return fmt.Errorf("read palette length: %w", err)
	}
	s.Palette = make([]string, paletteLen)
	for i := range s.Palette {
		if s.Palette[i], err = rd.ReadString(); err != nil {
			return fmt.Errorf("read palette entry %d: %w", i, err)
		}
	}

	dataLen, err := rd.ReadCount(chunk.SectionVolume)
	if err != nil {
		return fmt.Errorf("read block data length: %w", err)
	}
	s.Data = make([]int64, dataLen)
	for i := range s.Data {
		if s.Data[i], err = rd.ReadInt64(); err != nil {
			return fmt.Errorf("read block data %d: %w", i, err)
		}
	}
	return nil
}
