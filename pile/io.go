package pile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressionLevel represents the compression level for saving worlds.
type CompressionLevel int

const (
	// CompressionLevelNone disables compression.
	CompressionLevelNone CompressionLevel = iota
	// CompressionLevelFast uses fast compression (level 1).
	CompressionLevelFast
	// CompressionLevelDefault uses default compression (level 3).
	CompressionLevelDefault
	// CompressionLevelBest uses best compression (level 9).
	CompressionLevelBest
)

// ParseCompressionLevel maps a config name to a CompressionLevel. The empty
// string selects the default level.
func ParseCompressionLevel(s string) (CompressionLevel, error) {
	switch s {
	case "none":
		return CompressionLevelNone, nil
	case "fast":
		return CompressionLevelFast, nil
	case "", "default":
		return CompressionLevelDefault, nil
	case "best":
		return CompressionLevelBest, nil
	}
	return 0, fmt.Errorf("unknown compression level %q", s)
}

func (l CompressionLevel) zstdLevel() zstd.EncoderLevel {
	switch l {
	case CompressionLevelFast:
		return zstd.SpeedFastest
	case CompressionLevelBest:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Read reads a Pile world from a reader.
func Read(r io.Reader) (*World, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("invalid magic number: got 0x%08X, want 0x%08X", magic, MagicNumber)
	}

	var version int16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version > CurrentVersion {
		return nil, fmt.Errorf("unsupported version: %d (max supported: %d)", version, CurrentVersion)
	}

	var compression uint8
	if err := binary.Read(r, binary.BigEndian, &compression); err != nil {
		return nil, fmt.Errorf("read compression: %w", err)
	}

	rd := newReader(r)
	// Uncompressed length: informational only.
	if _, err := rd.ReadVarInt(); err != nil {
		return nil, fmt.Errorf("read data length: %w", err)
	}

	var data io.Reader = rd.r
	switch compression {
	case CompressionNone:
	case CompressionZstd:
		dec, err := zstd.NewReader(rd.r)
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		data = dec
	default:
		return nil, fmt.Errorf("unknown compression type %d", compression)
	}

	w, err := decodeWorld(data)
	if err != nil {
		return nil, err
	}
	w.Version = version
	return w, nil
}

// Write writes a Pile world to a writer with default compression.
func Write(w io.Writer, world *World) error {
	return WriteWithCompression(w, world, CompressionLevelDefault)
}

// WriteWithCompression buffers the encoded world and writes it with the
// given compression level. Small or incompressible worlds are stored
// uncompressed.
func WriteWithCompression(w io.Writer, world *World, level CompressionLevel) error {
	buf := newBuffer()
	encodeWorld(buf, world)
	data := buf.Bytes()

	compression := uint8(CompressionNone)
	body := data
	if level != CompressionLevelNone && len(data) > 1024 {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level.zstdLevel()))
		if err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		compressed := enc.EncodeAll(data, make([]byte, 0, len(data)))
		_ = enc.Close()
		if len(compressed) < len(data) {
			compression, body = CompressionZstd, compressed
		}
	}

	if err := writeHeader(w, CurrentVersion, compression, int64(len(data))); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// WriteStreaming writes a Pile world chunk by chunk instead of buffering it
// whole. The uncompressed length in the header is written as zero.
func WriteStreaming(w io.Writer, world *World, level CompressionLevel) error {
	compression := uint8(CompressionNone)
	if level != CompressionLevelNone {
		compression = CompressionZstd
	}
	if err := writeHeader(w, CurrentVersion, compression, 0); err != nil {
		return err
	}

	out := w
	var enc *zstd.Encoder
	if compression == CompressionZstd {
		var err error
		if enc, err = zstd.NewWriter(w, zstd.WithEncoderLevel(level.zstdLevel())); err != nil {
			return fmt.Errorf("create zstd encoder: %w", err)
		}
		out = enc
	}

	chunks := world.Chunks()
	hdr := newBuffer()
	encodeWorldHeader(hdr, world, len(chunks))
	if _, err := out.Write(hdr.Bytes()); err != nil {
		closeEncoder(enc)
		return fmt.Errorf("write world header: %w", err)
	}
	for _, c := range chunks {
		cb := newBuffer()
		encodeChunk(cb, c)
		if _, err := out.Write(cb.Bytes()); err != nil {
			closeEncoder(enc)
			return fmt.Errorf("write chunk (%d,%d): %w", c.X, c.Z, err)
		}
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return fmt.Errorf("close zstd stream: %w", err)
		}
	}
	return nil
}

func closeEncoder(enc *zstd.Encoder) {
	if enc != nil {
		_ = enc.Close()
	}
}

func writeHeader(w io.Writer, version int16, compression uint8, length int64) error {
	if err := binary.Write(w, binary.BigEndian, uint32(MagicNumber)); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, version); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, compression); err != nil {
		return fmt.Errorf("write compression: %w", err)
	}
	if err := writeVarInt(w, length); err != nil {
		return fmt.Errorf("write data length: %w", err)
	}
	return nil
}
