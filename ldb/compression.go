package ldb

import (
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"github.com/pierrec/lz4/v4"
)

// CompressionType specifies the compression algorithm chunk values are
// written with. Every value records its own type, so a database can be
// reopened with a different one.
type CompressionType byte

const (
	// CompressionNone disables compression.
	CompressionNone CompressionType = iota
	// CompressionSnappy uses Snappy compression (balanced speed/ratio).
	CompressionSnappy
	// CompressionLZ4 uses LZ4 block compression (fastest).
	CompressionLZ4
)

// ParseCompressionType maps a config name to a CompressionType.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "", "default", "lz4":
		return CompressionLZ4, nil
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// maxValueSize bounds the decompressed size of a value.
const maxValueSize = 64 << 20

// compress prefixes data with the compression type used for it.
func compress(data []byte, compression CompressionType) []byte {
	switch compression {
	case CompressionSnappy:
		return append([]byte{byte(CompressionSnappy)}, snappy.Encode(nil, data)...)
	case CompressionLZ4:
		// Format: [type][4 bytes uncompressed size][compressed data]
		dst := make([]byte, 5+lz4.CompressBlockBound(len(data)))
		dst[0] = byte(CompressionLZ4)
		binary.LittleEndian.PutUint32(dst[1:], uint32(len(data)))
		n, err := lz4.CompressBlock(data, dst[5:], nil)
		if err == nil && n > 0 {
			return dst[:5+n]
		}
		// Incompressible: store as is.
	}
	return append([]byte{byte(CompressionNone)}, data...)
}

// decompress reverses compress.
func decompress(value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch data := value[1:]; CompressionType(value[0]) {
	case CompressionNone:
		return data, nil
	case CompressionSnappy:
		return snappy.Decode(nil, data)
	case CompressionLZ4:
		if len(data) < 4 {
			return nil, fmt.Errorf("lz4 value too short")
		}
		size := binary.LittleEndian.Uint32(data)
		if size > maxValueSize {
			return nil, fmt.Errorf("lz4 value claims %d bytes", size)
		}
		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(data[4:], dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		return dst[:n], nil
	default:
		return nil, fmt.Errorf("unknown compression type %d", value[0])
	}
}
