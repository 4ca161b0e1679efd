package pile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// buffer is a helper for writing binary data with convenient typed methods.
type buffer struct {
	bytes.Buffer
}

// newBuffer creates a new buffer.
func newBuffer() *buffer {
	return &buffer{}
}

// WriteInt64 writes an int64 in big-endian format.
func (b *buffer) WriteInt64(v int64) {
	_ = binary.Write(b, binary.BigEndian, v)
}

// WriteInt32 writes an int32 in big-endian format.
func (b *buffer) WriteInt32(v int32) {
	_ = binary.Write(b, binary.BigEndian, v)
}

// WriteInt8 writes an int8.
func (b *buffer) WriteInt8(v int8) {
	_ = b.WriteByte(byte(v))
}

// WriteVarInt writes a zig-zag encoded variable-length integer.
func (b *buffer) WriteVarInt(v int64) {
	b.Buffer.Write(binary.AppendVarint(nil, v))
}

// WriteString writes a string with its length as a varint.
func (b *buffer) WriteString(s string) {
	b.WriteVarInt(int64(len(s)))
	_, _ = b.Buffer.WriteString(s)
}

// WriteBytes writes a byte slice with its length as a varint.
func (b *buffer) WriteBytes(data []byte) {
	b.WriteVarInt(int64(len(data)))
	_, _ = b.Write(data)
}

// writeVarInt writes a variable-length integer to a writer.
func writeVarInt(w io.Writer, v int64) error {
	_, err := w.Write(binary.AppendVarint(nil, v))
	return err
}

// reader is a helper for reading binary data with convenient typed methods.
type reader struct {
	r *bufio.Reader
}

// newReader creates a new reader wrapping the given io.Reader.
func newReader(r io.Reader) *reader {
	if br, ok := r.(*bufio.Reader); ok {
		return &reader{r: br}
	}
	return &reader{r: bufio.NewReader(r)}
}

// ReadInt64 reads an int64 in big-endian format.
func (r *reader) ReadInt64() (int64, error) {
	var v int64
	err := binary.Read(r.r, binary.BigEndian, &v)
	return v, err
}

// ReadInt32 reads an int32 in big-endian format.
func (r *reader) ReadInt32() (int32, error) {
	var v int32
	err := binary.Read(r.r, binary.BigEndian, &v)
	return v, err
}

// ReadInt8 reads an int8.
func (r *reader) ReadInt8() (int8, error) {
	b, err := r.r.ReadByte()
	return int8(b), err
}

// ReadVarInt reads a variable-length integer.
func (r *reader) ReadVarInt() (int64, error) {
	return binary.ReadVarint(r.r)
}

// ReadCount reads a varint element count and checks it against max.
func (r *reader) ReadCount(max int64) (int, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if n < 0 || n > max {
		return 0, fmt.Errorf("invalid count: %d", n)
	}
	return int(n), nil
}

// ReadString reads a string with its length as a varint.
func (r *reader) ReadString() (string, error) {
	length, err := r.ReadCount(1 << 20) // 1MB limit
	if err != nil {
		return "", fmt.Errorf("string length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBytes reads a byte slice with its length as a varint.
func (r *reader) ReadBytes() ([]byte, error) {
	length, err := r.ReadCount(1 << 24) // 16MB limit
	if err != nil {
		return nil, fmt.Errorf("byte array length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
