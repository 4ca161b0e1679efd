package chunk

import (
	"bytes"
	"io"

	pk "github.com/Tnze/go-mc/net/packet"
)

// AppendVarInt appends v as an unsigned LEB128 varint, the encoding the
// protocol uses for lengths and palette ids. Negative protocol values are
// passed as their two's complement uint32.
func AppendVarInt(b []byte, v uint32) []byte {
	buf := bytes.NewBuffer(b)
	_, _ = pk.VarInt(v).WriteTo(buf)
	return buf.Bytes()
}

// ReadVarInt reads a varint written by AppendVarInt.
func ReadVarInt(r io.Reader) (uint32, error) {
	var v pk.VarInt
	if _, err := v.ReadFrom(r); err != nil {
		return 0, err
	}
	return uint32(v), nil
}
