package ldb

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/world"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testData() *chunk.Data {
	d := chunk.NewData(0)
	for x := range 16 {
		for z := range 16 {
			d.SetBlock(x, 0, z, 33)
			d.SetBlock(x, 1, z, 10)
			d.SetBlock(x, 2, z, 9)
		}
	}
	d.SetBlock(4, 200, 4, 8)
	d.SetBlock(5, 200, 4, 66)
	return d
}

func sameBlocks(t *testing.T, want, got *chunk.Data) {
	t.Helper()
	for y := range chunk.Height {
		for x := range 16 {
			for z := range 16 {
				if w, g := want.Block(x, y, z), got.Block(x, y, z); w != g {
					t.Fatalf("block (%d, %d, %d) = %d, want %d", x, y, z, g, w)
				}
			}
		}
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	inputs := [][]byte{
		bytes.Repeat([]byte("stone "), 500),
		{1, 2, 3},
	}
	for _, c := range []CompressionType{CompressionNone, CompressionSnappy, CompressionLZ4} {
		for _, in := range inputs {
			out, err := decompress(compress(in, c))
			if err != nil {
				t.Fatalf("compression %d: %v", c, err)
			}
			if !bytes.Equal(in, out) {
				t.Fatalf("compression %d changed %d bytes", c, len(in))
			}
		}
	}
	if v := compress(inputs[0], CompressionSnappy); len(v) >= len(inputs[0]) {
		t.Fatal("snappy did not compress repetitive input")
	}
	if _, err := decompress([]byte{42, 0}); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestParseCompressionType(t *testing.T) {
	for s, want := range map[string]CompressionType{"none": CompressionNone, "snappy": CompressionSnappy, "lz4": CompressionLZ4, "": CompressionLZ4} {
		if got, err := ParseCompressionType(s); err != nil || got != want {
			t.Errorf("ParseCompressionType(%q) = %d, %v", s, got, err)
		}
	}
	if _, err := ParseCompressionType("zip"); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func TestDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, c := range []CompressionType{CompressionNone, CompressionSnappy, CompressionLZ4} {
		db, err := Config{Log: discard, Compression: c}.Open(dir)
		if err != nil {
			t.Fatal(err)
		}
		pos := chunk.Coords{X: -7, Z: int32(c)}
		if err := db.StoreChunk(pos, testData()); err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}
	}

	// Values written with any compression load regardless of the current one.
	db, err := Config{Log: discard, Compression: CompressionNone}.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	list, err := db.ListChunks()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("ListChunks = %v", list)
	}
	for _, pos := range list {
		got, err := db.LoadChunk(pos)
		if err != nil {
			t.Fatalf("load %v: %v", pos, err)
		}
		sameBlocks(t, testData(), got)
	}
	if _, err := db.LoadChunk(chunk.Coords{X: 1000}); !errors.Is(err, world.ErrChunkNotFound) {
		t.Fatalf("missing chunk error = %v", err)
	}
}

func TestStoreRemovesEmptiedSections(t *testing.T) {
	db, err := Config{Log: discard}.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	pos := chunk.Coords{X: 3, Z: 3}
	if err := db.StoreChunk(pos, testData()); err != nil {
		t.Fatal(err)
	}
	d := testData()
	d.SetSection(12, nil)
	if err := db.StoreChunk(pos, d); err != nil {
		t.Fatal(err)
	}
	got, err := db.LoadChunk(pos)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bitmask() != 1 {
		t.Fatalf("bitmask = %016b, want 1", got.Bitmask())
	}
}
