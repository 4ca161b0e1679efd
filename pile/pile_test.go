package pile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/world"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// testTable registers air and n numbered blocks with ids 1..n.
func testTable(n int) *block.Table {
	t := block.NewTable()
	t.Register(0, block.State{Name: block.AirName}, true)
	for i := 1; i <= n; i++ {
		t.Register(uint16(i), block.State{Name: fmt.Sprintf("test:block_%d", i)}, true)
	}
	return t
}

func testData() *chunk.Data {
	d := chunk.NewData(0)
	for x := range 16 {
		for z := range 16 {
			d.SetBlock(x, 0, z, 1)
		}
	}
	d.SetBlock(3, 70, 9, 2)
	// Section 2 goes direct.
	for i := range 300 {
		d.SetBlock(i%16, 32+i/256, (i/16)%16, uint16(i+1))
	}
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

func TestProviderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.pile")
	conf := Config{Log: discard, Registry: testTable(300)}
	p, err := conf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	d := testData()
	pos := chunk.Coords{X: -4, Z: 7}
	if err := p.StoreChunk(pos, d); err != nil {
		t.Fatal(err)
	}
	if !p.IsDirty() {
		t.Fatal("stored chunk did not mark the provider dirty")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	p, err = conf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	got, err := p.LoadChunk(pos)
	if err != nil {
		t.Fatal(err)
	}
	sameBlocks(t, d, got)
	if got.Bitmask() != d.Bitmask() {
		t.Fatalf("bitmask = %016b, want %016b", got.Bitmask(), d.Bitmask())
	}
	list, _ := p.ListChunks()
	if len(list) != 1 || list[0] != pos {
		t.Fatalf("ListChunks = %v", list)
	}

	if _, err := p.LoadChunk(chunk.Coords{}); !errors.Is(err, world.ErrChunkNotFound) {
		t.Fatalf("missing chunk error = %v", err)
	}
}

func TestWriteModes(t *testing.T) {
	w := NewWorld()
	reg := testTable(300)
	for x := range int32(4) {
		c, err := chunkFromData(chunk.Coords{X: x, Z: -x}, testData(), reg)
		if err != nil {
			t.Fatal(err)
		}
		w.SetChunk(c)
	}

	for _, level := range []CompressionLevel{CompressionLevelNone, CompressionLevelFast, CompressionLevelDefault, CompressionLevelBest} {
		for _, streaming := range []bool{false, true} {
			var buf bytes.Buffer
			var err error
			if streaming {
				err = WriteStreaming(&buf, w, level)
			} else {
				err = WriteWithCompression(&buf, w, level)
			}
			if err != nil {
				t.Fatalf("level %d streaming %v: %v", level, streaming, err)
			}
			compressed := buf.Bytes()[6] == CompressionZstd
			if compressed != (level != CompressionLevelNone) {
				t.Errorf("level %d streaming %v: compressed = %v", level, streaming, compressed)
			}

			got, err := Read(&buf)
			if err != nil {
				t.Fatalf("level %d streaming %v: read: %v", level, streaming, err)
			}
			if got.ChunkCount() != 4 {
				t.Fatalf("read %d chunks, want 4", got.ChunkCount())
			}
			c := got.Chunk(2, -2)
			if c == nil || len(c.Sections) != len(w.Chunk(2, -2).Sections) {
				t.Fatalf("chunk (2, -2) = %+v", c)
			}
			if fmt.Sprint(c.Sections[0].Palette) != fmt.Sprint(w.Chunk(2, -2).Sections[0].Palette) {
				t.Fatal("palette changed in round trip")
			}
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte("Nope and more"))); err == nil {
		t.Fatal("expected error for bad magic")
	}
	var buf bytes.Buffer
	if err := writeHeader(&buf, CurrentVersion+1, CompressionNone, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(&buf); err == nil {
		t.Fatal("expected error for future version")
	}
	buf.Reset()
	_ = writeHeader(&buf, CurrentVersion, 7, 0)
	if _, err := Read(&buf); err == nil {
		t.Fatal("expected error for unknown compression")
	}
}

func TestSettingsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "world.pile")
	p, err := Config{Log: discard}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s := p.Settings()
	s.Name, s.Spawn, s.Time, s.TimeCycle, s.CurrentTick = "lobby", cube.Pos{10, 80, -3}, 1234, false, 99
	p.SaveSettings(s)
	id := uuid.New()
	p.SavePlayerSpawnPosition(id, cube.Pos{1, 2, 3})
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	p, err = Config{Log: discard}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	got := p.Settings()
	if got.Name != "lobby" || got.Spawn != (cube.Pos{10, 80, -3}) || got.Time != 1234 || got.TimeCycle || got.CurrentTick != 99 {
		t.Fatalf("settings = %+v", got)
	}
	if pos, ok := p.LoadPlayerSpawnPosition(id); !ok || pos != (cube.Pos{1, 2, 3}) {
		t.Fatalf("player spawn = %v, %v", pos, ok)
	}
	if _, ok := p.LoadPlayerSpawnPosition(uuid.New()); ok {
		t.Fatal("unknown player has a spawn")
	}
}

func TestReadOnlyProviderNeverWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.pile")
	p, err := Config{Log: discard, ReadOnly: true}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.StoreChunk(chunk.Coords{}, chunk.NewData(0)); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if p.ChunkCount() != 0 {
		t.Fatal("read-only provider stored a chunk")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read-only provider wrote its file: %v", err)
	}
}

func TestBackgroundSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.pile")
	p, err := Config{Log: discard, Registry: testTable(2)}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	p.EnableBackgroundSaves()
	d := chunk.NewData(0)
	d.SetBlock(0, 0, 0, 2)
	if err := p.StoreChunk(chunk.Coords{X: 1}, d); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.IsDirty() {
		if time.Now().After(deadline) {
			t.Fatal("background save did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w, err := Read(f)
	if err != nil || w.Chunk(1, 0) == nil {
		t.Fatalf("saved file: %v", err)
	}
}

func TestUnknownStatesLoadAsAir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.pile")
	p, err := Config{Log: discard, Registry: testTable(2)}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	d := chunk.NewData(0)
	d.SetBlock(0, 0, 0, 1)
	d.SetBlock(1, 0, 0, 2)
	_ = p.StoreChunk(chunk.Coords{}, d)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}

	p, err = Config{Log: discard, Registry: testTable(1)}.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	got, err := p.LoadChunk(chunk.Coords{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Block(0, 0, 0) != 1 || got.Block(1, 0, 0) != 0 {
		t.Fatalf("blocks = %d, %d; want 1, 0", got.Block(0, 0, 0), got.Block(1, 0, 0))
	}
}
