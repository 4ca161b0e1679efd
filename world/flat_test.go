package world_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/oriumgames/strata/anvil"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/world"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestFlatGeneratorBehindEmptyWorld(t *testing.T) {
	reg := block.DefaultTable()
	stone, ok := reg.StateFor("minecraft:stone", nil)
	if !ok {
		t.Fatal("stone missing from default table")
	}
	layers := slices.Repeat([]string{"minecraft:stone"}, chunk.SectionHeight)
	gen, err := world.NewLayeredGenerator(reg, layers...)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	store, err := anvil.Config{Log: discard, Registry: reg}.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	w := world.Config{Log: discard, Sources: []world.Source{store, gen}, Store: store}.New()

	l := world.NewListener()
	w.Subscribe(chunk.Coords{}, l)
	var loaded world.ChunkLoaded
	deadline := time.After(2 * time.Second)
	for loaded.Chunk == nil {
		select {
		case <-l.Signal():
		case <-deadline:
			t.Fatal("chunk (0, 0) did not load")
		}
		for _, e := range l.Drain() {
			switch e := e.(type) {
			case world.ChunkLoaded:
				loaded = e
			case world.ChunkLoadFailed:
				t.Fatalf("load failed: %v", e.Err)
			}
		}
	}

	d := loaded.Chunk.Snapshot()
	if d.Bitmask() != 1 {
		t.Fatalf("bitmask = %016b, want 1", d.Bitmask())
	}
	if !d.Section(0).Uniform(stone) {
		t.Fatal("section 0 is not entirely stone")
	}
	if _, err := os.Stat(filepath.Join(dir, "region", "r.0.0.mca")); !os.IsNotExist(err) {
		t.Fatalf("region file exists before any save: %v", err)
	}

	if !w.SetBlock(cube.Pos{5, 70, 5}, 14) {
		t.Fatal("SetBlock on loaded chunk returned false")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := anvil.Config{Log: discard, Registry: reg}.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	saved, err := reopened.LoadChunk(chunk.Coords{})
	if err != nil {
		t.Fatal(err)
	}
	if saved.Block(5, 70, 5) != 14 || !saved.Section(0).Uniform(stone) {
		t.Fatal("saved chunk lost blocks")
	}
}
