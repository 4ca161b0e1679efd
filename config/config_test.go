package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(conf, Default()) {
		t.Fatalf("config = %+v, want defaults", conf)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "unload_after: 10s") {
		t.Fatalf("default file:\n%s", raw)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(again, conf) {
		t.Fatalf("reloaded config = %+v", again)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	raw := `
log:
  level: debug
world:
  storage: pile
  dir: lobby.pile
  unload_after: 1m30s
generator:
  layers: [minecraft:stone]
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}
	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.World.Storage != "pile" || conf.World.Dir != "lobby.pile" {
		t.Fatalf("world = %+v", conf.World)
	}
	if time.Duration(conf.World.UnloadAfter) != 90*time.Second {
		t.Fatalf("unload_after = %v", time.Duration(conf.World.UnloadAfter))
	}
	if conf.World.TickRate != 20 || conf.World.MaxUnloadsPerTick != 2 {
		t.Fatal("unset keys lost their defaults")
	}
	if len(conf.Generator.Layers) != 1 || conf.Generator.Layers[0] != "minecraft:stone" {
		t.Fatalf("layers = %v", conf.Generator.Layers)
	}
	if lvl, _ := conf.Log.SlogLevel(); lvl != slog.LevelDebug {
		t.Fatalf("level = %v", lvl)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"duration": "world:\n  unload_after: soon\n",
		"storage":  "world:\n  storage: floppy\n",
		"level":    "log:\n  level: loud\n",
		"tick":     "world:\n  tick_rate: 0\n",
		"rate":     "world:\n  chunk_rate: 0\n",
	}
	for name, raw := range cases {
		path := filepath.Join(t.TempDir(), name+".yml")
		if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
