// Package config loads the server's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the content of the configuration file.
type Config struct {
	Log       Log       `yaml:"log"`
	World     World     `yaml:"world"`
	Generator Generator `yaml:"generator"`
	Blocks    Blocks    `yaml:"blocks"`
}

// Log configures the server's logger.
type Log struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level"`
}

// World configures chunk storage and the tick loop.
type World struct {
	// Storage selects the chunk store: anvil, pile or leveldb.
	Storage string `yaml:"storage"`
	// Dir is the world directory, or the file for pile storage.
	Dir string `yaml:"dir"`
	// Compression is passed to the store: a zlib level for anvil, none,
	// fast, default or best for pile, none, snappy or lz4 for leveldb.
	Compression       string   `yaml:"compression"`
	UnloadAfter       Duration `yaml:"unload_after"`
	MaxUnloadsPerTick int      `yaml:"max_unloads_per_tick"`
	TickRate          int      `yaml:"tick_rate"`
	// ViewDistance is the radius in chunks kept loaded around spawn.
	ViewDistance int `yaml:"view_distance"`
	// ChunkRate is the number of chunk subscriptions per second a viewer
	// may make.
	ChunkRate float64 `yaml:"chunk_rate"`
}

// Generator configures the flat generator used for chunks the store lacks.
type Generator struct {
	// Layers are block names filled bottom up by the flat generator.
	Layers []string `yaml:"layers"`
}

// Blocks selects the block state table.
type Blocks struct {
	// Path is a data generator blocks.json report. If empty, the built-in
	// table is used.
	Path string `yaml:"path"`
}

// Default returns the configuration written when no file exists.
func Default() Config {
	return Config{
		Log: Log{Level: "info"},
		World: World{
			Storage:           "anvil",
			Dir:               "world",
			Compression:       "default",
			UnloadAfter:       Duration(10 * time.Second),
			MaxUnloadsPerTick: 2,
			TickRate:          20,
			ViewDistance:      4,
			ChunkRate:         64,
		},
		Generator: Generator{Layers: []string{"minecraft:bedrock", "minecraft:dirt", "minecraft:grass_block"}},
	}
}

// Load reads the configuration at path. Keys missing from the file keep
// their default values. If the file does not exist, the default
// configuration is written to it and returned.
func Load(path string) (Config, error) {
	conf := Default()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return conf, Write(path, conf)
	}
	if err != nil {
		return conf, err
	}
	if err := yaml.Unmarshal(raw, &conf); err != nil {
		return conf, fmt.Errorf("%s: %w", path, err)
	}
	return conf, conf.Validate()
}

// Write encodes conf to path.
func Write(path string, conf Config) error {
	raw, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}

// Validate reports the first value that is out of range.
func (c Config) Validate() error {
	switch c.World.Storage {
	case "anvil", "pile", "leveldb":
	default:
		return fmt.Errorf("world.storage: unknown storage %q", c.World.Storage)
	}
	if c.World.TickRate <= 0 {
		return fmt.Errorf("world.tick_rate: must be positive, got %d", c.World.TickRate)
	}
	if c.World.ViewDistance < 0 {
		return fmt.Errorf("world.view_distance: must not be negative, got %d", c.World.ViewDistance)
	}
	if c.World.ChunkRate <= 0 {
		return fmt.Errorf("world.chunk_rate: must be positive, got %v", c.World.ChunkRate)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(l.Level))
	return lvl, err
}

// Duration is a time.Duration written as a Go duration string, e.g. "10s".
type Duration time.Duration

// UnmarshalYAML decodes a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML encodes d as a duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
