// Package storage opens the chunk stores by name.
package storage

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
	"github.com/oriumgames/strata/anvil"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/ldb"
	"github.com/oriumgames/strata/pile"
	"github.com/oriumgames/strata/world"
)

// Store is a chunk store that can also list its chunks.
type Store interface {
	world.Provider
	world.Lister
}

// Open opens the store of the given kind at path. kind is anvil, pile or
// leveldb. compression is interpreted by the store: a zlib level or none
// for anvil, none, fast, default or best for pile and none, snappy or lz4
// for leveldb. Every store accepts default.
func Open(kind, path, compression string, log *slog.Logger, reg block.Registry) (Store, error) {
	switch kind {
	case "anvil":
		conf := anvil.Config{Log: log, Registry: reg}
		switch compression {
		case "", "default":
			conf.Level = zlib.DefaultCompression
		case "none", "0":
			// zlib level 0 only adds framing, so it is written as an
			// uncompressed sector.
			conf.Uncompressed = true
		default:
			lvl, err := strconv.Atoi(compression)
			if err != nil || lvl < zlib.HuffmanOnly || lvl > zlib.BestCompression {
				return nil, fmt.Errorf("anvil: invalid compression %q", compression)
			}
			conf.Level = lvl
		}
		return conf.Open(path)
	case "pile":
		lvl, err := pile.ParseCompressionLevel(compression)
		if err != nil {
			return nil, err
		}
		conf := pile.Config{Log: log, Registry: reg, Compression: lvl}
		p, err := conf.Open(path)
		if err != nil {
			return nil, err
		}
		p.EnableBackgroundSaves()
		return p, nil
	case "leveldb":
		c, err := ldb.ParseCompressionType(compression)
		if err != nil {
			return nil, err
		}
		conf := ldb.Config{Log: log, Registry: reg, Compression: c}
		return conf.Open(path)
	}
	return nil, fmt.Errorf("unknown storage %q", kind)
}

// ParseTarget splits a "kind:path" argument.
func ParseTarget(s string) (kind, path string, err error) {
	kind, path, ok := strings.Cut(s, ":")
	if !ok || path == "" {
		return "", "", fmt.Errorf("%q: expected <anvil|pile|leveldb>:<path>", s)
	}
	return kind, path, nil
}

// Copy stores every chunk of src in dst and returns the number copied.
func Copy(dst world.Store, src Store) (int, error) {
	positions, err := src.ListChunks()
	if err != nil {
		return 0, fmt.Errorf("list chunks: %w", err)
	}
	for i, pos := range positions {
		d, err := src.LoadChunk(pos)
		if err != nil {
			return i, fmt.Errorf("load chunk %v: %w", pos, err)
		}
		if err := dst.StoreChunk(pos, d); err != nil {
			return i, fmt.Errorf("store chunk %v: %w", pos, err)
		}
	}
	return len(positions), nil
}
