// Package ldb stores chunks in a LevelDB database, one key per section,
// keyed the way Bedrock worlds key their sub chunks.
package ldb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/world"
	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// chunkVersion is the version written for every stored chunk.
const chunkVersion = 1

// Key tags appended to the chunk position.
const (
	keyVersion      = ',' // 44
	keySubChunkData = '/' // 47
)

// Config holds the settings of a DB.
type Config struct {
	// Log is the Logger to use for unknown blocks. If nil, defaults to
	// slog.Default().
	Log *slog.Logger
	// Registry resolves block states to and from names. If nil, defaults to
	// block.DefaultTable().
	Registry block.Registry
	// Compression is applied to every section value. LevelDB's own block
	// compression is disabled.
	Compression CompressionType
}

// DB is a chunk store backed by LevelDB. It implements world.Source,
// world.Store and world.Lister.
type DB struct {
	conf Config
	ldb  *leveldb.DB
}

var (
	_ world.Provider = (*DB)(nil)
	_ world.Lister   = (*DB)(nil)
)

// Open opens the database under dir with default settings.
func Open(dir string) (*DB, error) {
	conf := Config{Compression: CompressionLZ4}
	return conf.Open(dir)
}

// Open opens or creates the database under dir.
func (conf Config) Open(dir string) (*DB, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("provider", "leveldb")
	if conf.Registry == nil {
		conf.Registry = block.DefaultTable()
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(dir, &opt.Options{
		Compression: opt.NoCompression,
		BlockSize:   16 * opt.KiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb database: %w", err)
	}
	return &DB{conf: conf, ldb: db}, nil
}

// index returns the key prefix of a chunk: x and z as little endian int32.
func index(pos chunk.Coords) []byte {
	b := make([]byte, 8, 10)
	binary.LittleEndian.PutUint32(b, uint32(pos.X))
	binary.LittleEndian.PutUint32(b[4:], uint32(pos.Z))
	return b
}

func subChunkKey(pos chunk.Coords, y int) []byte {
	return append(index(pos), keySubChunkData, byte(y))
}

// sectionTag is the NBT form of a section value.
type sectionTag struct {
	Y       int32      `nbt:"Y"`
	Palette []stateTag `nbt:"Palette"`
	States  []int64    `nbt:"States"`
}

type stateTag struct {
	Name       string            `nbt:"name"`
	Properties map[string]string `nbt:"states"`
}

// LoadChunk ...
func (db *DB) LoadChunk(pos chunk.Coords) (*chunk.Data, error) {
	if _, err := db.ldb.Get(append(index(pos), keyVersion), nil); err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, fmt.Errorf("leveldb chunk %v: %w", pos, world.ErrChunkNotFound)
		}
		return nil, fmt.Errorf("read version of chunk %v: %w", pos, err)
	}

	records := make([]chunk.SectionRecord, 0, chunk.SectionCount)
	for y := range chunk.SectionCount {
		value, err := db.ldb.Get(subChunkKey(pos, y), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			// No sub chunk present at this Y level.
			continue
		} else if err != nil {
			return nil, fmt.Errorf("read sub chunk %d of chunk %v: %w", y, pos, err)
		}
		rec, err := decodeSection(value)
		if err != nil {
			return nil, fmt.Errorf("decode sub chunk %d of chunk %v: %w", y, pos, err)
		}
		records = append(records, rec)
	}

	d, unknown, err := chunk.FromRecords(db.conf.Registry, records)
	if err != nil {
		return nil, fmt.Errorf("chunk %v: %w", pos, err)
	}
	if len(unknown) > 0 {
		db.conf.Log.Warn("unknown block states loaded as air", "pos", pos, "states", len(unknown), "first", unknown[0].String())
	}
	return d, nil
}

func decodeSection(value []byte) (chunk.SectionRecord, error) {
	data, err := decompress(value)
	if err != nil {
		return chunk.SectionRecord{}, err
	}
	var tag sectionTag
	if err := nbt.UnmarshalEncoding(data, &tag, nbt.LittleEndian); err != nil {
		return chunk.SectionRecord{}, err
	}
	if tag.Y < 0 || tag.Y >= chunk.SectionCount {
		return chunk.SectionRecord{}, fmt.Errorf("section y %d out of range", tag.Y)
	}
	rec := chunk.SectionRecord{Y: int8(tag.Y), Palette: make([]block.State, len(tag.Palette)), States: tag.States}
	for i, st := range tag.Palette {
		rec.Palette[i] = block.State{Name: st.Name, Properties: st.Properties}
		if len(st.Properties) == 0 {
			rec.Palette[i].Properties = nil
		}
	}
	return rec, nil
}

// StoreChunk writes every section of d in one batch and removes the ones
// that are no longer present.
func (db *DB) StoreChunk(pos chunk.Coords, d *chunk.Data) error {
	records, err := d.Records(db.conf.Registry)
	if err != nil {
		return fmt.Errorf("encode chunk %v: %w", pos, err)
	}

	batch := new(leveldb.Batch)
	batch.Put(append(index(pos), keyVersion), []byte{chunkVersion})
	present := make([]bool, chunk.SectionCount)
	for _, rec := range records {
		tag := sectionTag{Y: int32(rec.Y), Palette: make([]stateTag, len(rec.Palette)), States: rec.States}
		for i, st := range rec.Palette {
			tag.Palette[i] = stateTag{Name: st.Name, Properties: st.Properties}
			if tag.Palette[i].Properties == nil {
				tag.Palette[i].Properties = map[string]string{}
			}
		}
		data, err := nbt.MarshalEncoding(tag, nbt.LittleEndian)
		if err != nil {
			return fmt.Errorf("encode sub chunk %d of chunk %v: %w", rec.Y, pos, err)
		}
		batch.Put(subChunkKey(pos, int(rec.Y)), compress(data, db.conf.Compression))
		present[rec.Y] = true
	}
	for y, ok := range present {
		if !ok {
			batch.Delete(subChunkKey(pos, y))
		}
	}
	if err := db.ldb.Write(batch, nil); err != nil {
		return fmt.Errorf("write chunk %v: %w", pos, err)
	}
	return nil
}

// ListChunks returns the coordinates of every stored chunk.
func (db *DB) ListChunks() ([]chunk.Coords, error) {
	iter := db.ldb.NewIterator(nil, nil)
	defer iter.Release()

	var out []chunk.Coords
	for iter.Next() {
		key := iter.Key()
		if len(key) != 9 || key[8] != keyVersion {
			continue
		}
		out = append(out, chunk.Coords{
			X: int32(binary.LittleEndian.Uint32(key)),
			Z: int32(binary.LittleEndian.Uint32(key[4:])),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.ldb.Close()
}
