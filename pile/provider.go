package pile

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/world"
)

// Config holds the settings of a Provider.
type Config struct {
	// Log is the Logger to use for save errors and unknown blocks. If nil,
	// defaults to slog.Default().
	Log *slog.Logger
	// Registry resolves block states to and from names. If nil, defaults to
	// block.DefaultTable().
	Registry block.Registry
	// Compression is the level used when the file is written.
	Compression CompressionLevel
	// Streaming writes the file chunk by chunk instead of buffering it.
	Streaming bool
	// ReadOnly opens the file without ever writing it back. Stored chunks
	// are silently dropped.
	ReadOnly bool
}

// Provider serves chunks from a Pile file held in memory. It implements
// world.Source, world.Store and world.Lister.
type Provider struct {
	conf Config
	path string

	mu       sync.RWMutex
	world    *World
	settings *Settings
	dirty    bool

	// Background save subsystem
	saveCh chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

var (
	_ world.Provider = (*Provider)(nil)
	_ world.Lister   = (*Provider)(nil)
)

// Open opens the Pile file at path with default settings.
func Open(path string) (*Provider, error) {
	var conf Config
	return conf.Open(path)
}

// Open reads the Pile file at path. If the file does not exist, an empty
// world is created and written on the first save.
func (conf Config) Open(path string) (*Provider, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("provider", "pile")
	if conf.Registry == nil {
		conf.Registry = block.DefaultTable()
	}

	p := &Provider{
		conf:     conf,
		path:     path,
		world:    NewWorld(),
		settings: defaultSettings(),
	}
	if err := p.load(); err != nil {
		return nil, fmt.Errorf("load pile world: %w", err)
	}
	p.world.SetReadOnly(conf.ReadOnly)
	return p, nil
}

func (p *Provider) load() error {
	f, err := os.Open(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := Read(f)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.path, err)
	}
	p.world = w
	if len(w.UserData) > 0 {
		if err := decodeSettings(w.UserData, p.settings); err != nil {
			p.conf.Log.Warn("load settings", "error", err)
		}
	}
	return nil
}

// LoadChunk ...
func (p *Provider) LoadChunk(pos chunk.Coords) (*chunk.Data, error) {
	p.mu.RLock()
	c := p.world.Chunk(pos.X, pos.Z)
	p.mu.RUnlock()
	if c == nil {
		return nil, fmt.Errorf("pile chunk %v: %w", pos, world.ErrChunkNotFound)
	}

	d, unknown, err := c.data(p.conf.Registry)
	if err != nil {
		return nil, fmt.Errorf("decode pile chunk %v: %w", pos, err)
	}
	if len(unknown) > 0 {
		p.conf.Log.Warn("unknown block states loaded as air", "pos", pos, "states", len(unknown), "first", unknown[0].String())
	}
	return d, nil
}

// StoreChunk ...
func (p *Provider) StoreChunk(pos chunk.Coords, d *chunk.Data) error {
	c, err := chunkFromData(pos, d, p.conf.Registry)
	if err != nil {
		return fmt.Errorf("convert chunk %v: %w", pos, err)
	}

	p.mu.Lock()
	if !p.world.IsReadOnly() {
		p.world.SetChunk(c)
		p.dirty = true
	}
	p.mu.Unlock()

	p.SaveAsync()
	return nil
}

// ListChunks returns the coordinates of every chunk in the file.
func (p *Provider) ListChunks() ([]chunk.Coords, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.world.Positions(), nil
}

// ChunkCount returns the number of chunks in the file.
func (p *Provider) ChunkCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.world.ChunkCount()
}

// Settings returns a copy of the world settings.
func (p *Provider) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := *p.settings
	s.PlayerSpawns = maps.Clone(p.settings.PlayerSpawns)
	return s
}

// SaveSettings replaces the world settings. Player spawns are kept.
func (p *Provider) SaveSettings(s Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spawns := p.settings.PlayerSpawns
	p.settings = &s
	p.settings.PlayerSpawns = spawns
	p.dirty = true
}

// LoadPlayerSpawnPosition loads a player's spawn position.
func (p *Provider) LoadPlayerSpawnPosition(id uuid.UUID) (cube.Pos, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.settings.PlayerSpawns[id]
	return pos, ok
}

// SavePlayerSpawnPosition saves a player's spawn position.
func (p *Provider) SavePlayerSpawnPosition(id uuid.UUID, pos cube.Pos) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings.PlayerSpawns[id] = pos
	p.dirty = true
}

// IsDirty returns whether the provider has unsaved changes.
func (p *Provider) IsDirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// Save writes the world to disk.
func (p *Provider) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveInternal()
}

// Close stops background saves and writes pending changes.
func (p *Provider) Close() error {
	p.DisableBackgroundSaves()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		return p.saveInternal()
	}
	return nil
}

// saveInternal writes the world to a temporary file and renames it over the
// old one. Must be called with lock held.
func (p *Provider) saveInternal() error {
	if p.world.IsReadOnly() {
		return nil
	}
	settings, err := encodeSettings(p.settings)
	if err != nil {
		return err
	}
	p.world.UserData = settings

	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create pile directory: %w", err)
	}
	tmp := p.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if p.conf.Streaming {
		err = WriteStreaming(f, p.world, p.conf.Compression)
	} else {
		err = WriteWithCompression(f, p.world, p.conf.Compression)
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("replace %s: %w", p.path, err)
	}

	p.world.ClearDirty()
	p.dirty = false
	return nil
}

// EnableBackgroundSaves starts a goroutine that writes the file after
// chunks are stored, coalescing requests that arrive while it is busy.
func (p *Provider) EnableBackgroundSaves() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveCh != nil {
		return
	}
	p.saveCh = make(chan struct{}, 1)
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	go p.runSaver(p.saveCh, p.stopCh, p.done)
}

// DisableBackgroundSaves stops the background saver and waits for a save in
// progress to finish.
func (p *Provider) DisableBackgroundSaves() {
	p.mu.Lock()
	stop, done := p.stopCh, p.done
	p.saveCh, p.stopCh, p.done = nil, nil, nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// SaveAsync schedules a background save and returns immediately. It is a
// no-op unless background saves are enabled.
func (p *Provider) SaveAsync() {
	p.mu.RLock()
	ch := p.saveCh
	p.mu.RUnlock()
	if ch == nil {
		return
	}
	// Non-blocking signal: coalesce multiple save requests.
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *Provider) runSaver(saveCh, stopCh, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-saveCh:
			p.mu.Lock()
			err := p.saveInternal()
			p.mu.Unlock()
			if err != nil {
				p.conf.Log.Error("background save", "path", p.path, "error", err)
			}
		case <-stopCh:
			return
		}
	}
}
