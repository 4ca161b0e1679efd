package anvil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Tnze/go-mc/save/region"
	"github.com/klauspost/compress/zlib"
	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
	"github.com/oriumgames/strata/world"
)

// Config holds the settings of a Provider.
type Config struct {
	// Log is the Logger to use for unknown blocks. If nil, defaults to
	// slog.Default().
	Log *slog.Logger
	// Registry resolves block states to and from names. If nil, defaults to
	// block.DefaultTable().
	Registry block.Registry
	// Level is the zlib level chunks are written with. Zero selects
	// zlib.DefaultCompression.
	Level int
	// Uncompressed writes chunks without compression. Use it instead of
	// zlib.NoCompression.
	Uncompressed bool
}

// Provider stores chunks in the region directory of a world. It implements
// world.Source, world.Store and world.Lister. Region files are opened on
// first use and kept open until Close.
type Provider struct {
	conf Config
	dir  string

	mu      sync.Mutex
	regions map[[2]int32]*region.Region
}

var (
	_ world.Provider = (*Provider)(nil)
	_ world.Lister   = (*Provider)(nil)
)

// Open opens the world at dir with default settings.
func Open(dir string) (*Provider, error) {
	var conf Config
	return conf.Open(dir)
}

// Open opens the world at dir, creating its region directory if needed.
func (conf Config) Open(dir string) (*Provider, error) {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	conf.Log = conf.Log.With("provider", "anvil")
	if conf.Registry == nil {
		conf.Registry = block.DefaultTable()
	}
	if conf.Level == 0 {
		conf.Level = zlib.DefaultCompression
	}
	p := &Provider{conf: conf, dir: filepath.Join(dir, "region"), regions: make(map[[2]int32]*region.Region)}
	if err := os.MkdirAll(p.dir, 0755); err != nil {
		return nil, fmt.Errorf("create region directory: %w", err)
	}
	return p, nil
}

// regionPos returns the region holding pos and the chunk's index inside it.
func regionPos(pos chunk.Coords) (r [2]int32, x, z int) {
	return [2]int32{pos.X >> 5, pos.Z >> 5}, int(pos.X & 31), int(pos.Z & 31)
}

func (p *Provider) regionPath(r [2]int32) string {
	return filepath.Join(p.dir, fmt.Sprintf("r.%d.%d.mca", r[0], r[1]))
}

// region returns the open region file r. Must be called with p.mu held.
func (p *Provider) region(r [2]int32, create bool) (*region.Region, error) {
	if reg, ok := p.regions[r]; ok {
		return reg, nil
	}
	path := p.regionPath(r)
	reg, err := region.Open(path)
	if errors.Is(err, os.ErrNotExist) && create {
		reg, err = region.Create(path)
	}
	if err != nil {
		return nil, err
	}
	p.regions[r] = reg
	return reg, nil
}

// LoadChunk ...
func (p *Provider) LoadChunk(pos chunk.Coords) (*chunk.Data, error) {
	r, x, z := regionPos(pos)

	p.mu.Lock()
	reg, err := p.region(r, false)
	if errors.Is(err, os.ErrNotExist) {
		p.mu.Unlock()
		return nil, fmt.Errorf("anvil chunk %v: %w", pos, world.ErrChunkNotFound)
	}
	if err != nil {
		p.mu.Unlock()
		return nil, fmt.Errorf("open region %v: %w", r, err)
	}
	if !reg.ExistSector(x, z) {
		p.mu.Unlock()
		return nil, fmt.Errorf("anvil chunk %v: %w", pos, world.ErrChunkNotFound)
	}
	sector, err := reg.ReadSector(x, z)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("read sector of chunk %v: %w", pos, err)
	}

	data, err := decompress(sector)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk %v: %w", pos, err)
	}
	_, d, unknown, err := decodeChunk(data, p.conf.Registry)
	if err != nil {
		return nil, fmt.Errorf("chunk %v: %w", pos, err)
	}
	if len(unknown) > 0 {
		p.conf.Log.Warn("unknown block states loaded as air", "pos", pos, "states", len(unknown), "first", unknown[0].String())
	}
	return d, nil
}

// StoreChunk ...
func (p *Provider) StoreChunk(pos chunk.Coords, d *chunk.Data) error {
	data, err := encodeChunk(pos, d, p.conf.Registry)
	if err != nil {
		return fmt.Errorf("encode chunk %v: %w", pos, err)
	}
	sector, err := compress(data, p.conf.Level, p.conf.Uncompressed)
	if err != nil {
		return fmt.Errorf("compress chunk %v: %w", pos, err)
	}

	r, x, z := regionPos(pos)
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, err := p.region(r, true)
	if err != nil {
		return fmt.Errorf("open region %v: %w", r, err)
	}
	if err := reg.WriteSector(x, z, sector); err != nil {
		return fmt.Errorf("write sector of chunk %v: %w", pos, err)
	}
	return nil
}

// ListChunks returns the coordinates of every chunk in every region file.
func (p *Provider) ListChunks() ([]chunk.Coords, error) {
	files, err := filepath.Glob(filepath.Join(p.dir, "r.*.*.mca"))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var out []chunk.Coords
	for _, f := range files {
		var r [2]int32
		if _, err := fmt.Sscanf(filepath.Base(f), "r.%d.%d.mca", &r[0], &r[1]); err != nil {
			continue
		}
		reg, err := p.region(r, false)
		if err != nil {
			return nil, fmt.Errorf("open region %v: %w", r, err)
		}
		for x := range 32 {
			for z := range 32 {
				if reg.ExistSector(x, z) {
					out = append(out, chunk.Coords{X: r[0]<<5 | int32(x), Z: r[1]<<5 | int32(z)})
				}
			}
		}
	}
	return out, nil
}

// Close closes every open region file.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for r, reg := range p.regions {
		if err := reg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close region %v: %w", r, err))
		}
		delete(p.regions, r)
	}
	return errors.Join(errs...)
}
