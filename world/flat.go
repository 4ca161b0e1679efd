package world

import (
	"fmt"

	"github.com/oriumgames/strata/block"
	"github.com/oriumgames/strata/chunk"
)

// FlatGenerator is a Source that fills every chunk with horizontal layers.
// Layers[i] is the state of every block at y = i. It never declines.
type FlatGenerator struct {
	Layers []uint16
	Air    uint16
}

// NewFlatGenerator returns a generator with one layer each of bedrock, dirt
// and grass, resolved through reg.
func NewFlatGenerator(reg block.Registry) (FlatGenerator, error) {
	return NewLayeredGenerator(reg, "minecraft:bedrock", "minecraft:dirt", "minecraft:grass_block")
}

// NewLayeredGenerator resolves each layer, bottom first, to the default state
// of the named block.
func NewLayeredGenerator(reg block.Registry, names ...string) (FlatGenerator, error) {
	if len(names) > chunk.Height {
		return FlatGenerator{}, fmt.Errorf("%d layers exceed world height %d", len(names), chunk.Height)
	}
	g := FlatGenerator{Layers: make([]uint16, len(names)), Air: block.Air(reg)}
	for i, name := range names {
		id, ok := reg.StateFor(name, nil)
		if !ok {
			return FlatGenerator{}, fmt.Errorf("layer %d: unknown block %q", i, name)
		}
		g.Layers[i] = id
	}
	return g, nil
}

// LoadChunk ...
func (g FlatGenerator) LoadChunk(chunk.Coords) (*chunk.Data, error) {
	d := chunk.NewData(g.Air)
	for y, state := range g.Layers {
		if y >= chunk.Height {
			break
		}
		if state == g.Air {
			continue
		}
		for x := range chunk.Width {
			for z := range chunk.Width {
				d.SetBlock(x, y, z, state)
			}
		}
	}
	return d, nil
}
