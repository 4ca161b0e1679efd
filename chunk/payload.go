package chunk

import (
	"fmt"

	"github.com/Tnze/go-mc/nbt"
)

// Payload is everything a chunk data packet carries for a full column.
type Payload struct {
	X, Z       int32
	FullChunk  bool
	Bitmask    uint16
	HeightMaps []byte // Java NBT compound
	Biomes     []int32
	Data       []byte
}

type heightMaps struct {
	MotionBlocking []int64 `nbt:"MOTION_BLOCKING"`
}

// Payload builds the network form of d at pos.
func (d *Data) Payload(pos Coords) (Payload, error) {
	hm, err := nbt.Marshal(heightMaps{MotionBlocking: d.HeightMap().Int64s()})
	if err != nil {
		return Payload{}, fmt.Errorf("encode heightmap: %w", err)
	}
	return Payload{
		X:          pos.X,
		Z:          pos.Z,
		FullChunk:  true,
		Bitmask:    d.Bitmask(),
		HeightMaps: hm,
		Biomes:     d.Biomes(),
		Data:       d.AppendSections(nil),
	}, nil
}
