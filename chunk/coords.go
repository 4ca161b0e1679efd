package chunk

import (
	"fmt"

	"github.com/df-mc/dragonfly/server/block/cube"
)

const (
	// Width is the horizontal size of a chunk in blocks.
	Width = 16
	// Height is the number of blocks in a chunk column.
	Height = 256
	// SectionHeight is the height of a single section.
	SectionHeight = 16
	// SectionCount is the number of sections stacked in a chunk.
	SectionCount = Height / SectionHeight
	// SectionVolume is the number of blocks in a section.
	SectionVolume = Width * Width * SectionHeight
)

// Coords identifies a chunk column. Block x and z are floor-divided by Width.
type Coords struct {
	X, Z int32
}

// FromBlock returns the coordinates of the chunk holding block column x, z.
func FromBlock(x, z int) Coords {
	return Coords{X: int32(x >> 4), Z: int32(z >> 4)}
}

// FromPos returns the coordinates of the chunk holding pos.
func FromPos(pos cube.Pos) Coords {
	return FromBlock(pos.X(), pos.Z())
}

// Relative converts an absolute block position to a position relative to the
// chunk's origin. y is passed through unchanged.
func (c Coords) Relative(pos cube.Pos) (x, y, z int) {
	return pos.X() - int(c.X)*Width, pos.Y(), pos.Z() - int(c.Z)*Width
}

// Global converts a chunk-relative position back to an absolute one.
func (c Coords) Global(x, y, z int) cube.Pos {
	return cube.Pos{int(c.X)*Width + x, y, int(c.Z)*Width + z}
}

// String ...
func (c Coords) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Z)
}
