// Package model holds the value types shared by the spawn pipeline and the
// narrow terrain surface it queries.
package model

import (
	"fmt"
	"math"
)

// BlockType is a palette index into the block catalog. Index 0 is AIR.
type BlockType uint16

// Coordinate is a position plus facing inside a named world.
type Coordinate struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// Block returns the integer cell containing the coordinate.
func (c Coordinate) Block() (x, y, z int) {
	return int(math.Floor(c.X)), int(math.Floor(c.Y)), int(math.Floor(c.Z))
}

func (c Coordinate) String() string {
	x, y, z := c.Block()
	return fmt.Sprintf("%s(%d,%d,%d)", c.World, x, y, z)
}

// Terrain is the read-only world surface the searches need. Implementations
// must answer from live state; callers never cache results.
type Terrain interface {
	CellType(world string, x, y, z int) BlockType
	IsSolid(t BlockType) bool
	IsEmpty(t BlockType) bool
	MinHeight(world string) int
	MaxHeight(world string) int
	HighestNonEmptyY(world string, x, z int) int
}
