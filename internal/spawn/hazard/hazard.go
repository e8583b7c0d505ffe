package hazard

import (
	"log"
	"strings"

	"safespawn.ai/internal/spawn/model"
)

// DefaultNames is used when the config does not list any hazard blocks.
var DefaultNames = []string{"LAVA", "WATER", "FIRE", "MAGMA", "CACTUS"}

// Palette resolves block names to block types and answers solidity.
type Palette interface {
	BlockTypeByName(name string) (model.BlockType, bool)
	IsSolid(t model.BlockType) bool
}

// Classifier decides whether a cell is unsafe to occupy or to stand on.
// The set is fixed after construction and safe for concurrent reads.
type Classifier struct {
	set   map[model.BlockType]struct{}
	solid func(model.BlockType) bool
}

// NewClassifier resolves names against the palette. Unknown names are logged
// and skipped.
func NewClassifier(p Palette, names []string, logger *log.Logger) *Classifier {
	if len(names) == 0 {
		names = DefaultNames
	}
	c := &Classifier{
		set:   make(map[model.BlockType]struct{}, len(names)),
		solid: p.IsSolid,
	}
	for _, n := range names {
		n = strings.ToUpper(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		t, ok := p.BlockTypeByName(n)
		if !ok {
			if logger != nil {
				logger.Printf("warn: unknown hazard block %q, skipping", n)
			}
			continue
		}
		c.set[t] = struct{}{}
	}
	return c
}

// IsBodyHazard reports whether a body occupying a cell of this type would be
// suffocated or harmed.
func (c *Classifier) IsBodyHazard(t model.BlockType) bool {
	if c.solid != nil && c.solid(t) {
		return true
	}
	_, ok := c.set[t]
	return ok
}

// IsFloorHazard reports whether standing on top of this type is unsafe.
func (c *Classifier) IsFloorHazard(t model.BlockType) bool {
	_, ok := c.set[t]
	return ok
}

// Len is the number of resolved hazard types.
func (c *Classifier) Len() int { return len(c.set) }
