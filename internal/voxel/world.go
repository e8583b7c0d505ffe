// Package voxel is an in-memory chunked block world. The spawn server uses
// it as its reference world, and tests use it as a scriptable terrain.
package voxel

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"safespawn.ai/internal/catalogs"
	"safespawn.ai/internal/spawn/model"
)

var (
	ErrUnknownWorld = errors.New("unknown world")
	ErrNoSurface    = errors.New("no safe surface found")
)

const randomAttempts = 64

type dim struct {
	spec  WorldSpec
	store *ChunkStore
}

// World holds one or more named block worlds sharing a palette.
type World struct {
	cat  *catalogs.BlockCatalog
	dims map[string]*dim

	mu     sync.Mutex
	rng    *rand.Rand
	unsafe func(model.BlockType) bool
}

func New(cat *catalogs.BlockCatalog, seed int64, cfg Config) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &World{
		cat:  cat,
		dims: map[string]*dim{},
		rng:  rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5eed)),
	}
	w.unsafe = func(t model.BlockType) bool {
		return cat.Defs[cat.Name(t)].Liquid
	}
	blocks := Blocks{
		Bedrock: uint16(cat.MustType("BEDROCK")),
		Stone:   uint16(cat.MustType("STONE")),
		Dirt:    uint16(cat.MustType("DIRT")),
		Grass:   uint16(cat.MustType("GRASS")),
		Sand:    uint16(cat.MustType("SAND")),
		Cactus:  uint16(cat.MustType("CACTUS")),
		Lava:    uint16(cat.MustType("LAVA")),
		Water:   uint16(cat.MustType("WATER")),
	}
	for _, spec := range cfg.Worlds {
		var sea uint16
		if spec.SeaBlock != "" {
			t, ok := cat.BlockTypeByName(spec.SeaBlock)
			if !ok {
				return nil, fmt.Errorf("world %s: unknown sea_block %q", spec.ID, spec.SeaBlock)
			}
			sea = uint16(t)
		}
		gen := WorldGen{
			Seed:             seed + spec.SeedOffset,
			MinY:             spec.MinY,
			MaxY:             spec.MaxY,
			BoundaryR:        spec.BoundaryR,
			Flat:             spec.Flat,
			FlatTop:          spec.FlatTop,
			BaseHeight:       spec.BaseHeight,
			Amplitude:        spec.Amplitude,
			NoiseGrid:        spec.NoiseGrid,
			SeaLevel:         spec.SeaLevel,
			Sea:              sea,
			LavaPoolPermille: spec.LavaPoolPermille,
			CactusPermille:   spec.CactusPermille,
			Blocks:           blocks,
		}
		w.dims[spec.ID] = &dim{spec: spec, store: NewChunkStore(gen)}
	}
	return w, nil
}

// SetUnsafe replaces the predicate RandomSpawnLocation uses to reject
// surfaces. The default rejects liquids.
func (w *World) SetUnsafe(f func(model.BlockType) bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unsafe = f
}

func (w *World) Catalog() *catalogs.BlockCatalog { return w.cat }

func (w *World) Worlds() []string {
	out := make([]string, 0, len(w.dims))
	for id := range w.dims {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (w *World) KnownWorld(id string) bool {
	_, ok := w.dims[id]
	return ok
}

func (w *World) Dimension(id string) string {
	if d, ok := w.dims[id]; ok {
		return d.spec.Dimension
	}
	return ""
}

func (w *World) BlockTypeByName(name string) (model.BlockType, bool) {
	return w.cat.BlockTypeByName(name)
}

func (w *World) IsSolid(t model.BlockType) bool { return w.cat.IsSolid(t) }
func (w *World) IsEmpty(t model.BlockType) bool { return w.cat.IsEmpty(t) }

func (w *World) CellType(world string, x, y, z int) model.BlockType {
	d, ok := w.dims[world]
	if !ok {
		return 0
	}
	return model.BlockType(d.store.GetBlock(x, y, z))
}

func (w *World) MinHeight(world string) int {
	if d, ok := w.dims[world]; ok {
		return d.spec.MinY
	}
	return 0
}

func (w *World) MaxHeight(world string) int {
	if d, ok := w.dims[world]; ok {
		return d.spec.MaxY
	}
	return 0
}

func (w *World) HighestNonEmptyY(world string, x, z int) int {
	d, ok := w.dims[world]
	if !ok {
		return 0
	}
	return d.store.Top(x, z)
}

// SetCell writes one cell. Out-of-bounds writes are ignored.
func (w *World) SetCell(world string, x, y, z int, t model.BlockType) error {
	d, ok := w.dims[world]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorld, world)
	}
	d.store.SetBlock(x, y, z, uint16(t))
	return nil
}

// FillColumn sets cells y0..y1 inclusive of one column.
func (w *World) FillColumn(world string, x, z, y0, y1 int, t model.BlockType) error {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		if err := w.SetCell(world, x, y, z, t); err != nil {
			return err
		}
	}
	return nil
}

// RandomSpawnLocation probes random columns within the world's spawn radius
// for a standable surface with two clear cells above it.
func (w *World) RandomSpawnLocation(world string) (model.Coordinate, error) {
	d, ok := w.dims[world]
	if !ok {
		return model.Coordinate{}, fmt.Errorf("%w: %s", ErrUnknownWorld, world)
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	r := d.spec.SpawnRadius
	for i := 0; i < randomAttempts; i++ {
		x := w.rng.IntN(2*r+1) - r
		z := w.rng.IntN(2*r+1) - r
		if !withinRadius(x, z, r) {
			continue
		}
		top := d.store.Top(x, z)
		if top < d.spec.MinY || top+2 > d.spec.MaxY {
			continue
		}
		surface := model.BlockType(d.store.GetBlock(x, top, z))
		if w.cat.IsEmpty(surface) || (w.unsafe != nil && w.unsafe(surface)) {
			continue
		}
		if w.cat.IsSolid(model.BlockType(d.store.GetBlock(x, top+1, z))) ||
			w.cat.IsSolid(model.BlockType(d.store.GetBlock(x, top+2, z))) {
			continue
		}
		return model.Coordinate{
			World: world,
			X:     float64(x) + 0.5,
			Y:     float64(top + 1),
			Z:     float64(z) + 0.5,
		}, nil
	}
	return model.Coordinate{}, fmt.Errorf("%w in %s after %d attempts", ErrNoSurface, world, randomAttempts)
}
