package voxel

// Blocks are the palette ids the generator places.
type Blocks struct {
	Bedrock uint16
	Stone   uint16
	Dirt    uint16
	Grass   uint16
	Sand    uint16
	Cactus  uint16
	Lava    uint16
	Water   uint16
}

type WorldGen struct {
	Seed      int64
	MinY      int
	MaxY      int
	BoundaryR int // blocks, 0 = unbounded

	// Flat worlds are bedrock, stone and a single grass layer at FlatTop.
	Flat    bool
	FlatTop int

	BaseHeight int
	Amplitude  int
	NoiseGrid  int
	SeaLevel   int
	Sea        uint16 // fluid below sea level

	LavaPoolPermille int
	CactusPermille   int

	Blocks Blocks
}

func (g WorldGen) surfaceHeight(wx, wz int) int {
	grid := g.NoiseGrid
	if grid <= 0 {
		grid = 32
	}
	n := valueNoise(g.Seed, wx, wz, grid)
	h := g.BaseHeight + n*2*g.Amplitude/1000 - g.Amplitude
	if h < g.MinY+1 {
		h = g.MinY + 1
	}
	if h > g.MaxY-3 {
		h = g.MaxY - 3
	}
	return h
}

func (g WorldGen) desert(wx, wz int) bool {
	return valueNoise(g.Seed+7, wx, wz, 128) > 650
}

func (g WorldGen) generate(ch *Chunk) {
	b := g.Blocks
	for lz := 0; lz < chunkSize; lz++ {
		for lx := 0; lx < chunkSize; lx++ {
			wx := ch.CX*chunkSize + lx
			wz := ch.CZ*chunkSize + lz
			if g.BoundaryR > 0 && (wx < -g.BoundaryR || wx > g.BoundaryR || wz < -g.BoundaryR || wz > g.BoundaryR) {
				continue
			}
			ch.Set(lx, g.MinY, lz, b.Bedrock)

			if g.Flat {
				for y := g.MinY + 1; y < g.FlatTop; y++ {
					ch.Set(lx, y, lz, b.Stone)
				}
				if g.FlatTop > g.MinY {
					ch.Set(lx, g.FlatTop, lz, b.Grass)
				}
				continue
			}

			h := g.surfaceHeight(wx, wz)
			desert := g.desert(wx, wz)
			for y := g.MinY + 1; y < h; y++ {
				if y < h-3 {
					ch.Set(lx, y, lz, b.Stone)
				} else if desert {
					ch.Set(lx, y, lz, b.Sand)
				} else {
					ch.Set(lx, y, lz, b.Dirt)
				}
			}

			switch {
			case h < g.SeaLevel && g.Sea != 0:
				ch.Set(lx, h, lz, b.Sand)
				for y := h + 1; y <= g.SeaLevel && y <= g.MaxY; y++ {
					ch.Set(lx, y, lz, g.Sea)
				}
			case inCluster(g.Seed+101, wx, wz, 64, 3, uint64(g.LavaPoolPermille)):
				ch.Set(lx, h, lz, b.Lava)
			case desert:
				ch.Set(lx, h, lz, b.Sand)
				if hash2(g.Seed+202, wx, wz)%1000 < uint64(g.CactusPermille) {
					ch.Set(lx, h+1, lz, b.Cactus)
					ch.Set(lx, h+2, lz, b.Cactus)
				}
			default:
				ch.Set(lx, h, lz, b.Grass)
			}
		}
	}
}
