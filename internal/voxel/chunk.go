package voxel

import "sync"

const chunkSize = 16

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is a 16x16 column stack covering [MinY, MinY+Height).
type Chunk struct {
	CX, CZ int
	MinY   int
	Height int
	Blocks []uint16 // len = 16*16*Height, index x + z*16 + (y-MinY)*256

	// top[x+z*16] is the highest non-air y, or MinY-1 for an empty column.
	top []int
}

func newChunk(cx, cz, minY, height int) *Chunk {
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		MinY:   minY,
		Height: height,
		Blocks: make([]uint16, chunkSize*chunkSize*height),
		top:    make([]int, chunkSize*chunkSize),
	}
	for i := range ch.top {
		ch.top[i] = minY - 1
	}
	return ch
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*chunkSize + (y-c.MinY)*chunkSize*chunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	col := x + z*chunkSize
	switch {
	case b != 0 && y > c.top[col]:
		c.top[col] = y
	case b == 0 && y == c.top[col]:
		c.rescan(x, z)
	}
}

func (c *Chunk) Top(x, z int) int {
	return c.top[x+z*chunkSize]
}

func (c *Chunk) rescan(x, z int) {
	col := x + z*chunkSize
	for y := c.MinY + c.Height - 1; y >= c.MinY; y-- {
		if c.Blocks[c.index(x, y, z)] != 0 {
			c.top[col] = y
			return
		}
	}
	c.top[col] = c.MinY - 1
}

// ChunkStore generates chunks lazily and keeps them in memory.
type ChunkStore struct {
	Gen WorldGen

	mu     sync.Mutex
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		Gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) InBounds(x, y, z int) bool {
	if y < s.Gen.MinY || y > s.Gen.MaxY {
		return false
	}
	if s.Gen.BoundaryR > 0 {
		if x < -s.Gen.BoundaryR || x > s.Gen.BoundaryR || z < -s.Gen.BoundaryR || z > s.Gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) GetBlock(x, y, z int) uint16 {
	if !s.InBounds(x, y, z) {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.chunkLocked(floorDiv(x, chunkSize), floorDiv(z, chunkSize))
	return ch.Get(mod(x, chunkSize), y, mod(z, chunkSize))
}

func (s *ChunkStore) SetBlock(x, y, z int, b uint16) {
	if !s.InBounds(x, y, z) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.chunkLocked(floorDiv(x, chunkSize), floorDiv(z, chunkSize))
	ch.Set(mod(x, chunkSize), y, mod(z, chunkSize), b)
}

// Top returns the highest non-air y of a column, or MinY-1 when the column
// is empty or out of bounds.
func (s *ChunkStore) Top(x, z int) int {
	if !s.InBounds(x, s.Gen.MinY, z) {
		return s.Gen.MinY - 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := s.chunkLocked(floorDiv(x, chunkSize), floorDiv(z, chunkSize))
	return ch.Top(mod(x, chunkSize), mod(z, chunkSize))
}

func (s *ChunkStore) chunkLocked(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := newChunk(cx, cz, s.Gen.MinY, s.Gen.MaxY-s.Gen.MinY+1)
	s.Gen.generate(ch)
	s.chunks[k] = ch
	return ch
}
