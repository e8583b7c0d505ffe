// Package record defines the durable per-player spawn record: its text
// encoding and the store contract.
package record

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"safespawn.ai/internal/spawn/model"
)

const (
	version = "v1"
	sep     = ";"

	// Field counts, including the version tag for v1.
	v1Fields     = 7
	legacyFields = 6
)

// ErrMalformed marks a stored record that cannot be decoded.
var ErrMalformed = errors.New("malformed spawn record")

// Store keeps one record per player. Put must be durable when it returns.
type Store interface {
	Get(ctx context.Context, player uuid.UUID) (model.Coordinate, bool, error)
	Put(ctx context.Context, player uuid.UUID, c model.Coordinate) error
}

// Encode renders c as "v1;world;x;y;z;yaw;pitch". The world name is
// query-escaped so it may contain the separator.
func Encode(c model.Coordinate) string {
	return strings.Join([]string{
		version,
		url.QueryEscape(c.World),
		strconv.FormatFloat(c.X, 'g', -1, 64),
		strconv.FormatFloat(c.Y, 'g', -1, 64),
		strconv.FormatFloat(c.Z, 'g', -1, 64),
		strconv.FormatFloat(float64(c.Yaw), 'g', -1, 32),
		strconv.FormatFloat(float64(c.Pitch), 'g', -1, 32),
	}, sep)
}

// Decode parses a v1 record or the legacy unversioned
// "world;x;y;z;yaw;pitch" form. Trailing fields beyond the schema are
// ignored; missing or unparseable fields yield ErrMalformed. A record
// tagged v1 is never reread as legacy.
func Decode(s string) (model.Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), sep)
	if parts[0] == version {
		if len(parts) < v1Fields {
			return model.Coordinate{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		world, err := url.QueryUnescape(parts[1])
		if err != nil {
			return model.Coordinate{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		c, err := decodeFields(world, parts[2:7])
		if err != nil {
			return model.Coordinate{}, fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		return c, nil
	}
	if len(parts) >= legacyFields {
		if c, err := decodeFields(parts[0], parts[1:6]); err == nil {
			return c, nil
		}
	}
	return model.Coordinate{}, fmt.Errorf("%w: %q", ErrMalformed, s)
}

func decodeFields(world string, f []string) (model.Coordinate, error) {
	if strings.TrimSpace(world) == "" {
		return model.Coordinate{}, ErrMalformed
	}
	var xyz [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(f[i], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return model.Coordinate{}, ErrMalformed
		}
		xyz[i] = v
	}
	yaw, err := strconv.ParseFloat(f[3], 32)
	if err != nil {
		return model.Coordinate{}, ErrMalformed
	}
	pitch, err := strconv.ParseFloat(f[4], 32)
	if err != nil {
		return model.Coordinate{}, ErrMalformed
	}
	return model.Coordinate{
		World: world,
		X:     xyz[0],
		Y:     xyz[1],
		Z:     xyz[2],
		Yaw:   float32(yaw),
		Pitch: float32(pitch),
	}, nil
}

// MemStore is an in-memory Store holding encoded records. Used by tests and
// by the server when persistence is disabled.
type MemStore struct {
	mu   sync.Mutex
	data map[uuid.UUID]string
	puts int
}

func NewMemStore() *MemStore {
	return &MemStore{data: map[uuid.UUID]string{}}
}

func (m *MemStore) Get(_ context.Context, player uuid.UUID) (model.Coordinate, bool, error) {
	m.mu.Lock()
	raw, ok := m.data[player]
	m.mu.Unlock()
	if !ok {
		return model.Coordinate{}, false, nil
	}
	c, err := Decode(raw)
	if err != nil {
		return model.Coordinate{}, false, err
	}
	return c, true, nil
}

func (m *MemStore) Put(_ context.Context, player uuid.UUID, c model.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[player] = Encode(c)
	m.puts++
	return nil
}

// SetRaw stores raw text without encoding it.
func (m *MemStore) SetRaw(player uuid.UUID, raw string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[player] = raw
}

// Puts counts successful Put calls.
func (m *MemStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
