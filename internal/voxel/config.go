package voxel

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Worlds []WorldSpec `yaml:"worlds"`
}

type WorldSpec struct {
	ID          string `yaml:"id"`
	Dimension   string `yaml:"dimension"`
	SeedOffset  int64  `yaml:"seed_offset"`
	MinY        int    `yaml:"min_y"`
	MaxY        int    `yaml:"max_y"`
	BoundaryR   int    `yaml:"boundary_r"`
	SpawnRadius int    `yaml:"spawn_radius"`

	Flat    bool `yaml:"flat"`
	FlatTop int  `yaml:"flat_top"`

	BaseHeight       int    `yaml:"base_height"`
	Amplitude        int    `yaml:"amplitude"`
	NoiseGrid        int    `yaml:"noise_grid"`
	SeaLevel         int    `yaml:"sea_level"`
	SeaBlock         string `yaml:"sea_block"`
	LavaPoolPermille int    `yaml:"lava_pool_permille"`
	CactusPermille   int    `yaml:"cactus_permille"`
}

func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		cfg := DefaultConfig()
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() Config {
	return Config{
		Worlds: []WorldSpec{
			{
				ID:               "world",
				Dimension:        "OVERWORLD",
				MinY:             -64,
				MaxY:             319,
				BoundaryR:        4000,
				SpawnRadius:      1000,
				BaseHeight:       68,
				Amplitude:        20,
				NoiseGrid:        48,
				SeaLevel:         62,
				SeaBlock:         "WATER",
				LavaPoolPermille: 150,
				CactusPermille:   40,
			},
			{
				ID:               "world_nether",
				Dimension:        "NETHER",
				SeedOffset:       1,
				MinY:             0,
				MaxY:             127,
				BoundaryR:        1000,
				SpawnRadius:      250,
				BaseHeight:       40,
				Amplitude:        16,
				NoiseGrid:        24,
				SeaLevel:         31,
				SeaBlock:         "LAVA",
				LavaPoolPermille: 400,
			},
		},
	}
}

func (c *Config) Normalize() {
	for i := range c.Worlds {
		w := &c.Worlds[i]
		w.ID = strings.TrimSpace(w.ID)
		w.Dimension = strings.ToUpper(strings.TrimSpace(w.Dimension))
		if w.Dimension == "" {
			w.Dimension = "OVERWORLD"
		}
		w.SeaBlock = strings.ToUpper(strings.TrimSpace(w.SeaBlock))
		if w.SpawnRadius <= 0 {
			w.SpawnRadius = 256
		}
	}
}

func (c Config) Validate() error {
	if len(c.Worlds) == 0 {
		return fmt.Errorf("worlds must not be empty")
	}
	seen := map[string]bool{}
	for _, w := range c.Worlds {
		if w.ID == "" {
			return fmt.Errorf("world id must not be empty")
		}
		if seen[w.ID] {
			return fmt.Errorf("duplicate world id: %s", w.ID)
		}
		seen[w.ID] = true
		if w.MaxY-w.MinY < 4 {
			return fmt.Errorf("world %s needs max_y - min_y >= 4", w.ID)
		}
		if w.BoundaryR < 0 {
			return fmt.Errorf("world %s boundary_r must be >= 0", w.ID)
		}
		if w.Flat && (w.FlatTop <= w.MinY || w.FlatTop >= w.MaxY) {
			return fmt.Errorf("world %s flat_top must be in (min_y, max_y)", w.ID)
		}
	}
	return nil
}
