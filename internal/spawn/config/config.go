package config

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"safespawn.ai/internal/spawn/hazard"
)

type Config struct {
	BlacklistedWorlds  []string                 `yaml:"blacklisted_worlds"`
	HazardBlocks       []string                 `yaml:"hazard_blocks"`
	SearchRadii        []int                    `yaml:"search_radii"`
	RandomRespawn      Toggles                  `yaml:"random_respawn"`
	RespawnWorld       string                   `yaml:"respawn_world"`
	Worlds             map[string]WorldOverride `yaml:"worlds,omitempty"`
	JoinSkipDimensions []string                 `yaml:"join_skip_dimensions"`
	GraceSeconds       float64                  `yaml:"grace_seconds"`
	Seed               uint64                   `yaml:"seed"`
	Debug              bool                     `yaml:"debug"`
}

type Toggles struct {
	OnFirstJoin       bool `yaml:"on_first_join"`
	BedRespawnEnabled bool `yaml:"bed_respawn_enabled"`
	OnDeath           bool `yaml:"on_death"`

	// Accepted for old config files; the behaviour is gone.
	AlwaysOnJoin *bool `yaml:"always_on_join,omitempty"`
}

// WorldOverride replaces individual global toggles for one world. Nil fields
// fall back to the global value.
type WorldOverride struct {
	RandomRespawn ToggleOverrides `yaml:"random_respawn"`
	RespawnWorld  *string         `yaml:"respawn_world,omitempty"`
}

type ToggleOverrides struct {
	OnFirstJoin       *bool `yaml:"on_first_join,omitempty"`
	BedRespawnEnabled *bool `yaml:"bed_respawn_enabled,omitempty"`
	OnDeath           *bool `yaml:"on_death,omitempty"`
	AlwaysOnJoin      *bool `yaml:"always_on_join,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("spawn.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("spawn.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		HazardBlocks: append([]string(nil), hazard.DefaultNames...),
		SearchRadii:  []int{16, 32, 64},
		RandomRespawn: Toggles{
			OnFirstJoin:       true,
			BedRespawnEnabled: true,
			OnDeath:           true,
		},
		JoinSkipDimensions: []string{"NETHER", "THE_END"},
		GraceSeconds:       3,
	}
}

func (c *Config) Normalize() {
	c.BlacklistedWorlds = trimDedupe(c.BlacklistedWorlds, false)
	c.HazardBlocks = trimDedupe(c.HazardBlocks, true)
	if len(c.HazardBlocks) == 0 {
		c.HazardBlocks = append([]string(nil), hazard.DefaultNames...)
	}
	c.JoinSkipDimensions = trimDedupe(c.JoinSkipDimensions, true)
	c.RespawnWorld = strings.TrimSpace(c.RespawnWorld)
	if len(c.Worlds) > 0 {
		norm := make(map[string]WorldOverride, len(c.Worlds))
		for id, o := range c.Worlds {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if o.RespawnWorld != nil {
				v := strings.TrimSpace(*o.RespawnWorld)
				o.RespawnWorld = &v
			}
			norm[id] = o
		}
		c.Worlds = norm
	}
}

func (c Config) Validate() error {
	prev := 0
	for i, r := range c.SearchRadii {
		if r <= 0 {
			return fmt.Errorf("search_radii[%d] must be > 0", i)
		}
		if r <= prev {
			return fmt.Errorf("search_radii must be strictly ascending (index %d)", i)
		}
		prev = r
	}
	if c.GraceSeconds < 0 {
		return fmt.Errorf("grace_seconds must be >= 0")
	}
	return nil
}

// Deprecated lists keys that are accepted but have no effect.
func (c Config) Deprecated() []string {
	var out []string
	if c.RandomRespawn.AlwaysOnJoin != nil {
		out = append(out, "random_respawn.always_on_join")
	}
	ids := make([]string, 0, len(c.Worlds))
	for id := range c.Worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if c.Worlds[id].RandomRespawn.AlwaysOnJoin != nil {
			out = append(out, "worlds."+id+".random_respawn.always_on_join")
		}
	}
	return out
}

func trimDedupe(in []string, upper bool) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if upper {
			s = strings.ToUpper(s)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Rules is the config resolved against the worlds that actually exist.
// Read-only after Resolve.
type Rules struct {
	blacklist    map[string]bool
	radii        []int
	global       Toggles
	overrides    map[string]WorldOverride
	respawnWorld string
	skipDims     map[string]bool
}

// Resolve drops world names that known does not recognise, logging a warning
// for each.
func (c Config) Resolve(known func(string) bool, logger *log.Logger) *Rules {
	warn := func(format string, args ...any) {
		if logger != nil {
			logger.Printf("warn: "+format, args...)
		}
	}
	r := &Rules{
		blacklist: map[string]bool{},
		radii:     append([]int(nil), c.SearchRadii...),
		global:    c.RandomRespawn,
		overrides: map[string]WorldOverride{},
		skipDims:  map[string]bool{},
	}
	for _, w := range c.BlacklistedWorlds {
		if !known(w) {
			warn("couldn't find blacklisted world %q, skipping", w)
			continue
		}
		r.blacklist[w] = true
	}
	for id, o := range c.Worlds {
		if !known(id) {
			warn("couldn't find world %q for override, skipping", id)
			continue
		}
		if o.RespawnWorld != nil && *o.RespawnWorld != "" && !known(*o.RespawnWorld) {
			warn("world %q: unknown respawn_world %q, ignoring", id, *o.RespawnWorld)
			o.RespawnWorld = nil
		}
		r.overrides[id] = o
	}
	if c.RespawnWorld != "" {
		if known(c.RespawnWorld) {
			r.respawnWorld = c.RespawnWorld
		} else {
			warn("unknown respawn_world %q, ignoring", c.RespawnWorld)
		}
	}
	for _, d := range c.JoinSkipDimensions {
		r.skipDims[d] = true
	}
	for _, k := range c.Deprecated() {
		warn("%s is no longer supported and is ignored", k)
	}
	return r
}

func (r *Rules) Blacklisted(world string) bool { return r.blacklist[world] }

// Radii returns the ascending search radius ladder.
func (r *Rules) Radii() []int { return r.radii }

func (r *Rules) SkipJoinDimension(dim string) bool {
	return r.skipDims[strings.ToUpper(dim)]
}

func (r *Rules) OnFirstJoin(world string) bool {
	if o, ok := r.overrides[world]; ok && o.RandomRespawn.OnFirstJoin != nil {
		return *o.RandomRespawn.OnFirstJoin
	}
	return r.global.OnFirstJoin
}

func (r *Rules) BedRespawnEnabled(world string) bool {
	if o, ok := r.overrides[world]; ok && o.RandomRespawn.BedRespawnEnabled != nil {
		return *o.RandomRespawn.BedRespawnEnabled
	}
	return r.global.BedRespawnEnabled
}

func (r *Rules) OnDeath(world string) bool {
	if o, ok := r.overrides[world]; ok && o.RandomRespawn.OnDeath != nil {
		return *o.RandomRespawn.OnDeath
	}
	return r.global.OnDeath
}

// RespawnWorld returns the world a player who died in deathWorld should be
// respawned in, if the config redirects it.
func (r *Rules) RespawnWorld(deathWorld string) (string, bool) {
	if o, ok := r.overrides[deathWorld]; ok && o.RespawnWorld != nil {
		if *o.RespawnWorld == "" {
			return "", false
		}
		return *o.RespawnWorld, true
	}
	if r.respawnWorld == "" {
		return "", false
	}
	return r.respawnWorld, true
}
