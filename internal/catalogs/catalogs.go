package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"safespawn.ai/internal/spawn/model"
)

//go:embed blocks.json
var builtinBlocks []byte

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	solid []bool
}

type BlockDef struct {
	ID     string `json:"id"`
	Solid  bool   `json:"solid"`
	Liquid bool   `json:"liquid,omitempty"`
}

// Builtin returns the palette compiled into the binary.
func Builtin() *BlockCatalog {
	c, err := parseBlocks("blocks.json", builtinBlocks)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadBlocks reads a blocks.json file. An empty path yields the builtin
// palette.
func LoadBlocks(path string) (*BlockCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBlocks(path, raw)
}

func parseBlocks(name string, raw []byte) (*BlockCatalog, error) {
	out := &BlockCatalog{DefsDigest: sha256Hex(raw)}

	var defs []BlockDef
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		d.ID = strings.ToUpper(strings.TrimSpace(d.ID))
		if d.ID == "" {
			return nil, fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.Defs[d.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate id %s", name, d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return nil, fmt.Errorf("%s: missing AIR", name)
	}
	if out.Defs["AIR"].Solid {
		return nil, fmt.Errorf("%s: AIR must not be solid", name)
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	out.solid = make([]bool, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
		out.solid[i] = out.Defs[id].Solid
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

func (c *BlockCatalog) BlockTypeByName(name string) (model.BlockType, bool) {
	i, ok := c.Index[strings.ToUpper(strings.TrimSpace(name))]
	return model.BlockType(i), ok
}

// MustType is BlockTypeByName for names known to be in the palette.
func (c *BlockCatalog) MustType(name string) model.BlockType {
	t, ok := c.BlockTypeByName(name)
	if !ok {
		panic(fmt.Sprintf("block %q not in palette", name))
	}
	return t
}

func (c *BlockCatalog) Name(t model.BlockType) string {
	if int(t) >= len(c.Palette) {
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
	return c.Palette[t]
}

// IsSolid treats ids outside the palette as solid so unknown cells are never
// considered safe to occupy.
func (c *BlockCatalog) IsSolid(t model.BlockType) bool {
	if int(t) >= len(c.solid) {
		return true
	}
	return c.solid[t]
}

func (c *BlockCatalog) IsEmpty(t model.BlockType) bool { return t == 0 }

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
