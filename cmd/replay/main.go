package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"safespawn.ai/internal/catalogs"
	persistlog "safespawn.ai/internal/persistence/log"
	"safespawn.ai/internal/spawn/config"
	"safespawn.ai/internal/spawn/hazard"
	"safespawn.ai/internal/spawn/search"
	"safespawn.ai/internal/voxel"
)

// replay regenerates the reference world from its seed and re-checks every
// teleporting decision in a decision log: the chosen location must still be
// a standing cell the column walk accepts in place.
func main() {
	var (
		dir        = flag.String("decisions", "./data/decisions", "dir containing decisions-*.jsonl.zst")
		configPath = flag.String("config", "./configs/spawn.yaml", "spawn rules config path")
		worldsPath = flag.String("worlds", "./configs/worlds.yaml", "reference world config path")
		blocksPath = flag.String("blocks", "", "blocks.json path (default: builtin palette)")
		seed       = flag.Int64("seed", 1337, "world seed the server ran with")
		verbose    = flag.Bool("v", false, "print every mismatch")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	cat, err := catalogs.LoadBlocks(*blocksPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load blocks:", err)
		os.Exit(1)
	}
	wcfg, err := voxel.LoadConfig(*worldsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load worlds:", err)
		os.Exit(1)
	}
	w, err := voxel.New(cat, *seed, wcfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}
	h := hazard.NewClassifier(w, cfg.HazardBlocks, nil)

	files, err := listDecisionFiles(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}

	var checked, ok, moved, unsafe, skipped int
	for _, path := range files {
		entries, err := persistlog.ReadDecisions(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
		for _, e := range entries {
			if !e.Teleport {
				continue
			}
			if !w.KnownWorld(e.Location.World) {
				skipped++
				continue
			}
			checked++
			got, found := search.Vertical(w, h, e.Location)
			switch {
			case !found:
				unsafe++
				if *verbose {
					fmt.Printf("unsafe: %s %s %s at %s\n", e.At, e.Player, e.Tier, e.Location)
				}
			case got.Y != e.Location.Y:
				moved++
				if *verbose {
					fmt.Printf("moved: %s %s %s %s -> y=%v\n", e.At, e.Player, e.Tier, e.Location, got.Y)
				}
			default:
				ok++
			}
		}
	}

	fmt.Printf("replay files=%d checked=%d ok=%d moved=%d unsafe=%d skipped=%d\n",
		len(files), checked, ok, moved, unsafe, skipped)
	if unsafe > 0 {
		os.Exit(3)
	}
}

func listDecisionFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "decisions-") && strings.HasSuffix(name, ".jsonl.zst") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
