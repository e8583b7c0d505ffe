package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	persistlog "safespawn.ai/internal/persistence/log"
	"safespawn.ai/internal/persistence/recorddb"
	"safespawn.ai/internal/spawn/model"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "get":
			getCmd(os.Args[2:])
			return
		case "set":
			setCmd(os.Args[2:])
			return
		case "reset":
			resetCmd(os.Args[2:])
			return
		case "decisions":
			decisionsCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "remote":
			remoteCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func openStore(dataDir string) *recorddb.SQLiteStore {
	s, err := recorddb.OpenSQLite(filepath.Join(dataDir, "records.sqlite"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open db:", err)
		os.Exit(1)
	}
	return s
}

func parsePlayer(s string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -player:", err)
		os.Exit(2)
	}
	return id
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	limit := fs.Int("limit", 100, "max rows")
	_ = fs.Parse(args)

	s := openStore(*dataDir)
	defer s.Close()
	rows, err := s.List(context.Background(), *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, r := range rows {
		fmt.Printf("%s\t%s\t%s\n", r.Player, r.UpdatedAt.Format(time.RFC3339), r.Raw)
	}
}

func getCmd(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player uuid")
	_ = fs.Parse(args)

	id := parsePlayer(*player)
	s := openStore(*dataDir)
	defer s.Close()

	raw, ok, err := s.GetRaw(context.Background(), id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "get:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("no record")
		return
	}
	fmt.Println(raw)
	if c, _, err := s.Get(context.Background(), id); err != nil {
		fmt.Println("decode:", err)
	} else {
		fmt.Println(c)
	}
}

func setCmd(args []string) {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player uuid")
	worldID := fs.String("world", "world", "world id")
	x := fs.Float64("x", 0, "x")
	y := fs.Float64("y", 0, "y")
	z := fs.Float64("z", 0, "z")
	yaw := fs.Float64("yaw", 0, "yaw")
	pitch := fs.Float64("pitch", 0, "pitch")
	_ = fs.Parse(args)

	id := parsePlayer(*player)
	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	s := openStore(*dataDir)
	defer s.Close()

	c := model.Coordinate{World: *worldID, X: *x, Y: *y, Z: *z, Yaw: float32(*yaw), Pitch: float32(*pitch)}
	if err := s.Put(context.Background(), id, c); err != nil {
		fmt.Fprintln(os.Stderr, "set:", err)
		os.Exit(1)
	}
	fmt.Printf("set ok: player=%s %s\n", id, c)
}

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player uuid")
	_ = fs.Parse(args)

	id := parsePlayer(*player)
	s := openStore(*dataDir)
	defer s.Close()

	existed, err := s.Delete(context.Background(), id)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reset:", err)
		os.Exit(1)
	}
	fmt.Printf("reset ok: player=%s existed=%v\n", id, existed)
}

func decisionsCmd(args []string) {
	fs := flag.NewFlagSet("decisions", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "only this player (optional)")
	verbose := fs.Bool("v", false, "print every entry")
	_ = fs.Parse(args)

	var only uuid.UUID
	if strings.TrimSpace(*player) != "" {
		only = parsePlayer(*player)
	}

	files, err := decisionFiles(filepath.Join(*dataDir, "decisions"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	counts := map[string]int{}
	total := 0
	for _, path := range files {
		entries, err := persistlog.ReadDecisions(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
		for _, e := range entries {
			if only != uuid.Nil && e.Player != only {
				continue
			}
			total++
			counts[string(e.Event)+"/"+e.Tier.String()]++
			if *verbose {
				fmt.Printf("%s %s %s %s radius=%d teleport=%v reason=%q\n", e.At, e.Event, e.Player, e.Tier, e.Radius, e.Teleport, e.Reason)
			}
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%-32s %d\n", k, counts[k])
	}
	fmt.Printf("files=%d decisions=%d\n", len(files), total)
}

func decisionFiles(dir string) ([]string, error) {
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
