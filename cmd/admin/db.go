package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"safespawn.ai/internal/spawn/record"
)

// dbCmd runs read-only queries straight against records.sqlite.
func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	worldID := fs.String("world", "", "world filter (recent)")
	_ = fs.Parse(args)

	q := "count"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "records.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "count":
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM spawn_records`).Scan(&n); err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		var version string
		_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version)
		printJSON(map[string]any{"records": n, "schema_version": version})

	case "recent":
		rows, err := db.Query(`SELECT player_id, record, updated_at FROM spawn_records ORDER BY updated_at DESC LIMIT ?`, *limit*10)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		n := 0
		for rows.Next() && n < *limit {
			var r struct {
				PlayerID  string `json:"player_id"`
				Record    string `json:"record"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.PlayerID, &r.Record, &r.UpdatedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			if *worldID != "" {
				c, err := record.Decode(r.Record)
				if err != nil || c.World != *worldID {
					continue
				}
			}
			printJSON(r)
			n++
		}

	case "malformed":
		rows, err := db.Query(`SELECT player_id, record FROM spawn_records ORDER BY player_id`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		bad := 0
		for rows.Next() {
			var id, raw string
			if err := rows.Scan(&id, &raw); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			if _, err := record.Decode(raw); errors.Is(err, record.ErrMalformed) {
				bad++
				if bad <= *limit {
					printJSON(map[string]string{"player_id": id, "record": raw})
				}
			}
		}
		fmt.Printf("malformed=%d\n", bad)

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(count|recent|malformed)")
		os.Exit(2)
	}
}

func printJSON(v any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}
