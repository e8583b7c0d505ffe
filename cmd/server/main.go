package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"safespawn.ai/internal/catalogs"
	"safespawn.ai/internal/notify"
	persistlog "safespawn.ai/internal/persistence/log"
	"safespawn.ai/internal/persistence/recorddb"
	"safespawn.ai/internal/spawn"
	"safespawn.ai/internal/spawn/config"
	"safespawn.ai/internal/spawn/grace"
	"safespawn.ai/internal/spawn/hazard"
	"safespawn.ai/internal/spawn/record"
	"safespawn.ai/internal/transport/admin"
	"safespawn.ai/internal/transport/ws"
	"safespawn.ai/internal/voxel"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configPath = flag.String("config", "./configs/spawn.yaml", "spawn rules config path (empty for defaults)")
		worldsPath = flag.String("worlds", "./configs/worlds.yaml", "reference world config path (empty for defaults)")
		blocksPath = flag.String("blocks", "", "blocks.json path (default: builtin palette)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 1337, "world seed")
		disableDB  = flag.Bool("disable_db", false, "keep spawn records in memory only")
		noAudit    = flag.Bool("disable_decision_log", false, "disable the compressed decision log")

		kafkaBrokers = flag.String("kafka_brokers", "", "comma-separated kafka brokers for notices (empty to disable)")
		kafkaTopic   = flag.String("kafka_topic", "spawn-notices", "kafka topic for notices")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	spawnLog := log.New(os.Stdout, "[spawn] ", log.LstdFlags|log.Lmicroseconds)
	wsLog := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(optionalPath(*configPath))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	cat, err := catalogs.LoadBlocks(*blocksPath)
	if err != nil {
		logger.Fatalf("load blocks: %v", err)
	}
	wcfg, err := voxel.LoadConfig(optionalPath(*worldsPath))
	if err != nil {
		logger.Fatalf("load worlds: %v", err)
	}
	w, err := voxel.New(cat, *seed, wcfg)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	hazards := hazard.NewClassifier(w, cfg.HazardBlocks, spawnLog)
	w.SetUnsafe(hazards.IsFloorHazard)
	rules := cfg.Resolve(w.KnownWorld, spawnLog)
	logger.Printf("worlds=%v hazards=%d radii=%v", w.Worlds(), hazards.Len(), rules.Radii())

	_ = os.MkdirAll(*dataDir, 0o755)

	var (
		store    record.Store
		recordDB *recorddb.SQLiteStore
	)
	if *disableDB {
		store = record.NewMemStore()
		logger.Printf("records kept in memory (-disable_db)")
	} else {
		recordDB, err = recorddb.OpenSQLite(filepath.Join(*dataDir, "records.sqlite"))
		if err != nil {
			logger.Fatalf("open record db: %v", err)
		}
		defer recordDB.Close()
		store = recordDB
	}

	var audit spawn.Auditor
	if !*noAudit {
		dl := persistlog.NewDecisionLogger(*dataDir)
		defer dl.Close()
		audit = dl
	}

	notifiers := notify.Multi{ws.Notifier{}, notify.Log{L: spawnLog}}
	if brokers := splitList(*kafkaBrokers); len(brokers) > 0 {
		k := notify.NewKafka(brokers, *kafkaTopic, spawnLog)
		defer k.Close()
		notifiers = append(notifiers, k)
		logger.Printf("publishing notices to kafka topic %s", *kafkaTopic)
	}

	rngSeed := cfg.Seed
	if rngSeed == 0 {
		rngSeed = uint64(time.Now().UnixNano())
	}
	guard := grace.NewTracker(time.Duration(cfg.GraceSeconds * float64(time.Second)))
	players := ws.NewPlayerTable()
	resolver := spawn.New(spawn.Deps{
		World:    w,
		Players:  players,
		Store:    store,
		Hazards:  hazards,
		Rules:    rules,
		Rand:     rand.New(rand.NewPCG(rngSeed, rngSeed>>1)),
		Notifier: notifiers,
		Grace:    guard,
		Audit:    audit,
		Logger:   spawnLog,
		Debug:    cfg.Debug,
	})

	ctx, cancel := signalContext()
	defer cancel()

	bridge := ws.NewServer(resolver, players, w, guard, wsLog)
	go bridge.Run(ctx)

	var handler http.Handler
	if recordDB != nil {
		enableAdmin := envBool("SPAWN_ENABLE_ADMIN_HTTP", true)
		a := admin.NewServer(recordDB, w.KnownWorld, envBool("SPAWN_ADMIN_LOOPBACK_ONLY", true), logger)
		a.Mount("/v1/ws", bridge.Handler())
		handler = a.Handler()
		if !enableAdmin {
			logger.Printf("admin endpoints disabled (SPAWN_ENABLE_ADMIN_HTTP=false)")
			mux := http.NewServeMux()
			mux.HandleFunc("/v1/ws", bridge.Handler())
			handler = mux
		}
	} else {
		mux := http.NewServeMux()
		mux.HandleFunc("/v1/ws", bridge.Handler())
		handler = mux
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// optionalPath returns "" for a missing file so loaders fall back to
// defaults.
func optionalPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return ""
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
