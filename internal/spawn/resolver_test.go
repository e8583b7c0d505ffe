package spawn

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"

	"safespawn.ai/internal/catalogs"
	"safespawn.ai/internal/spawn/config"
	"safespawn.ai/internal/spawn/hazard"
	"safespawn.ai/internal/spawn/model"
	"safespawn.ai/internal/spawn/record"
	"safespawn.ai/internal/voxel"
)

type testWorld struct {
	*voxel.World
	randomCalls []string
	randomErr   error
}

func (w *testWorld) RandomSpawnLocation(world string) (model.Coordinate, error) {
	w.randomCalls = append(w.randomCalls, world)
	if w.randomErr != nil {
		return model.Coordinate{}, w.randomErr
	}
	return w.World.RandomSpawnLocation(world)
}

type countingStore struct {
	*record.MemStore
	gets int
}

func (s *countingStore) Get(ctx context.Context, player uuid.UUID) (model.Coordinate, bool, error) {
	s.gets++
	return s.MemStore.Get(ctx, player)
}

type fakePlayers struct {
	bypass map[uuid.UUID]bool
	notify map[uuid.UUID]bool
	first  map[uuid.UUID]bool
}

func (p *fakePlayers) HasBypass(id uuid.UUID) bool      { return p.bypass[id] }
func (p *fakePlayers) HasNotify(id uuid.UUID) bool      { return p.notify[id] }
func (p *fakePlayers) IsFirstSession(id uuid.UUID) bool { return p.first[id] }

type fakeNotifier struct{ notices []Notice }

func (n *fakeNotifier) Notify(_ context.Context, x Notice) error {
	n.notices = append(n.notices, x)
	return nil
}

type fakeGrace struct{ grants []uuid.UUID }

func (g *fakeGrace) Grant(id uuid.UUID, _ string) { g.grants = append(g.grants, id) }

type fakeAudit struct{ outcomes []Outcome }

func (a *fakeAudit) WriteOutcome(o Outcome) error {
	a.outcomes = append(a.outcomes, o)
	return nil
}

type harness struct {
	cat     *catalogs.BlockCatalog
	world   *testWorld
	store   *countingStore
	players *fakePlayers
	notes   *fakeNotifier
	grace   *fakeGrace
	audit   *fakeAudit
	r       *Resolver
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cat := catalogs.Builtin()
	vw, err := voxel.New(cat, 7, voxel.Config{Worlds: []voxel.WorldSpec{
		{ID: "world", Dimension: "OVERWORLD", MinY: -256, MaxY: 128, BoundaryR: 1024, SpawnRadius: 64, Flat: true, FlatTop: 0},
		{ID: "deep", Dimension: "OVERWORLD", MinY: -256, MaxY: 128, BoundaryR: 1024, SpawnRadius: 64, Flat: true, FlatTop: -141},
		{ID: "world_nether", Dimension: "NETHER", MinY: 0, MaxY: 127, BoundaryR: 256, SpawnRadius: 32, Flat: true, FlatTop: 50},
		{ID: "lobby", Dimension: "OVERWORLD", MinY: 0, MaxY: 64, BoundaryR: 64, SpawnRadius: 16, Flat: true, FlatTop: 10},
	}})
	if err != nil {
		t.Fatalf("voxel.New: %v", err)
	}
	h := hazard.NewClassifier(cat, nil, nil)
	vw.SetUnsafe(h.IsFloorHazard)

	cfg := config.Defaults()
	cfg.BlacklistedWorlds = []string{"lobby"}
	if mutate != nil {
		mutate(&cfg)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	hs := &harness{
		cat:   cat,
		world: &testWorld{World: vw},
		store: &countingStore{MemStore: record.NewMemStore()},
		players: &fakePlayers{
			bypass: map[uuid.UUID]bool{},
			notify: map[uuid.UUID]bool{},
			first:  map[uuid.UUID]bool{},
		},
		notes: &fakeNotifier{},
		grace: &fakeGrace{},
		audit: &fakeAudit{},
	}
	hs.r = New(Deps{
		World:    hs.world,
		Players:  hs.players,
		Store:    hs.store,
		Hazards:  h,
		Rules:    cfg.Resolve(vw.KnownWorld, nil),
		Rand:     rand.New(rand.NewPCG(11, 13)),
		Notifier: hs.notes,
		Grace:    hs.grace,
		Audit:    hs.audit,
	})
	return hs
}

func (h *harness) seed(t *testing.T, player uuid.UUID, c model.Coordinate) {
	t.Helper()
	if err := h.store.MemStore.Put(context.Background(), player, c); err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func (h *harness) stored(t *testing.T, player uuid.UUID) (model.Coordinate, bool) {
	t.Helper()
	c, ok, err := h.store.MemStore.Get(context.Background(), player)
	if err != nil {
		t.Fatalf("read record: %v", err)
	}
	return c, ok
}

func (h *harness) fillSurface(t *testing.T, world string, y, x0, x1, z0, z1 int, name string) {
	t.Helper()
	bt := h.cat.MustType(name)
	for x := x0; x < x1; x++ {
		for z := z0; z < z1; z++ {
			if err := h.world.SetCell(world, x, y, z, bt); err != nil {
				t.Fatalf("SetCell: %v", err)
			}
		}
	}
}

func loc(world string, x, y, z float64) model.Coordinate {
	return model.Coordinate{World: world, X: x, Y: y, Z: z}
}

func TestRespawn_VerticalSuccessKeepsRecord(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	rec := model.Coordinate{World: "world", X: 10.5, Y: 20, Z: 10.5, Yaw: 45, Pitch: 5}
	h.seed(t, p, rec)
	puts := h.store.Puts()

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 0.5, 1, 0.5)})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierSilent || !out.Teleport {
		t.Fatalf("tier=%v teleport=%v", out.Tier, out.Teleport)
	}
	want := rec
	want.Y = 1
	if out.Location != want {
		t.Fatalf("location=%+v want %+v", out.Location, want)
	}
	if h.store.Puts() != puts {
		t.Fatalf("silent outcome must not write the record")
	}
	if got, _ := h.stored(t, p); got != rec {
		t.Fatalf("record changed: %+v", got)
	}
	if len(h.notes.notices) != 0 {
		t.Fatalf("silent outcome must not notify: %+v", h.notes.notices)
	}
	if len(h.grace.grants) != 1 {
		t.Fatalf("expected a grace grant")
	}
}

func TestRespawn_Idempotent(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	h.seed(t, p, loc("world", -3.5, 30, 7.25))
	ev := RespawnEvent{Player: p, Default: loc("world", 0.5, 1, 0.5)}

	a, err := h.r.OnRespawn(context.Background(), ev)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	b, err := h.r.OnRespawn(context.Background(), ev)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if a.Location != b.Location || a.Tier != TierSilent || b.Tier != TierSilent {
		t.Fatalf("not idempotent: %+v vs %+v", a, b)
	}
}

func TestRespawn_LadderStopsAtFirstSuccessfulRadius(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.SearchRadii = []int{16, 32, 64} })
	p := uuid.New()
	// Everything within the 16 box around (100,100) is lava.
	h.fillSurface(t, "world", 0, 84, 116, 84, 116, "LAVA")
	rec := loc("world", 100.5, 1, 100.5)
	h.seed(t, p, rec)

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 0.5, 1, 0.5)})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierRelocatedNearby || out.Radius != 32 {
		t.Fatalf("tier=%v radius=%d, want relocated-nearby at 32", out.Tier, out.Radius)
	}
	if d := math.Abs(out.Location.X - rec.X); d > 32 {
		t.Fatalf("x offset %v exceeds radius", d)
	}
	floor := h.world.CellType("world", int(math.Floor(out.Location.X)), int(out.Location.Y)-1, int(math.Floor(out.Location.Z)))
	if floor == h.cat.MustType("LAVA") {
		t.Fatalf("landed on lava at %+v", out.Location)
	}
	if got, _ := h.stored(t, p); got != out.Location || !out.Persisted {
		t.Fatalf("record not overwritten: %+v", got)
	}
	if len(h.notes.notices) != 1 || h.notes.notices[0].Radius != 32 {
		t.Fatalf("notices=%+v", h.notes.notices)
	}
}

func TestRespawn_DeepRecordFallsBackToRandom(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.SearchRadii = []int{8, 16} })
	p := uuid.New()
	// Ground is 70 cells under the record and every surface within 16 is lava.
	h.fillSurface(t, "deep", -141, -6, 26, -6, 26, "LAVA")
	h.seed(t, p, loc("deep", 10.5, -70, 10.5))

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("deep", 0.5, -140, 0.5)})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierRelocatedRandom {
		t.Fatalf("tier=%v want relocated-random", out.Tier)
	}
	if len(h.world.randomCalls) != 1 || h.world.randomCalls[0] != "deep" {
		t.Fatalf("random calls=%v", h.world.randomCalls)
	}
	got, _ := h.stored(t, p)
	if got != out.Location || got.World != "deep" {
		t.Fatalf("record=%+v outcome=%+v", got, out.Location)
	}
	if len(h.notes.notices) != 1 || h.notes.notices[0].Tier != TierRelocatedRandom {
		t.Fatalf("notices=%+v", h.notes.notices)
	}
}

func TestRespawn_EmptyLadderSkipsNearby(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.SearchRadii = []int{} })
	p := uuid.New()
	// Plenty of safe ground nearby, but with no radii the nearby tier never runs.
	h.seed(t, p, loc("deep", 10.5, -70, 10.5))
	puts := h.store.Puts()

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("deep", 0.5, -140, 0.5)})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierRelocatedRandom || out.Radius != 0 {
		t.Fatalf("tier=%v radius=%d, want relocated-random", out.Tier, out.Radius)
	}
	if len(h.world.randomCalls) != 1 || h.world.randomCalls[0] != "deep" {
		t.Fatalf("random calls=%v", h.world.randomCalls)
	}
	if got, _ := h.stored(t, p); got != out.Location || h.store.Puts() != puts+1 {
		t.Fatalf("record=%+v outcome=%+v puts=%d", got, out.Location, h.store.Puts()-puts)
	}
}

func TestRespawn_BedSuppressedWithoutStoreAccess(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	h.seed(t, p, loc("world", 1.5, 1, 1.5))
	puts := h.store.Puts()

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 5.5, 1, 5.5), BedOrAnchor: true})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierSuppressed || out.Teleport {
		t.Fatalf("tier=%v teleport=%v", out.Tier, out.Teleport)
	}
	if h.store.gets != 0 || h.store.Puts() != puts {
		t.Fatalf("store touched: gets=%d puts=%d", h.store.gets, h.store.Puts()-puts)
	}
	if len(h.grace.grants) != 0 || len(h.notes.notices) != 0 {
		t.Fatalf("suppressed outcome granted grace or notified")
	}
}

func TestRespawn_BedIgnoredWhenDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RandomRespawn.BedRespawnEnabled = false })
	p := uuid.New()
	h.seed(t, p, loc("world", 1.5, 1, 1.5))

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 5.5, 1, 5.5), BedOrAnchor: true})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierSilent {
		t.Fatalf("tier=%v want silent", out.Tier)
	}
}

func TestRespawn_NoRandomCandidate(t *testing.T) {
	h := newHarness(t, nil)
	h.world.randomErr = voxel.ErrNoSurface
	p := uuid.New()

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 0.5, 1, 0.5)})
	if !errors.Is(err, ErrNoRandomCandidate) {
		t.Fatalf("err=%v want ErrNoRandomCandidate", err)
	}
	if out.Tier != TierSuppressed || out.Reason == "" {
		t.Fatalf("outcome=%+v", out)
	}
	if h.store.Puts() != 0 {
		t.Fatalf("record written on failure")
	}
	if len(h.audit.outcomes) != 1 {
		t.Fatalf("unresolved outcome not audited")
	}
}

func TestRespawn_RespawnWorldRedirect(t *testing.T) {
	target := "world"
	h := newHarness(t, func(c *config.Config) {
		c.Worlds = map[string]config.WorldOverride{"world_nether": {RespawnWorld: &target}}
	})
	p := uuid.New()

	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{
		Player:     p,
		Default:    loc("world_nether", 0.5, 51, 0.5),
		DeathWorld: "world_nether",
	})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierRelocatedRandom || out.Location.World != "world" {
		t.Fatalf("outcome=%+v", out)
	}
	if len(h.world.randomCalls) != 1 || h.world.randomCalls[0] != "world" {
		t.Fatalf("random calls=%v", h.world.randomCalls)
	}
}

func TestRespawn_OnDeathDisabledSuppresses(t *testing.T) {
	off := false
	h := newHarness(t, func(c *config.Config) {
		c.Worlds = map[string]config.WorldOverride{"world": {RandomRespawn: config.ToggleOverrides{OnDeath: &off}}}
	})
	out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: uuid.New(), Default: loc("world", 0.5, 1, 0.5)})
	if err != nil {
		t.Fatalf("OnRespawn: %v", err)
	}
	if out.Tier != TierSuppressed || len(h.world.randomCalls) != 0 {
		t.Fatalf("outcome=%+v random=%v", out, h.world.randomCalls)
	}
}

func TestRespawn_UnusableRecordTreatedAsAbsent(t *testing.T) {
	for name, setup := range map[string]func(h *harness, p uuid.UUID){
		"malformed":     func(h *harness, p uuid.UUID) { h.store.SetRaw(p, "not;a;record") },
		"unknown world": func(h *harness, p uuid.UUID) { h.store.SetRaw(p, record.Encode(loc("gone", 1, 2, 3))) },
		"blacklisted":   func(h *harness, p uuid.UUID) { h.store.SetRaw(p, record.Encode(loc("lobby", 1.5, 11, 1.5))) },
	} {
		h := newHarness(t, nil)
		p := uuid.New()
		setup(h, p)

		out, err := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 0.5, 1, 0.5)})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if out.Tier != TierRelocatedRandom || out.Location.World != "world" {
			t.Fatalf("%s: outcome=%+v", name, out)
		}
		if got, ok := h.stored(t, p); !ok || got != out.Location {
			t.Fatalf("%s: record not replaced", name)
		}
	}
}

func TestJoin_FirstAssignment(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	h.players.first[p] = true

	out, err := h.r.OnJoin(context.Background(), JoinEvent{Player: p, Location: loc("world", 0.5, 1, 0.5)})
	if err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if out.Tier != TierFirstAssignment || !out.Teleport || !out.Persisted {
		t.Fatalf("outcome=%+v", out)
	}
	if got, ok := h.stored(t, p); !ok || got != out.Location {
		t.Fatalf("record=%+v ok=%v", got, ok)
	}
	if len(h.notes.notices) != 1 || h.notes.notices[0].Tier != TierFirstAssignment {
		t.Fatalf("notices=%+v", h.notes.notices)
	}
	if len(h.grace.grants) != 1 {
		t.Fatalf("grace not granted")
	}
}

func TestJoin_FirstJoinDisabled(t *testing.T) {
	h := newHarness(t, func(c *config.Config) { c.RandomRespawn.OnFirstJoin = false })
	p := uuid.New()
	h.players.first[p] = true

	out, err := h.r.OnJoin(context.Background(), JoinEvent{Player: p, Location: loc("world", 0.5, 1, 0.5)})
	if err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if out.Tier != TierSuppressed || h.store.Puts() != 0 {
		t.Fatalf("outcome=%+v puts=%d", out, h.store.Puts())
	}
}

func TestJoin_RecordPresentSuppressed(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	rec := loc("world", 3.5, 1, 3.5)
	h.seed(t, p, rec)
	puts := h.store.Puts()

	out, err := h.r.OnJoin(context.Background(), JoinEvent{Player: p, Location: loc("world", 40.5, 1, 40.5)})
	if err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if out.Tier != TierSuppressed || h.store.Puts() != puts {
		t.Fatalf("outcome=%+v", out)
	}
	if got, _ := h.stored(t, p); got != rec {
		t.Fatalf("record changed: %+v", got)
	}
}

func TestJoin_SynthesizesBaseline(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	at := loc("world", 40.5, 1, -2.5)

	out, err := h.r.OnJoin(context.Background(), JoinEvent{Player: p, Location: at})
	if err != nil {
		t.Fatalf("OnJoin: %v", err)
	}
	if out.Tier != TierSilent || out.Teleport || !out.Persisted {
		t.Fatalf("outcome=%+v", out)
	}
	if got, ok := h.stored(t, p); !ok || got != at {
		t.Fatalf("baseline not stored: %+v", got)
	}
	if len(h.notes.notices) != 0 || len(h.grace.grants) != 0 {
		t.Fatalf("baseline should be quiet")
	}
}

func TestJoin_SkippedDimensionsAndBlacklist(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	h.players.first[p] = true

	for _, world := range []string{"world_nether", "lobby"} {
		out, err := h.r.OnJoin(context.Background(), JoinEvent{Player: p, Location: loc(world, 0.5, 60, 0.5)})
		if err != nil {
			t.Fatalf("%s: %v", world, err)
		}
		if out.Tier != TierSuppressed {
			t.Fatalf("%s: tier=%v", world, out.Tier)
		}
	}
	if h.store.Puts() != 0 || len(h.world.randomCalls) != 0 {
		t.Fatalf("suppressed joins touched the store or generator")
	}
}

func TestBypassSuppressesEverything(t *testing.T) {
	h := newHarness(t, nil)
	p := uuid.New()
	h.players.bypass[p] = true
	h.players.first[p] = true

	j, _ := h.r.OnJoin(context.Background(), JoinEvent{Player: p, Location: loc("world", 0.5, 1, 0.5)})
	r, _ := h.r.OnRespawn(context.Background(), RespawnEvent{Player: p, Default: loc("world", 0.5, 1, 0.5)})
	if j.Tier != TierSuppressed || r.Tier != TierSuppressed {
		t.Fatalf("join=%v respawn=%v", j.Tier, r.Tier)
	}
	if h.store.gets != 0 || h.store.Puts() != 0 {
		t.Fatalf("bypass touched the store")
	}
	if len(h.audit.outcomes) != 2 {
		t.Fatalf("audit=%d want 2", len(h.audit.outcomes))
	}
}

func TestOnDeath_NotifiesCapablePlayersOnly(t *testing.T) {
	h := newHarness(t, nil)
	quiet, loud := uuid.New(), uuid.New()
	h.players.notify[loud] = true
	at := loc("world_nether", 4.5, 51, 4.5)

	dc := h.r.OnDeath(context.Background(), DeathEvent{Player: quiet, Location: at})
	if dc.World != "world_nether" || dc.Player != quiet {
		t.Fatalf("death context=%+v", dc)
	}
	h.r.OnDeath(context.Background(), DeathEvent{Player: loud, Location: at})

	if len(h.notes.notices) != 1 {
		t.Fatalf("notices=%+v", h.notes.notices)
	}
	if n := h.notes.notices[0]; n.Player != loud || n.Tier != TierDeath || n.Location != at {
		t.Fatalf("notice=%+v", n)
	}
}

func TestTierText(t *testing.T) {
	for tier := TierSuppressed; tier <= TierDeath; tier++ {
		b, _ := tier.MarshalText()
		var back Tier
		if err := back.UnmarshalText(b); err != nil || back != tier {
			t.Fatalf("%v: back=%v err=%v", tier, back, err)
		}
	}
	if _, ok := ParseTier("nope"); ok {
		t.Fatalf("unknown tier parsed")
	}
}
