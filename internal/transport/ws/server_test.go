package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"safespawn.ai/internal/protocol"
	"safespawn.ai/internal/spawn"
	"safespawn.ai/internal/spawn/model"
)

type fakeResolver struct {
	mu       sync.Mutex
	respawns []spawn.RespawnEvent
	fail     error
}

func (f *fakeResolver) OnJoin(ctx context.Context, ev spawn.JoinEvent) (spawn.Outcome, error) {
	loc := model.Coordinate{World: ev.Location.World, X: 8.5, Y: 65, Z: 8.5}
	_ = Notifier{}.Notify(ctx, spawn.Notice{Player: ev.Player, Tier: spawn.TierFirstAssignment, Location: loc})
	return spawn.Outcome{Event: spawn.EventJoin, Player: ev.Player, Tier: spawn.TierFirstAssignment, Location: loc, Teleport: true}, nil
}

func (f *fakeResolver) OnRespawn(_ context.Context, ev spawn.RespawnEvent) (spawn.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.respawns = append(f.respawns, ev)
	out := spawn.Outcome{Event: spawn.EventRespawn, Player: ev.Player, Location: ev.Default}
	if f.fail != nil {
		out.Tier = spawn.TierSuppressed
		return out, f.fail
	}
	out.Tier = spawn.TierSilent
	out.Teleport = true
	return out, nil
}

func (f *fakeResolver) OnDeath(_ context.Context, ev spawn.DeathEvent) spawn.DeathContext {
	return spawn.DeathContext{Player: ev.Player, World: ev.Location.World, Location: ev.Location}
}

func (f *fakeResolver) lastRespawn() spawn.RespawnEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.respawns[len(f.respawns)-1]
}

type fakeWorlds struct{}

func (fakeWorlds) Worlds() []string { return []string{"world", "world_nether"} }
func (fakeWorlds) KnownWorld(id string) bool {
	return id == "world" || id == "world_nether"
}
func (fakeWorlds) Dimension(id string) string {
	if id == "world_nether" {
		return "NETHER"
	}
	return "OVERWORLD"
}
func (fakeWorlds) MinHeight(string) int { return -64 }
func (fakeWorlds) MaxHeight(string) int { return 319 }

type fakeGuard map[uuid.UUID]bool

func (g fakeGuard) Protected(id uuid.UUID) bool { return g[id] }

type harness struct {
	srv *Server
	res *fakeResolver
	url string
}

func newHarness(t *testing.T, guard fakeGuard) *harness {
	t.Helper()
	res := &fakeResolver{}
	srv := NewServer(res, NewPlayerTable(), fakeWorlds{}, guard, log.New(io.Discard, "", 0))
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Run(ctx)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hs.Close()
		cancel()
	})
	return &harness{srv: srv, res: res, url: "ws" + strings.TrimPrefix(hs.URL, "http")}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recv(t *testing.T, conn *websocket.Conn, v any) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != nil {
		if err := json.Unmarshal(b, v); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
	}
	return base.Type
}

func connect(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, HostName: "test-host"})
	var w protocol.WelcomeMsg
	if typ := recv(t, conn, &w); typ != protocol.TypeWelcome {
		t.Fatalf("got %s want WELCOME", typ)
	}
	if w.SessionID == "" || len(w.Worlds) != 2 || w.Worlds[1].Dimension != "NETHER" || w.Worlds[0].MinY != -64 {
		t.Fatalf("welcome=%+v", w)
	}
	return conn
}

func loc(world string) protocol.Location {
	return protocol.Location{World: world, X: 0.5, Y: 70, Z: 0.5}
}

func TestJoin_NoticeThenDecision(t *testing.T) {
	h := newHarness(t, nil)
	conn := connect(t, h.url)
	id := uuid.New()

	send(t, conn, protocol.JoinMsg{
		Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, ReqID: "R1",
		Player:   protocol.PlayerRef{PlayerID: id.String(), Bypass: true, FirstSession: true},
		Location: loc("world"),
	})

	var n protocol.NoticeMsg
	if typ := recv(t, conn, &n); typ != protocol.TypeNotice {
		t.Fatalf("got %s want NOTICE", typ)
	}
	if n.PlayerID != id.String() || n.Tier != "first-assignment" || n.Message == "" || n.Sound == "" {
		t.Fatalf("notice=%+v", n)
	}

	var d protocol.DecisionMsg
	if typ := recv(t, conn, &d); typ != protocol.TypeDecision {
		t.Fatalf("got %s want DECISION", typ)
	}
	if d.ReqID != "R1" || d.Tier != "first-assignment" || !d.Teleport || d.Location.X != 8.5 {
		t.Fatalf("decision=%+v", d)
	}
	if !h.srv.players.HasBypass(id) || !h.srv.players.IsFirstSession(id) || h.srv.players.HasNotify(id) {
		t.Fatalf("player table not updated")
	}
}

func TestRespawn_UsesDeathWorldFromPrecedingDeath(t *testing.T) {
	h := newHarness(t, nil)
	conn := connect(t, h.url)
	id := uuid.New()
	ref := protocol.PlayerRef{PlayerID: id.String()}

	send(t, conn, protocol.DeathMsg{Type: protocol.TypeDeath, ProtocolVersion: protocol.Version, ReqID: "D1", Player: ref, Location: loc("world_nether")})
	send(t, conn, protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version, ReqID: "R1", Player: ref, DefaultLocation: loc("world")})

	var d protocol.DecisionMsg
	if typ := recv(t, conn, &d); typ != protocol.TypeDecision {
		t.Fatalf("got %s want DECISION", typ)
	}
	if got := h.res.lastRespawn().DeathWorld; got != "world_nether" {
		t.Fatalf("death world=%q", got)
	}

	// The death context is consumed by the respawn.
	send(t, conn, protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version, ReqID: "R2", Player: ref, DefaultLocation: loc("world"), BedOrAnchor: true})
	recv(t, conn, &d)
	ev := h.res.lastRespawn()
	if ev.DeathWorld != "" || !ev.BedOrAnchor {
		t.Fatalf("second respawn=%+v", ev)
	}
}

func TestJoin_ForgetsEarlierDeathWorld(t *testing.T) {
	h := newHarness(t, nil)
	conn := connect(t, h.url)
	id := uuid.New()
	ref := protocol.PlayerRef{PlayerID: id.String()}

	// Dies in the nether, leaves before respawning, comes back later.
	send(t, conn, protocol.DeathMsg{Type: protocol.TypeDeath, ProtocolVersion: protocol.Version, ReqID: "D1", Player: ref, Location: loc("world_nether")})
	send(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, ReqID: "J1", Player: ref, Location: loc("world")})
	if typ := recv(t, conn, nil); typ != protocol.TypeNotice {
		t.Fatalf("got %s want NOTICE", typ)
	}
	if typ := recv(t, conn, nil); typ != protocol.TypeDecision {
		t.Fatalf("got %s want DECISION", typ)
	}

	send(t, conn, protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version, ReqID: "R1", Player: ref, DefaultLocation: loc("world")})
	if typ := recv(t, conn, nil); typ != protocol.TypeDecision {
		t.Fatalf("got %s want DECISION", typ)
	}
	if got := h.res.lastRespawn().DeathWorld; got != "" {
		t.Fatalf("death world=%q, want none after a new join", got)
	}
}

func TestRespawn_UnresolvedMapsToErrorCode(t *testing.T) {
	h := newHarness(t, nil)
	h.res.mu.Lock()
	h.res.fail = fmt.Errorf("%w: world world", spawn.ErrNoRandomCandidate)
	h.res.mu.Unlock()
	conn := connect(t, h.url)

	send(t, conn, protocol.RespawnMsg{
		Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version, ReqID: "R9",
		Player: protocol.PlayerRef{PlayerID: uuid.NewString()}, DefaultLocation: loc("world"),
	})
	var e protocol.ErrorMsg
	if typ := recv(t, conn, &e); typ != protocol.TypeError {
		t.Fatalf("got %s want ERROR", typ)
	}
	if e.Code != protocol.ErrUnresolved || e.ReqID != "R9" {
		t.Fatalf("error=%+v", e)
	}
}

func TestDamage_GraceCancels(t *testing.T) {
	safe, exposed := uuid.New(), uuid.New()
	h := newHarness(t, fakeGuard{safe: true})
	conn := connect(t, h.url)

	for _, tc := range []struct {
		id   uuid.UUID
		want bool
	}{{safe, true}, {exposed, false}} {
		send(t, conn, protocol.DamageMsg{Type: protocol.TypeDamage, ProtocolVersion: protocol.Version, ReqID: "X", PlayerID: tc.id.String()})
		var r protocol.DamageResultMsg
		if typ := recv(t, conn, &r); typ != protocol.TypeDamageResult {
			t.Fatalf("got %s want DAMAGE_RESULT", typ)
		}
		if r.Cancelled != tc.want || r.PlayerID != tc.id.String() {
			t.Fatalf("result=%+v want cancelled=%v", r, tc.want)
		}
	}
}

func TestProtocolErrors(t *testing.T) {
	h := newHarness(t, nil)
	conn := connect(t, h.url)

	send(t, conn, map[string]any{"type": protocol.TypeJoin, "protocol_version": "0.9"})
	var e protocol.ErrorMsg
	recv(t, conn, &e)
	if e.Code != protocol.ErrProtoVersion {
		t.Fatalf("code=%s want %s", e.Code, protocol.ErrProtoVersion)
	}

	send(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, ReqID: "R2", Player: protocol.PlayerRef{PlayerID: "steve"}, Location: loc("world")})
	recv(t, conn, &e)
	if e.Code != protocol.ErrBadPlayer || e.ReqID != "R2" {
		t.Fatalf("error=%+v", e)
	}

	send(t, conn, protocol.RespawnMsg{Type: protocol.TypeRespawn, ProtocolVersion: protocol.Version, ReqID: "R3", Player: protocol.PlayerRef{PlayerID: uuid.NewString()}, DefaultLocation: loc("narnia")})
	recv(t, conn, &e)
	if e.Code != protocol.ErrWorldNotFound || e.ReqID != "R3" {
		t.Fatalf("error=%+v", e)
	}

	send(t, conn, map[string]any{"type": "TELEPORT", "protocol_version": protocol.Version})
	recv(t, conn, &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code=%s", e.Code)
	}
}

func TestHandshake_RequiresHello(t *testing.T) {
	h := newHarness(t, nil)
	conn := dial(t, h.url)
	send(t, conn, protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected the connection to close")
	}
}

func TestNotifier_NoSessionIsNoop(t *testing.T) {
	if err := (Notifier{}).Notify(context.Background(), spawn.Notice{Player: uuid.New(), Tier: spawn.TierDeath}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}
