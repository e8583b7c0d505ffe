package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"safespawn.ai/internal/protocol"
)

// A scripted host: it connects to the spawn server and plays one player
// through join, death and respawn, printing what comes back.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot-host", "host name")
		player  = flag.String("player", "", "player uuid (default: random)")
		worldID = flag.String("world", "world", "world the player is in")
		first   = flag.Bool("first", true, "mark the join as the player's first session")
		rounds  = flag.Int("rounds", 3, "death/respawn rounds after joining")
		deathY  = flag.Float64("death_y", -70, "y of each death location")
		bed     = flag.Bool("bed", false, "report respawns as bed/anchor respawns")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		HostName:        *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := readInto(conn, protocol.TypeWelcome, &welcome); err != nil {
		logger.Fatalf("WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s worlds=%d", welcome.SessionID, len(welcome.Worlds))

	id := uuid.New()
	if *player != "" {
		if id, err = uuid.Parse(*player); err != nil {
			logger.Fatalf("bad -player: %v", err)
		}
	}
	ref := protocol.PlayerRef{PlayerID: id.String(), Name: *name + "-player", Notify: true, FirstSession: *first}
	at := protocol.Location{World: *worldID, X: 0.5, Y: 100, Z: 0.5}

	join := protocol.JoinMsg{Type: protocol.TypeJoin, ProtocolVersion: protocol.Version, ReqID: "J1", Player: ref, Location: at}
	if err := conn.WriteJSON(join); err != nil {
		logger.Fatalf("send JOIN: %v", err)
	}
	if err := awaitDecision(conn, logger); err != nil {
		logger.Fatalf("JOIN: %v", err)
	}
	ref.FirstSession = false

	for i := 1; i <= *rounds; i++ {
		death := protocol.DeathMsg{
			Type:            protocol.TypeDeath,
			ProtocolVersion: protocol.Version,
			ReqID:           fmt.Sprintf("D%d", i),
			Player:          ref,
			Location:        protocol.Location{World: *worldID, X: float64(i*10) + 0.5, Y: *deathY, Z: 0.5},
		}
		if err := conn.WriteJSON(death); err != nil {
			logger.Fatalf("send DEATH: %v", err)
		}
		respawn := protocol.RespawnMsg{
			Type:            protocol.TypeRespawn,
			ProtocolVersion: protocol.Version,
			ReqID:           fmt.Sprintf("R%d", i),
			Player:          ref,
			DefaultLocation: at,
			BedOrAnchor:     *bed,
		}
		if err := conn.WriteJSON(respawn); err != nil {
			logger.Fatalf("send RESPAWN: %v", err)
		}
		if err := awaitDecision(conn, logger); err != nil {
			logger.Printf("RESPAWN %d: %v", i, err)
		}

		dmg := protocol.DamageMsg{Type: protocol.TypeDamage, ProtocolVersion: protocol.Version, ReqID: fmt.Sprintf("X%d", i), PlayerID: id.String()}
		if err := conn.WriteJSON(dmg); err != nil {
			logger.Fatalf("send DAMAGE: %v", err)
		}
		var dr protocol.DamageResultMsg
		if err := readInto(conn, protocol.TypeDamageResult, &dr); err != nil {
			logger.Fatalf("DAMAGE_RESULT: %v", err)
		}
		logger.Printf("DAMAGE %s cancelled=%v", dr.ReqID, dr.Cancelled)
	}
}

// awaitDecision prints notices until the DECISION (or ERROR) for the last
// request arrives.
func awaitDecision(conn *websocket.Conn, logger *log.Logger) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeNotice:
			var n protocol.NoticeMsg
			if err := json.Unmarshal(msg, &n); err == nil {
				logger.Printf("NOTICE %s: %s", n.Tier, n.Message)
			}
		case protocol.TypeDecision:
			var d protocol.DecisionMsg
			if err := json.Unmarshal(msg, &d); err != nil {
				return err
			}
			l := d.Location
			logger.Printf("DECISION %s %s tier=%s radius=%d teleport=%v -> %s (%.1f, %.1f, %.1f) %s",
				d.ReqID, d.Event, d.Tier, d.Radius, d.Teleport, l.World, l.X, l.Y, l.Z, d.Reason)
			return nil
		case protocol.TypeError:
			var e protocol.ErrorMsg
			_ = json.Unmarshal(msg, &e)
			return fmt.Errorf("%s: %s", e.Code, e.Message)
		}
	}
}

func readInto(conn *websocket.Conn, want string, v any) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return err
	}
	if base.Type != want {
		return fmt.Errorf("got %s, want %s: %s", base.Type, want, msg)
	}
	return json.Unmarshal(msg, v)
}
