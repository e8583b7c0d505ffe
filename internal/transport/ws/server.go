// Package ws is the host bridge: a game server connects over WebSocket,
// forwards join/death/respawn/damage events and receives spawn decisions.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"safespawn.ai/internal/protocol"
	"safespawn.ai/internal/spawn"
	"safespawn.ai/internal/spawn/model"
)

// Resolver is the spawn pipeline surface the bridge drives.
type Resolver interface {
	OnJoin(ctx context.Context, ev spawn.JoinEvent) (spawn.Outcome, error)
	OnRespawn(ctx context.Context, ev spawn.RespawnEvent) (spawn.Outcome, error)
	OnDeath(ctx context.Context, ev spawn.DeathEvent) spawn.DeathContext
}

// Worlds describes the worlds announced in WELCOME.
type Worlds interface {
	Worlds() []string
	KnownWorld(id string) bool
	Dimension(id string) string
	MinHeight(world string) int
	MaxHeight(world string) int
}

// Guard answers whether damage should be cancelled.
type Guard interface {
	Protected(player uuid.UUID) bool
}

const inboxWait = 2 * time.Second

type job struct {
	sess *session
	base protocol.BaseMessage
	raw  []byte
}

type session struct {
	id  string
	out chan []byte
}

type Server struct {
	resolver Resolver
	players  *PlayerTable
	worlds   Worlds
	guard    Guard
	log      *log.Logger

	upgrader websocket.Upgrader
	inbox    chan job

	// Owned by Run.
	deaths map[uuid.UUID]string
}

func NewServer(r Resolver, players *PlayerTable, worlds Worlds, guard Guard, logger *log.Logger) *Server {
	return &Server{
		resolver: r,
		players:  players,
		worlds:   worlds,
		guard:    guard,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // hosts are not browsers
		},
		inbox:  make(chan job, 1024),
		deaths: map[uuid.UUID]string{},
	}
}

// Run drains the event inbox on a single goroutine so world queries and
// record writes never race. It returns when ctx is done.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.inbox:
			s.handle(ctx, j)
		}
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				sess.send(s.log, errorMsg("", protocol.ErrProtoBadRequest, "invalid json"))
				continue
			}
			if base.ProtocolVersion != protocol.Version {
				sess.send(s.log, errorMsg("", protocol.ErrProtoVersion, "bad protocol_version"))
				continue
			}
			select {
			case s.inbox <- job{sess: sess, base: base, raw: msg}:
			case <-ctx.Done():
			case <-time.After(inboxWait):
				sess.send(s.log, errorMsg("", protocol.ErrBusy, "event queue full"))
			}
		}
		s.log.Printf("host session %s closed", sess.id)
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil
	}

	sess := &session{id: uuid.NewString(), out: make(chan []byte, 64)}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
	}
	for _, id := range s.worlds.Worlds() {
		welcome.Worlds = append(welcome.Worlds, protocol.WorldRef{
			WorldID:   id,
			Dimension: s.worlds.Dimension(id),
			MinY:      s.worlds.MinHeight(id),
			MaxY:      s.worlds.MaxHeight(id),
		})
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	name := strings.TrimSpace(hello.HostName)
	if name == "" {
		name = "host"
	}
	s.log.Printf("host %s connected (session %s)", name, sess.id)
	return sess
}

func (s *Server) handle(ctx context.Context, j job) {
	ctx = withSession(ctx, j.sess)
	switch j.base.Type {
	case protocol.TypeJoin:
		var m protocol.JoinMsg
		if err := json.Unmarshal(j.raw, &m); err != nil {
			j.sess.send(s.log, errorMsg("", protocol.ErrProtoBadRequest, "bad JOIN"))
			return
		}
		id, ok := s.player(j.sess, m.ReqID, m.Player)
		if !ok || !s.knownWorld(j.sess, m.ReqID, m.Location.World) {
			return
		}
		// A death from an earlier session never carries into this one.
		delete(s.deaths, id)
		out, err := s.resolver.OnJoin(ctx, spawn.JoinEvent{Player: id, Location: toModel(m.Location)})
		s.reply(j.sess, m.ReqID, out, err)

	case protocol.TypeDeath:
		var m protocol.DeathMsg
		if err := json.Unmarshal(j.raw, &m); err != nil {
			j.sess.send(s.log, errorMsg("", protocol.ErrProtoBadRequest, "bad DEATH"))
			return
		}
		id, ok := s.player(j.sess, m.ReqID, m.Player)
		if !ok {
			return
		}
		dc := s.resolver.OnDeath(ctx, spawn.DeathEvent{Player: id, Location: toModel(m.Location)})
		s.deaths[id] = dc.World

	case protocol.TypeRespawn:
		var m protocol.RespawnMsg
		if err := json.Unmarshal(j.raw, &m); err != nil {
			j.sess.send(s.log, errorMsg("", protocol.ErrProtoBadRequest, "bad RESPAWN"))
			return
		}
		id, ok := s.player(j.sess, m.ReqID, m.Player)
		if !ok || !s.knownWorld(j.sess, m.ReqID, m.DefaultLocation.World) {
			return
		}
		deathWorld := strings.TrimSpace(m.DeathWorld)
		if deathWorld == "" {
			deathWorld = s.deaths[id]
		}
		delete(s.deaths, id)
		out, err := s.resolver.OnRespawn(ctx, spawn.RespawnEvent{
			Player:      id,
			Default:     toModel(m.DefaultLocation),
			BedOrAnchor: m.BedOrAnchor,
			DeathWorld:  deathWorld,
		})
		s.reply(j.sess, m.ReqID, out, err)

	case protocol.TypeDamage:
		var m protocol.DamageMsg
		if err := json.Unmarshal(j.raw, &m); err != nil {
			j.sess.send(s.log, errorMsg("", protocol.ErrProtoBadRequest, "bad DAMAGE"))
			return
		}
		id, err := uuid.Parse(m.PlayerID)
		if err != nil {
			j.sess.send(s.log, errorMsg(m.ReqID, protocol.ErrBadPlayer, "player_id must be a uuid"))
			return
		}
		j.sess.send(s.log, protocol.DamageResultMsg{
			Type:            protocol.TypeDamageResult,
			ProtocolVersion: protocol.Version,
			ReqID:           m.ReqID,
			PlayerID:        id.String(),
			Cancelled:       s.guard != nil && s.guard.Protected(id),
		})

	default:
		j.sess.send(s.log, errorMsg("", protocol.ErrProtoBadRequest, "unexpected type "+j.base.Type))
	}
}

func (s *Server) player(sess *session, reqID string, ref protocol.PlayerRef) (uuid.UUID, bool) {
	id, err := uuid.Parse(ref.PlayerID)
	if err != nil {
		sess.send(s.log, errorMsg(reqID, protocol.ErrBadPlayer, "player_id must be a uuid"))
		return uuid.Nil, false
	}
	s.players.Update(id, ref)
	return id, true
}

func (s *Server) knownWorld(sess *session, reqID, world string) bool {
	if s.worlds.KnownWorld(world) {
		return true
	}
	sess.send(s.log, errorMsg(reqID, protocol.ErrWorldNotFound, "unknown world "+world))
	return false
}

func (s *Server) reply(sess *session, reqID string, out spawn.Outcome, err error) {
	if err != nil {
		code := protocol.ErrInternal
		if errors.Is(err, spawn.ErrNoRandomCandidate) {
			code = protocol.ErrUnresolved
		}
		sess.send(s.log, errorMsg(reqID, code, err.Error()))
		return
	}
	sess.send(s.log, protocol.DecisionMsg{
		Type:            protocol.TypeDecision,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		PlayerID:        out.Player.String(),
		Event:           string(out.Event),
		Tier:            out.Tier.String(),
		Radius:          out.Radius,
		Teleport:        out.Teleport,
		Location:        fromModel(out.Location),
		Reason:          out.Reason,
	})
}

func (sess *session) send(logger *log.Logger, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Printf("marshal %T: %v", v, err)
		return
	}
	select {
	case sess.out <- b:
	default:
		logger.Printf("session %s: outbound queue full, dropping %T", sess.id, v)
	}
}

func errorMsg(reqID, code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		ReqID:           reqID,
		Code:            code,
		Message:         msg,
	}
}

func toModel(l protocol.Location) model.Coordinate {
	return model.Coordinate{World: l.World, X: l.X, Y: l.Y, Z: l.Z, Yaw: l.Yaw, Pitch: l.Pitch}
}

func fromModel(c model.Coordinate) protocol.Location {
	return protocol.Location{World: c.World, X: c.X, Y: c.Y, Z: c.Z, Yaw: c.Yaw, Pitch: c.Pitch}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
