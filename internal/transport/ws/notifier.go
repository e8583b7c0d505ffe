package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"safespawn.ai/internal/notify"
	"safespawn.ai/internal/protocol"
	"safespawn.ai/internal/spawn"
)

type sessionKey struct{}

func withSession(ctx context.Context, s *session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func sessionFrom(ctx context.Context) *session {
	s, _ := ctx.Value(sessionKey{}).(*session)
	return s
}

// Notifier sends NOTICE messages back over the session that delivered the
// event being resolved. Outside a bridge call it does nothing.
type Notifier struct{}

func (Notifier) Notify(ctx context.Context, n spawn.Notice) error {
	sess := sessionFrom(ctx)
	if sess == nil {
		return nil
	}
	msg := protocol.NoticeMsg{
		Type:            protocol.TypeNotice,
		ProtocolVersion: protocol.Version,
		PlayerID:        n.Player.String(),
		Tier:            n.Tier.String(),
		Radius:          n.Radius,
		Location:        fromModel(n.Location),
		Message:         notify.Render(n),
		Sound:           notify.Sound(n.Tier),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case sess.out <- b:
		return nil
	default:
		return fmt.Errorf("session %s: outbound queue full", sess.id)
	}
}
