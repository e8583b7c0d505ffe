// Package notify turns spawn notices into player-facing text and delivers
// them to one or more sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"safespawn.ai/internal/spawn"
)

// Render returns the chat line for a notice, or "" for tiers that stay
// silent.
func Render(n spawn.Notice) string {
	x, y, z := n.Location.Block()
	switch n.Tier {
	case spawn.TierFirstAssignment:
		return fmt.Sprintf("Welcome! Your spawn point is X %d, Y %d, Z %d in %s.", x, y, z, n.Location.World)
	case spawn.TierRelocatedNearby:
		return fmt.Sprintf("Your spawn point was unsafe; you were moved within %d blocks to X %d, Y %d, Z %d.", n.Radius, x, y, z)
	case spawn.TierRelocatedRandom:
		return fmt.Sprintf("Your spawn point was unsafe; you have a new spawn point at X %d, Y %d, Z %d in %s.", x, y, z, n.Location.World)
	case spawn.TierDeath:
		return fmt.Sprintf("Your death location (X %d, Y %d, Z %d) in world (%s).", x, y, z, n.Location.World)
	default:
		return ""
	}
}

// Sound names the cue a host should play with the notice.
func Sound(t spawn.Tier) string {
	switch t {
	case spawn.TierFirstAssignment:
		return "ENTITY_PLAYER_LEVELUP"
	case spawn.TierRelocatedNearby, spawn.TierRelocatedRandom:
		return "ENTITY_ENDERMAN_TELEPORT"
	default:
		return ""
	}
}

// Log writes rendered notices to a logger.
type Log struct{ L *log.Logger }

func (l Log) Notify(_ context.Context, n spawn.Notice) error {
	if msg := Render(n); msg != "" && l.L != nil {
		l.L.Printf("notice %s %s: %s", n.Player, n.Tier, msg)
	}
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []spawn.Notifier

func (m Multi) Notify(ctx context.Context, n spawn.Notice) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
