package spawn

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"safespawn.ai/internal/spawn/model"
)

// ErrNoRandomCandidate is returned when the world's random generator cannot
// produce a location. The event is left unresolved.
var ErrNoRandomCandidate = errors.New("no random spawn candidate")

// World is everything the resolver needs from the hosting world.
type World interface {
	model.Terrain
	RandomSpawnLocation(world string) (model.Coordinate, error)
	KnownWorld(id string) bool
	Dimension(id string) string
}

type Players interface {
	HasBypass(player uuid.UUID) bool
	HasNotify(player uuid.UUID) bool
	IsFirstSession(player uuid.UUID) bool
}

type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

type Grace interface {
	Grant(player uuid.UUID, world string)
}

// Auditor receives every outcome, suppressed ones included.
type Auditor interface {
	WriteOutcome(o Outcome) error
}

type Notice struct {
	Player   uuid.UUID        `json:"player_id"`
	Tier     Tier             `json:"tier"`
	Radius   int              `json:"radius,omitempty"`
	Location model.Coordinate `json:"location"`
}

type EventKind string

const (
	EventJoin    EventKind = "join"
	EventRespawn EventKind = "respawn"
	EventDeath   EventKind = "death"
)

type JoinEvent struct {
	Player   uuid.UUID
	Location model.Coordinate
}

type RespawnEvent struct {
	Player uuid.UUID
	// Default is where the host would respawn the player on its own.
	Default     model.Coordinate
	BedOrAnchor bool
	// DeathWorld is the world of the preceding death, if known.
	DeathWorld string
}

type DeathEvent struct {
	Player   uuid.UUID
	Location model.Coordinate
}

// DeathContext is what a death contributes to the following respawn.
type DeathContext struct {
	Player   uuid.UUID
	World    string
	Location model.Coordinate
}

// Outcome is the result of one event. Only teleporting outcomes grant a
// grace window; a silent outcome without Teleport (the baseline stored on a
// returning player's join) grants none and sends no notice.
type Outcome struct {
	Event     EventKind        `json:"event"`
	Player    uuid.UUID        `json:"player_id"`
	Tier      Tier             `json:"tier"`
	Radius    int              `json:"radius,omitempty"`
	Location  model.Coordinate `json:"location"`
	Teleport  bool             `json:"teleport"`
	Persisted bool             `json:"persisted"`
	Reason    string           `json:"reason,omitempty"`
}
