package ws

import (
	"sync"

	"github.com/google/uuid"

	"safespawn.ai/internal/protocol"
)

// PlayerTable remembers the capability bits the host last sent for each
// player. It answers the resolver's identity questions.
type PlayerTable struct {
	mu sync.RWMutex
	m  map[uuid.UUID]protocol.PlayerRef
}

func NewPlayerTable() *PlayerTable {
	return &PlayerTable{m: map[uuid.UUID]protocol.PlayerRef{}}
}

func (t *PlayerTable) Update(id uuid.UUID, ref protocol.PlayerRef) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[id] = ref
}

func (t *PlayerTable) get(id uuid.UUID) protocol.PlayerRef {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.m[id]
}

func (t *PlayerTable) HasBypass(id uuid.UUID) bool      { return t.get(id).Bypass }
func (t *PlayerTable) HasNotify(id uuid.UUID) bool      { return t.get(id).Notify }
func (t *PlayerTable) IsFirstSession(id uuid.UUID) bool { return t.get(id).FirstSession }
