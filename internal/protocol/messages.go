package protocol

// Location is a position plus facing, as exchanged with the host.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// PlayerRef carries identity plus the capability bits the host resolved.
type PlayerRef struct {
	PlayerID     string `json:"player_id"`
	Name         string `json:"name,omitempty"`
	Bypass       bool   `json:"bypass,omitempty"`
	Notify       bool   `json:"notify,omitempty"`
	FirstSession bool   `json:"first_session,omitempty"`
}

// HELLO (host -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	HostName        string `json:"host_name"`
}

// WELCOME (server -> host)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	Worlds          []WorldRef `json:"worlds"`
}

type WorldRef struct {
	WorldID   string `json:"world_id"`
	Dimension string `json:"dimension,omitempty"`
	MinY      int    `json:"min_y"`
	MaxY      int    `json:"max_y"`
}

// JOIN (host -> server)
type JoinMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ReqID           string    `json:"req_id"`
	Player          PlayerRef `json:"player"`
	Location        Location  `json:"location"`
}

// DEATH (host -> server)
type DeathMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ReqID           string    `json:"req_id"`
	Player          PlayerRef `json:"player"`
	Location        Location  `json:"location"`
}

// RESPAWN (host -> server)
type RespawnMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	ReqID           string    `json:"req_id"`
	Player          PlayerRef `json:"player"`
	DefaultLocation Location  `json:"default_location"`
	BedOrAnchor     bool      `json:"bed_or_anchor,omitempty"`
	// DeathWorld overrides the world remembered from the last DEATH.
	DeathWorld string `json:"death_world,omitempty"`
}

// DAMAGE (host -> server)
type DamageMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	PlayerID        string `json:"player_id"`
}

// DECISION (server -> host)
type DecisionMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id"`
	PlayerID        string   `json:"player_id"`
	Event           string   `json:"event"`
	Tier            string   `json:"tier"`
	Radius          int      `json:"radius,omitempty"`
	Teleport        bool     `json:"teleport"`
	Location        Location `json:"location"`
	Reason          string   `json:"reason,omitempty"`
}

// NOTICE (server -> host)
type NoticeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	PlayerID        string   `json:"player_id"`
	Tier            string   `json:"tier"`
	Radius          int      `json:"radius,omitempty"`
	Location        Location `json:"location"`
	Message         string   `json:"message"`
	Sound           string   `json:"sound,omitempty"`
}

// DAMAGE_RESULT (server -> host)
type DamageResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id"`
	PlayerID        string `json:"player_id"`
	Cancelled       bool   `json:"cancelled"`
}

// ERROR (server -> host)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
