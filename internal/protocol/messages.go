package protocol

import "github.com/syncinema/server/internal/domain"

// Inbound message tags.
const (
	TypeRequestSync = "requestSync"
	TypeCheckTime   = "checkTime"
	TypeLoad        = "load"
	TypeSeek        = "seek"
	TypePlay        = "play"
	TypePause       = "pause"
	TypeHeartbeat   = "heartbeat"
	TypeForceSync   = "forceSync"
)

// Outbound message tags.
const (
	TypeRoleAssigned       = "roleAssigned"
	TypeRoleRevoked        = "roleRevoked"
	TypeAuthoritativeState = "authoritativeState"
	TypeAuthoritativeSync  = "authoritativeSync"
	TypeTimeCheckResult    = "timeCheckResult"
	TypeNoContent          = "noContent"
	TypeAdminLeft          = "adminLeft"
)

// Close codes, distinguished so clients can branch without reading bodies.
const (
	CloseHostSuperseded    = 4000
	CloseInvalidRoomSecret = 4001
)

type RoleAssigned struct {
	Type          string `json:"type"`
	IsAdmin       bool   `json:"isAdmin"`
	IsAdminActive bool   `json:"isAdminActive"`
	Ip            string `json:"ip"`
}

type RoleRevoked struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// StateEvent carries a snapshot under one of the snapshot-bearing tags
// (authoritativeState, authoritativeSync, timeCheckResult).
type StateEvent struct {
	Type    string  `json:"type"`
	File    string  `json:"file"`
	Time    float64 `json:"time"`
	Playing bool    `json:"playing"`
}

func NewStateEvent(tag string, snap domain.Snapshot) StateEvent {
	return StateEvent{
		Type:    tag,
		File:    snap.File,
		Time:    snap.Time,
		Playing: snap.Playing,
	}
}

type NoContent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type AdminLeft struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type LoadEvent struct {
	Type string `json:"type"`
	File string `json:"file"`
}

type SeekEvent struct {
	Type string  `json:"type"`
	Time float64 `json:"time"`
}

type PlayEvent struct {
	Type string `json:"type"`
}

type PauseEvent struct {
	Type string `json:"type"`
}
