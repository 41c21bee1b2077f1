package interfaces

import "github.com/KevinKickass/GiraIoTCore/internal/devices"

// SessionStatus represents the current session state
type SessionStatus struct {
	State       string `json:"state"`
	SessionID   string `json:"session_id"`
	Host        string `json:"host"`
	DeviceCount int    `json:"device_count"`
	Lights      int    `json:"lights"`
	Climates    int    `json:"climates"`
	Covers      int    `json:"covers"`
	Polling     bool   `json:"polling"`
	PushEnabled bool   `json:"push_enabled"`
	StartedAt   int64  `json:"started_at"`
}

// DeviceSession is what the host-facing APIs need from a running session.
type DeviceSession interface {
	DeviceManager() *devices.Manager
	Commander() *devices.Commander
	GetCurrentStatus() SessionStatus
}
