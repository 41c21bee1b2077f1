package websocket

import (
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/devices"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Device-related messages
	MessageTypeDeviceState    MessageType = "device_state"
	MessageTypeDeviceSnapshot MessageType = "device_snapshot"

	// Session messages
	MessageTypeAuthSuccess MessageType = "auth_success"
	MessageTypeAuthFailed  MessageType = "auth_failed"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      any         `json:"data,omitempty"`
}

type SnapshotData struct {
	Devices []devices.View `json:"devices"`
}

type AuthFailedData struct {
	Reason string `json:"reason"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewDeviceStateMessage(view devices.View) Message {
	return NewMessage(MessageTypeDeviceState, view)
}

func NewSnapshotMessage(views []devices.View) Message {
	return NewMessage(MessageTypeDeviceSnapshot, SnapshotData{Devices: views})
}
