package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/auth"
	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

type staticViews []devices.View

func (s staticViews) ListViews(types.DeviceKind) []devices.View { return s }

func startHub(t *testing.T, jwt *auth.JWTHandler) (*Hub, string) {
	t.Helper()
	views := staticViews{{ID: "F1", Name: "Lamp", Kind: types.KindLight, Light: &devices.LightState{IsOn: true}}}
	hub := NewHub(views, jwt, zaptest.NewLogger(t))
	go hub.Run()
	t.Cleanup(hub.Stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.GetClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSnapshotThenBroadcast(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url)

	if msg := readMessage(t, conn); msg.Type != MessageTypeDeviceSnapshot {
		t.Fatalf("first message = %s, want device_snapshot", msg.Type)
	}
	waitForClients(t, hub, 1)

	hub.PublishView(devices.View{ID: "F1", Kind: types.KindLight, Light: &devices.LightState{IsOn: false}})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeDeviceState {
		t.Fatalf("message type = %s, want device_state", msg.Type)
	}
	raw, _ := json.Marshal(msg.Data)
	var view devices.View
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.ID != "F1" || view.Light == nil || view.Light.IsOn {
		t.Errorf("view = %+v", view)
	}
}

func TestAuthRequiredWhenEnabled(t *testing.T) {
	jwt := auth.NewJWTHandler("secret")
	hub, url := startHub(t, jwt)

	t.Run("rejects missing auth", func(t *testing.T) {
		conn := dial(t, url)
		conn.WriteJSON(map[string]string{"type": "hello"})

		if msg := readMessage(t, conn); msg.Type != MessageTypeAuthFailed {
			t.Errorf("message type = %s, want auth_failed", msg.Type)
		}
	})

	t.Run("accepts valid token", func(t *testing.T) {
		token, err := jwt.GenerateToken("viewer", []auth.Permission{auth.PermRead}, time.Minute)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		conn := dial(t, url)
		conn.WriteJSON(authMessage{Type: "auth", Token: token})

		if msg := readMessage(t, conn); msg.Type != MessageTypeAuthSuccess {
			t.Fatalf("message type = %s, want auth_success", msg.Type)
		}
		if msg := readMessage(t, conn); msg.Type != MessageTypeDeviceSnapshot {
			t.Errorf("message type = %s, want device_snapshot", msg.Type)
		}
		waitForClients(t, hub, 1)
	})
}
