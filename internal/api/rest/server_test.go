package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/auth"
	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/interfaces"
	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	writes map[string]any
	err    error
}

func (w *fakeWriter) WriteValue(_ context.Context, pointID string, value any) error {
	if w.err != nil {
		return w.err
	}
	w.writes[pointID] = value
	return nil
}

type fakeSession struct {
	manager   *devices.Manager
	commander *devices.Commander
}

func (f *fakeSession) DeviceManager() *devices.Manager { return f.manager }
func (f *fakeSession) Commander() *devices.Commander   { return f.commander }
func (f *fakeSession) GetCurrentStatus() interfaces.SessionStatus {
	return interfaces.SessionStatus{State: "RUNNING", DeviceCount: len(f.manager.ListDevices())}
}

func newTestServer(t *testing.T, jwt *auth.JWTHandler) (*Server, *fakeWriter) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	mgr := devices.NewManager(logger)
	mgr.Load([]types.DeviceRecord{
		devices.BuildLight(&types.FunctionDescriptor{
			ID: "L1", DisplayName: "Lamp",
			DataPoints: []types.DataPoint{{Name: "OnOff", ID: "on"}, {Name: "Brightness", ID: "dim"}},
		}, types.PointValues{"on": "1", "dim": "50"}),
		devices.BuildCover(&types.FunctionDescriptor{
			ID: "C1", DisplayName: "Blind",
			DataPoints: []types.DataPoint{{Name: "Up-Down", ID: "ud"}, {Name: "Position", ID: "pos"}},
		}),
	}, nil)

	w := &fakeWriter{writes: map[string]any{}}
	session := &fakeSession{manager: mgr, commander: devices.NewCommander(mgr, w, logger, nil)}

	srv := NewServer(0, session, nil, jwt, metrics.New(), logger)
	gin.SetMode(gin.TestMode)
	return srv, w
}

func do(t *testing.T, srv *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if rec := do(t, srv, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}
	rec := do(t, srv, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "giraiot_") {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/devices?kind=light", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Devices []devices.View `json:"devices"`
		Count   int            `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 || body.Devices[0].ID != "L1" {
		t.Fatalf("body = %+v", body)
	}
	if b := body.Devices[0].Light.Brightness; b == nil || *b != 128 {
		t.Errorf("brightness = %v, want 128", b)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/devices?kind=toaster", "", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d", rec.Code)
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if rec := do(t, srv, http.MethodGet, "/api/v1/devices/C1", "", ""); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/devices/nope", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d", rec.Code)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		wantCode  int
		wantPoint string
		wantValue any
	}{
		{"turn on with brightness", "/api/v1/lights/L1/turn_on", `{"brightness":255}`, http.StatusAccepted, "dim", 100.0},
		{"turn on without body", "/api/v1/lights/L1/turn_on", "", http.StatusAccepted, "on", 1},
		{"turn off", "/api/v1/lights/L1/turn_off", "", http.StatusAccepted, "on", 0},
		{"open", "/api/v1/covers/C1/open", "", http.StatusAccepted, "ud", 0},
		{"position", "/api/v1/covers/C1/position", `{"position":25}`, http.StatusAccepted, "pos", 25},
		{"missing position", "/api/v1/covers/C1/position", `{}`, http.StatusBadRequest, "", nil},
		{"stop unsupported", "/api/v1/covers/C1/stop", "", http.StatusUnprocessableEntity, "", nil},
		{"wrong kind", "/api/v1/climates/L1/temperature", `{"temperature":21}`, http.StatusUnprocessableEntity, "", nil},
		{"unknown device", "/api/v1/lights/nope/turn_off", "", http.StatusNotFound, "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, w := newTestServer(t, nil)
			rec := do(t, srv, http.MethodPost, tt.path, tt.body, "")

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantPoint == "" {
				if len(w.writes) != 0 {
					t.Errorf("unexpected writes %v", w.writes)
				}
				return
			}
			if got := w.writes[tt.wantPoint]; got != tt.wantValue {
				t.Errorf("write %s = %v (%T), want %v", tt.wantPoint, got, got, tt.wantValue)
			}
		})
	}
}

func TestVendorFailureIsBadGateway(t *testing.T) {
	srv, w := newTestServer(t, nil)
	w.err = errors.New("gira: transport failed")

	if rec := do(t, srv, http.MethodPost, "/api/v1/lights/L1/turn_off", "", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestAuthentication(t *testing.T) {
	jwt := auth.NewJWTHandler("secret")
	srv, _ := newTestServer(t, jwt)
	reader, _ := jwt.GenerateToken("ro", []auth.Permission{auth.PermRead}, time.Minute)

	if rec := do(t, srv, http.MethodGet, "/api/v1/devices", "", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous read status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/devices", "", reader); rec.Code != http.StatusOK {
		t.Errorf("reader read status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/lights/L1/turn_off", "", reader); rec.Code != http.StatusForbidden {
		t.Errorf("reader write status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("health should stay public, got %d", rec.Code)
	}
}
