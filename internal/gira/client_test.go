package gira

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

// fakeDevice is a minimal stand-in for the vendor HTTP API.
type fakeDevice struct {
	mu        sync.Mutex
	token     string
	user      string
	password  string
	values    map[string][]valueEntry
	writes    []valueEntry
	callbacks []string
	uiconfig  string
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		token:    "tok-1",
		user:     "admin",
		password: "secret",
		values:   map[string][]valueEntry{},
		uiconfig: `{"functions":[],"trades":[]}`,
	}
}

func (f *fakeDevice) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/clients", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != f.user || pass != f.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["client"] == "" {
			t.Errorf("bad auth payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": f.token})
	})

	mux.HandleFunc("GET /api/v2/uiconfig", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, f.uiconfig)
	})

	mux.HandleFunc("GET /api/v2/values/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		vals, ok := f.values[r.PathValue("uid")]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(valuesBody{Values: vals})
	})

	mux.HandleFunc("PUT /api/v2/values", func(w http.ResponseWriter, r *http.Request) {
		var body valuesBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.writes = append(f.writes, body.Values...)
		f.mu.Unlock()
	})

	mux.HandleFunc("POST /api/clients/{token}/callbacks", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("token") != f.token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.callbacks = append(f.callbacks, body["valueCallback"])
		f.mu.Unlock()
	})

	return mux
}

func newTestClient(t *testing.T, dev *fakeDevice) *Client {
	t.Helper()
	srv := httptest.NewServer(dev.handler(t))
	t.Cleanup(srv.Close)

	return NewClient(ClientOptions{
		BaseURL:  srv.URL,
		Username: dev.user,
		Password: dev.password,
	}, zaptest.NewLogger(t))
}

func TestClientConnect(t *testing.T) {
	dev := newFakeDevice()
	c := newTestClient(t, dev)

	token, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if token != "tok-1" {
		t.Errorf("Connect() token = %q, want tok-1", token)
	}
	if c.Token() != token {
		t.Errorf("Token() = %q, want %q", c.Token(), token)
	}
}

func TestClientConnectBadCredentials(t *testing.T) {
	dev := newFakeDevice()
	c := newTestClient(t, dev)
	c.password = "wrong"

	_, err := c.Connect(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("Connect() error = %v, want ErrAuth", err)
	}
}

func TestClientConnectMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>")
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL}, zaptest.NewLogger(t))
	if _, err := c.Connect(context.Background()); !errors.Is(err, ErrAuth) {
		t.Fatalf("Connect() error = %v, want ErrAuth", err)
	}
}

func TestClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientOptions{BaseURL: url}, zaptest.NewLogger(t))
	_, err := c.FetchValues(context.Background(), "tok", "F1")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("FetchValues() error = %v, want ErrTransport", err)
	}
}

func TestClientFetchTopology(t *testing.T) {
	dev := newFakeDevice()
	dev.uiconfig = `{"functions":[{"uid":"F1","displayName":"Lamp","dataPoints":[]}],"trades":[]}`
	c := newTestClient(t, dev)

	doc, err := c.FetchTopology(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("FetchTopology() error = %v", err)
	}
	if _, ok := doc["functions"]; !ok {
		t.Errorf("FetchTopology() missing functions key: %v", doc)
	}
}

func TestClientFetchTopologyDecodeError(t *testing.T) {
	dev := newFakeDevice()
	dev.uiconfig = `{"functions":`
	c := newTestClient(t, dev)

	_, err := c.FetchTopology(context.Background(), "tok-1")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("FetchTopology() error = %v, want ErrDecode", err)
	}
}

func TestClientRejectedToken(t *testing.T) {
	dev := newFakeDevice()
	c := newTestClient(t, dev)

	_, err := c.FetchTopology(context.Background(), "stale")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("FetchTopology() error = %v, want ErrAuth", err)
	}
}

func TestClientFetchValuesPartial(t *testing.T) {
	dev := newFakeDevice()
	dev.values["F1"] = []valueEntry{{UID: "on", Value: "1"}}
	c := newTestClient(t, dev)

	values, err := c.FetchValues(context.Background(), "tok-1", "F1")
	if err != nil {
		t.Fatalf("FetchValues() error = %v", err)
	}
	if len(values) != 1 || values["on"] != "1" {
		t.Errorf("FetchValues() = %v, want only on=1", values)
	}
	if _, ok := values["dim"]; ok {
		t.Error("FetchValues() padded a missing point")
	}
}

func TestClientWriteValue(t *testing.T) {
	dev := newFakeDevice()
	c := newTestClient(t, dev)

	if err := c.WriteValue(context.Background(), "tok-1", "dim", 50.0); err != nil {
		t.Fatalf("WriteValue() error = %v", err)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if len(dev.writes) != 1 || dev.writes[0].UID != "dim" || dev.writes[0].Value != 50.0 {
		t.Errorf("device saw writes %+v", dev.writes)
	}
}

func TestClientRegisterPushCallback(t *testing.T) {
	dev := newFakeDevice()
	c := newTestClient(t, dev)

	if err := c.RegisterPushCallback(context.Background(), "tok-1", "https://10.0.0.2:8124/value"); err != nil {
		t.Fatalf("RegisterPushCallback() error = %v", err)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if len(dev.callbacks) != 1 || dev.callbacks[0] != "https://10.0.0.2:8124/value" {
		t.Errorf("device saw callbacks %v", dev.callbacks)
	}
}
