package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap/zaptest"
)

type memoryStore struct {
	mu    sync.Mutex
	saved map[string]types.PointValues
	fail  bool
}

func (m *memoryStore) SaveValues(_ context.Context, fid string, values types.PointValues) error {
	if m.fail {
		return errors.New("database down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved[fid] == nil {
		m.saved[fid] = types.PointValues{}
	}
	for k, v := range values {
		m.saved[fid][k] = v
	}
	return nil
}

func TestRecorderPersistsInOrder(t *testing.T) {
	store := &memoryStore{saved: map[string]types.PointValues{}}
	r := NewRecorder(store, zaptest.NewLogger(t))
	r.Start()

	r.Record("F1", types.PointValues{"dim": "10"})
	r.Record("F1", types.PointValues{"dim": "20"})
	r.Record("F2", types.PointValues{"on": "1"})
	r.Stop()

	if store.saved["F1"]["dim"] != "20" || store.saved["F2"]["on"] != "1" {
		t.Errorf("saved = %v", store.saved)
	}
}

func TestRecorderSurvivesStoreErrors(t *testing.T) {
	store := &memoryStore{saved: map[string]types.PointValues{}, fail: true}
	r := NewRecorder(store, zaptest.NewLogger(t))
	r.Start()

	r.Record("F1", types.PointValues{"dim": "10"})
	r.Stop()
	r.Stop()
}
