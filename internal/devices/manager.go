package devices

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrWrongKind      = errors.New("device kind does not support this command")
	ErrUnsupported    = errors.New("capability not supported by device")
)

// Manager holds the device records of one session and their latest views.
// Records are replaced, never mutated, when values change.
type Manager struct {
	records map[string]types.DeviceRecord
	views   map[string]View
	order   []string
	mu      sync.RWMutex
	logger  *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		records: make(map[string]types.DeviceRecord),
		views:   make(map[string]View),
		logger:  logger.With(zap.String("component", "devices")),
	}
}

// Load registers records and derives their initial views from snapshot.
// Records whose id is already registered are skipped.
func (m *Manager) Load(records []types.DeviceRecord, snapshot types.ValueSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		id := rec.DeviceID()
		if _, exists := m.records[id]; exists {
			m.logger.Warn("Function listed in more than one trade, keeping first",
				zap.String("function", id),
				zap.String("kind", string(rec.Kind())))
			continue
		}
		m.records[id] = rec
		m.order = append(m.order, id)
		m.views[id] = deriveView(rec, snapshot[id], nil)
	}

	m.logger.Info("Devices loaded", zap.Int("devices", len(m.order)))
}

// Refresh re-derives the record and view of functionID from its current
// values. It returns false for functions that are not a device.
func (m *Manager) Refresh(functionID string, values types.PointValues) (View, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[functionID]
	if !exists {
		return View{}, false
	}

	if light, ok := rec.(*types.LightDevice); ok {
		rec = RefreshLight(light, values)
		m.records[functionID] = rec
	}

	prev := m.views[functionID]
	view := deriveView(rec, values, &prev)
	m.views[functionID] = view
	return view, true
}

func deriveView(rec types.DeviceRecord, values types.PointValues, prev *View) View {
	switch d := rec.(type) {
	case *types.LightDevice:
		return LightView(d)
	case *types.ClimateDevice:
		var p *ClimateState
		if prev != nil {
			p = prev.Climate
		}
		return ClimateView(d, values, p)
	case *types.CoverDevice:
		var p *CoverState
		if prev != nil {
			p = prev.Cover
		}
		return CoverView(d, values, p)
	default:
		return View{ID: rec.DeviceID(), Name: rec.DeviceName(), Kind: rec.Kind()}
	}
}

// GetDevice returns a record by function id.
func (m *Manager) GetDevice(id string) (types.DeviceRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[id]
	return rec, exists
}

// GetView returns the latest view of a device.
func (m *Manager) GetView(id string) (View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	view, exists := m.views[id]
	return view, exists
}

// ListDevices returns all records in load order.
func (m *Manager) ListDevices() []types.DeviceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.DeviceRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out
}

// ListViews returns all views in load order, optionally filtered by kind.
func (m *Manager) ListViews(kind types.DeviceKind) []View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]View, 0, len(m.order))
	for _, id := range m.order {
		view := m.views[id]
		if kind != "" && view.Kind != kind {
			continue
		}
		out = append(out, view)
	}
	return out
}

func (m *Manager) light(id string) (*types.LightDevice, error) {
	rec, ok := m.GetDevice(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	d, ok := rec.(*types.LightDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, rec.Kind())
	}
	return d, nil
}

func (m *Manager) climate(id string) (*types.ClimateDevice, error) {
	rec, ok := m.GetDevice(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	d, ok := rec.(*types.ClimateDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, rec.Kind())
	}
	return d, nil
}

func (m *Manager) cover(id string) (*types.CoverDevice, error) {
	rec, ok := m.GetDevice(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	d, ok := rec.(*types.CoverDevice)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, rec.Kind())
	}
	return d, nil
}
