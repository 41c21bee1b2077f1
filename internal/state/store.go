// Package state holds the canonical value snapshot shared by the poller and
// the push callback listener.
package state

import (
	"errors"
	"sync"

	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

// ErrUnknownPoint is returned when a point id belongs to no known function.
var ErrUnknownPoint = errors.New("state: unknown point")

// Listener is called after a function's values changed. values is a copy
// the listener may keep.
type Listener func(functionID string, values types.PointValues)

// Subscription identifies a registered listener.
type Subscription struct {
	functionID string
	id         uint64
}

// Store maps function id -> point id -> raw value with last-write-wins
// semantics. Updates and their notifications are serialized, so a listener
// always sees updates in the order they were applied. Listeners must not call
// back into Apply*.
type Store struct {
	values types.ValueSnapshot
	mu     sync.RWMutex

	// pointIndex covers the known function set only; it is fixed for the
	// lifetime of the store.
	pointIndex map[string]string

	subscribers map[string]map[uint64]Listener
	nextID      uint64
	subMu       sync.RWMutex

	updateMu sync.Mutex

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewStore creates an empty store that knows the given functions.
func NewStore(functions []*types.FunctionDescriptor, logger *zap.Logger, m *metrics.Metrics) *Store {
	pointIndex := make(map[string]string)
	for _, fn := range functions {
		for _, dp := range fn.DataPoints {
			if _, exists := pointIndex[dp.ID]; exists {
				continue
			}
			pointIndex[dp.ID] = fn.ID
		}
	}

	return &Store{
		values:      make(types.ValueSnapshot),
		pointIndex:  pointIndex,
		subscribers: make(map[string]map[uint64]Listener),
		logger:      logger.With(zap.String("component", "state")),
		metrics:     m,
	}
}

// Seed replaces the whole snapshot. Subscribers are not notified.
func (s *Store) Seed(initial types.ValueSnapshot) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	s.values = initial.Clone()
	s.mu.Unlock()

	s.logger.Info("Store seeded", zap.Int("functions", len(initial)))
}

// ApplyUpdate upserts one point and notifies the function's subscribers.
// Unknown function ids are stored too; they simply have no subscriber.
func (s *Store) ApplyUpdate(functionID, pointID string, raw any) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	fv := s.entry(functionID)
	fv[pointID] = raw
	copied := fv.Clone()
	s.mu.Unlock()

	s.notify(functionID, copied)
}

// ApplyBulkUpdate upserts every point of values and notifies once.
func (s *Store) ApplyBulkUpdate(functionID string, values types.PointValues) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	s.mu.Lock()
	fv := s.entry(functionID)
	for pid, raw := range values {
		fv[pid] = raw
	}
	copied := fv.Clone()
	s.mu.Unlock()

	s.notify(functionID, copied)
}

// entry must be called with mu held.
func (s *Store) entry(functionID string) types.PointValues {
	fv, ok := s.values[functionID]
	if !ok {
		fv = make(types.PointValues)
		s.values[functionID] = fv
	}
	return fv
}

func (s *Store) notify(functionID string, values types.PointValues) {
	s.subMu.RLock()
	listeners := make([]Listener, 0, len(s.subscribers[functionID]))
	for _, l := range s.subscribers[functionID] {
		listeners = append(listeners, l)
	}
	s.subMu.RUnlock()

	for i, l := range listeners {
		// each listener gets its own copy
		if i > 0 {
			values = values.Clone()
		}
		l(functionID, values)
	}
}

// Subscribe registers listener for changes to functionID.
func (s *Store) Subscribe(functionID string, listener Listener) Subscription {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	subs, ok := s.subscribers[functionID]
	if !ok {
		subs = make(map[uint64]Listener)
		s.subscribers[functionID] = subs
	}
	subs[s.nextID] = listener
	s.metrics.SubscriberDelta(1)

	return Subscription{functionID: functionID, id: s.nextID}
}

// Unsubscribe removes a listener. Unsubscribing twice is a no-op.
func (s *Store) Unsubscribe(sub Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, ok := s.subscribers[sub.functionID]
	if !ok {
		return
	}
	if _, ok := subs[sub.id]; !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(s.subscribers, sub.functionID)
	}
	s.metrics.SubscriberDelta(-1)
}

// Values returns a copy of one function's values.
func (s *Store) Values(functionID string) (types.PointValues, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fv, ok := s.values[functionID]
	if !ok {
		return nil, false
	}
	return fv.Clone(), true
}

// Value returns one raw point value.
func (s *Store) Value(functionID, pointID string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.values[functionID][pointID]
	return raw, ok
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() types.ValueSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Clone()
}

// FindFunction returns the known function that owns pointID.
func (s *Store) FindFunction(pointID string) (string, error) {
	fid, ok := s.pointIndex[pointID]
	if !ok {
		return "", ErrUnknownPoint
	}
	return fid, nil
}
