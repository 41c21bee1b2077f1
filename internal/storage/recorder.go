package storage

import (
	"context"
	"sync"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

const (
	recorderQueueSize = 256
	writeTimeout      = 5 * time.Second
)

// ValueStore persists the latest values of a function.
type ValueStore interface {
	SaveValues(ctx context.Context, functionID string, values types.PointValues) error
}

type valueUpdate struct {
	functionID string
	values     types.PointValues
}

// Recorder persists store notifications from a background worker so that
// database latency never blocks the poll or push path.
type Recorder struct {
	store  ValueStore
	queue  chan valueUpdate
	logger *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewRecorder(store ValueStore, logger *zap.Logger) *Recorder {
	return &Recorder{
		store:  store,
		queue:  make(chan valueUpdate, recorderQueueSize),
		logger: logger.With(zap.String("component", "recorder")),
	}
}

func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.run()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for update := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.SaveValues(ctx, update.functionID, update.values); err != nil {
			r.logger.Warn("Failed to persist values",
				zap.String("function", update.functionID),
				zap.Error(err))
		}
		cancel()
	}
}

// Record queues values; it drops the update when the queue is full.
// It must not be called after Stop.
func (r *Recorder) Record(functionID string, values types.PointValues) {
	select {
	case r.queue <- valueUpdate{functionID: functionID, values: values}:
	default:
		r.logger.Warn("Recorder queue full, dropping update", zap.String("function", functionID))
	}
}

// Stop drains the queue and waits for the worker.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
	})
}
