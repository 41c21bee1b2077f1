package gira

import (
	"context"
	"sync"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"go.uber.org/zap"
)

// DefaultPollInterval is the fixed refetch cadence.
const DefaultPollInterval = 60 * time.Second

// ValueFetcher fetches the current values of one function.
type ValueFetcher interface {
	FetchValues(ctx context.Context, token Token, functionID string) (types.PointValues, error)
}

// BulkSink receives the values fetched for one function.
type BulkSink interface {
	ApplyBulkUpdate(functionID string, values types.PointValues)
}

// Poller periodically refetches every known function and feeds the results
// into the sink. A failed fetch is logged and skipped; the interval continues.
type Poller struct {
	fetcher     ValueFetcher
	sink        BulkSink
	token       Token
	functionIDs []string
	interval    time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
	mu       sync.Mutex
}

func NewPoller(
	fetcher ValueFetcher,
	sink BulkSink,
	token Token,
	functionIDs []string,
	interval time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ids := make([]string, len(functionIDs))
	copy(ids, functionIDs)

	return &Poller{
		fetcher:     fetcher,
		sink:        sink,
		token:       token,
		functionIDs: ids,
		interval:    interval,
		logger:      logger.With(zap.String("component", "poller")),
		metrics:     m,
	}
}

// Start starts the polling loop. The first cycle fires one interval from now.
// A stopped poller can be started again.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopChan = make(chan struct{})
	p.running = true
	p.wg.Add(1)

	go p.pollLoop(ctx, p.stopChan)

	p.logger.Info("Poller started",
		zap.Int("functions", len(p.functionIDs)),
		zap.Duration("interval", p.interval))

	return nil
}

// Stop cancels the timer and any in-flight cycle and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, cancel := p.stopChan, p.cancel
	p.mu.Unlock()

	close(stop)
	cancel()
	p.wg.Wait()

	p.logger.Info("Poller stopped")
}

func (p *Poller) pollLoop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single cycle over every known function. It returns the
// number of functions that failed.
func (p *Poller) PollOnce(ctx context.Context) int {
	cycleCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	failed := 0
	for _, fid := range p.functionIDs {
		if cycleCtx.Err() != nil {
			failed++
			continue
		}

		values, err := p.fetcher.FetchValues(cycleCtx, p.token, fid)
		if err != nil {
			failed++
			p.metrics.PollFailure(fid)
			p.logger.Warn("Poll failed",
				zap.String("function", fid),
				zap.Error(err))
			continue
		}

		p.sink.ApplyBulkUpdate(fid, values)
	}

	p.metrics.PollCycle(failed > 0)
	if failed > 0 {
		p.logger.Warn("Poll cycle incomplete",
			zap.Int("failed", failed),
			zap.Int("functions", len(p.functionIDs)))
	} else {
		p.logger.Debug("Poll cycle complete", zap.Int("functions", len(p.functionIDs)))
	}

	return failed
}

// IsRunning reports whether the loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
