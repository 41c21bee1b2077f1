package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/KevinKickass/GiraIoTCore/internal/api/callback"
	"github.com/KevinKickass/GiraIoTCore/internal/api/rest"
	"github.com/KevinKickass/GiraIoTCore/internal/api/websocket"
	"github.com/KevinKickass/GiraIoTCore/internal/auth"
	mqttbridge "github.com/KevinKickass/GiraIoTCore/internal/bridge/mqtt"
	"github.com/KevinKickass/GiraIoTCore/internal/certs"
	"github.com/KevinKickass/GiraIoTCore/internal/config"
	"github.com/KevinKickass/GiraIoTCore/internal/devices"
	"github.com/KevinKickass/GiraIoTCore/internal/gira"
	"github.com/KevinKickass/GiraIoTCore/internal/interfaces"
	"github.com/KevinKickass/GiraIoTCore/internal/metrics"
	"github.com/KevinKickass/GiraIoTCore/internal/state"
	"github.com/KevinKickass/GiraIoTCore/internal/storage"
	"github.com/KevinKickass/GiraIoTCore/internal/topology"
	"github.com/KevinKickass/GiraIoTCore/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 30 * time.Second

// Option customizes Initialize.
type Option func(*options)

type options struct {
	metrics    *metrics.Metrics
	baseURL    string
	httpClient *http.Client
}

// WithMetrics records session activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithVendorBaseURL points the vendor client at baseURL instead of
// https://<vendor.host>.
func WithVendorBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithHTTPClient replaces the vendor client's transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// Session is one connection to a vendor device: the discovered devices, their
// live values and every component feeding or reading them.
type Session struct {
	id      uuid.UUID
	config  *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	client        *gira.Client
	token         gira.Token
	index         *topology.Index
	store         *state.Store
	deviceManager *devices.Manager
	commander     *devices.Commander

	poller         *gira.Poller
	callbackServer *callback.Server
	restServer     *rest.Server
	wsHub          *websocket.Hub
	mqttBridge     *mqttbridge.Bridge
	db             *storage.PostgresClient
	recorder       *storage.Recorder
	subscriptions  []state.Subscription

	stateMu      sync.RWMutex
	currentState SessionState
	startedAt    time.Time

	shutdownOnce sync.Once
	shutdownErr  error
}

// Initialize connects to the vendor device and brings up a running session.
// Any failure before the session is running is fatal: partially started
// components are torn down and the error names the failed stage.
func Initialize(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	s := &Session{
		id:           id,
		config:       cfg,
		logger:       logger.With(zap.String("session_id", id.String())),
		metrics:      o.metrics,
		currentState: StateInitializing,
	}

	s.logger.Info("Initializing session", zap.String("host", cfg.Vendor.Host))

	if err := s.initialize(ctx, o); err != nil {
		s.setState(StateError)
		s.logger.Error("Session initialization failed", zap.Error(err))

		cleanupCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		if cleanupErr := s.gracefulShutdown(cleanupCtx); cleanupErr != nil {
			s.logger.Warn("Cleanup after failed initialization incomplete", zap.Error(cleanupErr))
		}
		return nil, err
	}

	s.startedAt = time.Now()
	s.setState(StateRunning)

	s.logger.Info("Session running",
		zap.Int("devices", len(s.deviceManager.ListDevices())),
		zap.Bool("push", s.callbackServer != nil),
		zap.Duration("poll_interval", cfg.Poll.Interval))

	return s, nil
}

func (s *Session) initialize(ctx context.Context, o options) error {
	s.client = gira.NewClient(gira.ClientOptions{
		Host:               s.config.Vendor.Host,
		Username:           s.config.Vendor.Username,
		Password:           s.config.Vendor.Password,
		ClientID:           s.config.Vendor.ClientID,
		Timeout:            s.config.Vendor.Timeout,
		InsecureSkipVerify: s.config.Vendor.InsecureSkipVerify,
		BaseURL:            o.baseURL,
		HTTPClient:         o.httpClient,
	}, s.logger)

	token, err := s.client.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	s.token = token

	doc, err := s.client.FetchTopology(ctx, token)
	if err != nil {
		return fmt.Errorf("fetch topology: %w", err)
	}

	indexer, err := topology.NewIndexer(s.config.Topology.TradePositions(), s.logger)
	if err != nil {
		return fmt.Errorf("create indexer: %w", err)
	}
	s.index, err = indexer.Index(doc)
	if err != nil {
		return fmt.Errorf("index topology: %w", err)
	}

	functionIDs := s.index.FunctionIDs()
	seed := make(types.ValueSnapshot, len(functionIDs))
	known := make([]*types.FunctionDescriptor, 0, len(functionIDs))
	for _, fid := range functionIDs {
		values, err := s.client.FetchValues(ctx, token, fid)
		if err != nil {
			return fmt.Errorf("seed values of %s: %w", fid, err)
		}
		seed[fid] = values
		known = append(known, s.index.FunctionsByID[fid])
	}

	s.store = state.NewStore(known, s.logger, s.metrics)
	s.store.Seed(seed)

	s.deviceManager = devices.NewManager(s.logger)
	s.deviceManager.Load(devices.Build(s.index, seed), seed)
	s.commander = devices.NewCommander(s.deviceManager, s.client.Writer(token), s.logger, s.metrics)

	if err := s.startStorage(ctx, known, seed); err != nil {
		return fmt.Errorf("start storage: %w", err)
	}
	if err := s.startHostAdapters(); err != nil {
		return fmt.Errorf("start host adapters: %w", err)
	}

	for _, fid := range functionIDs {
		s.subscriptions = append(s.subscriptions, s.store.Subscribe(fid, s.onValuesChanged))
	}

	if s.config.Callback.Enabled {
		if err := s.startCallbackListener(ctx); err != nil {
			return fmt.Errorf("start callback listener: %w", err)
		}
	} else {
		s.logger.Info("Push callback disabled, relying on polling only")
	}

	s.poller = gira.NewPoller(s.client, s.store, token, functionIDs, s.config.Poll.Interval, s.logger, s.metrics)
	if err := s.poller.Start(); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	return nil
}

func (s *Session) startStorage(ctx context.Context, known []*types.FunctionDescriptor, seed types.ValueSnapshot) error {
	if !s.config.Database.Enabled {
		return nil
	}

	db, err := storage.NewPostgresClient(ctx, s.config.Database)
	if err != nil {
		return err
	}
	s.db = db

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := db.StartSession(ctx, s.id, s.config.Vendor.Host); err != nil {
		return err
	}
	if err := db.SaveCatalog(ctx, s.id, known); err != nil {
		return err
	}

	s.recorder = storage.NewRecorder(db, s.logger)
	s.recorder.Start()
	for fid, values := range seed {
		s.recorder.Record(fid, values.Clone())
	}

	s.logger.Info("Value history enabled", zap.Int("functions", len(known)))
	return nil
}

func (s *Session) startHostAdapters() error {
	jwt := auth.NewJWTHandler(s.config.Auth.GetJWTSecret())

	if s.config.Server.Enabled {
		if !jwt.Enabled() {
			s.logger.Warn("Control API authentication disabled: no JWT secret configured")
		}

		s.wsHub = websocket.NewHub(s.deviceManager, jwt, s.logger)
		go s.wsHub.Run()

		s.restServer = rest.NewServer(s.config.Server.HTTPPort, s, s.wsHub, jwt, s.metrics, s.logger)
		if err := s.restServer.Start(); err != nil {
			return fmt.Errorf("rest server: %w", err)
		}
	}

	if s.config.MQTT.Enabled {
		client, err := mqttbridge.Connect(s.config.MQTT, s.logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		s.mqttBridge = mqttbridge.NewBridge(client, s.commander, s.config.MQTT.TopicPrefix, s.config.MQTT.QoS, s.logger)
		if err := s.mqttBridge.Start(); err != nil {
			return fmt.Errorf("mqtt bridge: %w", err)
		}
		for _, view := range s.deviceManager.ListViews("") {
			s.mqttBridge.PublishView(view)
		}
	}

	return nil
}

func (s *Session) startCallbackListener(ctx context.Context) error {
	ips := s.config.Callback.IPs
	if len(ips) == 0 && net.ParseIP(s.config.Callback.Host) != nil {
		ips = []string{s.config.Callback.Host}
	}

	cert, err := certs.EnsureSelfSigned(
		s.config.Callback.CertFile,
		s.config.Callback.KeyFile,
		s.config.Callback.Hostname,
		ips,
		s.logger,
	)
	if err != nil {
		return err
	}

	s.callbackServer = callback.NewServer(s.config.Callback.ListenAddr(), &cert, s.store, s.logger, s.metrics)
	if err := s.callbackServer.Start(); err != nil {
		return err
	}

	if err := s.client.RegisterPushCallback(ctx, s.token, s.config.Callback.URL()); err != nil {
		return fmt.Errorf("register push callback: %w", err)
	}

	s.logger.Info("Push callback registered", zap.String("url", s.config.Callback.URL()))
	return nil
}

// onValuesChanged runs under the store's update lock, once per changed
// function, in update order.
func (s *Session) onValuesChanged(functionID string, values types.PointValues) {
	if s.recorder != nil {
		s.recorder.Record(functionID, values)
	}

	view, ok := s.deviceManager.Refresh(functionID, values)
	if !ok {
		return
	}
	if s.wsHub != nil {
		s.wsHub.PublishView(view)
	}
	if s.mqttBridge != nil {
		s.mqttBridge.PublishView(view)
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) DeviceManager() *devices.Manager {
	return s.deviceManager
}

func (s *Session) Commander() *devices.Commander {
	return s.commander
}

// Store exposes the live value store.
func (s *Session) Store() *state.Store {
	return s.store
}

func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.currentState
}

// GetCurrentStatus implements interfaces.DeviceSession.
func (s *Session) GetCurrentStatus() interfaces.SessionStatus {
	status := interfaces.SessionStatus{
		State:       s.State().String(),
		SessionID:   s.id.String(),
		Host:        s.config.Vendor.Host,
		PushEnabled: s.callbackServer != nil,
	}
	if !s.startedAt.IsZero() {
		status.StartedAt = s.startedAt.Unix()
	}
	if s.poller != nil {
		status.Polling = s.poller.IsRunning()
	}
	if s.deviceManager != nil {
		for _, rec := range s.deviceManager.ListDevices() {
			status.DeviceCount++
			switch rec.Kind() {
			case types.KindLight:
				status.Lights++
			case types.KindClimate:
				status.Climates++
			case types.KindCover:
				status.Covers++
			}
		}
	}
	return status
}

// Shutdown stops polling and push intake first, then the consumers.
// It is safe to call more than once.
func (s *Session) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info("Shutting down session")
		s.setState(StateStopping)

		s.shutdownErr = s.gracefulShutdown(ctx)
		if s.shutdownErr != nil {
			s.setState(StateError)
			return
		}
		s.setState(StateStopped)
	})

	return s.shutdownErr
}

func (s *Session) gracefulShutdown(ctx context.Context) error {
	var wg sync.WaitGroup
	errChan := make(chan error, 3)

	// 1. Producers: nothing updates the store once these return
	if s.poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.poller.Stop()
		}()
	}

	if s.callbackServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.callbackServer.Shutdown(ctx); err != nil {
				errChan <- fmt.Errorf("callback listener shutdown failed: %w", err)
			}
		}()
	}

	if s.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.restServer.Shutdown(ctx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, forcing stop")
		return errors.New("shutdown timeout exceeded")
	}
	close(errChan)
	for err := range errChan {
		errs = append(errs, err)
	}

	// 2. Consumers
	for _, sub := range s.subscriptions {
		s.store.Unsubscribe(sub)
	}
	s.subscriptions = nil

	if s.wsHub != nil {
		s.wsHub.Stop()
	}
	if s.mqttBridge != nil {
		s.mqttBridge.Stop()
	}
	if s.recorder != nil {
		s.recorder.Stop()
	}
	if s.db != nil {
		if err := s.db.StopSession(ctx, s.id); err != nil {
			errs = append(errs, fmt.Errorf("close session record: %w", err))
		}
		s.db.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	s.logger.Info("Graceful shutdown completed")
	return nil
}

func (s *Session) shutdownTimeout() time.Duration {
	if s.config.Server.ShutdownTimeout > 0 {
		return s.config.Server.ShutdownTimeout
	}
	return defaultShutdownTimeout
}

func (s *Session) setState(to SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if err := ValidateTransition(s.currentState, to); err != nil {
		s.logger.Warn("Ignoring state change", zap.Error(err))
		return
	}
	s.logger.Info("Session state changed",
		zap.Stringer("from", s.currentState),
		zap.Stringer("to", to))
	s.currentState = to
}
