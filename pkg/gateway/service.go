package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chatrouter/pkg/bus"
	"chatrouter/pkg/channel"
	"chatrouter/pkg/config"
	"chatrouter/pkg/dispatch"
	"chatrouter/pkg/session"
)

const (
	defaultHealthHost = "0.0.0.0"
	defaultHealthPort = 18790
)

var errBusClosed = errors.New("update bus closed")

// Service runs channel adapters, queues their updates on the bus and routes
// them through the dispatch pipeline with a bounded worker pool.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	router   *dispatch.Router
	store    session.Store
	bus      *bus.UpdateBus
	channels []channel.Adapter
	onError  ErrorHandler

	statusServer bool
	stopWhenIdle bool

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState

	lanes    chatLanes
	stats    counters
	progress chan struct{}
}

type counters struct {
	received  atomic.Int64
	handled   atomic.Int64
	unhandled atomic.Int64
	failed    atomic.Int64
	done      atomic.Int64
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Stats counts routed updates since the service started.
type Stats struct {
	Received  int64 `json:"received"`
	Handled   int64 `json:"handled"`
	Unhandled int64 `json:"unhandled"`
	Failed    int64 `json:"failed"`
	Pending   int   `json:"pending"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Channels      map[string]channelState `json:"channels"`
	Updates       Stats                   `json:"updates"`
}

type serviceOptions struct {
	services     *dispatch.Services
	middleware   []dispatch.Middleware
	store        session.Store
	onError      ErrorHandler
	statusServer bool
	stopWhenIdle bool
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

// WithServices sets the values handlers bind extra parameters from.
func WithServices(s *dispatch.Services) ServiceOption {
	return func(o *serviceOptions) { o.services = s }
}

// WithMiddleware appends middleware inside the built-in pipeline.
func WithMiddleware(mw ...dispatch.Middleware) ServiceOption {
	return func(o *serviceOptions) { o.middleware = append(o.middleware, mw...) }
}

// WithStore replaces the in-memory session store built from config.
func WithStore(store session.Store) ServiceOption {
	return func(o *serviceOptions) { o.store = store }
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(fn ErrorHandler) ServiceOption {
	return func(o *serviceOptions) { o.onError = fn }
}

// WithStatusServer enables or disables the /healthz and /readyz server. It is
// enabled by default.
func WithStatusServer(enabled bool) ServiceOption {
	return func(o *serviceOptions) { o.statusServer = enabled }
}

// WithStopWhenIdle makes Run return once every adapter stopped and all
// queued updates were routed.
func WithStopWhenIdle() ServiceOption {
	return func(o *serviceOptions) { o.stopWhenIdle = true }
}

// NewService wires module's routes and the configured middleware to adapters.
func NewService(cfg *config.Config, module dispatch.Module, adapters []channel.Adapter, log *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if module == nil {
		return nil, errors.New("module is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if log == nil {
		log = slog.Default()
	}

	options := serviceOptions{statusServer: true}
	for _, opt := range opts {
		opt(&options)
	}

	store := options.store
	if store == nil {
		store = newStore(cfg.Sessions)
	}

	router, err := buildRouter(cfg, module, store, options.services, options.middleware, log)
	if err != nil {
		return nil, err
	}

	onError := options.onError
	if onError == nil {
		onError = DefaultErrorHandler(log, cfg.Router.ErrorReply)
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		if _, dup := channelStates[adapter.Name()]; dup {
			return nil, fmt.Errorf("duplicate channel adapter %q", adapter.Name())
		}
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		router:        router,
		store:         store,
		bus:           bus.NewUpdateBus(0),
		channels:      adapters,
		onError:       onError,
		statusServer:  options.statusServer,
		stopWhenIdle:  options.stopWhenIdle,
		channelStates: channelStates,
		progress:      make(chan struct{}, 1),
	}, nil
}

// Run blocks until ctx is done, an adapter or the status server fails, or,
// with WithStopWhenIdle, all adapters stopped and their updates were routed.
// In-flight updates finish (or observe cancellation) before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	serverErrors := make(chan error, 1)
	if s.statusServer {
		go s.runHealthServer(ctx, serverErrors)
	}

	workersDone := make(chan error, 1)
	go func() {
		workersDone <- s.runWorkers(ctx)
	}()

	errCh := make(chan error, len(s.channels))
	var adapters sync.WaitGroup
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		adapters.Go(func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		})
	}

	idle := make(chan struct{})
	if s.stopWhenIdle {
		go s.watchIdle(ctx, &adapters, idle)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-idle:
		s.log.Info("All channels stopped, shutting down")
	case runErr = <-serverErrors:
	case runErr = <-errCh:
	}

	cancel()
	if err := <-workersDone; err != nil && runErr == nil {
		runErr = err
	}
	s.bus.Close()

	return runErr
}

// Events subscribes to routing events until ctx ends.
func (s *Service) Events(ctx context.Context, buffer int) (<-chan bus.Event, func()) {
	return s.bus.SubscribeEvents(ctx, buffer)
}

// Stats returns a snapshot of the update counters.
func (s *Service) Stats() Stats {
	return Stats{
		Received:  s.stats.received.Load(),
		Handled:   s.stats.handled.Load(),
		Unhandled: s.stats.unhandled.Load(),
		Failed:    s.stats.failed.Load(),
		Pending:   s.bus.Pending(),
	}
}

// handleInbound is the channel.Handler given to adapters: it only queues.
func (s *Service) handleInbound(ctx context.Context, d bus.Delivery) error {
	if d.ReceivedAt.IsZero() {
		d.ReceivedAt = time.Now().UTC()
	}

	if !s.bus.PublishUpdate(ctx, d) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errBusClosed
	}
	s.stats.received.Add(1)

	event := bus.Event{
		Type:     bus.EventUpdateReceived,
		At:       d.ReceivedAt,
		Channel:  d.Channel,
		Kind:     d.Update.KindName(),
		UpdateID: d.Update.ID,
	}
	if chatID, ok := d.Update.ChatID(); ok {
		event.ChatID = chatID
	}
	s.bus.PublishEvent(ctx, event)

	return nil
}

// watchIdle closes idle once adapters returned and every accepted update
// was routed.
func (s *Service) watchIdle(ctx context.Context, adapters *sync.WaitGroup, idle chan<- struct{}) {
	stopped := make(chan struct{})
	go func() {
		adapters.Wait()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		return
	case <-stopped:
	}

	for s.stats.done.Load() < s.stats.received.Load() {
		select {
		case <-ctx.Done():
			return
		case <-s.progress:
		}
	}

	close(idle)
}

func (s *Service) runHealthServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Channels:      channels,
		Updates:       s.Stats(),
	}
}

// isReady reports whether at least one channel is receiving updates.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}

	return false
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
