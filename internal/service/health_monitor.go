package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/pkg/config"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

// ConnectionStatus enumerates the health monitor states.
type ConnectionStatus int

const (
	StatusOffline ConnectionStatus = iota
	StatusChecking
	StatusOnline
	StatusRetrying
	StatusFailed
	StatusReconnecting
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusOffline:
		return "offline"
	case StatusChecking:
		return "checking"
	case StatusOnline:
		return "online"
	case StatusRetrying:
		return "retrying"
	case StatusFailed:
		return "failed"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectionState is a snapshot of the monitor. Retries is meaningful only
// in the retrying state.
type ConnectionState struct {
	Status  ConnectionStatus `json:"status"`
	Retries int              `json:"retries,omitempty"`
}

type probeStore interface {
	Get(ctx context.Context, collection, key string) (*remote.Document, error)
}

// HealthMonitor maintains a single authoritative connectivity state and
// notifies subscribers of every transition, in transition order. Probe
// failures are never fatal; they only move the reported state. Failed is
// terminal until a network-up signal or an explicit reconnect.
type HealthMonitor struct {
	store   probeStore
	cfg     config.HealthConfig
	logger  *zap.Logger
	metrics *MetricsService

	mu      sync.Mutex
	state   ConnectionState
	subs    map[int]func(ConnectionState)
	nextSub int
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	netEvents chan bool
}

// NewHealthMonitor constructs a monitor over the remote store.
func NewHealthMonitor(store probeStore, cfg config.HealthConfig, metrics *MetricsService, logger *zap.Logger) *HealthMonitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthMonitor{
		store:     store,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		state:     ConnectionState{Status: StatusOffline},
		subs:      make(map[int]func(ConnectionState)),
		netEvents: make(chan bool, 4),
	}
}

// Start begins periodic health checks. Idempotent.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(runCtx)
	m.logger.Info("health monitor started",
		zap.Duration("probe_interval", m.cfg.ProbeInterval),
		zap.Int("max_retries", m.cfg.MaxRetries))
}

// Stop cancels the monitor loop and waits for it to drain.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("health monitor stopped")
}

// Status returns the current snapshot without blocking.
func (m *HealthMonitor) Status() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every state transition. Delivery order matches
// transition order. The returned function removes the subscription.
func (m *HealthMonitor) Subscribe(fn func(ConnectionState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SetNetworkAvailable feeds an OS-level network-up/down signal into the
// monitor. A down signal moves the state to offline immediately, skipping
// any probe; an up signal triggers a fresh probe cycle.
func (m *HealthMonitor) SetNetworkAvailable(up bool) {
	if !up {
		// Transition synchronously so callers observe offline at once.
		m.transition(ConnectionState{Status: StatusOffline})
	}
	select {
	case m.netEvents <- up:
	default:
	}
}

// ForceReconnect synchronously attempts a fresh health probe. On success the
// retry count resets and the state becomes online; on failure it becomes
// failed.
func (m *HealthMonitor) ForceReconnect(ctx context.Context) bool {
	m.transition(ConnectionState{Status: StatusReconnecting})
	if m.probeOnce(ctx) {
		m.transition(ConnectionState{Status: StatusOnline})
		return true
	}
	m.transition(ConnectionState{Status: StatusFailed})
	return false
}

func (m *HealthMonitor) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	var retryTimer *time.Timer
	retryC := func() <-chan time.Time {
		if retryTimer == nil {
			return nil
		}
		return retryTimer.C
	}
	stopRetry := func() {
		if retryTimer != nil {
			retryTimer.Stop()
			retryTimer = nil
		}
	}
	defer stopRetry()

	// Establish an initial reading instead of sitting offline until the
	// first tick.
	m.probeCycle(ctx, &retryTimer)

	for {
		select {
		case <-ctx.Done():
			return
		case up := <-m.netEvents:
			stopRetry()
			if !up {
				// SetNetworkAvailable already transitioned to offline.
				continue
			}
			m.resetRetries()
			m.probeCycle(ctx, &retryTimer)
		case <-ticker.C:
			switch m.Status().Status {
			case StatusOnline, StatusChecking:
				m.probeCycle(ctx, &retryTimer)
			default:
				// Offline skips probing; failed waits for an external
				// event; retrying runs on its own timer.
			}
		case <-retryC():
			retryTimer = nil
			m.probeCycle(ctx, &retryTimer)
		}
	}
}

// probeCycle performs one probe and applies the transition algorithm:
// success resets the retry counter and lands online; failure walks through
// retrying(n) with exponential backoff until the retry cap, then failed.
func (m *HealthMonitor) probeCycle(ctx context.Context, retryTimer **time.Timer) {
	m.mu.Lock()
	retries := m.state.Retries
	m.mu.Unlock()

	m.transition(ConnectionState{Status: StatusChecking, Retries: retries})

	if m.probeOnce(ctx) {
		m.transition(ConnectionState{Status: StatusOnline})
		return
	}

	retries++
	if retries <= m.cfg.MaxRetries {
		m.transition(ConnectionState{Status: StatusRetrying, Retries: retries})
		*retryTimer = time.NewTimer(m.backoff(retries))
		return
	}
	m.transition(ConnectionState{Status: StatusFailed, Retries: retries})
}

// probeOnce performs one cheap read against the remote store with a bounded
// timeout. A not-found answer still proves the store is reachable.
func (m *HealthMonitor) probeOnce(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()
	_, err := m.store.Get(probeCtx, remote.CollectionHealth, "status")
	m.metrics.ObserveProbe(time.Since(start))

	if err == nil {
		return true
	}
	if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
		return true
	}
	m.logger.Debug("health probe failed", zap.Error(err))
	return false
}

func (m *HealthMonitor) backoff(retries int) time.Duration {
	d := m.cfg.BackoffBase
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= m.cfg.BackoffCap {
			return m.cfg.BackoffCap
		}
	}
	if d > m.cfg.BackoffCap {
		d = m.cfg.BackoffCap
	}
	return d
}

func (m *HealthMonitor) resetRetries() {
	m.mu.Lock()
	m.state.Retries = 0
	m.mu.Unlock()
}

func (m *HealthMonitor) transition(next ConnectionState) {
	m.mu.Lock()
	prev := m.state
	if prev == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	fns := make([]func(ConnectionState), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.metrics.RecordTransition(next.Status.String(), int(next.Status))
	m.logger.Info("connection state changed",
		zap.String("from", prev.Status.String()),
		zap.String("to", next.Status.String()),
		zap.Int("retries", next.Retries))

	for _, fn := range fns {
		fn(next)
	}
}
