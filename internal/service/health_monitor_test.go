package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/pkg/config"
)

func fastHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		ProbeInterval: time.Hour,
		ProbeTimeout:  time.Second,
		MaxRetries:    3,
		BackoffBase:   2 * time.Millisecond,
		BackoffCap:    10 * time.Millisecond,
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []ConnectionState
}

func (r *stateRecorder) record(state ConnectionState) {
	r.mu.Lock()
	r.states = append(r.states, state)
	r.mu.Unlock()
}

func (r *stateRecorder) snapshot() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ConnectionState, len(r.states))
	copy(out, r.states)
	return out
}

func TestHealthMonitorRetriesThenFails(t *testing.T) {
	store := remote.NewMemoryStore()
	store.SetUnavailable(true)
	monitor := NewHealthMonitor(store, fastHealthConfig(), nil, nil)

	var rec stateRecorder
	unsub := monitor.Subscribe(rec.record)
	defer unsub()

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusFailed
	}, time.Second, 5*time.Millisecond)

	want := []ConnectionState{
		{Status: StatusChecking},
		{Status: StatusRetrying, Retries: 1},
		{Status: StatusChecking, Retries: 1},
		{Status: StatusRetrying, Retries: 2},
		{Status: StatusChecking, Retries: 2},
		{Status: StatusRetrying, Retries: 3},
		{Status: StatusChecking, Retries: 3},
		{Status: StatusFailed, Retries: 4},
	}
	assert.Equal(t, want, rec.snapshot())
}

func TestHealthMonitorProbeSuccessGoesOnline(t *testing.T) {
	store := remote.NewMemoryStore()
	// An empty store answers not-found, which still proves reachability.
	monitor := NewHealthMonitor(store, fastHealthConfig(), nil, nil)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusOnline
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, monitor.Status().Retries)
}

func TestHealthMonitorNetworkDownGoesOfflineImmediately(t *testing.T) {
	store := remote.NewMemoryStore()
	monitor := NewHealthMonitor(store, fastHealthConfig(), nil, nil)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusOnline
	}, time.Second, 5*time.Millisecond)

	monitor.SetNetworkAvailable(false)
	assert.Equal(t, StatusOffline, monitor.Status().Status)

	monitor.SetNetworkAvailable(true)
	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusOnline
	}, time.Second, 5*time.Millisecond)
}

func TestHealthMonitorNetworkUpRecoversFromFailed(t *testing.T) {
	store := remote.NewMemoryStore()
	store.SetUnavailable(true)
	monitor := NewHealthMonitor(store, fastHealthConfig(), nil, nil)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusFailed
	}, time.Second, 5*time.Millisecond)

	store.SetUnavailable(false)
	monitor.SetNetworkAvailable(true)

	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusOnline
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, monitor.Status().Retries)
}

func TestHealthMonitorForceReconnect(t *testing.T) {
	store := remote.NewMemoryStore()
	store.SetUnavailable(true)
	monitor := NewHealthMonitor(store, fastHealthConfig(), nil, nil)

	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool {
		return monitor.Status().Status == StatusFailed
	}, time.Second, 5*time.Millisecond)

	// Still unreachable: the manual attempt lands back in failed.
	assert.False(t, monitor.ForceReconnect(context.Background()))
	assert.Equal(t, StatusFailed, monitor.Status().Status)

	store.SetUnavailable(false)
	assert.True(t, monitor.ForceReconnect(context.Background()))
	assert.Equal(t, StatusOnline, monitor.Status().Status)
	assert.Equal(t, 0, monitor.Status().Retries)
}

func TestHealthMonitorBackoffDoublesUpToCap(t *testing.T) {
	monitor := NewHealthMonitor(remote.NewMemoryStore(), config.HealthConfig{
		BackoffBase: 100 * time.Millisecond,
		BackoffCap:  250 * time.Millisecond,
	}, nil, nil)

	assert.Equal(t, 100*time.Millisecond, monitor.backoff(1))
	assert.Equal(t, 200*time.Millisecond, monitor.backoff(2))
	assert.Equal(t, 250*time.Millisecond, monitor.backoff(3))
	assert.Equal(t, 250*time.Millisecond, monitor.backoff(6))
}
