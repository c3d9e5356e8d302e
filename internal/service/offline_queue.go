package service

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/pkg/config"
	appErrors "github.com/scc-edu/registry-sync/pkg/errors"
)

// queueStore is the durable holding area for writes awaiting remote commit.
// Implementations must keep records across process restarts; List returns
// them in enqueue order.
type queueStore interface {
	List(ctx context.Context) ([]models.QueuedWrite, error)
	Save(ctx context.Context, w models.QueuedWrite) error
	Delete(ctx context.Context, id string) error
}

type remoteWriter interface {
	Put(ctx context.Context, collection, key string, doc any) error
}

// OfflineQueue guarantees at-least-once delivery of writes to the remote
// store: a write that fails for connectivity reasons is persisted locally
// and flushed once the connection recovers. Writes to the same document key
// flush in enqueue order; distinct keys flush concurrently up to the worker
// bound.
type OfflineQueue struct {
	store   queueStore
	remote  remoteWriter
	logger  *zap.Logger
	metrics *MetricsService

	workers     int
	maxAttempts int

	mu       sync.Mutex
	seq      uint64
	deadSubs map[int]func(models.QueuedWrite)
	nextSub  int

	// flushMu serializes flush passes so reconnect storms cannot run two
	// flushes over the same records.
	flushMu sync.Mutex
}

// NewOfflineQueue constructs the queue and restores the sequence counter
// from whatever the durable store already holds.
func NewOfflineQueue(store queueStore, remote remoteWriter, cfg config.QueueConfig, metrics *MetricsService, logger *zap.Logger) (*OfflineQueue, error) {
	if cfg.FlushWorkers <= 0 {
		cfg.FlushWorkers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &OfflineQueue{
		store:       store,
		remote:      remote,
		logger:      logger,
		metrics:     metrics,
		workers:     cfg.FlushWorkers,
		maxAttempts: cfg.MaxAttempts,
		deadSubs:    make(map[int]func(models.QueuedWrite)),
	}

	existing, err := store.List(context.Background())
	if err != nil {
		return nil, err
	}
	for _, w := range existing {
		if w.Seq > q.seq {
			q.seq = w.Seq
		}
	}
	return q, nil
}

// Write attempts an immediate remote write. On a transient connectivity
// error the write is persisted and ErrQueued is returned so the caller can
// report the data as safe but pending. Permanent errors pass through
// unmodified since retrying would not help.
func (q *OfflineQueue) Write(ctx context.Context, collection, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "encode payload")
	}

	// An older write for the same key may still be parked. Writing directly
	// would let the flush later overwrite this newer edit, so the new write
	// joins the queue behind it.
	blocked, err := q.hasPending(ctx, collection, key)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "inspect pending queue")
	}
	if blocked {
		return q.enqueue(ctx, collection, key, raw)
	}

	err = q.remote.Put(ctx, collection, key, json.RawMessage(raw))
	if err == nil {
		return nil
	}
	if !appErrors.IsTransient(err) {
		return err
	}
	return q.enqueue(ctx, collection, key, raw)
}

func (q *OfflineQueue) enqueue(ctx context.Context, collection, key string, raw []byte) error {
	q.mu.Lock()
	q.seq++
	w := models.QueuedWrite{
		ID:         uuid.NewString(),
		Seq:        q.seq,
		Collection: collection,
		Key:        key,
		Payload:    raw,
		EnqueuedAt: time.Now().UTC(),
	}
	q.mu.Unlock()

	if err := q.store.Save(ctx, w); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist queued write")
	}

	q.logger.Info("write queued",
		zap.String("collection", collection),
		zap.String("key", key),
		zap.Uint64("seq", w.Seq))
	q.refreshPendingGauge(ctx)
	return appErrors.Clone(appErrors.ErrQueued, "")
}

// FlushPending attempts every queued write. Successes are removed from the
// durable store; failures stay queued with their attempt count bumped.
// Writes that exceed the attempt cap, or that the store now rejects
// permanently, move to the dead-letter list.
func (q *OfflineQueue) FlushPending(ctx context.Context) (succeeded, failed int) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	pending, err := q.store.List(ctx)
	if err != nil {
		q.logger.Error("flush: list queued writes", zap.Error(err))
		return 0, 0
	}

	// Group per document key, preserving enqueue order inside each group.
	byKey := make(map[string][]models.QueuedWrite)
	keys := make([]string, 0)
	for _, w := range pending {
		if w.Dead {
			continue
		}
		groupKey := w.Collection + "/" + w.Key
		if _, seen := byKey[groupKey]; !seen {
			keys = append(keys, groupKey)
		}
		byKey[groupKey] = append(byKey[groupKey], w)
	}
	if len(keys) == 0 {
		return 0, 0
	}

	// Shard keys across workers by hash so one key always lands on one
	// worker; that keeps same-key writes serialized while distinct keys
	// flush in parallel.
	shards := make([][]string, q.workers)
	for _, k := range keys {
		h := fnv.New32a()
		_, _ = h.Write([]byte(k))
		idx := int(h.Sum32()) % q.workers
		shards[idx] = append(shards[idx], k)
	}

	var tally struct {
		sync.Mutex
		ok, bad int
	}
	var wg sync.WaitGroup
	for _, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(keys []string) {
			defer wg.Done()
			for _, k := range keys {
				if ctx.Err() != nil {
					return
				}
				ok, bad := q.flushKey(ctx, byKey[k])
				tally.Lock()
				tally.ok += ok
				tally.bad += bad
				tally.Unlock()
			}
		}(shard)
	}
	wg.Wait()

	q.refreshPendingGauge(ctx)
	q.logger.Info("flush finished", zap.Int("succeeded", tally.ok), zap.Int("failed", tally.bad))
	return tally.ok, tally.bad
}

// flushKey delivers one key's writes in enqueue order, stopping at the
// first transient failure to preserve per-key FIFO.
func (q *OfflineQueue) flushKey(ctx context.Context, writes []models.QueuedWrite) (succeeded, failed int) {
	for i, w := range writes {
		err := q.remote.Put(ctx, w.Collection, w.Key, json.RawMessage(w.Payload))
		if err == nil {
			if derr := q.store.Delete(ctx, w.ID); derr != nil {
				q.logger.Error("flush: delete delivered write", zap.String("id", w.ID), zap.Error(derr))
			}
			q.metrics.RecordFlush(true)
			succeeded++
			continue
		}

		q.metrics.RecordFlush(false)
		w.Attempts++
		w.LastError = err.Error()

		if !appErrors.IsTransient(err) || w.Attempts >= q.maxAttempts {
			q.markDead(ctx, w)
		} else if serr := q.store.Save(ctx, w); serr != nil {
			q.logger.Error("flush: persist attempt count", zap.String("id", w.ID), zap.Error(serr))
		}
		failed += len(writes) - i
		return succeeded, failed
	}
	return succeeded, failed
}

func (q *OfflineQueue) markDead(ctx context.Context, w models.QueuedWrite) {
	w.Dead = true
	if err := q.store.Save(ctx, w); err != nil {
		q.logger.Error("persist dead letter", zap.String("id", w.ID), zap.Error(err))
	}
	q.metrics.RecordDeadLetter()
	q.logger.Warn("write moved to dead-letter list",
		zap.String("collection", w.Collection),
		zap.String("key", w.Key),
		zap.Int("attempts", w.Attempts),
		zap.String("last_error", w.LastError))

	q.mu.Lock()
	fns := make([]func(models.QueuedWrite), 0, len(q.deadSubs))
	for _, fn := range q.deadSubs {
		fns = append(fns, fn)
	}
	q.mu.Unlock()
	for _, fn := range fns {
		fn(w)
	}
}

// PendingCount returns the number of live queued writes.
func (q *OfflineQueue) PendingCount(ctx context.Context) (int, error) {
	pending, err := q.store.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, w := range pending {
		if !w.Dead {
			n++
		}
	}
	return n, nil
}

// DeadLetters returns writes that exhausted their retries. They stay
// queryable rather than silently dropped.
func (q *OfflineQueue) DeadLetters(ctx context.Context) ([]models.QueuedWrite, error) {
	all, err := q.store.List(ctx)
	if err != nil {
		return nil, err
	}
	dead := make([]models.QueuedWrite, 0)
	for _, w := range all {
		if w.Dead {
			dead = append(dead, w)
		}
	}
	return dead, nil
}

// SubscribeDeadLetters registers fn for every write moved to the
// dead-letter list. The returned function removes the subscription.
func (q *OfflineQueue) SubscribeDeadLetters(fn func(models.QueuedWrite)) func() {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextSub
	q.nextSub++
	q.deadSubs[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.deadSubs, id)
	}
}

// BindMonitor flushes pending writes whenever the monitor reports the
// connection back online. The returned function detaches the binding.
func (q *OfflineQueue) BindMonitor(ctx context.Context, monitor *HealthMonitor) func() {
	return monitor.Subscribe(func(state ConnectionState) {
		if state.Status != StatusOnline {
			return
		}
		go q.FlushPending(ctx)
	})
}

func (q *OfflineQueue) hasPending(ctx context.Context, collection, key string) (bool, error) {
	pending, err := q.store.List(ctx)
	if err != nil {
		return false, err
	}
	for _, w := range pending {
		if !w.Dead && w.Collection == collection && w.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (q *OfflineQueue) refreshPendingGauge(ctx context.Context) {
	if n, err := q.PendingCount(ctx); err == nil {
		q.metrics.SetQueuePending(n)
	}
}
