package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/pkg/config"
)

func seedRoster(t *testing.T, store *remote.MemoryStore, entry models.RosterEntry) {
	t.Helper()
	key := entry.StudentID
	if key == "" {
		key = entry.InternalID
	}
	require.NoError(t, store.Put(context.Background(), remote.CollectionRoster, key, entry))
}

func seedAccount(t *testing.T, store *remote.MemoryStore, account models.Account) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), remote.CollectionAccounts, account.AccountID, account))
}

func seedRegistered(t *testing.T, store *remote.MemoryStore, view models.RegisteredView) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), remote.CollectionRegistered, view.StudentID, view))
}

func newTestReconciler(store *remote.MemoryStore, debounce time.Duration) *Reconciler {
	return NewReconciler(store, config.ReconcileConfig{Debounce: debounce}, nil, zap.NewNop())
}

func TestReconcilerAuthorityAndDedup(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{
		InternalID: "r1",
		StudentID:  "SCC-22-00000001",
		FirstName:  "Juan",
		LastName:   "Dela Cruz",
		Course:     "BSIT",
	})
	seedAccount(t, store, models.Account{
		AccountID: "a1",
		Role:      models.RoleStudent,
		StudentID: "SCC-22-00000001",
		Email:     "juan@example.com",
		FirstName: "John",
		LastName:  "Dela Cruz",
	})

	rec := newTestReconciler(store, 0)
	snap, err := rec.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Identities, 1)
	id := snap.Identities[0]
	// The account value wins over the roster draft.
	assert.Equal(t, "John", id.FirstName)
	// The account left course empty, so the roster backfills it.
	assert.Equal(t, "BSIT", id.Course)
	assert.Equal(t, models.ProvenanceRegistered, id.Provenance)
	assert.True(t, id.IsRegisteredUser)
	assert.Equal(t, "r1", id.RosterInternalID)
	assert.Equal(t, "a1", id.AccountID)
}

func TestReconcilerDedupInvariant(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{InternalID: "r1", StudentID: "SCC-22-00000001", FirstName: "A", LastName: "B"})
	seedRoster(t, store, models.RosterEntry{InternalID: "r2", StudentID: "SCC-22-00000002", FirstName: "C", LastName: "D"})
	seedRoster(t, store, models.RosterEntry{InternalID: "r3", Email: "noid@example.com", FirstName: "E", LastName: "F"})
	seedAccount(t, store, models.Account{AccountID: "a1", Role: models.RoleStudent, StudentID: "SCC-22-00000001", Email: "a@example.com", FirstName: "A2", LastName: "B"})
	seedRegistered(t, store, models.RegisteredView{StudentID: "SCC-22-00000002", AccountID: "a2", Email: "c@example.com", FirstName: "C2", LastName: "D"})

	rec := newTestReconciler(store, 0)
	snap, err := rec.Snapshot(context.Background())
	require.NoError(t, err)

	byStudentID := make(map[string]int)
	byEmail := make(map[string]int)
	for _, id := range snap.Identities {
		if id.StudentID != "" {
			byStudentID[id.StudentID]++
		} else if id.Email != "" {
			byEmail[id.Email]++
		}
	}
	for sid, n := range byStudentID {
		assert.Equal(t, 1, n, "student id %s appears more than once", sid)
	}
	for email, n := range byEmail {
		assert.Equal(t, 1, n, "email %s appears more than once", email)
	}
	assert.Len(t, snap.Identities, 3)
}

func TestReconcilerEmailFallback(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{InternalID: "r1", Email: "Shared@Example.com", FirstName: "A", LastName: "B"})
	seedRoster(t, store, models.RosterEntry{InternalID: "r2", Email: "shared@example.com", FirstName: "A", LastName: "B"})

	rec := newTestReconciler(store, 0)
	snap, err := rec.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Identities, 1)

	dup, err := rec.IsDuplicate(context.Background(), "", "SHARED@example.com")
	require.NoError(t, err)
	assert.True(t, dup)
}

func TestReconcilerIntegrityWarning(t *testing.T) {
	store := remote.NewMemoryStore()
	// Two roster documents claim the same business key.
	require.NoError(t, store.Put(context.Background(), remote.CollectionRoster, "dup-1",
		models.RosterEntry{InternalID: "r1", StudentID: "SCC-22-00000009", FirstName: "A", LastName: "B"}))
	require.NoError(t, store.Put(context.Background(), remote.CollectionRoster, "dup-2",
		models.RosterEntry{InternalID: "r2", StudentID: "SCC-22-00000009", FirstName: "A", LastName: "B"}))

	rec := newTestReconciler(store, 0)
	snap, err := rec.Snapshot(context.Background())
	require.NoError(t, err)

	// The merge still yields one identity; the collision is a diagnostic.
	assert.Len(t, snap.Identities, 1)
	require.Len(t, snap.Warnings, 1)
	assert.Equal(t, remote.CollectionRoster, snap.Warnings[0].Source)
	assert.ElementsMatch(t, []string{"r1", "r2"}, snap.Warnings[0].DocumentIDs)
}

func TestReconcilerIsDuplicate(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{InternalID: "r1", StudentID: "SCC-22-00000001", Email: "juan@example.com", FirstName: "Juan", LastName: "Dela Cruz"})

	rec := newTestReconciler(store, 0)
	ctx := context.Background()

	dup, err := rec.IsDuplicate(ctx, "scc-22-00000001", "")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = rec.IsDuplicate(ctx, "SCC-22-00000099", "")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestReconcilerValidate(t *testing.T) {
	store := remote.NewMemoryStore()
	seedRoster(t, store, models.RosterEntry{InternalID: "r1", StudentID: "SCC-22-00000001", FirstName: "Juan", LastName: "Dela Cruz"})

	rec := newTestReconciler(store, 0)
	ctx := context.Background()

	valid, reason, err := rec.Validate(ctx, "SCC-22-00000001")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, reason)

	valid, reason, err = rec.Validate(ctx, "SCC-22-00000042")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Contains(t, reason, "not found")

	valid, reason, err = rec.Validate(ctx, "not-a-key")
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Contains(t, reason, "format")
}

func TestReconcilerDebouncedSubscribe(t *testing.T) {
	store := remote.NewMemoryStore()
	rec := newTestReconciler(store, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rec.Start(ctx))
	defer rec.Stop()

	var notifications atomic.Int32
	unsub := rec.Subscribe(func(models.RegistrySnapshot) {
		notifications.Add(1)
	})
	defer unsub()

	// Three rapid changes must coalesce into a single notification.
	for i := 0; i < 3; i++ {
		seedRoster(t, store, models.RosterEntry{
			InternalID: "r1",
			StudentID:  "SCC-22-00000001",
			FirstName:  "Juan",
			LastName:   "Dela Cruz",
		})
	}

	require.Eventually(t, func() bool {
		return notifications.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// And stay at one after the window has long passed.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), notifications.Load())
}
