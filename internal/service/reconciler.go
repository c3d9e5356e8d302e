package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scc-edu/registry-sync/internal/models"
	"github.com/scc-edu/registry-sync/internal/remote"
	"github.com/scc-edu/registry-sync/pkg/config"
)

type identitySource interface {
	Query(ctx context.Context, collection string, filter remote.Filter) ([]remote.Document, error)
	Subscribe(collection string, fn func(remote.Event)) (func(), error)
}

// Reconciler merges the three registry sources into one deduplicated
// canonical identity set and answers the duplicate/validity queries used by
// list views and bulk import.
//
// Student accounts and registered-view projections are the user-confirmed
// truth; roster entries are the pre-registration draft. Wherever both carry
// a value for the same field, the account side wins and roster only
// backfills blanks. The stored IsRegistered flag on roster entries is
// treated as a hint; registration status is always derived from whether an
// account or projection backed the merge.
type Reconciler struct {
	source   identitySource
	logger   *zap.Logger
	metrics  *MetricsService
	debounce time.Duration

	mu       sync.Mutex
	cached   *models.RegistrySnapshot
	subs     map[int]func(models.RegistrySnapshot)
	nextSub  int
	started  bool
	cancel   context.CancelFunc
	unsubs   []func()
	wg       sync.WaitGroup

	changes chan struct{}
}

// NewReconciler constructs a reconciler over the remote store.
func NewReconciler(source identitySource, cfg config.ReconcileConfig, metrics *MetricsService, logger *zap.Logger) *Reconciler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		source:   source,
		logger:   logger,
		metrics:  metrics,
		debounce: cfg.Debounce,
		subs:     make(map[int]func(models.RegistrySnapshot)),
		changes:  make(chan struct{}, 1),
	}
}

// Start subscribes to the underlying collections and begins the debounced
// recompute loop. Idempotent.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	onChange := func(remote.Event) {
		select {
		case r.changes <- struct{}{}:
		default:
		}
	}
	for _, collection := range []string{remote.CollectionRoster, remote.CollectionAccounts, remote.CollectionRegistered} {
		unsub, err := r.source.Subscribe(collection, onChange)
		if err != nil {
			r.Stop()
			return err
		}
		r.mu.Lock()
		r.unsubs = append(r.unsubs, unsub)
		r.mu.Unlock()
	}

	r.wg.Add(1)
	go r.run(runCtx)

	// Seed the cache so early queries do not all pay a recompute.
	if snap, err := r.recompute(ctx); err == nil {
		r.setCached(snap)
	}
	return nil
}

// Stop detaches source subscriptions and drains the recompute loop.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Snapshot returns the current merged view, recomputing on demand when no
// cached snapshot exists yet.
func (r *Reconciler) Snapshot(ctx context.Context) (models.RegistrySnapshot, error) {
	r.mu.Lock()
	cached := r.cached
	r.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	snap, err := r.recompute(ctx)
	if err != nil {
		return models.RegistrySnapshot{}, err
	}
	r.setCached(snap)
	return snap, nil
}

// Subscribe registers fn for every recomputed snapshot. Rapid underlying
// changes coalesce into a single notification after the quiescence window.
// The returned function removes the subscription.
func (r *Reconciler) Subscribe(fn func(models.RegistrySnapshot)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// IsDuplicate reports whether a canonical identity already exists with the
// given business key, or, when the key is absent, the given email.
func (r *Reconciler) IsDuplicate(ctx context.Context, studentID, email string) (bool, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	studentID = strings.TrimSpace(studentID)
	email = strings.ToLower(strings.TrimSpace(email))
	for _, id := range snap.Identities {
		if studentID != "" && strings.EqualFold(id.StudentID, studentID) {
			return true, nil
		}
		if studentID == "" && email != "" && strings.ToLower(id.Email) == email {
			return true, nil
		}
	}
	return false, nil
}

// Validate is the authorization gate used before accepting a record write
// against a student: the business key must belong to a known identity.
func (r *Reconciler) Validate(ctx context.Context, studentID string) (bool, string, error) {
	if !models.ValidStudentID(studentID) {
		return false, "student id does not match the expected format", nil
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return false, "", err
	}
	for _, id := range snap.Identities {
		if strings.EqualFold(id.StudentID, studentID) {
			return true, "", nil
		}
	}
	return false, "student id not found in registry", nil
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-r.changes:
			if timer == nil {
				timer = time.NewTimer(r.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(r.debounce)
			}
		case <-timerC():
			timer = nil
			snap, err := r.recompute(ctx)
			if err != nil {
				// Keep serving the previous snapshot; the next change
				// event will try again.
				r.logger.Warn("reconcile failed", zap.Error(err))
				continue
			}
			r.setCached(snap)
			r.notify(snap)
		}
	}
}

// recompute loads the three sources and merges them. It is read-only and
// side-effect-free, so it is safe to run concurrently with write activity.
func (r *Reconciler) recompute(ctx context.Context) (models.RegistrySnapshot, error) {
	start := time.Now()

	rosterDocs, err := r.source.Query(ctx, remote.CollectionRoster, nil)
	if err != nil {
		return models.RegistrySnapshot{}, err
	}
	accountDocs, err := r.source.Query(ctx, remote.CollectionAccounts, remote.Filter{"role": string(models.RoleStudent)})
	if err != nil {
		return models.RegistrySnapshot{}, err
	}
	registeredDocs, err := r.source.Query(ctx, remote.CollectionRegistered, nil)
	if err != nil {
		return models.RegistrySnapshot{}, err
	}

	var warnings []models.IntegrityWarning

	rosters := make([]models.RosterEntry, 0, len(rosterDocs))
	for _, doc := range rosterDocs {
		var entry models.RosterEntry
		if err := json.Unmarshal(doc.Data, &entry); err != nil {
			r.logUndecodable(remote.CollectionRoster, doc.Key, err)
			continue
		}
		rosters = append(rosters, entry)
	}
	accounts := make([]models.Account, 0, len(accountDocs))
	for _, doc := range accountDocs {
		var account models.Account
		if err := json.Unmarshal(doc.Data, &account); err != nil {
			r.logUndecodable(remote.CollectionAccounts, doc.Key, err)
			continue
		}
		accounts = append(accounts, account)
	}
	views := make([]models.RegisteredView, 0, len(registeredDocs))
	for _, doc := range registeredDocs {
		var view models.RegisteredView
		if err := json.Unmarshal(doc.Data, &view); err != nil {
			r.logUndecodable(remote.CollectionRegistered, doc.Key, err)
			continue
		}
		views = append(views, view)
	}

	merged := make(map[string]*models.CanonicalIdentity)
	order := make([]string, 0, len(rosters))

	upsert := func(key string) *models.CanonicalIdentity {
		if id, ok := merged[key]; ok {
			return id
		}
		id := &models.CanonicalIdentity{}
		merged[key] = id
		order = append(order, key)
		return id
	}

	// Roster entries form the base layer.
	rosterSeen := make(map[string][]string)
	for _, entry := range rosters {
		key := identityKey(entry.StudentID, entry.Email)
		if key == "" {
			continue
		}
		rosterSeen[key] = append(rosterSeen[key], entry.InternalID)
		id := upsert(key)
		id.StudentID = pick(id.StudentID, entry.StudentID)
		id.Email = pick(id.Email, entry.Email)
		id.FirstName = pick(id.FirstName, entry.FirstName)
		id.LastName = pick(id.LastName, entry.LastName)
		id.Sex = pick(id.Sex, entry.Sex)
		id.Course = pick(id.Course, entry.Course)
		id.Year = pick(id.Year, entry.Year)
		id.Section = pick(id.Section, entry.Section)
		id.RosterInternalID = pick(id.RosterInternalID, entry.InternalID)
		if id.Provenance == "" {
			id.Provenance = models.ProvenanceManual
		}
	}
	warnings = append(warnings, collisionWarnings(remote.CollectionRoster, rosterSeen)...)

	// Registered-view projections overlay the roster draft.
	viewSeen := make(map[string][]string)
	for _, view := range views {
		key := identityKey(view.StudentID, view.Email)
		if key == "" {
			continue
		}
		viewSeen[key] = append(viewSeen[key], view.AccountID)
		id := upsert(key)
		overlayAuthoritative(id, view.StudentID, view.Email, view.FirstName, view.LastName, view.Sex, view.Course, view.Year, view.Section)
		id.AccountID = pick(view.AccountID, id.AccountID)
	}
	warnings = append(warnings, collisionWarnings(remote.CollectionRegistered, viewSeen)...)

	// Accounts are the root truth and apply last.
	accountSeen := make(map[string][]string)
	for _, account := range accounts {
		key := identityKey(account.StudentID, account.Email)
		if key == "" {
			continue
		}
		accountSeen[key] = append(accountSeen[key], account.AccountID)
		id := upsert(key)
		overlayAuthoritative(id, account.StudentID, account.Email, account.FirstName, account.LastName, account.Sex, account.Course, account.Year, account.Section)
		id.AccountID = pick(account.AccountID, id.AccountID)
	}
	warnings = append(warnings, collisionWarnings(remote.CollectionAccounts, accountSeen)...)

	identities := make([]models.CanonicalIdentity, 0, len(order))
	for _, key := range order {
		identities = append(identities, *merged[key])
	}
	sort.Slice(identities, func(i, j int) bool {
		if identities[i].StudentID != identities[j].StudentID {
			return identities[i].StudentID < identities[j].StudentID
		}
		return identities[i].Email < identities[j].Email
	})

	snap := models.RegistrySnapshot{
		Identities: identities,
		Warnings:   warnings,
		ComputedAt: time.Now().UTC(),
	}
	r.metrics.ObserveReconcile(time.Since(start))
	return snap, nil
}

func (r *Reconciler) setCached(snap models.RegistrySnapshot) {
	r.mu.Lock()
	r.cached = &snap
	r.mu.Unlock()
}

func (r *Reconciler) notify(snap models.RegistrySnapshot) {
	r.mu.Lock()
	fns := make([]func(models.RegistrySnapshot), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// overlayAuthoritative applies account-side values over whatever the roster
// contributed: non-empty account fields win, blanks keep the roster value.
func overlayAuthoritative(id *models.CanonicalIdentity, studentID, email, first, last, sex, course, year, section string) {
	id.StudentID = pick(studentID, id.StudentID)
	id.Email = pick(email, id.Email)
	id.FirstName = pick(first, id.FirstName)
	id.LastName = pick(last, id.LastName)
	id.Sex = pick(sex, id.Sex)
	id.Course = pick(course, id.Course)
	id.Year = pick(year, id.Year)
	id.Section = pick(section, id.Section)
	id.Provenance = models.ProvenanceRegistered
	id.IsRegisteredUser = true
}

// identityKey indexes by business key, falling back to lower-cased email.
func identityKey(studentID, email string) string {
	studentID = strings.TrimSpace(studentID)
	if studentID != "" {
		return strings.ToUpper(studentID)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		return "email:" + email
	}
	return ""
}

// pick returns primary unless it is blank.
func pick(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}

// collisionWarnings reports keys claimed by more than one document inside a
// single source. The merge proceeds regardless; callers only get a
// diagnostic.
func collisionWarnings(source string, seen map[string][]string) []models.IntegrityWarning {
	var warnings []models.IntegrityWarning
	for key, ids := range seen {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		warnings = append(warnings, models.IntegrityWarning{Source: source, Key: key, DocumentIDs: ids})
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Key < warnings[j].Key })
	return warnings
}

func (r *Reconciler) logUndecodable(collection, key string, err error) {
	r.logger.Warn("skip undecodable document",
		zap.String("collection", collection),
		zap.String("key", key),
		zap.Error(err))
}
