package directory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Repository is the CRUD facade over a Store. It owns the canonical in-memory
// record list and the single edit draft, and is the only writer to the store.
type Repository struct {
	store  Store
	logger *zap.Logger

	mu      sync.RWMutex
	records []UserRecord

	// writes orders store mutations against ListAll: a reload holds it exclusively from
	// the store listing until the view is replaced, so no mutation lands in between.
	writes sync.RWMutex

	locks keyedMutex

	editMu sync.Mutex
	edit   *EditDraft
}

// NewRepository creates a repository over store. A nil logger disables logging.
func NewRepository(store Store, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		store:  store,
		logger: logger.Named("directory"),
	}
}

// ListAll fetches every record from the store and replaces the in-memory view.
func (r *Repository) ListAll(ctx context.Context) ([]UserRecord, error) {
	r.writes.Lock()
	defer r.writes.Unlock()

	records, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn("list records failed", zap.Error(err))
		return nil, Unavailable("list records", err)
	}

	r.mu.Lock()
	r.records = slices.Clone(records)
	r.mu.Unlock()

	r.logger.Debug("records loaded", zap.Int("count", len(records)))
	return records, nil
}

// Snapshot returns a copy of the in-memory view without contacting the store.
func (r *Repository) Snapshot() []UserRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.records)
}

// Get returns a record, preferring the in-memory view and falling back to the store.
func (r *Repository) Get(ctx context.Context, id string) (UserRecord, error) {
	if rec, ok := r.cached(id); ok {
		return rec, nil
	}
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return UserRecord{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return UserRecord{}, Unavailable("get record", err)
	}
	return *rec, nil
}

// Create validates and persists a new record, appending it to the in-memory view.
func (r *Repository) Create(ctx context.Context, name, department string, face Descriptor) (string, error) {
	rec := UserRecord{
		Name:       strings.TrimSpace(name),
		Department: strings.TrimSpace(department),
		Face:       face,
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	r.writes.RLock()
	defer r.writes.RUnlock()

	id, err := r.store.Create(ctx, rec)
	if err != nil {
		r.logger.Warn("create record failed", zap.Error(err))
		return "", Unavailable("create record", err)
	}
	rec.ID = id

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	r.logger.Info("record created",
		zap.String("id", id),
		zap.String("descriptor", face.Kind().String()))
	return id, nil
}

// Update applies a partial update to name and/or department. The face descriptor is never touched.
// An empty update of an unknown id reports ErrNotFound rather than a validation error.
func (r *Repository) Update(ctx context.Context, id string, p Partial) error {
	if p.IsEmpty() {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.normalized()

	r.writes.RLock()
	defer r.writes.RUnlock()
	unlock := r.locks.Lock(id)
	defer unlock()

	if err := r.store.Update(ctx, id, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			r.forget(id)
			return fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		r.logger.Warn("update record failed", zap.String("id", id), zap.Error(err))
		return Unavailable("update record", err)
	}

	r.mu.Lock()
	if i := r.indexOf(id); i >= 0 {
		r.records[i] = p.Apply(r.records[i])
	}
	r.mu.Unlock()

	r.logger.Info("record updated", zap.String("id", id))
	return nil
}

// Delete removes a record. Deleting an absent id reports ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.writes.RLock()
	defer r.writes.RUnlock()
	unlock := r.locks.Lock(id)
	defer unlock()

	err := r.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		r.logger.Warn("delete record failed", zap.String("id", id), zap.Error(err))
		return Unavailable("delete record", err)
	}

	r.forget(id)
	r.dropEdit(id)

	if err != nil {
		return fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	r.logger.Info("record deleted", zap.String("id", id))
	return nil
}

// Ping checks store reachability.
func (r *Repository) Ping(ctx context.Context) error {
	return Unavailable("ping store", r.store.Ping(ctx))
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	IDs    []string
	Failed int
}

// Import creates every record in order. Failures are collected rather than aborting the run.
// progress, if set, is called after each record.
func (r *Repository) Import(ctx context.Context, records []UserRecord, progress func()) (ImportResult, error) {
	var (
		res  ImportResult
		errs []error
	)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		id, err := r.Create(ctx, rec.Name, rec.Department, rec.Face)
		if err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("record %d (%s): %w", i, rec.Name, err))
		} else {
			res.IDs = append(res.IDs, id)
		}
		if progress != nil {
			progress()
		}
	}
	return res, errors.Join(errs...)
}

func (r *Repository) cached(id string) (UserRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.records[i], true
	}
	return UserRecord{}, false
}

func (r *Repository) forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(id); i >= 0 {
		r.records = slices.Delete(r.records, i, i+1)
	}
}

// indexOf must be called with r.mu held.
func (r *Repository) indexOf(id string) int {
	return slices.IndexFunc(r.records, func(rec UserRecord) bool { return rec.ID == id })
}

// keyedMutex serializes mutations per record id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
