// Package mock provides an in-memory directory.Store used by tests and the "memory" backend.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// The memory backend keeps records for the lifetime of the process only.
func init() {
	database.RegisterBackend(config.BackendMemory, func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (database.Backend, error) {
		logger.Warn("using in-memory directory store, records are lost on exit")
		return database.NopCloser(NewMockStore()), nil
	})
}

// MockStore is an in-memory implementation of directory.Store
type MockStore struct {
	mu      sync.RWMutex
	records []directory.UserRecord

	// Error injection
	ListError   error
	GetError    error
	CreateError error
	UpdateError error
	DeleteError error
	PingError   error

	// Call counters
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

var _ directory.Store = (*MockStore)(nil)

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{}
}

// AddRecord seeds a record; an empty ID gets a generated one
func (m *MockStore) AddRecord(rec directory.UserRecord) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.records = append(m.records, rec)
	return rec.ID
}

// Len returns the number of stored records
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// List returns all records in insertion order
func (m *MockStore) List(ctx context.Context) ([]directory.UserRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.records), nil
}

// Get retrieves a record by id
func (m *MockStore) Get(ctx context.Context, id string) (*directory.UserRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(id); i >= 0 {
		rec := m.records[i]
		return &rec, nil
	}
	return nil, fmt.Errorf("record %s: %w", id, directory.ErrNotFound)
}

// Create stores a record under a fresh id
func (m *MockStore) Create(ctx context.Context, rec directory.UserRecord) (string, error) {
	m.mu.Lock()
	m.CreateCalls++
	m.mu.Unlock()
	if m.CreateError != nil {
		return "", m.CreateError
	}
	rec.ID = ""
	return m.AddRecord(rec), nil
}

// Update applies a partial update
func (m *MockStore) Update(ctx context.Context, id string, p directory.Partial) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if m.UpdateError != nil {
		return m.UpdateError
	}
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("record %s: %w", id, directory.ErrNotFound)
	}
	m.records[i] = p.Apply(m.records[i])
	return nil
}

// Delete removes a record
func (m *MockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteError != nil {
		return m.DeleteError
	}
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("record %s: %w", id, directory.ErrNotFound)
	}
	m.records = slices.Delete(m.records, i, i+1)
	return nil
}

// Ping returns the injected ping error
func (m *MockStore) Ping(ctx context.Context) error {
	return m.PingError
}

func (m *MockStore) indexOf(id string) int {
	return slices.IndexFunc(m.records, func(r directory.UserRecord) bool { return r.ID == id })
}
