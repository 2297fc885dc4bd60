package database

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// Backend is an opened directory store that holds resources until Close.
type Backend interface {
	directory.Store
	Close() error
}

// Opener connects a backend from configuration.
type Opener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]Opener)
)

// RegisterBackend registers a store constructor under a config.Store.Backend name.
// Store packages call it from init to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns the registered backend names, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Open connects the backend selected by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	backendsMu.RLock()
	open, ok := backends[cfg.Store.Backend]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store backend %q is not available (registered: %v)", cfg.Store.Backend, Backends())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b, err := open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	logger.Info("directory store opened", zap.String("backend", cfg.Store.Backend))
	return b, nil
}

// NopCloser adapts a store without resources to Backend.
func NopCloser(s directory.Store) Backend {
	return nopCloser{s}
}

type nopCloser struct {
	directory.Store
}

func (nopCloser) Close() error { return nil }
