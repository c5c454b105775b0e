// Package store holds the current configuration snapshot. The snapshot is
// one immutable value replaced wholesale: readers either see the fully-old
// or the fully-new configuration, never a mixture.
package store

import (
	"sync/atomic"

	"github.com/labara-io/labara-go/internal/domain"
	"github.com/labara-io/labara-go/internal/obfuscation"
)

// FlagSource resolves a flag key to its definition. The evaluation engine
// depends only on this interface, never on how the configuration was
// decoded or cached.
type FlagSource interface {
	// GetFlag returns the flag for the caller-facing key, hashing the key
	// first when the active configuration is obfuscated.
	GetFlag(key string) (*domain.Flag, bool)

	// Configuration returns the active snapshot, nil before the first Set.
	Configuration() *domain.Configuration
}

// Store is the shared mutable cell between the refresh path (writer) and
// the evaluation path (many concurrent readers). Set publishes a snapshot
// atomically; concurrent writers race benignly, last writer wins.
type Store struct {
	snapshot    atomic.Pointer[domain.Configuration]
	initialized atomic.Bool
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Get returns the active snapshot, nil when nothing has been installed.
func (s *Store) Get() *domain.Configuration {
	return s.snapshot.Load()
}

// Set installs a new snapshot. The configuration must not be mutated after
// it is handed to Set.
func (s *Store) Set(cfg *domain.Configuration) {
	s.snapshot.Store(cfg)
	if cfg != nil && len(cfg.Flags) > 0 {
		s.initialized.Store(true)
	}
}

// Initialized reports whether a non-empty snapshot has ever been
// installed.
func (s *Store) Initialized() bool {
	return s.initialized.Load()
}

// Configuration implements FlagSource.
func (s *Store) Configuration() *domain.Configuration {
	return s.Get()
}

// GetFlag implements FlagSource.
func (s *Store) GetFlag(key string) (*domain.Flag, bool) {
	cfg := s.Get()
	if cfg == nil {
		return nil, false
	}

	lookup := key
	if cfg.Obfuscated {
		lookup = obfuscation.Hash(key)
	}

	flag, ok := cfg.Flags[lookup]
	if !ok {
		return nil, false
	}
	return &flag, true
}
