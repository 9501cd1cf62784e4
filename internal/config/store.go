package config

import "sync"

// Store guards a Config that changes at runtime when the server path is
// re-pointed from a UI surface.
type Store struct {
	mu  sync.RWMutex
	cfg Config
}

func NewStore(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.Sources = make(map[string]Source, len(s.cfg.Sources))
	for key, source := range s.cfg.Sources {
		cfg.Sources[key] = source
	}
	return cfg
}

func (s *Store) ServerDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.ServerDir
}

func (s *Store) DisabledModsDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.DisabledModsDir
}

func (s *Store) SetServerDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.SetServerDir(dir)
}
