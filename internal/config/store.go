package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store holds the live Config and keeps the file on disk in sync with it.
// Mutations are serialized; each one rewrites the full file before Update
// returns (write-through, no batching).
type Store struct {
	path string

	mu  sync.RWMutex
	cur Config
}

// Load reads the config file at path, or materializes and persists the
// defaults if it does not exist yet.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.cur = Default()
		if err := s.write(); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Relative paths are taken to live next to the other server files.
	if cfg.LogPath != "" && !filepath.IsAbs(cfg.LogPath) {
		cfg.LogPath = filepath.Join(BaseDir(), cfg.LogPath)
	}
	if cfg.DriverPath != "" && !filepath.IsAbs(cfg.DriverPath) {
		cfg.DriverPath = filepath.Join(BaseDir(), cfg.DriverPath)
	}

	s.cur = cfg
	return s, nil
}

// Path returns the config file location backing this store.
func (s *Store) Path() string { return s.path }

// Snapshot returns a point-in-time copy of the configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies mutate to the live config and flushes the result to disk
// before returning. Updates are serialized relative to each other. On a
// write failure the in-memory state keeps the mutation; the hardware it
// mirrors has already changed, so rolling back would make things worse.
func (s *Store) Update(mutate func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(&s.cur)
	return s.write()
}

// write must be called with mu held.
func (s *Store) write() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(&s.cur, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
