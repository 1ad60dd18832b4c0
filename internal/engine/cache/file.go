package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const fileFormatVersion = 1

// FileConfig configures a file-backed cache.
type FileConfig struct {
	Path       string
	DefaultTTL time.Duration // zero means entries never expire by default
	MaxEntries int           // zero means unbounded
}

// FileStore persists the cache as a single JSON file. A missing or corrupt
// file starts the cache empty; corruption never fails the caller, it only
// degrades the hit rate.
type FileStore struct {
	cfg FileConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

type fileFormat struct {
	Version int               `json:"version"`
	Entries map[string]*Entry `json:"entries"`
}

// NewFileStore opens (or initializes) the cache file at cfg.Path.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	s := &FileStore{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}

	data, err := os.ReadFile(cfg.Path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil || f.Version != fileFormatVersion {
		// Corrupt or stale-format cache starts empty.
		return s, nil
	}
	if f.Entries != nil {
		s.entries = f.Entries
	}
	return s, nil
}

// Get returns the value for key. Expired entries behave as misses and are
// deleted lazily. Access times are written through so eviction order
// survives a restart; reads never fail on persistence problems, the in-memory
// state stays authoritative for this process.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.Expired(s.now()) {
		delete(s.entries, key)
		if err := s.persist(); err != nil {
			slog.Warn("Failed to persist cache after expiring entry", "error", err)
		}
		return nil, false, nil
	}

	e.LastAccessedAt = s.now()
	if err := s.persist(); err != nil {
		slog.Warn("Failed to persist cache access time", "error", err)
	}
	return e.Value, true, nil
}

// Set stores value under key and writes the file through.
func (s *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if ttl == 0 {
		ttl = s.cfg.DefaultTTL
	}

	e := &Entry{
		Value:          value,
		StoredAt:       now,
		LastAccessedAt: now,
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	s.entries[key] = e

	s.evict()
	return s.persist()
}

// Delete removes a single entry.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.persist()
}

// Clear removes every entry.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry)
	return s.persist()
}

// Len reports the number of live entries.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evict drops the least-recently-accessed entries until the store is back
// under MaxEntries. Caller holds the lock.
func (s *FileStore) evict() {
	if s.cfg.MaxEntries <= 0 || len(s.entries) <= s.cfg.MaxEntries {
		return
	}

	type aged struct {
		key string
		at  time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		at := e.LastAccessedAt
		if at.IsZero() {
			at = e.StoredAt
		}
		all = append(all, aged{key: k, at: at})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })

	for _, a := range all {
		if len(s.entries) <= s.cfg.MaxEntries {
			break
		}
		delete(s.entries, a.key)
	}
}

// persist writes the cache file atomically. Caller holds the lock.
func (s *FileStore) persist() error {
	data, err := json.Marshal(fileFormat{Version: fileFormatVersion, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if dir := filepath.Dir(s.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	tmp := s.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.cfg.Path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}
