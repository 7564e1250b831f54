// Package counter implements a durable, monotonic named-counter store.
//
// A single JSON document on disk holds every counter's current value.
// Writes go through the same write-temp/fsync/rename-over-target protocol
// the rest of the engine uses for its other shared files (the hotfolder
// config store, in internal/config), so a crash mid-write never leaves a
// partially written live file: just before the rename the old file is
// moved aside to a .backup sibling, which is removed once the new file
// is in place.
package counter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Store is a mutex-serialized, disk-backed map of counter name to value.
// All operations are safe for concurrent use and all mutating operations
// persist before returning.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]int64
}

// NewStore loads (or initializes) a counter store backed by path.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]int64),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("counter store: read %s: %w", s.path, err)
	}

	if len(data) == 0 {
		return nil
	}

	var values map[string]int64
	if err := json.Unmarshal(data, &values); err != nil {
		log.WithFields(log.Fields{
			"path":  s.path,
			"error": err,
		}).Warn("counter store: corrupt or truncated document, starting empty")
		s.values = make(map[string]int64)
		return nil
	}

	s.values = values
	return nil
}

// save persists the current in-memory state atomically: write to a sibling
// temp file, fsync it, then rename over the target. A pre-existing file is
// kept as a ".backup" sibling for the duration of the rename and removed
// once the rename has succeeded.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("counter store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("counter store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed away

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("counter store: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("counter store: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("counter store: close temp file: %w", err)
	}

	backupPath := s.path + ".backup"
	hadExisting := false
	if _, err := os.Stat(s.path); err == nil {
		hadExisting = true
		if err := os.Rename(s.path, backupPath); err != nil {
			return fmt.Errorf("counter store: backup existing file: %w", err)
		}
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		// Best-effort restore of the backup so we never end up with neither file.
		if hadExisting {
			os.Rename(backupPath, s.path)
		}
		return fmt.Errorf("counter store: rename temp file into place: %w", err)
	}

	if hadExisting {
		os.Remove(backupPath)
	}
	return nil
}

// GetAndIncrement returns the value of name before incrementing it by step
// and persists the new value before returning. If name does not yet exist,
// it is initialized to start (subsequent calls with a different start are
// ignored once the counter exists — see SPEC_FULL.md / DESIGN.md Open
// Question 3).
func (s *Store) GetAndIncrement(name string, start, step int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[name]; !ok {
		s.values[name] = start
	}

	current := s.values[name]
	s.values[name] = current + step

	if err := s.save(); err != nil {
		// Roll back the in-memory value so a failed persist never lets the
		// caller observe a value that was never durably committed.
		s.values[name] = current
		return 0, err
	}

	return current, nil
}

// Get returns the current value of name, or def if it does not exist.
func (s *Store) Get(name string, def int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[name]; ok {
		return v
	}
	return def
}

// Set assigns value to name unconditionally.
func (s *Store) Set(name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.values[name]
	s.values[name] = value
	if err := s.save(); err != nil {
		if existed {
			s.values[name] = prev
		} else {
			delete(s.values, name)
		}
		return err
	}
	return nil
}

// Reset sets name back to start. Semantically identical to Set, kept as a
// distinct operation per spec.md's interface (§4.A).
func (s *Store) Reset(name string, start int64) error {
	return s.Set(name, start)
}

// Delete removes name, returning true if it existed.
func (s *Store) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[name]
	if !ok {
		return false, nil
	}
	delete(s.values, name)

	if err := s.save(); err != nil {
		s.values[name] = value
		return false, err
	}
	return true, nil
}

// List returns a snapshot copy of every counter and its current value.
func (s *Store) List() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
