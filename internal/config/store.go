package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/license"
)

// ErrUnlicensed is returned when enabling a config without a valid license.
var ErrUnlicensed = errors.New("config: not licensed to enable a hotfolder")

// ErrInputPathTaken is returned when enabling a config whose input_path
// is already claimed by another enabled config.
type ErrInputPathTaken struct {
	Path        string
	OwnerID     string
	CandidateID string
}

func (e *ErrInputPathTaken) Error() string {
	return fmt.Sprintf("config: input path %q is already claimed by hotfolder %q", e.Path, e.OwnerID)
}

// Store is a mutex-serialized, disk-backed set of HotfolderConfig,
// persisted as a single JSON document via the same write-temp/fsync/
// rename protocol internal/counter uses.
type Store struct {
	mu       sync.RWMutex
	path     string
	configs  map[string]*HotfolderConfig
	licenser license.Checker
}

// NewStore loads (or initializes) a hotfolder config store backed by path.
// Enabling a config is gated by license.AlwaysLicensed{}, which accepts
// every config; use NewStoreWithLicenser to supply another Checker.
func NewStore(path string) (*Store, error) {
	return newStore(path, license.AlwaysLicensed{})
}

// NewStoreWithLicenser is NewStore with an explicit license.Checker.
func NewStoreWithLicenser(path string, licenser license.Checker) (*Store, error) {
	return newStore(path, licenser)
}

func newStore(path string, licenser license.Checker) (*Store, error) {
	s := &Store{path: path, configs: make(map[string]*HotfolderConfig), licenser: licenser}
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
		return fmt.Errorf("config store: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var list []*HotfolderConfig
	if err := json.Unmarshal(data, &list); err != nil {
		log.WithFields(log.Fields{"path": s.path, "error": err}).
			Warn("config store: corrupt or truncated document, starting empty")
		return nil
	}

	for _, c := range list {
		c.applyDefaults()
		s.configs[c.ID] = c
	}
	return nil
}

func (s *Store) save() error {
	list := make([]*HotfolderConfig, 0, len(s.configs))
	for _, c := range s.configs {
		list = append(list, c)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("config store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config store: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("config store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config store: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("config store: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config store: close temp file: %w", err)
	}

	backupPath := s.path + ".backup"
	hadExisting := false
	if _, err := os.Stat(s.path); err == nil {
		hadExisting = true
		if err := os.Rename(s.path, backupPath); err != nil {
			return fmt.Errorf("config store: backup existing file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		if hadExisting {
			os.Rename(backupPath, s.path)
		}
		return fmt.Errorf("config store: rename temp file into place: %w", err)
	}
	if hadExisting {
		os.Remove(backupPath)
	}
	return nil
}

// List returns a snapshot of every configured hotfolder.
func (s *Store) List() []*HotfolderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*HotfolderConfig, 0, len(s.configs))
	for _, c := range s.configs {
		cp := *c
		out = append(out, &cp)
	}
	return out
}

// Get returns one config by ID.
func (s *Store) Get(id string) (*HotfolderConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.configs[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Create assigns a fresh ID to cfg, validates it's not colliding on
// input_path if enabled, persists it, and returns the stored copy.
func (s *Store) Create(cfg *HotfolderConfig) (*HotfolderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.ID = uuid.NewString()
	cfg.applyDefaults()

	if cfg.Enabled {
		if !s.licenser.IsLicensed() {
			return nil, ErrUnlicensed
		}
		if ownerID := findInputPathCollision(s.listLocked(), cfg.InputPath, cfg.ID); ownerID != "" {
			return nil, &ErrInputPathTaken{Path: cfg.InputPath, OwnerID: ownerID, CandidateID: cfg.ID}
		}
	}

	s.configs[cfg.ID] = cfg
	if err := s.save(); err != nil {
		delete(s.configs, cfg.ID)
		return nil, err
	}

	cp := *cfg
	return &cp, nil
}

// Update replaces the config stored under cfg.ID.
func (s *Store) Update(cfg *HotfolderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.configs[cfg.ID]; !ok {
		return fmt.Errorf("config store: no hotfolder with id %q", cfg.ID)
	}
	cfg.applyDefaults()

	if cfg.Enabled {
		if !s.licenser.IsLicensed() {
			return ErrUnlicensed
		}
		if ownerID := findInputPathCollision(s.listLocked(), cfg.InputPath, cfg.ID); ownerID != "" {
			return &ErrInputPathTaken{Path: cfg.InputPath, OwnerID: ownerID, CandidateID: cfg.ID}
		}
	}

	prev := s.configs[cfg.ID]
	s.configs[cfg.ID] = cfg
	if err := s.save(); err != nil {
		s.configs[cfg.ID] = prev
		return err
	}
	return nil
}

// Delete removes a config by ID.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.configs[id]
	if !ok {
		return fmt.Errorf("config store: no hotfolder with id %q", id)
	}
	delete(s.configs, id)
	if err := s.save(); err != nil {
		s.configs[id] = prev
		return err
	}
	return nil
}

// Import adds cfg as a brand-new, disabled hotfolder (a fresh ID is
// always assigned, regardless of any ID carried in the imported
// document), so importing a config never silently collides with
// or reactivates an existing one.
func (s *Store) Import(cfg *HotfolderConfig) (*HotfolderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.ID = uuid.NewString()
	cfg.Enabled = false
	cfg.applyDefaults()

	s.configs[cfg.ID] = cfg
	if err := s.save(); err != nil {
		delete(s.configs, cfg.ID)
		return nil, err
	}
	cp := *cfg
	return &cp, nil
}

// Export returns the config for id, suitable for serializing to a file
// a caller can later Import elsewhere.
func (s *Store) Export(id string) (*HotfolderConfig, error) {
	cfg, ok := s.Get(id)
	if !ok {
		return nil, fmt.Errorf("config store: no hotfolder with id %q", id)
	}
	return cfg, nil
}

// listLocked returns the current configs without copying; callers must
// already hold s.mu.
func (s *Store) listLocked() []*HotfolderConfig {
	out := make([]*HotfolderConfig, 0, len(s.configs))
	for _, c := range s.configs {
		out = append(out, c)
	}
	return out
}
