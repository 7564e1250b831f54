package hotfolder

import (
	"path/filepath"
	"testing"

	"github.com/alterspective-engine/hotfolder-engine/internal/config"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	store, err := config.NewStore(filepath.Join(t.TempDir(), "hotfolders.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewSupervisor(store, nil, nil, 1, 0, 0)
}

func TestStatusMessageCountsEnabledAgainstTotal(t *testing.T) {
	s := newTestSupervisor(t)

	if _, err := s.Configs.Create(&config.HotfolderConfig{Name: "A", InputPath: "/in/a", Enabled: true}); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := s.Configs.Create(&config.HotfolderConfig{Name: "B", InputPath: "/in/b", Enabled: false}); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if _, err := s.Configs.Create(&config.HotfolderConfig{Name: "C", InputPath: "/in/c", Enabled: true}); err != nil {
		t.Fatalf("create C: %v", err)
	}

	got := s.StatusMessage()
	want := "2 von 3 Hotfoldern aktiv"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStatusMessageWithNoHotfoldersConfigured(t *testing.T) {
	s := newTestSupervisor(t)

	got := s.StatusMessage()
	want := "0 von 0 Hotfoldern aktiv"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
