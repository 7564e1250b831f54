package config

import (
	"errors"
	"path/filepath"
	"testing"
)

type denyLicenser struct{}

func (denyLicenser) IsLicensed() bool { return false }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "hotfolders.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestCreateAssignsFreshIDAndPersists(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(&HotfolderConfig{Name: "Invoices", InputPath: "/in/invoices"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated ID")
	}

	reloaded, err := NewStore(s.path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, ok := reloaded.Get(created.ID); !ok {
		t.Fatal("expected the created config to survive a reload")
	}
}

func TestCreateRejectsEnabledInputPathCollision(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create(&HotfolderConfig{Name: "A", InputPath: "/in/shared", Enabled: true}); err != nil {
		t.Fatalf("Create A: %v", err)
	}
	_, err := s.Create(&HotfolderConfig{Name: "B", InputPath: "/IN/Shared/", Enabled: true})
	if err == nil {
		t.Fatal("expected a collision error for a case/trailing-slash variant of a claimed path")
	}
}

func TestCreateAllowsDisabledInputPathCollision(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Create(&HotfolderConfig{Name: "A", InputPath: "/in/shared", Enabled: true}); err != nil {
		t.Fatalf("Create A: %v", err)
	}
	if _, err := s.Create(&HotfolderConfig{Name: "B", InputPath: "/in/shared", Enabled: false}); err != nil {
		t.Fatalf("expected a disabled config sharing a path to be allowed, got %v", err)
	}
}

func TestImportAssignsNewIDAndDisablesRegardlessOfInput(t *testing.T) {
	s := newTestStore(t)

	imported, err := s.Import(&HotfolderConfig{ID: "stale-id", Name: "Imported", InputPath: "/in/x", Enabled: true})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.ID == "stale-id" {
		t.Fatal("expected a fresh ID, not the one carried in the imported document")
	}
	if imported.Enabled {
		t.Fatal("expected an imported config to start disabled")
	}
}

func TestExportRoundTripsThroughImport(t *testing.T) {
	s := newTestStore(t)

	created, err := s.Create(&HotfolderConfig{Name: "Invoices", InputPath: "/in/invoices"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	exported, err := s.Export(created.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	other := newTestStore(t)
	imported, err := other.Import(exported)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.Name != "Invoices" || imported.InputPath != "/in/invoices" {
		t.Fatalf("expected export/import to round-trip the config body, got %+v", imported)
	}
}

func TestCreateEnabledRejectedWithoutLicense(t *testing.T) {
	s, err := NewStoreWithLicenser(filepath.Join(t.TempDir(), "hotfolders.json"), denyLicenser{})
	if err != nil {
		t.Fatalf("NewStoreWithLicenser: %v", err)
	}

	_, err = s.Create(&HotfolderConfig{Name: "A", InputPath: "/in/a", Enabled: true})
	if !errors.Is(err, ErrUnlicensed) {
		t.Fatalf("expected ErrUnlicensed, got %v", err)
	}
}

func TestCreateDisabledAllowedWithoutLicense(t *testing.T) {
	s, err := NewStoreWithLicenser(filepath.Join(t.TempDir(), "hotfolders.json"), denyLicenser{})
	if err != nil {
		t.Fatalf("NewStoreWithLicenser: %v", err)
	}

	if _, err := s.Create(&HotfolderConfig{Name: "A", InputPath: "/in/a", Enabled: false}); err != nil {
		t.Fatalf("expected a disabled config to be created without a license, got %v", err)
	}
}

func TestDeleteRemovesConfig(t *testing.T) {
	s := newTestStore(t)
	created, _ := s.Create(&HotfolderConfig{Name: "Temp", InputPath: "/in/temp"})

	if err := s.Delete(created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(created.ID); ok {
		t.Fatal("expected the config to be gone after Delete")
	}
}
