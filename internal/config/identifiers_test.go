package config

import "testing"

func TestNormalizeInputPathIgnoresCaseAndTrailingSeparator(t *testing.T) {
	a := normalizeInputPath("/data/Invoices/")
	b := normalizeInputPath("/DATA/invoices")
	if a != b {
		t.Fatalf("expected equivalent paths to normalize identically, got %q vs %q", a, b)
	}
}

func TestFindInputPathCollisionIgnoresDisabledAndSelf(t *testing.T) {
	configs := []*HotfolderConfig{
		{ID: "a", InputPath: "/in/shared", Enabled: true},
		{ID: "b", InputPath: "/in/other", Enabled: true},
		{ID: "c", InputPath: "/in/shared", Enabled: false},
	}

	if got := findInputPathCollision(configs, "/in/shared", "x"); got != "a" {
		t.Fatalf("expected collision with enabled config a, got %q", got)
	}
	if got := findInputPathCollision(configs, "/in/shared", "a"); got != "" {
		t.Fatalf("expected no collision when excluding the only enabled owner, got %q", got)
	}
}
