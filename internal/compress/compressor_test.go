package compress

import (
	"testing"

	"github.com/alterspective-engine/hotfolder-engine/internal/pdfanalysis"
)

func TestSelectProfileExplicit(t *testing.T) {
	p := SelectProfile("email", pdfanalysis.Info{})
	if p.Name != Profiles["email"].Name {
		t.Fatalf("got %q, want email profile", p.Name)
	}
}

func TestSelectProfileUnknownFallsBackToAuto(t *testing.T) {
	p := SelectProfile("not-a-real-profile", pdfanalysis.Info{HasForms: true})
	if p.Name != Profiles["rechnung"].Name {
		t.Fatalf("got %q, want rechnung via auto-selection", p.Name)
	}
}

func TestSelectProfileAutoScanned(t *testing.T) {
	p := SelectProfile("auto", pdfanalysis.Info{IsScanned: true, HasForms: true})
	if p.Name != Profiles["scan"].Name {
		t.Fatalf("scanned documents must select the scan profile regardless of forms, got %q", p.Name)
	}
}

func TestSelectProfileAutoLargeFile(t *testing.T) {
	p := SelectProfile("", pdfanalysis.Info{FileSizeMB: 15, HasForms: true})
	if p.Name != Profiles["email"].Name {
		t.Fatalf("large files must select email regardless of forms, got %q", p.Name)
	}
}

func TestSelectProfileAutoForms(t *testing.T) {
	p := SelectProfile("", pdfanalysis.Info{HasForms: true})
	if p.Name != Profiles["rechnung"].Name {
		t.Fatalf("got %q", p.Name)
	}
}

func TestSelectProfileAutoDefault(t *testing.T) {
	p := SelectProfile("", pdfanalysis.Info{})
	if p.Name != Profiles["archiv"].Name {
		t.Fatalf("got %q, want archiv as the default", p.Name)
	}
}

func TestBuildArgsSkipsDownsampleWhenSourceDPIIsLow(t *testing.T) {
	p := Profiles["archiv"]
	args := buildArgs("/tmp/out.pdf", p, pdfanalysis.Info{AvgDPI: 100})

	found := false
	for _, a := range args {
		if a == "-dDownsampleColorImages=true" {
			found = true
		}
	}
	if found {
		t.Fatal("expected no downsampling when source DPI is already below target")
	}
}

func TestBuildArgsEnablesDownsampleWhenSourceDPIIsHigh(t *testing.T) {
	p := Profiles["archiv"]
	args := buildArgs("/tmp/out.pdf", p, pdfanalysis.Info{AvgDPI: 600})

	found := false
	for _, a := range args {
		if a == "-dDownsampleColorImages=true" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected downsampling when source DPI exceeds target")
	}
}

func TestApplyOverridesSubstitutesMatchingKeys(t *testing.T) {
	p := ApplyOverrides(Profiles["archiv"], map[string]string{
		"color_dpi":    "240",
		"jpeg_quality": "90",
	})

	if p.ColorDPI != 240 {
		t.Fatalf("got ColorDPI %d, want 240", p.ColorDPI)
	}
	if p.JPEGQuality != 90 {
		t.Fatalf("got JPEGQuality %d, want 90", p.JPEGQuality)
	}
	if p.GrayDPI != Profiles["archiv"].GrayDPI {
		t.Fatalf("gray_dpi absent from params must not change, got %d", p.GrayDPI)
	}
}

func TestApplyOverridesIgnoresInvalidValues(t *testing.T) {
	original := Profiles["rechnung"]
	p := ApplyOverrides(original, map[string]string{"mono_dpi": "not-a-number"})

	if p.MonoDPI != original.MonoDPI {
		t.Fatalf("unparseable override must leave profile default in place, got %d", p.MonoDPI)
	}
}

func TestApplyOverridesNoParamsIsNoop(t *testing.T) {
	original := Profiles["scan"]
	p := ApplyOverrides(original, nil)
	if p != original {
		t.Fatalf("nil params must leave the profile unchanged")
	}
}
