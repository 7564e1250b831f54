package pdfanalysis

import "testing"

func TestScanImagesNoMatches(t *testing.T) {
	has, dpi := scanImages([]byte("%PDF-1.4\n<< /Type /Catalog >>"))
	if has {
		t.Fatal("expected no images detected")
	}
	if dpi != 0 {
		t.Fatalf("expected 0 dpi, got %d", dpi)
	}
}

func TestScanImagesEstimatesDPI(t *testing.T) {
	raw := []byte(`/MediaBox [0 0 612 792]
<< /Type /XObject /Subtype /Image /Width 2550 /Height 3300 /BitsPerComponent 8 >>`)

	has, dpi := scanImages(raw)
	if !has {
		t.Fatal("expected images detected")
	}
	if dpi != 300 {
		t.Fatalf("expected ~300 dpi for a letter-size 2550x3300 image, got %d", dpi)
	}
}

func TestScanFormsDetectsWidget(t *testing.T) {
	if !scanForms([]byte("<< /Type /Annot /Subtype /Widget /FT /Tx >>")) {
		t.Fatal("expected a widget annotation to be detected")
	}
	if scanForms([]byte("<< /Type /Annot /Subtype /Link >>")) {
		t.Fatal("did not expect a link annotation to be detected as a form")
	}
}

func TestAnalyzeMissingFileReturnsEmptyInfo(t *testing.T) {
	info := Analyze("/nonexistent/path/does-not-exist.pdf")
	if info.HasText || info.HasImages || info.HasForms || info.IsScanned || info.NeedsOCR {
		t.Fatalf("expected an all-false Info for an unreadable file, got %+v", info)
	}
}

func TestValidateMissingFileFails(t *testing.T) {
	if err := Validate("/nonexistent/path/does-not-exist.pdf"); err == nil {
		t.Fatal("expected an error validating a nonexistent file")
	}
}
