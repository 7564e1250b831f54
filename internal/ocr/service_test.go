package ocr

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func TestCropZoneFlipsYAxis(t *testing.T) {
	// A letter page at 300 DPI is 2550x3300 px. A zone near the top of the
	// PDF page (high Y in point-space) should land near the top of the
	// image (low Y in pixel-space).
	img := solidImage(2550, 3300)

	cropped, err := cropZone(img, Rectangle{X0: 400, Y0: 700, X1: 560, Y1: 740})
	if err != nil {
		t.Fatalf("cropZone: %v", err)
	}

	b := cropped.Bounds()
	scale := 300.0 / 72.0
	wantMinY := 3300 - int(740*scale)
	wantMaxY := 3300 - int(700*scale)
	if b.Min.Y != wantMinY || b.Max.Y != wantMaxY {
		t.Fatalf("got Y bounds [%d,%d), want [%d,%d)", b.Min.Y, b.Max.Y, wantMinY, wantMaxY)
	}
}

func TestCropZoneRejectsEmptyRectangle(t *testing.T) {
	img := solidImage(100, 100)
	if _, err := cropZone(img, Rectangle{X0: 50, Y0: 50, X1: 50, Y1: 50}); err == nil {
		t.Fatal("expected an error for a zero-area rectangle")
	}
}

func TestCropZoneClipsToPageBounds(t *testing.T) {
	img := solidImage(100, 100)
	cropped, err := cropZone(img, Rectangle{X0: -10, Y0: -10, X1: 1000, Y1: 1000})
	if err != nil {
		t.Fatalf("cropZone: %v", err)
	}
	b := cropped.Bounds()
	if b.Min.X < 0 || b.Min.Y < 0 || b.Max.X > 100 || b.Max.Y > 100 {
		t.Fatalf("crop bounds %+v exceed page bounds", b)
	}
}

func TestServiceCachesFullTextPerPath(t *testing.T) {
	s := NewService("")
	s.fullText["/doc/a.pdf"] = "cached text"

	got, err := s.FullText(nil, "/doc/a.pdf", "eng")
	if err != nil {
		t.Fatalf("FullText: %v", err)
	}
	if got != "cached text" {
		t.Fatalf("got %q, expected cache hit to short-circuit rasterization", got)
	}
}

func TestServiceCachesZoneTextByNameNotRectangle(t *testing.T) {
	s := NewService("")
	s.zoneText[zoneKey{pdf: "/doc/a.pdf", zone: "Total"}] = "123.45"

	got, err := s.ZoneText(nil, "/doc/a.pdf", "Total", 1, Rectangle{X0: 1, Y0: 1, X1: 2, Y1: 2}, "eng")
	if err != nil {
		t.Fatalf("ZoneText: %v", err)
	}
	if got != "123.45" {
		t.Fatalf("got %q, expected cache hit", got)
	}
}
