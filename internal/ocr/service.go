// Package ocr extracts text from PDFs that lack a native text layer,
// either the whole document or a single rectangular zone, via an
// external Tesseract binding.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/alterspective-engine/hotfolder-engine/internal/subproc"
)

// Rectangle is a zone's bounding box in PDF points (72 per inch), origin
// at the page's bottom-left corner, matching OcrZone.rectangle.
type Rectangle struct {
	X0, Y0, X1, Y1 float64
}

// rasterDPI is the resolution pdftoppm renders pages at before Tesseract
// reads them.
const rasterDPI = 300

// rasterDeadline bounds how long the external pdftoppm rasterizer may run
// for a single page.
const rasterDeadline = 60 * time.Second

type zoneKey struct {
	pdf  string
	zone string
}

// Service caches OCR output for the lifetime of a single pipeline
// execution. A fresh Service must be constructed per document so that
// caches from one document never leak into another's context.
type Service struct {
	mu         sync.Mutex
	fullText   map[string]string
	zoneText   map[zoneKey]string
	bundledDir string
}

// NewService returns an empty, execution-scoped OCR service. bundledDir,
// if non-empty, is searched before PATH when locating pdftoppm.
func NewService(bundledDir string) *Service {
	return &Service{
		fullText:   make(map[string]string),
		zoneText:   make(map[zoneKey]string),
		bundledDir: bundledDir,
	}
}

// FullText returns the OCR'd text of the document's first page,
// rasterizing and recognizing it the first time it's requested for
// pdfPath; later pages are not rasterized or recognized.
func (s *Service) FullText(ctx context.Context, pdfPath, language string) (string, error) {
	s.mu.Lock()
	if cached, ok := s.fullText[pdfPath]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	img, err := s.rasterizePage(ctx, pdfPath, 1)
	if err != nil {
		return "", fmt.Errorf("ocr: rasterize %s: %w", pdfPath, err)
	}

	text, err := recognize(img, language)
	if err != nil {
		return "", fmt.Errorf("ocr: recognize %s: %w", pdfPath, err)
	}

	s.mu.Lock()
	s.fullText[pdfPath] = text
	s.mu.Unlock()
	return text, nil
}

// ZoneText returns the OCR'd text of a single rectangular zone on one
// page, cached by (pdf, zoneName).
func (s *Service) ZoneText(ctx context.Context, pdfPath, zoneName string, page int, rect Rectangle, language string) (string, error) {
	key := zoneKey{pdf: pdfPath, zone: zoneName}

	s.mu.Lock()
	if cached, ok := s.zoneText[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.mu.Unlock()

	img, err := s.rasterizePage(ctx, pdfPath, page)
	if err != nil {
		return "", fmt.Errorf("ocr: rasterize %s page %d: %w", pdfPath, page, err)
	}

	cropped, err := cropZone(img, rect)
	if err != nil {
		return "", fmt.Errorf("ocr: crop zone %s: %w", zoneName, err)
	}

	text, err := recognize(cropped, language)
	if err != nil {
		return "", fmt.Errorf("ocr: recognize zone %s: %w", zoneName, err)
	}

	s.mu.Lock()
	s.zoneText[key] = text
	s.mu.Unlock()
	return text, nil
}

// rasterizePage renders one page of pdfPath to a PNG via pdftoppm and
// decodes it. Missing tooling surfaces as an error. It runs only when a
// caller asks for text: the pipeline asks for full text for every
// document analysed as needing OCR (a failure there is logged, not
// fatal), and for zone text for each configured zone when the hotfolder
// has field mappings.
func (s *Service) rasterizePage(ctx context.Context, pdfPath string, page int) (image.Image, error) {
	tool, err := subproc.Resolve("pdftoppm", s.bundledDir)
	if err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp("", "ocr-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create raster temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outPrefix := filepath.Join(outDir, "page")
	args := []string{
		"-png",
		"-r", fmt.Sprintf("%d", rasterDPI),
		"-f", fmt.Sprintf("%d", page),
		"-l", fmt.Sprintf("%d", page),
		"-singlefile",
		pdfPath,
		outPrefix,
	}
	if _, err := subproc.Run(ctx, rasterDeadline, tool, args...); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(outPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rasterized page: %w", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode rasterized page: %w", err)
	}
	return img, nil
}

// cropZone converts rect from PDF points to the rasterized image's pixel
// space (rasterDPI pixels per 72-point inch) and crops it. PDF rectangles
// are anchored bottom-left; images are anchored top-left, so the Y axis
// is flipped against the image height.
func cropZone(img image.Image, rect Rectangle) (image.Image, error) {
	scale := float64(rasterDPI) / 72.0
	bounds := img.Bounds()
	imgHeight := bounds.Dy()

	x0 := int(rect.X0 * scale)
	x1 := int(rect.X1 * scale)
	y0 := imgHeight - int(rect.Y1*scale)
	y1 := imgHeight - int(rect.Y0*scale)

	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > bounds.Max.X {
		x1 = bounds.Max.X
	}
	if y1 > bounds.Max.Y {
		y1 = bounds.Max.Y
	}
	if x1 <= x0 || y1 <= y0 {
		return nil, fmt.Errorf("zone rectangle %+v is empty after clipping to page bounds", rect)
	}

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("rasterized image does not support cropping")
	}
	return si.SubImage(image.Rect(x0, y0, x1, y1)), nil
}

func recognize(img image.Image, language string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode cropped image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			return "", fmt.Errorf("set language %q: %w", language, err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("load image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", err
	}
	return text, nil
}
