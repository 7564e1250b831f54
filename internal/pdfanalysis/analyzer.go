// Package pdfanalysis validates PDF inputs and derives the structural
// signals the rest of the pipeline needs (page count, text density, image
// resolution, form widgets) without interpreting the PDF semantically.
package pdfanalysis

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ledongthuc/pdf"
)

var errNoPages = errors.New("pdfanalysis: document has no pages")

// maxAnalysisPages bounds how many leading pages the analyzer inspects;
// matches the source processor's "first 5 pages" sampling.
const maxAnalysisPages = 5

// textDensityThreshold is the character count above which a document is
// considered to carry a native text layer rather than being a scan.
const textDensityThreshold = 100

// Info is the result of analyzing one PDF.
type Info struct {
	Pages       int
	HasText     bool
	HasImages   bool
	HasForms    bool
	IsScanned   bool
	NeedsOCR    bool
	AvgDPI      int
	FileSizeMB  float64
}

// emptyInfo returns a zeroed Info, logged as the result when analysis
// fails partway through — the pipeline treats this as non-fatal.
func emptyInfo() Info {
	return Info{}
}

// Validate opens pdfPath and attempts to read its first page. An error
// return means the file is corrupt or unreadable and should fail
// validation; the pipeline never attempts to repair a PDF.
func Validate(pdfPath string) error {
	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if r.NumPage() == 0 {
		return errNoPages
	}

	page := r.Page(1)
	if page.V.IsNull() {
		return errNoPages
	}
	if _, err := page.GetPlainText(nil); err != nil {
		return err
	}
	return nil
}

// Analyze inspects the first maxAnalysisPages pages of pdfPath and
// returns the structural signals used for field resolution and
// compression-profile selection. Any failure is logged and answered with
// an all-false Info rather than propagated, matching the source
// processor's "analysis never blocks the pipeline" behaviour.
func Analyze(pdfPath string) Info {
	fi, statErr := os.Stat(pdfPath)

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		log.WithFields(log.Fields{"path": pdfPath, "error": err}).Warn("pdfanalysis: failed to open PDF, returning empty analysis")
		return emptyInfo()
	}
	defer f.Close()

	info := Info{Pages: r.NumPage()}
	if statErr == nil {
		info.FileSizeMB = float64(fi.Size()) / (1024 * 1024)
	}

	pagesToRead := info.Pages
	if pagesToRead > maxAnalysisPages {
		pagesToRead = maxAnalysisPages
	}

	textChars := 0
	for i := 1; i <= pagesToRead; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.WithFields(log.Fields{"path": pdfPath, "page": i, "error": err}).Debug("pdfanalysis: failed to extract page text")
			continue
		}
		textChars += len(strings.TrimSpace(text))
	}
	info.HasText = textChars > textDensityThreshold

	raw, err := os.ReadFile(pdfPath)
	if err != nil {
		log.WithFields(log.Fields{"path": pdfPath, "error": err}).Warn("pdfanalysis: failed to read raw bytes for structural scan")
		return info
	}
	info.HasImages, info.AvgDPI = scanImages(raw)
	info.HasForms = scanForms(raw)

	info.IsScanned = info.HasImages && !info.HasText
	info.NeedsOCR = info.IsScanned

	return info
}

// ledongthuc/pdf's Page type exposes text extraction but not a resource
// graph, so image and form-widget detection runs a raw byte scan over the
// PDF's object dictionaries instead of walking a parsed object tree. The
// scan is structural only; it does not interpret page content.
var (
	imageObjectRE = regexp.MustCompile(`/Subtype\s*/Image[^>]{0,400}`)
	widthRE       = regexp.MustCompile(`/Width\s+(\d+(?:\.\d+)?)`)
	heightRE      = regexp.MustCompile(`/Height\s+(\d+(?:\.\d+)?)`)
	mediaBoxRE    = regexp.MustCompile(`/MediaBox\s*\[\s*0(?:\.0)?\s+0(?:\.0)?\s+(\d+(?:\.\d+)?)\s+(\d+(?:\.\d+)?)\s*\]`)
	widgetRE      = regexp.MustCompile(`/Subtype\s*/Widget`)
)

func scanImages(raw []byte) (bool, int) {
	matches := imageObjectRE.FindAll(raw, -1)
	if len(matches) == 0 {
		return false, 0
	}

	pageWidth, pageHeight := 612.0, 792.0 // US Letter default, points
	if mb := mediaBoxRE.FindSubmatch(raw); mb != nil {
		if w, err := strconv.ParseFloat(string(mb[1]), 64); err == nil && w > 0 {
			pageWidth = w
		}
		if h, err := strconv.ParseFloat(string(mb[2]), 64); err == nil && h > 0 {
			pageHeight = h
		}
	}

	var totalDPI float64
	var count int
	for _, m := range matches {
		wm := widthRE.FindSubmatch(m)
		hm := heightRE.FindSubmatch(m)
		if wm == nil || hm == nil {
			continue
		}
		wPx, err1 := strconv.ParseFloat(string(wm[1]), 64)
		hPx, err2 := strconv.ParseFloat(string(hm[1]), 64)
		if err1 != nil || err2 != nil || wPx <= 0 || hPx <= 0 {
			continue
		}
		dpiX := wPx / (pageWidth / 72.0)
		dpiY := hPx / (pageHeight / 72.0)
		totalDPI += (dpiX + dpiY) / 2
		count++
	}

	if count == 0 {
		return true, 0
	}
	return true, int(totalDPI / float64(count))
}

func scanForms(raw []byte) bool {
	return widgetRE.Match(raw)
}
