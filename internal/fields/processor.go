// Package fields resolves a hotfolder's configured field mappings against
// a document's PDF, OCR zones and expression context, and synthesizes the
// XML sidecar carrying the resolved values.
package fields

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/ocr"
)

// ZoneExtractor is the subset of *ocr.Service the field processor needs;
// accepting the interface rather than the concrete type lets tests swap
// in a fake that never touches an external OCR binary.
type ZoneExtractor interface {
	ZoneText(ctx context.Context, pdfPath, zoneName string, page int, rect ocr.Rectangle, language string) (string, error)
}

// SourceKind selects how a Mapping's value is produced.
type SourceKind string

const (
	SourceStatic     SourceKind = "static"
	SourceZone       SourceKind = "zone"
	SourceExpression SourceKind = "expression"
)

// Mapping is one configured field resolution rule.
type Mapping struct {
	FieldName          string
	SourceKind         SourceKind
	ValueOrExpression  string
	ZoneRef            string
}

// Zone is one configured OCR capture region.
type Zone struct {
	Name      string
	Page      int
	Rectangle ocr.Rectangle
	Language  string
}

// Result is one mapping's resolved field name and value.
type Result struct {
	FieldName string
	Value     string
}

// Process resolves every mapping in order and returns both the resolved
// results and an XML sidecar document rooted at
// /root/Document/Fields/<FieldName>value</FieldName>.
//
// Zones are extracted first (so expressions can reference a zone's text
// by name), then mappings are evaluated in config order with each
// mapping's resolved value folded into ctx before the next is evaluated.
//
// A zone whose configured page falls outside the document (pageCount,
// when known and positive) yields an empty string and a logged warning
// rather than aborting the whole evaluation: dependent expressions then
// see empty input, matching the documented boundary behaviour for a
// page number beyond the document.
func Process(ctx context.Context, pdfPath string, mappings []Mapping, zones []Zone, ocrSvc ZoneExtractor, evaluator *expr.Evaluator, varCtx *expr.VariableContext, pageCount int) ([]Result, []byte, error) {
	zoneByName := make(map[string]Zone, len(zones))
	for _, z := range zones {
		zoneByName[z.Name] = z
	}

	for _, z := range zones {
		if pageCount > 0 && (z.Page < 1 || z.Page > pageCount) {
			log.WithFields(log.Fields{
				"zone": z.Name,
				"page": z.Page,
				"pages": pageCount,
			}).Warn("fields: zone references a page beyond the document, yielding empty string")
			varCtx.Set(z.Name, "")
			continue
		}

		text, err := ocrSvc.ZoneText(ctx, pdfPath, z.Name, z.Page, z.Rectangle, z.Language)
		if err != nil {
			return nil, nil, fmt.Errorf("fields: zone %q: %w", z.Name, err)
		}
		varCtx.Set(z.Name, text)
	}

	results := make([]Result, 0, len(mappings))
	for _, m := range mappings {
		var value string
		var err error

		switch m.SourceKind {
		case SourceStatic:
			value = m.ValueOrExpression
		case SourceZone:
			z, ok := zoneByName[m.ZoneRef]
			if !ok {
				return nil, nil, fmt.Errorf("fields: mapping %q references unknown zone %q", m.FieldName, m.ZoneRef)
			}
			// The zone-extraction loop above already resolved (or
			// blanked, for an out-of-range page) z's text once; reuse
			// it instead of invoking the OCR extractor a second time.
			value, _ = varCtx.Get(z.Name)
		case SourceExpression:
			value, err = evaluator.Evaluate(m.ValueOrExpression, varCtx)
		default:
			return nil, nil, fmt.Errorf("fields: mapping %q has unknown source_kind %q", m.FieldName, m.SourceKind)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("fields: resolving %q: %w", m.FieldName, err)
		}

		varCtx.Set(m.FieldName, value)
		results = append(results, Result{FieldName: m.FieldName, Value: value})
	}

	xmlBytes, err := buildSidecar(results)
	if err != nil {
		return nil, nil, err
	}
	return results, xmlBytes, nil
}

// LoadOrEmpty reports whether xmlPath already holds a document; it stats
// the path and does not read its contents. The answer tells whether the
// field processor is synthesizing a sidecar from scratch or
// regenerating one.
func LoadOrEmpty(xmlPath string) (exists bool, err error) {
	if xmlPath == "" {
		return false, nil
	}
	_, err = os.Stat(xmlPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func buildSidecar(results []Result) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "Document"}}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	fieldsEl := xml.StartElement{Name: xml.Name{Local: "Fields"}}
	if err := enc.EncodeToken(fieldsEl); err != nil {
		return nil, err
	}

	for _, r := range results {
		name := xml.Name{Local: r.FieldName}
		if err := enc.EncodeToken(xml.StartElement{Name: name}); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(xml.CharData([]byte(r.Value))); err != nil {
			return nil, err
		}
		if err := enc.EncodeToken(xml.EndElement{Name: name}); err != nil {
			return nil, err
		}
	}

	if err := enc.EncodeToken(xml.EndElement{Name: fieldsEl.Name}); err != nil {
		return nil, err
	}
	if err := enc.EncodeToken(xml.EndElement{Name: root.Name}); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
