package fields

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/ocr"
)

// fakeZoneExtractor answers ZoneText from a fixed map, so tests never
// touch a real rasterizer or OCR binary.
type fakeZoneExtractor struct {
	byZone map[string]string
}

func (f *fakeZoneExtractor) ZoneText(_ context.Context, _ string, zoneName string, _ int, _ ocr.Rectangle, _ string) (string, error) {
	v, ok := f.byZone[zoneName]
	if !ok {
		return "", fmt.Errorf("no such zone: %s", zoneName)
	}
	return v, nil
}

func TestProcessStaticAndExpressionInOrder(t *testing.T) {
	ctx := &expr.VariableContext{Values: map[string]string{"FileName": "invoice"}}
	evaluator := expr.NewEvaluator(nil)

	mappings := []Mapping{
		{FieldName: "Name", SourceKind: SourceStatic, ValueOrExpression: "Acme Corp"},
		{FieldName: "Title", SourceKind: SourceExpression, ValueOrExpression: "<Name> - <FileName>"},
	}

	results, xmlBytes, err := Process(context.Background(), "/in/invoice.pdf", mappings, nil, &fakeZoneExtractor{}, evaluator, ctx, 0)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].Value != "Acme Corp - invoice" {
		t.Fatalf("expected later mapping to see prior mapping's value, got %q", results[1].Value)
	}
	if !strings.Contains(string(xmlBytes), "<Title>Acme Corp - invoice</Title>") {
		t.Fatalf("sidecar missing resolved Title field: %s", xmlBytes)
	}
	if !strings.Contains(string(xmlBytes), "<Document>") || !strings.Contains(string(xmlBytes), "<Fields>") {
		t.Fatalf("sidecar missing Document/Fields structure: %s", xmlBytes)
	}
}

func TestProcessZoneMappingUsesExtractedZoneText(t *testing.T) {
	ctx := &expr.VariableContext{Values: map[string]string{}}
	evaluator := expr.NewEvaluator(nil)
	fake := &fakeZoneExtractor{byZone: map[string]string{"Total": "123.45"}}

	zones := []Zone{{Name: "Total", Page: 1, Rectangle: ocr.Rectangle{X0: 1, Y0: 1, X1: 2, Y1: 2}}}
	mappings := []Mapping{{FieldName: "Sum", SourceKind: SourceZone, ZoneRef: "Total"}}

	results, _, err := Process(context.Background(), "/in/invoice.pdf", mappings, zones, fake, evaluator, ctx, 1)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if results[0].Value != "123.45" {
		t.Fatalf("got %q", results[0].Value)
	}
	if got, _ := ctx.Get("Total"); got != "123.45" {
		t.Fatalf("expected zone text to be set on the context, got %q", got)
	}
}

func TestProcessExpressionCanReferenceZoneValue(t *testing.T) {
	ctx := &expr.VariableContext{Values: map[string]string{}}
	evaluator := expr.NewEvaluator(nil)
	fake := &fakeZoneExtractor{byZone: map[string]string{"Total": "123.45"}}

	zones := []Zone{{Name: "Total", Page: 1, Rectangle: ocr.Rectangle{X0: 1, Y0: 1, X1: 2, Y1: 2}}}
	mappings := []Mapping{{FieldName: "SumLabel", SourceKind: SourceExpression, ValueOrExpression: "Total: <Total>"}}

	results, _, err := Process(context.Background(), "/in/invoice.pdf", mappings, zones, fake, evaluator, ctx, 1)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if results[0].Value != "Total: 123.45" {
		t.Fatalf("got %q", results[0].Value)
	}
}

func TestProcessUnknownZoneRefFails(t *testing.T) {
	ctx := &expr.VariableContext{Values: map[string]string{}}
	evaluator := expr.NewEvaluator(nil)
	mappings := []Mapping{{FieldName: "Sum", SourceKind: SourceZone, ZoneRef: "NoSuchZone"}}

	if _, _, err := Process(context.Background(), "/in/invoice.pdf", mappings, nil, &fakeZoneExtractor{}, evaluator, ctx, 0); err == nil {
		t.Fatal("expected an error for an unresolvable zone_ref")
	}
}

func TestProcessOutOfRangeZoneYieldsEmptyString(t *testing.T) {
	ctx := &expr.VariableContext{Values: map[string]string{}}
	evaluator := expr.NewEvaluator(nil)
	fake := &fakeZoneExtractor{byZone: map[string]string{}}

	zones := []Zone{{Name: "Total", Page: 5, Rectangle: ocr.Rectangle{X0: 1, Y0: 1, X1: 2, Y1: 2}}}
	mappings := []Mapping{
		{FieldName: "Sum", SourceKind: SourceZone, ZoneRef: "Total"},
		{FieldName: "SumLabel", SourceKind: SourceExpression, ValueOrExpression: "Total: <Total>"},
	}

	results, _, err := Process(context.Background(), "/in/invoice.pdf", mappings, zones, fake, evaluator, ctx, 2)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if results[0].Value != "" {
		t.Fatalf("zone referencing a page beyond the document must resolve to empty string, got %q", results[0].Value)
	}
	if results[1].Value != "Total: " {
		t.Fatalf("expression depending on an out-of-range zone must see empty input, got %q", results[1].Value)
	}
}
