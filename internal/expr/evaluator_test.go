package expr

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alterspective-engine/hotfolder-engine/internal/counter"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	dir := t.TempDir()
	store, err := counter.NewStore(filepath.Join(dir, "counters.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return NewEvaluator(store)
}

func TestEvaluateBareVariable(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{"FileName": "invoice"}}

	got, err := e.Evaluate("<FileName>.pdf", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "invoice.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestEvaluateUnknownVariableIsEmpty(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{}}

	got, err := e.Evaluate("<NoSuchVar>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty string for unknown variable, got %q", got)
	}
}

func TestEvaluateNestedFunctionCalls(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{
		"Status":   "1",
		"FileName": "invoice",
	}}

	got, err := e.Evaluate("<IF(<Status>,<UPPER(<FileName>)>,ERR)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "INVOICE" {
		t.Fatalf("got %q", got)
	}
}

func TestEvaluateIfFalseBranch(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{"Status": "false"}}

	got, err := e.Evaluate("<IF(<Status>,yes,no)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "no" {
		t.Fatalf("got %q", got)
	}
}

func TestEvaluateCounterIsSideEffecting(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{}}

	first, err := e.Evaluate("<FileName>_<COUNTER(invoice,1,1)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := e.Evaluate("<FileName>_<COUNTER(invoice,1,1)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if first == second {
		t.Fatalf("expected COUNTER to advance between calls, got %q twice", first)
	}
}

func TestEvaluateUnknownFunctionFails(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{}}

	if _, err := e.Evaluate("<NOPE(1,2)>", ctx); err == nil {
		t.Fatal("expected an error for an unknown function")
	}
}

func TestEvaluateSubstrAndReplace(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{"FileName": "invoice-2024"}}

	got, err := e.Evaluate("<REPLACE(<SUBSTR(<FileName>,0,7)>,invoice,Invoice)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "Invoice" {
		t.Fatalf("got %q", got)
	}
}

func TestEvaluateIsDeterministicWithoutCounter(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{"FileName": "invoice"}}

	a, err := e.Evaluate("<UPPER(<FileName>)>-<LOWER(<FileName>)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	b, err := e.Evaluate("<UPPER(<FileName>)>-<LOWER(<FileName>)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic result, got %q then %q", a, b)
	}
}

func TestNewVariableContextReconstructsLevels(t *testing.T) {
	inputPath := filepath.FromSlash("/data/hotfolder-a")
	pdfPath := filepath.Join(inputPath, "clients", "acme", "invoice.pdf")

	ctx, err := NewVariableContext(pdfPath, inputPath, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewVariableContext: %v", err)
	}

	if ctx.Values["level0"] != "clients" {
		t.Fatalf("level0 = %q", ctx.Values["level0"])
	}
	if ctx.Values["level1"] != "acme" {
		t.Fatalf("level1 = %q", ctx.Values["level1"])
	}
	if ctx.Values["level2"] != "" {
		t.Fatalf("level2 = %q, expected empty", ctx.Values["level2"])
	}

	rel := filepath.Join(ctx.Values["level0"], ctx.Values["level1"], "invoice.pdf")
	wantRel, err := filepath.Rel(inputPath, pdfPath)
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != wantRel {
		t.Fatalf("reconstructed path %q != relative path %q", rel, wantRel)
	}
}

func TestNewVariableContextFileNameFields(t *testing.T) {
	ctx, err := NewVariableContext("/data/in/invoice.pdf", "/data/in", time.Now())
	if err != nil {
		t.Fatalf("NewVariableContext: %v", err)
	}
	if ctx.Values["FileName"] != "invoice" {
		t.Fatalf("FileName = %q", ctx.Values["FileName"])
	}
	if ctx.Values["FileExtension"] != "pdf" {
		t.Fatalf("FileExtension = %q", ctx.Values["FileExtension"])
	}
	if ctx.Values["FullFileName"] != "invoice.pdf" {
		t.Fatalf("FullFileName = %q", ctx.Values["FullFileName"])
	}
}

func TestFormatDate(t *testing.T) {
	e := newTestEvaluator(t)
	ctx := &VariableContext{Values: map[string]string{"DateISO": "2026-03-05"}}

	got, err := e.Evaluate("<FORMAT_DATE(<DateISO>,DD.MM.YYYY)>", ctx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != "05.03.2026" {
		t.Fatalf("got %q", got)
	}
}
