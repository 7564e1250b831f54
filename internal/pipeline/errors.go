package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/alterspective-engine/hotfolder-engine/internal/export"
)

// ErrorKind classifies why a pipeline execution failed. These are
// conditions, not Go type names, so callers branch on Kind rather
// than string-matching a message.
type ErrorKind string

const (
	ValidationFailed      ErrorKind = "VALIDATION_FAILED"
	DependencyMissing     ErrorKind = "DEPENDENCY_MISSING"
	AnalysisFailed        ErrorKind = "ANALYSIS_FAILED"
	FieldEvaluationFailed ErrorKind = "FIELD_EVALUATION_FAILED"
	OCRFailed             ErrorKind = "OCR_FAILED"
	CompressionFailed     ErrorKind = "COMPRESSION_FAILED"
	ExportFailed          ErrorKind = "EXPORT_FAILED"
	UnpairedInput         ErrorKind = "UNPAIRED_INPUT"
	DuplicateInputPath    ErrorKind = "DUPLICATE_INPUT_PATH"
	Unlicensed            ErrorKind = "UNLICENSED"
	Cancelled             ErrorKind = "CANCELLED"
	ConfigInvalid         ErrorKind = "CONFIG_INVALID"
)

// Error wraps a stage failure with the classification callers need to
// decide how to react, without inspecting message text.
type Error struct {
	Kind        ErrorKind
	Stage       string
	Document    string
	Err         error
	Recoverable bool
	Timestamp   time.Time
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline: [%s] stage %s, document %s: %v", e.Kind, e.Stage, e.Document, e.Err)
}

// Unwrap lets callers errors.Is/errors.As through to the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// newError builds an Error stamped with the current time.
func newError(kind ErrorKind, stage, document string, cause error, recoverable bool) *Error {
	return &Error{
		Kind:        kind,
		Stage:       stage,
		Document:    document,
		Err:         cause,
		Recoverable: recoverable,
		Timestamp:   time.Now(),
	}
}

// exportFailuresError collapses the per-target export results the router
// did not abort on into a single error, so the export stage still has one
// cause to attach to its pipeline Error.
func exportFailuresError(failures []export.Result) error {
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return fmt.Errorf("%d export target(s) failed: %s", len(failures), strings.Join(msgs, "; "))
}
