package pipeline

import (
	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/export"
	"github.com/alterspective-engine/hotfolder-engine/internal/fields"
	"github.com/alterspective-engine/hotfolder-engine/internal/pdfanalysis"
)

// State is a pipeline execution's position in the
// RECEIVED → WORKSPACE_PREPARED → VALIDATED → ANALYSED →
// FIELDS_APPLIED? → ACTIONS_APPLIED? → EXPORTED → DONE state machine,
// with any stage able to transition to FAILED → BUCKETED → TERMINAL.
type State string

const (
	StateReceived          State = "RECEIVED"
	StateWorkspacePrepared State = "WORKSPACE_PREPARED"
	StateValidated         State = "VALIDATED"
	StateAnalysed          State = "ANALYSED"
	StateFieldsApplied     State = "FIELDS_APPLIED"
	StateActionsApplied    State = "ACTIONS_APPLIED"
	StateExported          State = "EXPORTED"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
	StateBucketed          State = "BUCKETED"
	StateTerminal          State = "TERMINAL"
)

// Document is one pipeline execution's accumulated state as it moves
// through the stage list. A fresh Document is created per (PDF, XML)
// pair claimed from the work queue.
type Document struct {
	HotfolderID  string
	OriginalPDF  string
	OriginalXML  string
	PDFPath      string
	XMLPath      string
	WorkspaceDir string

	Config *config.HotfolderConfig
	VarCtx *expr.VariableContext

	Info          pdfanalysis.Info
	FieldResults  []fields.Result
	SidecarXML    []byte
	ExportResults []export.Result

	State State
	Err   *Error
}
