package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/export"
	"github.com/alterspective-engine/hotfolder-engine/internal/queue"
	"github.com/alterspective-engine/hotfolder-engine/internal/storage"
)

// Engine runs one document through the full stage list, owning the
// scratch workspace for the execution's lifetime (acquire on entry,
// unconditionally release on every exit path).
type Engine struct {
	TempBaseDir string
	Storage     storage.Storage
	Evaluator   *expr.Evaluator
	stages      []Stage
}

// NewEngine wires the fixed stage order around the shared evaluator,
// OCR provider and export router. tempBaseDir is the parent directory
// new scratch workspaces are created under.
func NewEngine(tempBaseDir string, evaluator *expr.Evaluator, ocr OCRProvider, router *export.Router, bundledDir string) *Engine {
	return &Engine{
		TempBaseDir: tempBaseDir,
		Storage:     storage.NewLocalStorage(tempBaseDir),
		Evaluator:   evaluator,
		stages: []Stage{
			validateStage{},
			analyseStage{},
			fieldsStage{ocr: ocr, evaluator: evaluator},
			actionsStage{bundledDir: bundledDir},
			exportStage{router: router, evaluator: evaluator},
		},
	}
}

// Run drives job through WORKSPACE_PREPARED..TERMINAL, returning the
// final Document for inspection/logging. It never returns an error
// itself; execution outcome lives in doc.State/doc.Err, since a single
// document's failure must never abort the caller (the worker pool).
func (e *Engine) Run(ctx context.Context, job *queue.DocumentJob, cfg *config.HotfolderConfig) *Document {
	doc := &Document{
		HotfolderID: job.HotfolderID,
		OriginalPDF: job.PDFPath,
		OriginalXML: job.XMLPath,
		Config:      cfg,
		State:       StateReceived,
	}

	varCtx, err := expr.NewVariableContext(job.PDFPath, cfg.InputPath, time.Now())
	if err != nil {
		doc.State = StateFailed
		doc.Err = newError(ConfigInvalid, "workspace", job.PDFPath, err, false)
		return e.finish(ctx, doc, nil)
	}
	doc.VarCtx = varCtx

	workspace, err := e.acquireWorkspace()
	if err != nil {
		doc.State = StateFailed
		doc.Err = newError(DependencyMissing, "workspace", job.PDFPath, err, false)
		return e.finish(ctx, doc, nil)
	}
	doc.WorkspaceDir = workspace

	if err := e.prepareWorkspace(doc); err != nil {
		doc.State = StateFailed
		doc.Err = newError(ValidationFailed, "workspace", job.PDFPath, err, false)
		return e.finish(ctx, doc, nil)
	}

	for _, stage := range e.stages {
		select {
		case <-ctx.Done():
			doc.State = StateFailed
			doc.Err = newError(Cancelled, stage.Name(), doc.PDFPath, ctx.Err(), true)
			return e.finish(ctx, doc, cfg)
		default:
		}

		if err := stage.Process(ctx, doc); err != nil {
			doc.State = StateFailed
			if pe, ok := err.(*Error); ok {
				doc.Err = pe
			} else {
				doc.Err = newError(ValidationFailed, stage.Name(), doc.PDFPath, err, false)
			}
			return e.finish(ctx, doc, cfg)
		}
	}

	doc.State = StateDone
	return e.finish(ctx, doc, cfg)
}

func (e *Engine) acquireWorkspace() (string, error) {
	name := "ws-" + uuid.NewString()
	if err := e.Storage.EnsureDirectory(name); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return e.Storage.GetLocalPath(name), nil
}

// prepareWorkspace moves (not copies) the claimed input files into the
// workspace, matching spec's ownership transfer at WORKSPACE_PREPARED.
func (e *Engine) prepareWorkspace(doc *Document) error {
	pdfDest := filepath.Join(doc.WorkspaceDir, filepath.Base(doc.OriginalPDF))
	if err := moveFile(doc.OriginalPDF, pdfDest); err != nil {
		return fmt.Errorf("move pdf into workspace: %w", err)
	}
	doc.PDFPath = pdfDest

	if doc.OriginalXML != "" {
		xmlDest := filepath.Join(doc.WorkspaceDir, filepath.Base(doc.OriginalXML))
		if err := moveFile(doc.OriginalXML, xmlDest); err != nil {
			return fmt.Errorf("move xml into workspace: %w", err)
		}
		doc.XMLPath = xmlDest
	}

	doc.State = StateWorkspacePrepared
	return nil
}

// finish runs the success/failure side effects (bucketing or letting the
// already-completed export moves stand) then unconditionally releases
// the workspace, mirroring spec's "TERMINAL always destroys it" rule.
func (e *Engine) finish(ctx context.Context, doc *Document, cfg *config.HotfolderConfig) *Document {
	defer e.releaseWorkspace(doc)

	if doc.State != StateFailed {
		return doc
	}

	doc.State = StateBucketed
	if cfg == nil || doc.PDFPath == "" {
		doc.State = StateTerminal
		return doc
	}

	if err := e.bucketFailure(ctx, doc, cfg); err != nil {
		log.WithFields(log.Fields{
			"pdf":   doc.PDFPath,
			"error": err,
		}).Error("pipeline: failed to move document into error bucket, leaving it in the workspace")
	}
	doc.State = StateTerminal
	return doc
}

func (e *Engine) bucketFailure(ctx context.Context, doc *Document, cfg *config.HotfolderConfig) error {
	return e.BucketPaths(cfg, doc.VarCtx, doc.PDFPath, doc.XMLPath)
}

// BucketPaths resolves cfg's error_path_expression against varCtx, creates
// it, and moves every non-empty path into it with collision-safe naming.
// Exported so the supervisor can bucket an input that never reached a
// pipeline execution at all (e.g. UNPAIRED_INPUT).
func (e *Engine) BucketPaths(cfg *config.HotfolderConfig, varCtx *expr.VariableContext, paths ...string) error {
	errorPath, err := e.Evaluator.Evaluate(cfg.ErrorPathExpression, varCtx)
	if err != nil {
		return fmt.Errorf("evaluate error_path_expression: %w", err)
	}
	if err := os.MkdirAll(errorPath, 0o755); err != nil {
		return fmt.Errorf("create error path: %w", err)
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := moveFile(p, collisionSafeDest(errorPath, filepath.Base(p))); err != nil {
			return fmt.Errorf("bucket %s: %w", p, err)
		}
	}
	return nil
}

func (e *Engine) releaseWorkspace(doc *Document) {
	if doc.WorkspaceDir == "" {
		return
	}
	// storage.Cleanup only removes paths under os.TempDir(); a workspace
	// configured outside it still must be destroyed unconditionally.
	if err := os.RemoveAll(doc.WorkspaceDir); err != nil {
		log.WithFields(log.Fields{
			"workspace": doc.WorkspaceDir,
			"error":     err,
		}).Error("pipeline: failed to remove scratch workspace")
	}
}

// collisionSafeDest inserts a _YYYYMMDD_HHMMSS suffix before the
// extension when name already exists under dir.
func collisionSafeDest(dir, name string) string {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err != nil {
		return dest
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	suffixed := fmt.Sprintf("%s_%s%s", base, time.Now().Format("20060102_150405"), ext)
	return filepath.Join(dir, suffixed)
}

func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return err
	}
	return os.Remove(src)
}
