package pipeline

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/compress"
	"github.com/alterspective-engine/hotfolder-engine/internal/config"
	"github.com/alterspective-engine/hotfolder-engine/internal/export"
	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/fields"
	"github.com/alterspective-engine/hotfolder-engine/internal/pdfanalysis"
)

// Stage is one step of a pipeline execution, matching the teacher's
// PipelineStage shape (name + context-aware process) narrowed to a
// single typed Document rather than interface{}.
type Stage interface {
	Name() string
	Process(ctx context.Context, doc *Document) error
}

// OCRProvider is the subset of *ocr.Service the pipeline needs: full
// document text (for the OCR_FullText built-in variable) plus the zone
// extraction the fields package consumes.
type OCRProvider interface {
	fields.ZoneExtractor
	FullText(ctx context.Context, pdfPath, language string) (string, error)
}

// --- VALIDATED ---

type validateStage struct{}

func (validateStage) Name() string { return "validate" }

func (validateStage) Process(ctx context.Context, doc *Document) error {
	if err := pdfanalysis.Validate(doc.PDFPath); err != nil {
		return newError(ValidationFailed, "validate", doc.PDFPath, err, false)
	}
	doc.State = StateValidated
	return nil
}

// --- ANALYSED ---

type analyseStage struct{}

func (analyseStage) Name() string { return "analyse" }

func (analyseStage) Process(ctx context.Context, doc *Document) error {
	doc.Info = pdfanalysis.Analyze(doc.PDFPath)
	doc.State = StateAnalysed
	return nil
}

// --- FIELDS_APPLIED? ---

type fieldsStage struct {
	ocr       OCRProvider
	evaluator *expr.Evaluator
}

func (fieldsStage) Name() string { return "fields" }

func (s fieldsStage) Process(ctx context.Context, doc *Document) error {
	if doc.Info.NeedsOCR {
		text, err := s.ocr.FullText(ctx, doc.PDFPath, "eng")
		if err != nil {
			log.WithFields(log.Fields{"pdf": doc.PDFPath, "error": err}).
				Warn("pipeline: full-document OCR failed, continuing without OCR_FullText")
		} else {
			doc.VarCtx.Set("OCR_FullText", text)
		}
	}

	if len(doc.Config.XMLFieldMappings) == 0 {
		doc.State = StateFieldsApplied
		return nil
	}

	results, sidecar, err := fields.Process(ctx, doc.PDFPath, doc.Config.XMLFieldMappings, doc.Config.OcrZones, s.ocr, s.evaluator, doc.VarCtx, doc.Info.Pages)
	if err != nil {
		return newError(FieldEvaluationFailed, "fields", doc.PDFPath, err, false)
	}

	doc.FieldResults = results
	doc.SidecarXML = sidecar
	doc.State = StateFieldsApplied
	return nil
}

// --- ACTIONS_APPLIED? ---

type actionsStage struct {
	bundledDir string
}

func (actionsStage) Name() string { return "actions" }

func (s actionsStage) Process(ctx context.Context, doc *Document) error {
	for _, action := range doc.Config.Actions {
		switch action {
		case config.ActionCompress:
			params := doc.Config.ActionParams[config.ActionCompress]
			profile := compress.SelectProfile(params["compression_profile"], doc.Info)
			profile = compress.ApplyOverrides(profile, params)

			if err := compress.Compress(ctx, doc.PDFPath, profile, doc.Info, s.bundledDir); err != nil {
				return newError(CompressionFailed, "actions:compress", doc.PDFPath, err, false)
			}
			doc.Info = pdfanalysis.Analyze(doc.PDFPath)
		default:
			log.WithField("action", action).Warn("pipeline: unsupported action kind, skipping")
		}
	}
	doc.State = StateActionsApplied
	return nil
}

// --- EXPORTED ---

type exportStage struct {
	router    *export.Router
	evaluator *expr.Evaluator
}

func (exportStage) Name() string { return "export" }

func (s exportStage) Process(ctx context.Context, doc *Document) error {
	results := s.router.Export(ctx, doc.PDFPath, doc.SidecarXML, doc.Config.ExportConfigs, s.evaluator, doc.VarCtx)
	doc.ExportResults = results

	var failures []export.Result
	for _, r := range results {
		if !r.Success {
			failures = append(failures, r)
		}
	}
	doc.State = StateExported
	if len(failures) > 0 {
		return newError(ExportFailed, "export", doc.PDFPath, exportFailuresError(failures), false)
	}
	return nil
}
