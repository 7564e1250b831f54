// Package export writes a processed document to each of its hotfolder's
// configured export targets, building paths from the expression
// evaluator and never aborting the batch on a single target's failure.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/expr"
	"github.com/alterspective-engine/hotfolder-engine/internal/storage"
	"github.com/alterspective-engine/hotfolder-engine/internal/subproc"
)

// Kind identifies an export target type.
type Kind string

const (
	KindPDFFile        Kind = "pdf_file"
	KindSearchablePDFA Kind = "searchable_pdf_a"
	KindXMLFile        Kind = "xml_file"
	KindDatabaseRow    Kind = "database_row"
)

// Config is one configured export target.
type Config struct {
	Kind                 Kind
	OutputPathExpression string
	FilenameExpression   string
	DBParams             map[string]string

	// Remote, when true, sends pdf_file/xml_file/searchable_pdf_a
	// output through the Router's RemoteStorage backend (e.g. an Azure
	// Blob container) instead of writing to the local filesystem.
	Remote bool
}

// Result reports the outcome of writing one Config.
type Result struct {
	Kind    Kind
	Success bool
	Message string
}

// DatabaseDriver is the external collaborator database_row targets
// delegate to; the router does not implement database access itself.
type DatabaseDriver interface {
	InsertRow(ctx context.Context, params map[string]string, values map[string]string) error
}

// ocrDeadline bounds a single searchable-PDF-A conversion.
const ocrDeadline = 180 * time.Second

// Router writes exports for one document. bundledDir is searched before
// PATH when locating ocrmypdf for searchable_pdf_a targets. RemoteStorage
// backs any Config with Remote set; it may be nil if no hotfolder
// configured for this run uses a remote export target.
type Router struct {
	DBDriver      DatabaseDriver
	BundledDir    string
	RemoteStorage storage.Storage
}

// NewRouter returns a Router. driver may be nil if no hotfolder configured
// for this run uses a database_row target. remoteStorage may be nil if
// none uses a remote (Config.Remote) target.
func NewRouter(driver DatabaseDriver, bundledDir string, remoteStorage storage.Storage) *Router {
	return &Router{DBDriver: driver, BundledDir: bundledDir, RemoteStorage: remoteStorage}
}

// Export writes pdfPath and xmlBytes to every configured target, in
// order, and returns one Result per Config. A failing target is logged
// and recorded, but never stops the remaining targets from running.
func (r *Router) Export(ctx context.Context, pdfPath string, xmlBytes []byte, configs []Config, evaluator *expr.Evaluator, varCtx *expr.VariableContext) []Result {
	results := make([]Result, 0, len(configs))

	for _, cfg := range configs {
		res := r.exportOne(ctx, pdfPath, xmlBytes, cfg, evaluator, varCtx)
		if !res.Success {
			log.WithFields(log.Fields{
				"kind":    cfg.Kind,
				"message": res.Message,
			}).Error("export: target failed")
		}
		results = append(results, res)
	}
	return results
}

func (r *Router) exportOne(ctx context.Context, pdfPath string, xmlBytes []byte, cfg Config, evaluator *expr.Evaluator, varCtx *expr.VariableContext) Result {
	dir, err := evaluator.Evaluate(cfg.OutputPathExpression, varCtx)
	if err != nil {
		return Result{Kind: cfg.Kind, Success: false, Message: fmt.Sprintf("output path expression: %v", err)}
	}
	name, err := evaluator.Evaluate(cfg.FilenameExpression, varCtx)
	if err != nil {
		return Result{Kind: cfg.Kind, Success: false, Message: fmt.Sprintf("filename expression: %v", err)}
	}

	switch cfg.Kind {
	case KindPDFFile:
		return r.writeFile(dir, name+".pdf", pdfPath, cfg.Kind, cfg.Remote)
	case KindXMLFile:
		return r.writeBytes(dir, name+".xml", xmlBytes, cfg.Kind, cfg.Remote)
	case KindSearchablePDFA:
		return r.writeSearchablePDFA(ctx, dir, name+".pdf", pdfPath, cfg.Kind, cfg.Remote)
	case KindDatabaseRow:
		return r.writeDatabaseRow(ctx, cfg, varCtx)
	default:
		return Result{Kind: cfg.Kind, Success: false, Message: fmt.Sprintf("unsupported export kind %q", cfg.Kind)}
	}
}

func (r *Router) writeFile(dir, filename, sourcePath string, kind Kind, remote bool) Result {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return Result{Kind: kind, Success: false, Message: fmt.Sprintf("read source: %v", err)}
	}
	return r.writeBytes(dir, filename, data, kind, remote)
}

func (r *Router) writeBytes(dir, filename string, data []byte, kind Kind, remote bool) Result {
	target := filepath.Join(dir, filename)

	if remote {
		return r.writeRemote(target, data, kind)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Kind: kind, Success: false, Message: fmt.Sprintf("create target directory: %v", err)}
	}
	if err := writeAtomic(target, data); err != nil {
		return Result{Kind: kind, Success: false, Message: err.Error()}
	}
	return Result{Kind: kind, Success: true, Message: target}
}

// writeRemote sends data to the Router's RemoteStorage backend. Unlike
// the local writeAtomic path, the backend's own WriteFile implementation
// governs atomicity (e.g. AzureStorage stages to a local cache file
// before uploading).
func (r *Router) writeRemote(target string, data []byte, kind Kind) Result {
	if r.RemoteStorage == nil {
		return Result{Kind: kind, Success: false, Message: "remote export requested but no remote storage backend configured"}
	}
	if err := r.RemoteStorage.WriteFile(target, data); err != nil {
		return Result{Kind: kind, Success: false, Message: fmt.Sprintf("remote write: %v", err)}
	}
	return Result{Kind: kind, Success: true, Message: target}
}

// writeSearchablePDFA runs OCR text embedding on a copy of pdfPath via
// the external ocrmypdf tool, then places the result at dir/filename,
// locally or via RemoteStorage depending on remote.
func (r *Router) writeSearchablePDFA(ctx context.Context, dir, filename, pdfPath string, kind Kind, remote bool) Result {
	tool, err := subproc.Resolve("ocrmypdf", r.BundledDir)
	if err != nil {
		return Result{Kind: kind, Success: false, Message: err.Error()}
	}

	tempOutput := filepath.Join(os.TempDir(), "ocr-"+filename+".tmp-ocr")
	defer os.Remove(tempOutput)

	args := []string{"--skip-text", "--output-type", "pdfa", pdfPath, tempOutput}
	if out, err := subproc.Run(ctx, ocrDeadline, tool, args...); err != nil {
		return Result{Kind: kind, Success: false, Message: fmt.Sprintf("ocrmypdf failed: %v: %s", err, string(out))}
	}

	data, err := os.ReadFile(tempOutput)
	if err != nil {
		return Result{Kind: kind, Success: false, Message: fmt.Sprintf("read ocrmypdf output: %v", err)}
	}
	return r.writeBytes(dir, filename, data, kind, remote)
}

func (r *Router) writeDatabaseRow(ctx context.Context, cfg Config, varCtx *expr.VariableContext) Result {
	if r.DBDriver == nil {
		return Result{Kind: cfg.Kind, Success: false, Message: "no database driver configured"}
	}
	if err := r.DBDriver.InsertRow(ctx, cfg.DBParams, varCtx.Values); err != nil {
		return Result{Kind: cfg.Kind, Success: false, Message: err.Error()}
	}
	return Result{Kind: cfg.Kind, Success: true, Message: "inserted"}
}

// writeAtomic writes data to a temp file beside target, fsyncs it, then
// renames it into place.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("export: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("export: rename into place: %w", err)
	}
	return nil
}
