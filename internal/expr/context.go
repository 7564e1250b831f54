package expr

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const maxLevels = 6 // level0..level5

// VariableContext is the name->value map an Evaluator resolves `<Name>`
// references against. One VariableContext exists per pipeline execution;
// stages add to it as they produce values (OCR text, resolved fields) so
// later expressions can reference earlier results.
type VariableContext struct {
	Values map[string]string
}

// NewVariableContext builds the built-in variable set for one pdf, rooted
// at inputPath (the owning hotfolder's watched directory). OCR_FullText is
// not known yet at this point; callers Set it once OCR has run, if ever.
func NewVariableContext(pdfPath, inputPath string, now time.Time) (*VariableContext, error) {
	ctx := &VariableContext{Values: make(map[string]string)}

	base := filepath.Base(pdfPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	ctx.Values["FileName"] = name
	ctx.Values["FileExtension"] = strings.TrimPrefix(ext, ".")
	ctx.Values["FilePath"] = filepath.Dir(pdfPath)
	ctx.Values["FullFileName"] = base
	ctx.Values["InputPath"] = inputPath

	if fi, err := os.Stat(pdfPath); err == nil {
		ctx.Values["FileSize"] = strconv.FormatInt(fi.Size(), 10)
		ctx.Values["FileSizeMB"] = strconv.FormatFloat(float64(fi.Size())/(1024*1024), 'f', 2, 64)
	} else {
		ctx.Values["FileSize"] = "0"
		ctx.Values["FileSizeMB"] = "0.00"
	}

	setDateTimeVars(ctx, now)

	levels, err := splitLevels(pdfPath, inputPath)
	if err != nil {
		return nil, err
	}
	for i := 0; i < maxLevels; i++ {
		key := fmt.Sprintf("level%d", i)
		if i < len(levels) {
			ctx.Values[key] = levels[i]
		} else {
			ctx.Values[key] = ""
		}
	}

	ctx.Values["OCR_FullText"] = ""

	return ctx, nil
}

func setDateTimeVars(ctx *VariableContext, now time.Time) {
	ctx.Values["Date"] = now.Format("02.01.2006")
	ctx.Values["DateDE"] = now.Format("02.01.2006")
	ctx.Values["DateISO"] = now.Format("2006-01-02")
	ctx.Values["Time"] = now.Format("15:04:05")
	ctx.Values["TimeShort"] = now.Format("15-04-05")
	ctx.Values["DateTime"] = now.Format("02.01.2006 15:04:05")
	ctx.Values["DateTimeISO"] = now.Format("2006-01-02_15-04-05")
	ctx.Values["Year"] = strconv.Itoa(now.Year())
	ctx.Values["Month"] = fmt.Sprintf("%02d", int(now.Month()))
	ctx.Values["MonthName"] = now.Month().String()
	ctx.Values["Day"] = fmt.Sprintf("%02d", now.Day())
	ctx.Values["Hour"] = fmt.Sprintf("%02d", now.Hour())
	ctx.Values["Minute"] = fmt.Sprintf("%02d", now.Minute())
	ctx.Values["Second"] = fmt.Sprintf("%02d", now.Second())
	ctx.Values["Weekday"] = now.Weekday().String()
	ctx.Values["WeekdayShort"] = now.Weekday().String()[:3]
	_, week := now.ISOWeek()
	ctx.Values["WeekNumber"] = fmt.Sprintf("%02d", week)
	ctx.Values["Timestamp"] = strconv.FormatInt(now.Unix(), 10)
}

// splitLevels returns the directory components of pdfPath relative to
// inputPath, shallowest first in index order (level0 is the first
// subdirectory below inputPath). A pdf directly inside inputPath
// yields no levels.
func splitLevels(pdfPath, inputPath string) ([]string, error) {
	rel, err := filepath.Rel(inputPath, filepath.Dir(pdfPath))
	if err != nil {
		return nil, fmt.Errorf("expr: compute relative path of %s under %s: %w", pdfPath, inputPath, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == "" {
		return nil, nil
	}
	return strings.Split(rel, "/"), nil
}

// Set records or overwrites a value, making it visible to every
// subsequent Evaluate call against this context.
func (c *VariableContext) Set(name, value string) {
	c.Values[name] = value
}

// Get returns a value and whether it was present.
func (c *VariableContext) Get(name string) (string, bool) {
	v, ok := c.Values[name]
	return v, ok
}
