// Package compress shrinks PDFs with Ghostscript, selecting a
// compression profile either explicitly or by inspecting the document's
// own structural analysis.
package compress

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alterspective-engine/hotfolder-engine/internal/pdfanalysis"
	"github.com/alterspective-engine/hotfolder-engine/internal/subproc"
)

// Profile is one named Ghostscript compression preset.
type Profile struct {
	Name              string
	ColorDPI          int
	GrayDPI           int
	MonoDPI           int
	JPEGQuality       int
	DownsampleImages  bool
	SubsetFonts       bool
	RemoveDuplicates  bool
	Optimize          bool
	PreserveQuality   bool
}

// Profiles is the fixed table of named presets, ported from the source
// processor's COMPRESSION_PROFILES.
var Profiles = map[string]Profile{
	"rechnung": {
		Name: "Rechnung/Geschäftsdokument",
		ColorDPI: 300, GrayDPI: 300, MonoDPI: 600, JPEGQuality: 85,
		DownsampleImages: true, SubsetFonts: true, RemoveDuplicates: true,
		Optimize: true, PreserveQuality: true,
	},
	"archiv": {
		Name: "Langzeitarchiv",
		ColorDPI: 200, GrayDPI: 200, MonoDPI: 400, JPEGQuality: 80,
		DownsampleImages: true, SubsetFonts: true, RemoveDuplicates: true,
		Optimize: true, PreserveQuality: true,
	},
	"scan": {
		Name: "Gescanntes Dokument",
		ColorDPI: 150, GrayDPI: 150, MonoDPI: 300, JPEGQuality: 75,
		DownsampleImages: true, SubsetFonts: true, RemoveDuplicates: true,
		Optimize: true, PreserveQuality: false,
	},
	"email": {
		Name: "E-Mail-Versand",
		ColorDPI: 100, GrayDPI: 100, MonoDPI: 200, JPEGQuality: 65,
		DownsampleImages: true, SubsetFonts: true, RemoveDuplicates: true,
		Optimize: true, PreserveQuality: false,
	},
}

// largeFileMB is the size above which auto-selection prefers the email
// (most aggressive) profile regardless of other signals.
const largeFileMB = 10.0

// SelectProfile picks a profile by name, or — when name is "" or "auto"
// — derives one from the PDF's structural analysis: scanned documents
// get the "scan" profile, large files get "email", form-bearing
// documents get "rechnung", everything else gets "archiv".
func SelectProfile(name string, info pdfanalysis.Info) Profile {
	if name != "" && name != "auto" {
		if p, ok := Profiles[name]; ok {
			return p
		}
		log.WithField("profile", name).Warn("compress: unknown profile name, falling back to auto-selection")
	}

	switch {
	case info.IsScanned:
		return Profiles["scan"]
	case info.FileSizeMB > largeFileMB:
		return Profiles["email"]
	case info.HasForms:
		return Profiles["rechnung"]
	default:
		return Profiles["archiv"]
	}
}

// overrideKeys are the action_params entries that may override the
// selected profile's DPI/quality fields, matching the source
// processor's _determine_compression_profile override loop.
var overrideKeys = [...]string{"color_dpi", "gray_dpi", "mono_dpi", "jpeg_quality"}

// ApplyOverrides returns a copy of p with any of color_dpi/gray_dpi/
// mono_dpi/jpeg_quality present in params substituted in, skipping (and
// warning on) values that don't parse as integers. Keys absent from
// params leave the profile's selected value untouched.
func ApplyOverrides(p Profile, params map[string]string) Profile {
	for _, key := range overrideKeys {
		raw, ok := params[key]
		if !ok {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			log.WithFields(log.Fields{"param": key, "value": raw}).
				Warn("compress: action_param did not parse as an integer, ignoring override")
			continue
		}
		switch key {
		case "color_dpi":
			p.ColorDPI = value
		case "gray_dpi":
			p.GrayDPI = value
		case "mono_dpi":
			p.MonoDPI = value
		case "jpeg_quality":
			p.JPEGQuality = value
		}
	}
	return p
}

// Deadline bounds how long a single Ghostscript invocation may run.
const Deadline = 120 * time.Second

// Compress rewrites pdfPath in place using Ghostscript under profile,
// downsampling images only when info.AvgDPI exceeds the profile's target
// (no point re-encoding already-low-resolution images). bundledDir, if
// non-empty, is checked before PATH when locating the gs binary.
func Compress(ctx context.Context, pdfPath string, profile Profile, info pdfanalysis.Info, bundledDir string) error {
	gs, err := subproc.Resolve(ghostscriptBinaryName(), bundledDir)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}

	originalSize, err := fileSize(pdfPath)
	if err != nil {
		return fmt.Errorf("compress: stat %s: %w", pdfPath, err)
	}

	tempOutput := pdfPath + ".compressed"
	defer os.Remove(tempOutput)

	args := buildArgs(tempOutput, profile, info)
	args = append(args, pdfPath)

	if out, err := subproc.Run(ctx, Deadline, gs, args...); err != nil {
		return fmt.Errorf("compress: ghostscript failed: %w: %s", err, string(out))
	}

	fi, err := os.Stat(tempOutput)
	if err != nil || fi.Size() == 0 {
		return fmt.Errorf("compress: ghostscript produced no output for %s", pdfPath)
	}

	if err := pdfanalysis.Validate(tempOutput); err != nil {
		os.Remove(tempOutput)
		return fmt.Errorf("compress: compressed output failed validation: %w", err)
	}

	if err := os.Rename(tempOutput, pdfPath); err != nil {
		return fmt.Errorf("compress: replace original with compressed output: %w", err)
	}

	compressedSize := fi.Size()
	reduction := 0.0
	if originalSize > 0 {
		reduction = (1 - float64(compressedSize)/float64(originalSize)) * 100
	}
	log.WithFields(log.Fields{
		"path":             pdfPath,
		"profile":          profile.Name,
		"reduction_percent": fmt.Sprintf("%.1f", reduction),
	}).Info("compress: compression complete")

	if reduction > 70 && profile.PreserveQuality {
		log.WithField("path", pdfPath).Warn("compress: high compression ratio on a quality-preserving profile, review output")
	}
	return nil
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func buildArgs(outputPath string, p Profile, info pdfanalysis.Info) []string {
	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.7",
		"-dNOPAUSE",
		"-dBATCH",
		"-dQUIET",
		"-dSAFER",
		"-sOutputFile=" + outputPath,
		fmt.Sprintf("-dColorImageResolution=%d", p.ColorDPI),
		fmt.Sprintf("-dGrayImageResolution=%d", p.GrayDPI),
		fmt.Sprintf("-dMonoImageResolution=%d", p.MonoDPI),
	}

	if p.DownsampleImages {
		downsample := info.AvgDPI > p.ColorDPI
		args = append(args,
			boolFlag("-dDownsampleColorImages", downsample),
			boolFlag("-dDownsampleGrayImages", downsample),
			boolFlag("-dDownsampleMonoImages", downsample),
		)
		if downsample {
			args = append(args,
				"-dColorImageDownsampleType=/Bicubic",
				"-dGrayImageDownsampleType=/Bicubic",
				"-dMonoImageDownsampleType=/Bicubic",
				"-dColorImageDownsampleThreshold=1.0",
				"-dGrayImageDownsampleThreshold=1.0",
				"-dMonoImageDownsampleThreshold=1.0",
			)
		}
	}

	jpegQ := fmt.Sprintf("-dJPEGQ=%.2f", float64(p.JPEGQuality)/100.0)
	if p.PreserveQuality {
		args = append(args,
			"-dAutoFilterColorImages=true",
			"-dAutoFilterGrayImages=true",
			jpegQ,
			"-dColorImageFilter=/DCTEncode",
			"-dGrayImageFilter=/DCTEncode",
			"-dMonoImageFilter=/CCITTFaxEncode",
			"-dEncodeColorImages=true",
			"-dEncodeGrayImages=true",
			"-dEncodeMonoImages=true",
		)
	} else {
		args = append(args,
			"-dAutoFilterColorImages=false",
			"-dAutoFilterGrayImages=false",
			jpegQ,
			"-dColorImageFilter=/DCTEncode",
			"-dGrayImageFilter=/DCTEncode",
			"-dMonoImageFilter=/CCITTFaxEncode",
		)
	}

	if p.SubsetFonts {
		args = append(args, "-dSubsetFonts=true", "-dEmbedAllFonts=true", "-dCompressFonts=true")
	}
	if p.Optimize {
		args = append(args, "-dOptimize=true", "-dCompressPages=true", "-dUseFlateCompression=true")
	}
	if p.RemoveDuplicates {
		args = append(args, "-dDetectDuplicateImages=true")
	}

	return args
}

func boolFlag(name string, value bool) string {
	if value {
		return name + "=true"
	}
	return name + "=false"
}
