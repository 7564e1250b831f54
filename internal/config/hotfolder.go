package config

import (
	"github.com/alterspective-engine/hotfolder-engine/internal/export"
	"github.com/alterspective-engine/hotfolder-engine/internal/fields"
)

// ActionKind identifies one step of a HotfolderConfig's action list.
type ActionKind string

const (
	ActionCompress ActionKind = "compress"
)

// HotfolderConfig is one watched directory and its full processing
// recipe, identified by an opaque, stable ID that the Store assigns on
// Create and Import.
type HotfolderConfig struct {
	ID                       string                       `json:"id"`
	Name                     string                       `json:"name"`
	Description              string                       `json:"description"`
	Enabled                  bool                         `json:"enabled"`
	InputPath                string                       `json:"input_path"`
	ErrorPathExpression      string                       `json:"error_path_expression"`
	Actions                  []ActionKind                 `json:"actions"`
	ActionParams             map[ActionKind]map[string]string `json:"action_params"`
	ProcessPairs             bool                         `json:"process_pairs"`
	StrictPairing            bool                         `json:"strict_pairing"`
	XMLFieldMappings         []fields.Mapping             `json:"xml_field_mappings"`
	OutputFilenameExpression string                       `json:"output_filename_expression"`
	OcrZones                 []fields.Zone                `json:"ocr_zones"`
	ExportConfigs            []export.Config              `json:"export_configs"`
	StampConfigs             []map[string]string           `json:"stamp_configs"`
}

// defaultOutputFilenameExpression is applied when a loaded or imported
// config leaves OutputFilenameExpression blank.
const defaultOutputFilenameExpression = "<FileName>"

// applyDefaults fills in zero-value fields with the documented
// defaults, called after every load/import.
func (h *HotfolderConfig) applyDefaults() {
	if h.OutputFilenameExpression == "" {
		h.OutputFilenameExpression = defaultOutputFilenameExpression
	}
	if h.ActionParams == nil {
		h.ActionParams = make(map[ActionKind]map[string]string)
	}
}
