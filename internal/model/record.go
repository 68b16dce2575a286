// Package model defines the core domain records shared across the pipeline:
// harvested dataset and file metadata, the stabilized harvest document the
// reconciliation engine consumes, and the manifest rows it emits.
package model

import "strings"

// Role labels a harvested dataset as holding processed mammograms or
// segmentation masks. Datasets with any other declared name have no role and
// are excluded from pairing.
type Role string

// Recognized dataset roles.
const (
	RoleProc    Role = "PROC"
	RoleMask    Role = "MASK"
	RoleUnknown Role = ""
)

// AllowedViews is the closed set of mammographic acquisition views that may
// form manifest pairs. Any other view token is always rejected; this is a
// business rule, not configuration.
var AllowedViews = map[string]bool{
	"LCC":  true,
	"LMLO": true,
	"RCC":  true,
	"RMLO": true,
}

// FileRecord is one harvested file's metadata. Immutable once harvested.
type FileRecord struct {
	Metadata    map[string]any `json:"metadata,omitempty"`
	FileID      string         `json:"file_id"`
	Name        FlexString     `json:"name"`
	FileType    FlexString     `json:"file_type,omitempty"`
	DatasetID   string         `json:"dataset_id,omitempty"`
	DownloadURL string         `json:"download_url,omitempty"`
	FileSize    int64          `json:"file_size,omitempty"`
}

// DatasetRecord is one harvested dataset's identifier and raw metadata.
type DatasetRecord struct {
	Metadata map[string]any `json:"metadata"`
	ID       string         `json:"id"`
}

// DatasetResources holds everything harvested for one dataset.
type DatasetResources struct {
	DatasetMetadata map[string]any `json:"dataset_metadata"`
	Files           []FileRecord   `json:"files"`
	FileCount       int            `json:"file_count"`
}

// HarvestDocument is the stabilized harvest output, keyed by dataset
// identifier. It is the reconciliation engine's sole input.
type HarvestDocument map[string]DatasetResources

// ManifestRow pairs one winning PROC file with one winning MASK file for a
// single (patient, view) combination.
type ManifestRow struct {
	Group     string `json:"group"`
	PatientID string `json:"patient_id"`
	View      string `json:"view"`
	ProcURL   string `json:"proc_url"`
	MaskURL   string `json:"mask_url"`
	ProcName  string `json:"proc_name"`
	MaskName  string `json:"mask_name"`
}

// GroupLabel derives the case/control label from a patient identifier's
// leading letter: C means case, everything else falls through to control.
// Letters outside {C, N} are passed through silently rather than rejected.
func GroupLabel(patientID string) string {
	if strings.HasPrefix(strings.ToUpper(patientID), "C") {
		return "case"
	}
	return "control"
}
