// Package classify assigns harvested datasets to their PROC or MASK role.
package classify

import (
	"strings"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
)

// DatasetRole determines whether a dataset holds processed mammograms or
// segmentation masks. The declared DatasetName field wins; the identifier
// path is only consulted when the declared value is absent or unrecognized.
// RoleUnknown means the dataset and all its files are skipped, not an error.
func DatasetRole(meta map[string]any, datasetID string) model.Role {
	switch model.StringValue(meta["DatasetName"]) {
	case string(model.RoleProc):
		return model.RoleProc
	case string(model.RoleMask):
		return model.RoleMask
	}

	if strings.Contains(datasetID, "/PROC") {
		return model.RoleProc
	}
	if strings.Contains(datasetID, "/MASK") {
		return model.RoleMask
	}
	return model.RoleUnknown
}
