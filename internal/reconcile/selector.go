package reconcile

import (
	"sort"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/filename"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
)

// Selection reason codes recorded in the diagnostics document.
const (
	ReasonCleanFileSelected = "clean_file_selected"
	ReasonNoCleanFile       = "no_clean_file_found"
)

// Decision records why a candidate was or was not selected for one role.
type Decision struct {
	Reason string `json:"reason"`
}

// selectCandidate picks the single winning file for one role of one
// (patient, view) group. A file with a numeric duplicate suffix never wins,
// even when it is the only candidate. Ties among clean candidates are broken
// by ascending file identifier so the choice is independent of harvest order.
func selectCandidate(files []model.FileRecord) (*model.FileRecord, Decision) {
	var clean []model.FileRecord
	for _, f := range files {
		p, ok := filename.Parse(f.FileID)
		if !ok {
			continue
		}
		if p.HasSuffix {
			continue
		}
		clean = append(clean, f)
	}

	if len(clean) == 0 {
		return nil, Decision{Reason: ReasonNoCleanFile}
	}

	sort.Slice(clean, func(i, j int) bool { return clean[i].FileID < clean[j].FileID })
	chosen := clean[0]
	return &chosen, Decision{Reason: ReasonCleanFileSelected}
}
