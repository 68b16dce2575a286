// Package reconcile reduces a harvested metadata document to a flat,
// deduplicated manifest of matched PROC/MASK pairs, one row per
// (patient, view), with a diagnostics report explaining every decision.
package reconcile

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/classify"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/filename"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
)

// GroupDecision records the per-role selection outcome for a paired group.
type GroupDecision struct {
	Proc           Decision `json:"proc"`
	Mask           Decision `json:"mask"`
	ProcCandidates int      `json:"proc_candidates_count"`
	MaskCandidates int      `json:"mask_candidates_count"`
}

// HalfPair names a group that had a winner on at most one side and therefore
// produced no manifest row.
type HalfPair struct {
	Group          string `json:"group"`
	HasProc        bool   `json:"has_proc"`
	HasMask        bool   `json:"has_mask"`
	ProcCandidates int    `json:"proc_candidates"`
	MaskCandidates int    `json:"mask_candidates"`
}

// Diagnostics is the advisory report emitted alongside the manifest.
// RejectedGroups is reserved and currently always empty.
type Diagnostics struct {
	Decisions      map[string]GroupDecision `json:"decisions"`
	RejectedGroups []string                 `json:"rejected_groups"`
	HalfPairs      []HalfPair               `json:"half_pairs"`
	TotalGroups    int                      `json:"total_groups"`
}

// Stats accumulates aggregate skip counts for one engine run. It is returned
// with the result rather than kept in package state so repeated runs need no
// reset logic.
type Stats struct {
	TotalFiles      int
	Unparseable     int
	DisallowedViews int
	SkippedDatasets int
}

// Result is everything one engine run produces.
type Result struct {
	Diagnostics Diagnostics
	Rows        []model.ManifestRow
	Stats       Stats
}

// Engine builds the pair manifest from a stabilized harvest document. It is a
// single-pass, purely in-memory transformation with no I/O.
type Engine struct {
	downloadBase string
}

// NewEngine returns an engine whose manifest URLs concatenate downloadBase
// with the winning file identifiers.
func NewEngine(downloadBase string) *Engine {
	return &Engine{downloadBase: downloadBase}
}

type groupKey struct {
	patient string
	view    string
}

type roleLists struct {
	proc []model.FileRecord
	mask []model.FileRecord
}

// Build groups every classified, parseable, allowed-view file by
// (patient, view), selects one winner per role, and emits a manifest row for
// every group with winners on both sides. Malformed or unclassifiable data
// degrades to counters and diagnostics entries; Build never fails.
func (e *Engine) Build(doc model.HarvestDocument) Result {
	groups := make(map[groupKey]*roleLists)
	var stats Stats

	// Dataset order does not affect the outcome (the selector sorts), but a
	// stable walk keeps log output reproducible.
	datasetIDs := make([]string, 0, len(doc))
	for id := range doc {
		datasetIDs = append(datasetIDs, id)
	}
	sort.Strings(datasetIDs)

	for _, datasetID := range datasetIDs {
		payload := doc[datasetID]
		role := classify.DatasetRole(payload.DatasetMetadata, datasetID)
		if role == model.RoleUnknown {
			stats.SkippedDatasets++
			continue
		}

		for _, f := range payload.Files {
			stats.TotalFiles++
			if f.FileID == "" {
				continue
			}

			p, ok := filename.Parse(f.FileID)
			if !ok {
				stats.Unparseable++
				continue
			}
			if !model.AllowedViews[p.View] {
				stats.DisallowedViews++
				continue
			}

			key := groupKey{patient: strings.ToUpper(p.Patient), view: p.View}
			g := groups[key]
			if g == nil {
				g = &roleLists{}
				groups[key] = g
			}
			switch role {
			case model.RoleProc:
				g.proc = append(g.proc, f)
			case model.RoleMask:
				g.mask = append(g.mask, f)
			}
		}
	}

	slog.Debug("grouped harvested files",
		"datasets", len(doc),
		"groups", len(groups),
		"total_files", stats.TotalFiles,
		"unparseable", stats.Unparseable,
		"disallowed_views", stats.DisallowedViews,
		"skipped_datasets", stats.SkippedDatasets)

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].patient != keys[j].patient {
			return keys[i].patient < keys[j].patient
		}
		return keys[i].view < keys[j].view
	})

	result := Result{
		Stats: stats,
		Diagnostics: Diagnostics{
			TotalGroups:    len(groups),
			Decisions:      make(map[string]GroupDecision),
			RejectedGroups: []string{},
			HalfPairs:      []HalfPair{},
		},
	}

	for _, k := range keys {
		g := groups[k]
		bestProc, procDecision := selectCandidate(g.proc)
		bestMask, maskDecision := selectCandidate(g.mask)
		keyStr := k.patient + "_" + k.view

		if bestProc != nil && bestMask != nil {
			result.Rows = append(result.Rows, model.ManifestRow{
				Group:     model.GroupLabel(k.patient),
				PatientID: k.patient,
				View:      k.view,
				ProcURL:   e.downloadBase + bestProc.FileID,
				MaskURL:   e.downloadBase + bestMask.FileID,
				ProcName:  bestProc.Name.String(),
				MaskName:  bestMask.Name.String(),
			})
			result.Diagnostics.Decisions[keyStr] = GroupDecision{
				Proc:           procDecision,
				Mask:           maskDecision,
				ProcCandidates: len(g.proc),
				MaskCandidates: len(g.mask),
			}
			continue
		}

		result.Diagnostics.HalfPairs = append(result.Diagnostics.HalfPairs, HalfPair{
			Group:          keyStr,
			HasProc:        bestProc != nil,
			HasMask:        bestMask != nil,
			ProcCandidates: len(g.proc),
			MaskCandidates: len(g.mask),
		})
	}

	return result
}
