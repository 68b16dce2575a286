// Package manifest reads and writes the pair manifest CSV and its companion
// diagnostics document.
package manifest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/reconcile"
)

// Columns is the fixed manifest CSV header, in emission order.
var Columns = []string{"group", "patient_id", "view", "proc_url", "mask_url", "proc_name", "mask_name"}

// WriteCSV writes the manifest rows to path, header first, preserving row
// order. An empty row slice still produces a valid manifest with a header.
func WriteCSV(path string, rows []model.ManifestRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("failed to write manifest header: %w", err)
	}
	for _, r := range rows {
		record := []string{r.Group, r.PatientID, r.View, r.ProcURL, r.MaskURL, r.ProcName, r.MaskName}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write manifest row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush manifest: %w", err)
	}
	return f.Close()
}

// ReadCSV loads a manifest previously written by WriteCSV.
func ReadCSV(path string) ([]model.ManifestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("manifest %s has no header row", path)
	}

	header := records[0]
	if len(header) != len(Columns) {
		return nil, fmt.Errorf("manifest %s has %d columns, want %d", path, len(header), len(Columns))
	}
	for i, col := range Columns {
		if header[i] != col {
			return nil, fmt.Errorf("manifest %s column %d is %q, want %q", path, i, header[i], col)
		}
	}

	rows := make([]model.ManifestRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, model.ManifestRow{
			Group:     rec[0],
			PatientID: rec[1],
			View:      rec[2],
			ProcURL:   rec[3],
			MaskURL:   rec[4],
			ProcName:  rec[5],
			MaskName:  rec[6],
		})
	}
	return rows, nil
}

// WriteDiagnostics writes the diagnostics report as indented JSON.
func WriteDiagnostics(path string, d reconcile.Diagnostics) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write diagnostics: %w", err)
	}
	return nil
}
