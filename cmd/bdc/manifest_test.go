package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/manifest"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeHarvestDocument(t *testing.T, dir string) string {
	t.Helper()

	doc := model.HarvestDocument{
		"Collection_A/Patient/PROC": {
			DatasetMetadata: map[string]any{"DatasetName": "PROC"},
			Files: []model.FileRecord{
				{FileID: "Collection_A/Patient/PROC/N0500_LCC.dcm", Name: "N0500_LCC.dcm"},
				{FileID: "Collection_A/Patient/PROC/N0500_LCC_2.dcm", Name: "N0500_LCC_2.dcm"},
			},
			FileCount: 2,
		},
		"Collection_A/Patient/MASK": {
			DatasetMetadata: map[string]any{"DatasetName": "MASK"},
			Files: []model.FileRecord{
				{FileID: "Collection_A/Patient/MASK/N0500_LCC.dcm", Name: "N0500_LCC.dcm"},
			},
			FileCount: 1,
		},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)

	path := filepath.Join(dir, "resources_by_dataset.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestManifestCommand(t *testing.T) {
	dir := t.TempDir()
	inputPath := writeHarvestDocument(t, dir)
	outputPath := filepath.Join(dir, "manifest.csv")
	diagPath := filepath.Join(dir, "diag.json")

	cmd := manifestCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--input", inputPath,
		"--output", outputPath,
		"--diag", diagPath,
		"--download-base", "https://example.test/download?id=",
	})
	require.NoError(t, cmd.Execute())

	rows, err := manifest.ReadCSV(outputPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "control", rows[0].Group)
	assert.Equal(t, "N0500", rows[0].PatientID)
	assert.Equal(t, "LCC", rows[0].View)
	// The suffixed duplicate never makes it into the manifest.
	assert.Equal(t, "https://example.test/download?id=Collection_A/Patient/PROC/N0500_LCC.dcm", rows[0].ProcURL)

	diagData, err := os.ReadFile(diagPath)
	require.NoError(t, err)
	var diag map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(diagData, &diag))
	assert.Contains(t, diag, "decisions")
	assert.Contains(t, diag, "half_pairs")
}

func TestManifestCommandMissingInputIsFatal(t *testing.T) {
	dir := t.TempDir()

	cmd := manifestCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--input", filepath.Join(dir, "missing.json"),
		"--output", filepath.Join(dir, "manifest.csv"),
		"--diag", filepath.Join(dir, "diag.json"),
	})
	assert.Error(t, cmd.Execute())
}

func TestCroissantCommand(t *testing.T) {
	dir := t.TempDir()
	inputPath := writeHarvestDocument(t, dir)
	manifestPath := filepath.Join(dir, "manifest.csv")
	diagPath := filepath.Join(dir, "diag.json")
	croissantPath := filepath.Join(dir, "out", "croissant.json")

	build := manifestCmd()
	build.SetOut(&bytes.Buffer{})
	build.SetArgs([]string{"--input", inputPath, "--output", manifestPath, "--diag", diagPath})
	require.NoError(t, build.Execute())

	gen := croissantCmd()
	gen.SetOut(&bytes.Buffer{})
	gen.SetArgs([]string{"--manifest", manifestPath, "--output", croissantPath})
	require.NoError(t, gen.Execute())

	data, err := os.ReadFile(croissantPath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "http://mlcommons.org/croissant/1.0", doc["conformsTo"])
	assert.Contains(t, doc, "recordSet")
}

func TestCroissantCommandMissingManifest(t *testing.T) {
	dir := t.TempDir()

	cmd := croissantCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--manifest", filepath.Join(dir, "missing.csv"),
		"--output", filepath.Join(dir, "croissant.json"),
	})
	assert.Error(t, cmd.Execute())
}
