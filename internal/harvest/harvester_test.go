package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAPI is an in-memory LabCAS client double.
type stubAPI struct {
	collections  []map[string]any
	datasets     []map[string]any
	filesByID    map[string][]map[string]any
	failDatasets map[string]bool
	fileCalls    map[string]int
}

func (s *stubAPI) ListCollections(_ context.Context, _ int) ([]map[string]any, error) {
	return s.collections, nil
}

func (s *stubAPI) ListDatasets(_ context.Context, _ string, _ int) ([]map[string]any, error) {
	return s.datasets, nil
}

func (s *stubAPI) ListAllFiles(_ context.Context, datasetID string, _ int) ([]map[string]any, error) {
	if s.fileCalls == nil {
		s.fileCalls = make(map[string]int)
	}
	s.fileCalls[datasetID]++
	if s.failDatasets[datasetID] {
		return nil, errors.New("boom")
	}
	return s.filesByID[datasetID], nil
}

func (s *stubAPI) DownloadURL(fileID string) string {
	return "https://example.test/download?id=" + fileID
}

func newStub() *stubAPI {
	return &stubAPI{
		collections: []map[string]any{
			{"id": "Collection_A", "CollectionName": "Breast Density"},
		},
		datasets: []map[string]any{
			{"id": "Collection_A/Patient", "DatasetName": "Patient"},
			{"id": "Collection_A/Patient/PROC", "DatasetName": "PROC", "ParentDatasetId": "Collection_A/Patient"},
			{"id": "Collection_A/Patient/MASK", "DatasetName": []any{"MASK"}, "ParentDatasetId": []any{"Collection_A/Patient"}},
		},
		filesByID: map[string][]map[string]any{
			"Collection_A/Patient/PROC": {
				{"id": "Collection_A/Patient/PROC/N0500_LCC.dcm", "name": "N0500_LCC.dcm", "FileSize": float64(100)},
			},
			"Collection_A/Patient/MASK": {
				{"id": "Collection_A/Patient/MASK/N0500_LCC.dcm", "name": []any{"N0500_LCC.dcm"}},
			},
		},
	}
}

func TestHarvesterRun(t *testing.T) {
	store := testutil.SetupTestStore(t)
	stub := newStub()

	summary, err := New(stub, store, false).Run(context.Background(), "Collection_A")
	require.NoError(t, err)

	assert.Equal(t, "Breast Density", summary.CollectionName)
	assert.Equal(t, 3, summary.TotalDatasets)
	assert.Equal(t, 2, summary.LeafDatasets)
	assert.Equal(t, 2, summary.HarvestedDatasets)
	assert.Equal(t, 2, summary.TotalFiles)

	doc, err := store.ExportDocument(context.Background(), "Collection_A")
	require.NoError(t, err)
	require.Len(t, doc, 2)

	proc := doc["Collection_A/Patient/PROC"]
	require.Len(t, proc.Files, 1)
	assert.Equal(t, "N0500_LCC.dcm", proc.Files[0].Name.String())
	assert.Equal(t, int64(100), proc.Files[0].FileSize)
	assert.Equal(t,
		"https://example.test/download?id=Collection_A/Patient/PROC/N0500_LCC.dcm",
		proc.Files[0].DownloadURL)

	// The list-valued name field is normalized at ingestion.
	mask := doc["Collection_A/Patient/MASK"]
	require.Len(t, mask.Files, 1)
	assert.Equal(t, "N0500_LCC.dcm", mask.Files[0].Name.String())
}

func TestHarvesterRunUnknownCollection(t *testing.T) {
	store := testutil.SetupTestStore(t)

	_, err := New(newStub(), store, false).Run(context.Background(), "Nope")
	assert.Error(t, err)
}

func TestHarvesterResumeSkipsCompletedDatasets(t *testing.T) {
	store := testutil.SetupTestStore(t)
	stub := newStub()
	harvester := New(stub, store, false)

	_, err := harvester.Run(context.Background(), "Collection_A")
	require.NoError(t, err)
	assert.Equal(t, 1, stub.fileCalls["Collection_A/Patient/PROC"])

	// A second run touches no completed dataset.
	summary, err := harvester.Run(context.Background(), "Collection_A")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.HarvestedDatasets)
	assert.Equal(t, 1, stub.fileCalls["Collection_A/Patient/PROC"])
}

func TestHarvesterContinuesPastFailingDataset(t *testing.T) {
	store := testutil.SetupTestStore(t)
	stub := newStub()
	stub.failDatasets = map[string]bool{"Collection_A/Patient/MASK": true}

	summary, err := New(stub, store, false).Run(context.Background(), "Collection_A")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.HarvestedDatasets)

	// The failed dataset stays pending and is retried on the next run.
	stub.failDatasets = nil
	summary, err = New(stub, store, false).Run(context.Background(), "Collection_A")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.HarvestedDatasets)
	assert.Equal(t, 2, stub.fileCalls["Collection_A/Patient/MASK"])
}

func TestHarvesterManyDatasets(t *testing.T) {
	store := testutil.SetupTestStore(t)
	stub := newStub()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("Collection_A/Patient_%02d/PROC", i)
		stub.datasets = append(stub.datasets, map[string]any{
			"id": id, "DatasetName": "PROC", "ParentDatasetId": "Collection_A/Patient",
		})
		stub.filesByID[id] = []map[string]any{
			{"id": fmt.Sprintf("%s/C%04d_LCC.dcm", id, i), "name": "file.dcm"},
		}
	}

	summary, err := New(stub, store, false).Run(context.Background(), "Collection_A")
	require.NoError(t, err)
	assert.Equal(t, 22, summary.LeafDatasets)
	assert.Equal(t, 22, summary.HarvestedDatasets)
	assert.Equal(t, 22, summary.TotalFiles)
}

func TestParentID(t *testing.T) {
	tests := []struct {
		doc  map[string]any
		name string
		want string
	}{
		{name: "scalar", doc: map[string]any{"ParentDatasetId": "p"}, want: "p"},
		{name: "list", doc: map[string]any{"DatasetParentId": []any{"p"}}, want: "p"},
		{name: "legacy key", doc: map[string]any{"DatasetParent": "p"}, want: "p"},
		{name: "missing", doc: map[string]any{}, want: ""},
		{name: "blank", doc: map[string]any{"ParentDatasetId": "  "}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parentID(tt.doc))
		})
	}
}
