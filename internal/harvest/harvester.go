// Package harvest walks the LabCAS collection hierarchy and persists file
// metadata incrementally, so an interrupted run resumes from the last
// completed dataset instead of starting over.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/common"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/storage"
	"github.com/schollz/progressbar/v3"
)

// API is the subset of the LabCAS client the harvester needs.
type API interface {
	ListCollections(ctx context.Context, rows int) ([]map[string]any, error)
	ListDatasets(ctx context.Context, collectionID string, rows int) ([]map[string]any, error)
	ListAllFiles(ctx context.Context, datasetID string, batchSize int) ([]map[string]any, error)
	DownloadURL(fileID string) string
}

// Summary reports what one harvest run covered.
type Summary struct {
	CollectionName    string
	TotalDatasets     int
	LeafDatasets      int
	HarvestedDatasets int
	TotalFiles        int
}

// Harvester drives the four-step harvest: collection, datasets, hierarchy
// analysis, then per-dataset file metadata.
type Harvester struct {
	client       API
	store        *storage.Store
	showProgress bool
}

// New creates a harvester persisting into store.
func New(client API, store *storage.Store, showProgress bool) *Harvester {
	return &Harvester{client: client, store: store, showProgress: showProgress}
}

// Run harvests collectionID end to end. Per-dataset failures are logged and
// skipped; Run only fails on environment-level problems (auth, storage, or a
// collection that does not exist).
func (h *Harvester) Run(ctx context.Context, collectionID string) (*Summary, error) {
	collection, err := h.harvestCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	datasets, err := h.harvestDatasets(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	leaves, err := h.analyzeDatasets(ctx, datasets)
	if err != nil {
		return nil, err
	}

	harvested, totalFiles, err := h.harvestFiles(ctx, leaves)
	if err != nil {
		return nil, err
	}

	return &Summary{
		CollectionName:    model.StringValue(collection["CollectionName"]),
		TotalDatasets:     len(datasets),
		LeafDatasets:      len(leaves),
		HarvestedDatasets: harvested,
		TotalFiles:        totalFiles,
	}, nil
}

// harvestCollection finds and stores the collection document, reusing a prior
// harvest when one exists.
func (h *Harvester) harvestCollection(ctx context.Context, collectionID string) (map[string]any, error) {
	existing, err := h.store.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		slog.Info("Collection metadata already harvested", "collection", collectionID)
		return existing, nil
	}

	collections, err := h.client.ListCollections(ctx, 100)
	if err != nil {
		return nil, err
	}

	for _, c := range collections {
		if model.StringValue(c["id"]) != collectionID {
			continue
		}
		if err := h.store.SaveCollection(ctx, collectionID, c); err != nil {
			return nil, err
		}
		slog.Info("Found collection", "name", model.StringValue(c["CollectionName"]))
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", common.ErrCollectionNotFound, collectionID)
}

// harvestDatasets fetches and stores all dataset documents for the
// collection, skipping the fetch when a prior run already stored them.
func (h *Harvester) harvestDatasets(ctx context.Context, collectionID string) ([]model.DatasetRecord, error) {
	stored, err := h.store.Datasets(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		slog.Info("Datasets already harvested", "count", len(stored))
		return stored, nil
	}

	docs, err := h.client.ListDatasets(ctx, collectionID, 10000)
	if err != nil {
		return nil, err
	}

	datasets := make([]model.DatasetRecord, 0, len(docs))
	for _, doc := range docs {
		id := datasetID(doc)
		if id == "" {
			continue
		}
		datasets = append(datasets, model.DatasetRecord{ID: id, Metadata: doc})
	}

	if err := h.store.SaveDatasets(ctx, collectionID, datasets); err != nil {
		return nil, err
	}
	slog.Info("Retrieved datasets", "count", len(datasets))
	return datasets, nil
}

// analyzeDatasets identifies the leaves of the dataset hierarchy: datasets no
// other dataset names as its parent. Only leaves carry files worth
// harvesting.
func (h *Harvester) analyzeDatasets(ctx context.Context, datasets []model.DatasetRecord) ([]model.DatasetRecord, error) {
	children := make(map[string][]string)
	for _, d := range datasets {
		parent := parentID(d.Metadata)
		if parent == "" {
			continue
		}
		children[parent] = append(children[parent], d.ID)
	}

	var leaves []model.DatasetRecord
	roleCounts := make(map[string]int)
	leafIDs := make([]string, 0, len(datasets))
	for _, d := range datasets {
		if _, hasChildren := children[d.ID]; hasChildren {
			continue
		}
		leaves = append(leaves, d)
		leafIDs = append(leafIDs, d.ID)
		if name := model.StringValue(d.Metadata["DatasetName"]); name != "" {
			roleCounts[name]++
		}
	}

	if err := h.store.MarkLeafDatasets(ctx, leafIDs); err != nil {
		return nil, err
	}

	slog.Info("Analyzed dataset hierarchy",
		"total", len(datasets),
		"leaves", len(leaves),
		"proc", roleCounts["PROC"],
		"mask", roleCounts["MASK"],
		"raw", roleCounts["RAW"],
		"documentation", roleCounts["Documentation"])
	return leaves, nil
}

// harvestFiles fetches file metadata per leaf dataset, persisting after each
// one. Datasets completed by a previous run are skipped.
func (h *Harvester) harvestFiles(ctx context.Context, leaves []model.DatasetRecord) (harvested, totalFiles int, err error) {
	completed, err := h.store.CompletedDatasets(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(completed) > 0 {
		slog.Info("Resuming file harvest", "completed", len(completed), "total", len(leaves))
	}

	var bar *progressbar.ProgressBar
	if h.showProgress {
		bar = progressbar.NewOptions(len(leaves),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Harvesting file metadata..."))
	}

	for _, d := range leaves {
		if bar != nil {
			_ = bar.Add(1)
		}
		if completed[d.ID] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return harvested, totalFiles, err
		}

		docs, listErr := h.client.ListAllFiles(ctx, d.ID, 1000)
		if listErr != nil {
			slog.Warn("Failed to harvest dataset, continuing",
				"dataset", d.ID, "error", listErr)
			continue
		}

		files := make([]model.FileRecord, 0, len(docs))
		for _, doc := range docs {
			fid := model.StringValue(doc["id"])
			if fid == "" {
				continue
			}
			files = append(files, model.FileRecord{
				FileID:      fid,
				Name:        model.FlexString(model.StringValue(doc["name"])),
				FileType:    model.FlexString(model.StringValue(doc["FileType"])),
				FileSize:    model.IntValue(doc["FileSize"]),
				DatasetID:   d.ID,
				DownloadURL: h.client.DownloadURL(fid),
				Metadata:    doc,
			})
		}

		if saveErr := h.store.SaveDatasetFiles(ctx, d.ID, files); saveErr != nil {
			return harvested, totalFiles, saveErr
		}
		harvested++
		totalFiles += len(files)
		slog.Debug("Harvested dataset", "dataset", d.ID, "files", len(files))
	}

	if bar != nil {
		_ = bar.Finish()
	}
	return harvested, totalFiles, nil
}

// datasetID extracts the canonical dataset identifier, preferring the bare id
// field over the DatasetId list.
func datasetID(doc map[string]any) string {
	if id, ok := doc["id"].(string); ok && model.StringValue(id) != "" {
		return model.StringValue(id)
	}
	return model.StringValue(doc["DatasetId"])
}

// parentID extracts a dataset's parent identifier from any of the field names
// LabCAS has used for it.
func parentID(doc map[string]any) string {
	for _, key := range []string{"ParentDatasetId", "DatasetParentId", "DatasetParent"} {
		if v := model.StringValue(doc[key]); v != "" {
			return v
		}
	}
	return ""
}
