// Package storage persists harvest progress in a local SQLite database so an
// interrupted harvest resumes where it left off instead of re-crawling the
// whole collection.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store is the SQLite-backed harvest store.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (or creates) the harvest database at dbPath. Pass ":memory:"
// for an ephemeral store.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath cannot be empty")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveCollection stores the collection document, replacing any previous copy.
func (s *Store) SaveCollection(ctx context.Context, id string, doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal collection %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO collections (id, metadata) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`,
		id, string(data))
	if err != nil {
		return fmt.Errorf("failed to save collection %s: %w", id, err)
	}
	return nil
}

// GetCollection returns the stored collection document, or nil when the
// collection has not been harvested yet.
func (s *Store) GetCollection(ctx context.Context, id string) (map[string]any, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT metadata FROM collections WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collection %s: %w", id, err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection %s: %w", id, err)
	}
	return doc, nil
}

// SaveDatasets upserts dataset documents for a collection in one transaction.
func (s *Store) SaveDatasets(ctx context.Context, collectionID string, datasets []model.DatasetRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO datasets (id, collection_id, metadata) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`)
	if err != nil {
		return fmt.Errorf("failed to prepare dataset insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range datasets {
		data, marshalErr := json.Marshal(d.Metadata)
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal dataset %s: %w", d.ID, marshalErr)
		}
		if _, execErr := stmt.ExecContext(ctx, d.ID, collectionID, string(data)); execErr != nil {
			return fmt.Errorf("failed to save dataset %s: %w", d.ID, execErr)
		}
	}

	return tx.Commit()
}

// Datasets returns all stored datasets for a collection, ordered by id.
func (s *Store) Datasets(ctx context.Context, collectionID string) ([]model.DatasetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, metadata FROM datasets WHERE collection_id = ? ORDER BY id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []model.DatasetRecord
	for rows.Next() {
		var d model.DatasetRecord
		var data string
		if err := rows.Scan(&d.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dataset %s: %w", d.ID, err)
		}
		datasets = append(datasets, d)
	}
	return datasets, rows.Err()
}

// MarkLeafDatasets flags the given dataset ids as leaves of the hierarchy.
func (s *Store) MarkLeafDatasets(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE datasets SET is_leaf = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to mark leaf dataset %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// SaveDatasetFiles replaces the stored files for one dataset and marks its
// harvest complete, all in one transaction. This is the incremental
// persistence point: a crash between datasets loses at most one dataset.
func (s *Store) SaveDatasetFiles(ctx context.Context, datasetID string, files []model.FileRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE dataset_id = ?`, datasetID); err != nil {
		return fmt.Errorf("failed to clear files for %s: %w", datasetID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO files (file_id, dataset_id, name, file_type, file_size, download_url, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		meta := "{}"
		if f.Metadata != nil {
			data, marshalErr := json.Marshal(f.Metadata)
			if marshalErr != nil {
				return fmt.Errorf("failed to marshal file %s: %w", f.FileID, marshalErr)
			}
			meta = string(data)
		}
		if _, execErr := stmt.ExecContext(ctx,
			f.FileID, datasetID, f.Name.String(), f.FileType.String(),
			f.FileSize, f.DownloadURL, meta); execErr != nil {
			return fmt.Errorf("failed to save file %s: %w", f.FileID, execErr)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE datasets SET files_harvested = 1 WHERE id = ?`, datasetID); err != nil {
		return fmt.Errorf("failed to mark dataset %s harvested: %w", datasetID, err)
	}
	return tx.Commit()
}

// CompletedDatasets returns the set of dataset ids whose files are already
// harvested.
func (s *Store) CompletedDatasets(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM datasets WHERE files_harvested = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed datasets: %w", err)
	}
	defer rows.Close()

	completed := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dataset id: %w", err)
		}
		completed[id] = true
	}
	return completed, rows.Err()
}

// ExportDocument assembles the stabilized harvest document for all harvested
// leaf datasets of a collection. This is the reconciliation engine's input.
func (s *Store) ExportDocument(ctx context.Context, collectionID string) (model.HarvestDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, metadata FROM datasets
		 WHERE collection_id = ? AND is_leaf = 1 AND files_harvested = 1
		 ORDER BY id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query harvested datasets: %w", err)
	}
	defer rows.Close()

	doc := make(model.HarvestDocument)
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		var meta map[string]any
		if err := json.Unmarshal([]byte(data), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dataset %s: %w", id, err)
		}
		doc[id] = model.DatasetResources{DatasetMetadata: meta}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for id, resources := range doc {
		files, filesErr := s.datasetFiles(ctx, id)
		if filesErr != nil {
			return nil, filesErr
		}
		resources.Files = files
		resources.FileCount = len(files)
		doc[id] = resources
	}
	return doc, nil
}

func (s *Store) datasetFiles(ctx context.Context, datasetID string) ([]model.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_id, name, file_type, file_size, download_url, metadata
		 FROM files WHERE dataset_id = ? ORDER BY file_id`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files for %s: %w", datasetID, err)
	}
	defer rows.Close()

	var files []model.FileRecord
	for rows.Next() {
		var f model.FileRecord
		var name, fileType, meta string
		if err := rows.Scan(&f.FileID, &name, &fileType, &f.FileSize, &f.DownloadURL, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Name = model.FlexString(name)
		f.FileType = model.FlexString(fileType)
		f.DatasetID = datasetID
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal file %s metadata: %w", f.FileID, err)
			}
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
