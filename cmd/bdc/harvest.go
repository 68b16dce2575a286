package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/cli"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/common"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/harvest"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/labcas"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultCollectionID is the EDRN breast density collection this tool was
// built for.
const defaultCollectionID = "Automated_Quantitative_Measures_of_Breast_Density_Data"

func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest metadata from LabCAS",
		Long: `Harvest collection, dataset, and file metadata from LabCAS into a local
database, then export the stabilized harvest document.

Progress is persisted after each dataset, so an interrupted harvest resumes
from where it left off. Credentials come from BDC_LABCAS_USERNAME and
BDC_LABCAS_PASSWORD (or labcas.username/labcas.password in the config file).`,
		RunE: runHarvest,
	}

	cmd.Flags().StringP("collection", "c", defaultCollectionID, "LabCAS collection identifier")
	cmd.Flags().String("db", "", "harvest database path (default: $HOME/.config/bdc/harvest.db)")
	cmd.Flags().StringP("output", "o", "harvested_metadata/resources_by_dataset.json", "exported harvest document path")
	cmd.Flags().String("base-url", labcas.DefaultBaseURL, "LabCAS base URL")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	_ = viper.BindPFlag("harvest.collection", cmd.Flags().Lookup("collection"))
	_ = viper.BindPFlag("harvest.db", cmd.Flags().Lookup("db"))
	_ = viper.BindPFlag("harvest.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("labcas.base_url", cmd.Flags().Lookup("base-url"))
	_ = viper.BindPFlag("harvest.no_progress", cmd.Flags().Lookup("no-progress"))

	return cmd
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	username := viper.GetString("labcas.username")
	password := viper.GetString("labcas.password")
	if username == "" || password == "" {
		return common.NewUserError(
			"LabCAS credentials are required: set BDC_LABCAS_USERNAME and BDC_LABCAS_PASSWORD",
			common.ErrMissingConfig)
	}

	client, err := labcas.NewClient(labcas.Config{
		BaseURL:  viper.GetString("labcas.base_url"),
		Username: username,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("failed to create LabCAS client: %w", err)
	}

	dbPath := viper.GetString("harvest.db")
	if dbPath == "" {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return fmt.Errorf("failed to get home directory: %w", homeErr)
		}
		dbPath = filepath.Join(home, ".config", "bdc", "harvest.db")
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open harvest database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate harvest database: %w", err)
	}

	collectionID := viper.GetString("harvest.collection")
	slog.Info(cli.FormatTitle("Harvesting LabCAS metadata"))
	slog.Info("Target collection", "collection", collectionID)

	harvester := harvest.New(client, store, !viper.GetBool("harvest.no_progress"))
	summary, err := harvester.Run(ctx, collectionID)
	if err != nil {
		return fmt.Errorf("harvest failed: %w", err)
	}

	outputPath := viper.GetString("harvest.output")
	if err := exportDocument(cmd, store, collectionID, outputPath); err != nil {
		return err
	}

	slog.Info(cli.FormatSuccess("Harvest complete"))
	content := fmt.Sprintf(`Collection: %s
Total datasets: %d
Leaf datasets: %d
Datasets harvested this run: %d
Files harvested this run: %d

Harvest document: %s`,
		summary.CollectionName,
		summary.TotalDatasets,
		summary.LeafDatasets,
		summary.HarvestedDatasets,
		summary.TotalFiles,
		outputPath)
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Harvest Summary", content))

	return nil
}

func exportDocument(cmd *cobra.Command, store *storage.Store, collectionID, path string) error {
	doc, err := store.ExportDocument(cmd.Context(), collectionID)
	if err != nil {
		return fmt.Errorf("failed to assemble harvest document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal harvest document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write harvest document: %w", err)
	}

	slog.Info("Exported harvest document", "path", path, "datasets", len(doc))
	return nil
}
