package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/cli"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/labcas"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/manifest"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/model"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/reconcile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func manifestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Build the pair manifest from harvested metadata",
		Long: `Reconcile the harvested metadata document into a strict CSV manifest of
matched PROC/MASK pairs, one row per patient and view.

Only the four mammographic views (LCC, LMLO, RCC, RMLO) are allowed, and any
file carrying a numeric duplicate suffix (e.g. _2.dcm) is never selected. A
diagnostics document explaining every selection decision is written alongside
the manifest.`,
		RunE: runManifest,
	}

	cmd.Flags().StringP("input", "i", "harvested_metadata/resources_by_dataset.json", "harvested metadata document")
	cmd.Flags().StringP("output", "o", "manifest.csv", "output CSV manifest")
	cmd.Flags().String("diag", "manifest_diagnostics.json", "diagnostics JSON file")
	cmd.Flags().String("download-base", labcas.DownloadURL(labcas.DefaultBaseURL, ""), "download endpoint prefix for manifest URLs")

	_ = viper.BindPFlag("manifest.input", cmd.Flags().Lookup("input"))
	_ = viper.BindPFlag("manifest.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("manifest.diag", cmd.Flags().Lookup("diag"))
	_ = viper.BindPFlag("manifest.download_base", cmd.Flags().Lookup("download-base"))

	return cmd
}

func runManifest(cmd *cobra.Command, _ []string) error {
	inputPath := viper.GetString("manifest.input")
	outputPath := viper.GetString("manifest.output")
	diagPath := viper.GetString("manifest.diag")

	// The missing input document is the one fatal condition; everything
	// else degrades to diagnostics.
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read harvest document %s: %w", inputPath, err)
	}

	var doc model.HarvestDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse harvest document %s: %w", inputPath, err)
	}

	slog.Info(cli.FormatTitle("Building pair manifest"))
	slog.Info("Processing datasets", "datasets", len(doc))

	engine := reconcile.NewEngine(viper.GetString("manifest.download_base"))
	result := engine.Build(doc)

	if err := manifest.WriteCSV(outputPath, result.Rows); err != nil {
		return err
	}
	if err := manifest.WriteDiagnostics(diagPath, result.Diagnostics); err != nil {
		return err
	}

	slog.Info(cli.FormatSuccess("Manifest written"), "path", outputPath)
	content := fmt.Sprintf(`Files scanned: %d
Skipped (unparseable name): %d
Skipped (disallowed view): %d
Skipped datasets (no role): %d
Patient/view groups: %d
Half pairs: %d

Pairs created: %d
Manifest: %s
Diagnostics: %s`,
		result.Stats.TotalFiles,
		result.Stats.Unparseable,
		result.Stats.DisallowedViews,
		result.Stats.SkippedDatasets,
		result.Diagnostics.TotalGroups,
		len(result.Diagnostics.HalfPairs),
		len(result.Rows),
		outputPath,
		diagPath)
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox("Manifest Summary", content))

	return nil
}
