package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adi776borate/edrn-breast-density-croissant/internal/cli"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/croissant"
	"github.com/adi776borate/edrn-breast-density-croissant/internal/manifest"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func croissantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "croissant",
		Short: "Generate the Croissant dataset description",
		Long: `Generate an ML Commons Croissant 1.0 JSON-LD dataset description
referencing the pair manifest, including its sha256 checksum.`,
		RunE: runCroissant,
	}

	cmd.Flags().StringP("manifest", "m", "manifest.csv", "input CSV manifest")
	cmd.Flags().StringP("output", "o", "output/croissant.json", "output Croissant JSON-LD document")
	cmd.Flags().String("dataset-version", "1.0.0", "version recorded in the dataset description")

	_ = viper.BindPFlag("croissant.manifest", cmd.Flags().Lookup("manifest"))
	_ = viper.BindPFlag("croissant.output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag("croissant.dataset_version", cmd.Flags().Lookup("dataset-version"))

	return cmd
}

func runCroissant(cmd *cobra.Command, _ []string) error {
	manifestPath := viper.GetString("croissant.manifest")
	outputPath := viper.GetString("croissant.output")

	// Validate the manifest before describing it; a malformed manifest would
	// otherwise surface only when a consumer loads the Croissant document.
	rows, err := manifest.ReadCSV(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to read manifest (run 'bdc manifest' first?): %w", err)
	}

	slog.Info(cli.FormatTitle("Generating Croissant metadata"))
	slog.Info("Manifest loaded", "path", manifestPath, "pairs", len(rows))

	params := croissant.DefaultParams()
	params.Version = viper.GetString("croissant.dataset_version")

	doc, err := croissant.Generate(manifestPath, params)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal Croissant document: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write Croissant document: %w", err)
	}

	slog.Info(cli.FormatSuccess("Croissant metadata written"),
		"path", outputPath,
		"sha256", doc.Distribution[0].SHA256)

	return nil
}
