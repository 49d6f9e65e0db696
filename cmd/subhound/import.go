package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/subhound/subhound/internal/ingest"
	"github.com/subhound/subhound/internal/model"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import raw payment events from external exports",
	}

	cmd.AddCommand(importOFXCmd())
	cmd.AddCommand(importEmailCmd())

	return cmd
}

func importOFXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ofx [files...]",
		Short: "Import bank transactions from OFX/QFX files",
		Long: `Import bank transactions from OFX or QFX (Quicken) files exported from your bank.

Examples:
  # Import a single file
  subhound import ofx --user alice ~/Downloads/statement_jan.qfx

  # Import everything in a directory
  subhound import ofx --user alice ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImportOFX,
	}

	cmd.Flags().String("user", "", "user the imported events belong to (required)")
	cmd.Flags().String("currency", "USD", "currency to tag imported amounts with")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImportOFX(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd.Flags().GetString)
	if err != nil {
		return err
	}
	currency, _ := cmd.Flags().GetString("currency")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
		} else {
			allFiles = append(allFiles, matches...)
		}
	}

	if len(allFiles) == 0 {
		return fmt.Errorf("no files found to import")
	}

	slog.Info("🐕 Importing OFX files...",
		"file_count", len(allFiles),
		"dry_run", dryRun)

	importer := ingest.NewOFXImporter(currency)
	ctx := cmd.Context()

	var bar *progressbar.ProgressBar
	if len(allFiles) > 1 {
		bar = progressbar.NewOptions(len(allFiles),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Importing files..."),
		)
	}

	var allEvents []model.RawEvent
	for _, filePath := range allFiles {
		f, err := os.Open(filePath)
		if err != nil {
			slog.Error("Failed to open file", "file", filePath, "error", err)
			continue
		}

		events, err := importer.Import(ctx, f, user)
		_ = f.Close()
		if err != nil {
			slog.Error("Failed to parse OFX file", "file", filePath, "error", err)
			continue
		}

		allEvents = append(allEvents, events...)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		fmt.Fprintln(os.Stderr)
	}

	return saveImported(cmd, allEvents, dryRun)
}

func importEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email [file]",
		Short: "Import AI-extracted receipts from an email scan dump",
		Long: `Import a JSON dump of AI-extracted email receipts produced by the email
scanner. Extraction hints are kept as auxiliary signal only; the detector
always classifies cadence itself.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportEmail,
	}

	cmd.Flags().String("user", "", "user the imported events belong to (required)")
	cmd.Flags().BoolP("dry-run", "d", false, "Preview import without saving")

	return cmd
}

func runImportEmail(cmd *cobra.Command, args []string) error {
	user, err := requireUser(cmd.Flags().GetString)
	if err != nil {
		return err
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer func() { _ = f.Close() }()

	events, err := ingest.NewEmailImporter().Import(cmd.Context(), f, user)
	if err != nil {
		return err
	}

	return saveImported(cmd, events, dryRun)
}

// saveImported persists imported events unless this is a dry run.
func saveImported(cmd *cobra.Command, events []model.RawEvent, dryRun bool) error {
	if len(events) == 0 {
		slog.Warn("No events found to import")
		return nil
	}

	if dryRun {
		slog.Info("🔍 Dry run complete - no data saved", "events", len(events))
		return nil
	}

	store, err := openStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	inserted, err := store.SaveRawEvents(cmd.Context(), events)
	if err != nil {
		return fmt.Errorf("failed to save events: %w", err)
	}

	slog.Info("💾 Saved imported events",
		"parsed", len(events),
		"new", inserted,
		"already_known", len(events)-inserted)

	fmt.Printf("Imported %d events (%d new)\n", len(events), inserted)
	return nil
}
