package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
)

var indexCmd = &cobra.Command{
	Use:   "index [path]...",
	Short: "Index SOP files into the local store",
	Long: `Indexes SOP files (docx, md, txt) into the local document store.
Directories are scanned recursively. Re-indexing a known file bumps its
version and replaces its chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	ctx := context.Background()
	total := driving.IndexReport{}

	for _, path := range args {
		bar := indexProgressBar(filepath.Base(path))
		progress := func(_ int, uri string) {
			_ = bar.Add(1)
			bar.Describe(filepath.Base(uri))
		}

		report, err := indexService.IndexPath(ctx, path, progress)
		_ = bar.Finish()
		cmd.Println()
		if err != nil {
			return fmt.Errorf("indexing %s: %w", path, err)
		}

		total.Indexed += report.Indexed
		total.Skipped += report.Skipped
		total.Failed += report.Failed
		total.Errors = append(total.Errors, report.Errors...)
	}

	cmd.Printf("Indexed %d files (%d skipped, %d failed).\n",
		total.Indexed, total.Skipped, total.Failed)
	for _, err := range total.Errors {
		cmd.Printf("  error: %v\n", err)
	}
	return nil
}

// indexProgressBar returns a spinner-style bar for an indexing pass.
// The file count is unknown up front, so no fixed total is set.
func indexProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSpinnerType(14),
	)
}
