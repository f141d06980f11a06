// Package cli implements the soprev command-line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/soprev-labs/soprev-cli/internal/core/ports/driving"
	"github.com/soprev-labs/soprev-cli/internal/core/services"
	"github.com/soprev-labs/soprev-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "0.1.0"

// Persistent flags.
var (
	verbose   bool
	dataDir   string
	configDir string
)

// Services the commands run against. Populated by bootstrap on first
// use, or injected directly in tests.
var (
	indexService    driving.IndexService
	searchService   driving.SearchService
	chatService     driving.ChatService
	revisionService driving.RevisionService
	documentService driving.DocumentService
	watchService    driving.WatchService
	settingsService *services.SettingsService
)

var rootCmd = &cobra.Command{
	Use:   "soprev",
	Short: "Local RAG assistant for SOP documents",
	Long: `Soprev indexes Standard Operating Procedure documents (docx, md, txt)
into a local store and answers questions about them with
retrieval-augmented generation. It can also propose, review and apply
revisions to SOP .docx files.

All data lives under ~/.soprev/ and nothing leaves your machine unless
a remote AI provider is configured.`,
	SilenceUsage:      true,
	PersistentPreRunE: preRun,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.soprev/data)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.soprev)")
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	// The version command works without any stores or providers.
	if cmd.Name() == "version" || bootstrapped {
		return nil
	}
	return bootstrap()
}

// Execute runs the root command and releases resources on exit.
func Execute() error {
	defer shutdown()
	return rootCmd.Execute()
}
