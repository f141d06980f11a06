package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure search mode, AI providers and indexing options.
Settings persist in config.toml under the config directory.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsModeCmd = &cobra.Command{
	Use:   "mode [mode]",
	Short: "Set the default search mode",
	Long: `Sets the default retrieval mode.

Available modes:
  auto     - richest mode the configured providers allow (default)
  keyword  - BM25 full-text search only
  vector   - embedding similarity search (requires embedding provider)
  hybrid   - keyword + vector with reciprocal rank fusion
  full     - hybrid plus LLM query rewriting (requires both providers)`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsMode,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long:  `Configure the embedding provider used for semantic search.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the LLM provider",
	Long:  `Configure the LLM provider used for chat, revisions and query rewriting.`,
	RunE:  runSettingsLLM,
}

var settingsIndexingCmd = &cobra.Command{
	Use:   "indexing",
	Short: "Configure chunking behaviour",
	RunE:  runSettingsIndexing,
}

// Provider flags shared by the embedding and llm subcommands.
var (
	embedProvider string
	embedModel    string
	embedBaseURL  string
	embedAPIKey   string

	llmProvider string
	llmModel    string
	llmBaseURL  string
	llmAPIKey   string
	llmRPM      int

	chunkSize      int
	chunkOverlap   int
	embedBatchSize int
)

func init() {
	settingsEmbeddingCmd.Flags().StringVar(&embedProvider, "provider", "", "provider: ollama or openai")
	settingsEmbeddingCmd.Flags().StringVar(&embedModel, "model", "", "embedding model name")
	settingsEmbeddingCmd.Flags().StringVar(&embedBaseURL, "base-url", "", "provider base URL")
	settingsEmbeddingCmd.Flags().StringVar(&embedAPIKey, "api-key", "", "provider API key")

	settingsLLMCmd.Flags().StringVar(&llmProvider, "provider", "", "provider: ollama, openai or gemini")
	settingsLLMCmd.Flags().StringVar(&llmModel, "model", "", "LLM model name")
	settingsLLMCmd.Flags().StringVar(&llmBaseURL, "base-url", "", "provider base URL")
	settingsLLMCmd.Flags().StringVar(&llmAPIKey, "api-key", "", "provider API key")
	settingsLLMCmd.Flags().IntVar(&llmRPM, "rpm", 0, "request rate limit per minute (0 = unlimited)")

	settingsIndexingCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "characters per chunk")
	settingsIndexingCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", -1, "overlapping characters between chunks")
	settingsIndexingCmd.Flags().IntVar(&embedBatchSize, "embed-batch-size", 0, "chunks embedded per request")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsModeCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsIndexingCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	cmd.Println("Current settings:")
	cmd.Println()
	cmd.Printf("  Search mode:  %s\n", settings.Search.Description())
	cmd.Println()
	cmd.Println("  Embedding:")
	printProvider(cmd, settings.Embedding.Provider.String(), settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey)
	cmd.Println()
	cmd.Println("  LLM:")
	printProvider(cmd, settings.LLM.Provider.String(), settings.LLM.Model,
		settings.LLM.BaseURL, settings.LLM.APIKey)
	if settings.LLM.RequestsPerMinute > 0 {
		cmd.Printf("    Rate limit: %d req/min\n", settings.LLM.RequestsPerMinute)
	}
	cmd.Println()
	cmd.Println("  Indexing:")
	cmd.Printf("    Chunk size:       %d\n", settings.Indexing.ChunkSize)
	cmd.Printf("    Chunk overlap:    %d\n", settings.Indexing.ChunkOverlap)
	cmd.Printf("    Embed batch size: %d\n", settings.Indexing.EmbedBatchSize)

	return nil
}

func printProvider(cmd *cobra.Command, provider, model, baseURL, apiKey string) {
	if provider == "" {
		cmd.Println("    (not configured)")
		return
	}
	cmd.Printf("    Provider: %s\n", provider)
	cmd.Printf("    Model:    %s\n", model)
	if baseURL != "" {
		cmd.Printf("    Base URL: %s\n", baseURL)
	}
	if apiKey != "" {
		cmd.Printf("    API key:  %s\n", maskKey(apiKey))
	}
}

// maskKey hides all but the last four characters of an API key.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func runSettingsMode(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	settings.Search = domain.ParseSearchMode(args[0])
	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Printf("Search mode set to %s.\n", settings.Search)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		settings.Embedding.Provider = domain.AIProvider(embedProvider)
		if !settings.Embedding.Provider.IsValid() {
			return fmt.Errorf("unknown embedding provider %q", embedProvider)
		}
		// Switching provider resets the model to the provider default
		// unless one is given explicitly.
		if !flags.Changed("model") {
			settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
		}
	}
	if flags.Changed("model") {
		settings.Embedding.Model = embedModel
	}
	if flags.Changed("base-url") {
		settings.Embedding.BaseURL = embedBaseURL
	}
	if flags.Changed("api-key") {
		settings.Embedding.APIKey = embedAPIKey
	}

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Println("Embedding settings saved.")
	return nil
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		settings.LLM.Provider = domain.AIProvider(llmProvider)
		if !settings.LLM.Provider.IsValid() {
			return fmt.Errorf("unknown LLM provider %q", llmProvider)
		}
		if !flags.Changed("model") {
			settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
		}
	}
	if flags.Changed("model") {
		settings.LLM.Model = llmModel
	}
	if flags.Changed("base-url") {
		settings.LLM.BaseURL = llmBaseURL
	}
	if flags.Changed("api-key") {
		settings.LLM.APIKey = llmAPIKey
	}
	if flags.Changed("rpm") {
		settings.LLM.RequestsPerMinute = llmRPM
	}

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Println("LLM settings saved.")
	return nil
}

func runSettingsIndexing(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("chunk-size") {
		if chunkSize <= 0 {
			return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
		}
		settings.Indexing.ChunkSize = chunkSize
	}
	if flags.Changed("chunk-overlap") {
		if chunkOverlap < 0 {
			return fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
		}
		settings.Indexing.ChunkOverlap = chunkOverlap
	}
	if flags.Changed("embed-batch-size") {
		if embedBatchSize <= 0 {
			return fmt.Errorf("embed batch size must be positive, got %d", embedBatchSize)
		}
		settings.Indexing.EmbedBatchSize = embedBatchSize
	}
	if settings.Indexing.ChunkOverlap >= settings.Indexing.ChunkSize {
		return fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)",
			settings.Indexing.ChunkOverlap, settings.Indexing.ChunkSize)
	}

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Println("Indexing settings saved.")
	return nil
}
