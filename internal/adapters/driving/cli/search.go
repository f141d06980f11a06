package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
)

var (
	searchMode    string
	searchLimit   int
	searchJSON    bool
	searchFilters []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed documents",
	Long: `Performs hybrid search across all indexed documents.
Combines keyword (BM25) and semantic (vector) search with reciprocal
rank fusion for best results.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "",
		"search mode: keyword, vector, hybrid or full (default from config)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringArrayVar(&searchFilters, "filter", nil,
		"restrict results by chunk metadata, as key=value (repeatable)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if searchService == nil {
		return errors.New("search service not configured")
	}

	filters, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	opts := domain.SearchOptions{
		Limit:   searchLimit,
		Mode:    effectiveSearchMode(),
		Filters: filters,
	}

	ctx := context.Background()
	results, err := searchService.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

// effectiveSearchMode resolves the --mode flag, falling back to the
// configured default mode.
func effectiveSearchMode() domain.SearchMode {
	if searchMode != "" {
		return domain.ParseSearchMode(searchMode)
	}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			return settings.Search
		}
	}
	return domain.SearchModeAuto
}

func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title := results[i].Document.Title
		if title == "" {
			title = results[i].Document.ID
		}

		snippet := ""
		if len(results[i].Highlights) > 0 {
			snippet = results[i].Highlights[0]
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		if results[i].Document.URI != "" {
			cmd.Printf("      File: %s\n", results[i].Document.URI)
		}
		if location := chunkLocation(results[i].Chunk.Metadata); location != "" {
			cmd.Printf("      Location: %s\n", location)
		}
		if snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}

	return nil
}

// chunkLocation describes where a chunk sits in its document, from the
// paragraph range and heading the chunker recorded.
func chunkLocation(metadata map[string]any) string {
	var parts []string
	if heading, ok := metadata["heading"].(string); ok && heading != "" {
		parts = append(parts, fmt.Sprintf("%q", heading))
	}
	first, okFirst := metadataInt(metadata["paragraph_start"])
	last, okLast := metadataInt(metadata["paragraph_end"])
	switch {
	case okFirst && okLast && first != last:
		parts = append(parts, fmt.Sprintf("paragraphs %d-%d", first, last))
	case okFirst:
		parts = append(parts, fmt.Sprintf("paragraph %d", first))
	}
	return strings.Join(parts, ", ")
}

// metadataInt reads a numeric metadata value. Values round-trip
// through JSON, so stored ints come back as float64.
func metadataInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
