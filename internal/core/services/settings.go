package services

import (
	"fmt"

	"github.com/soprev-labs/soprev-cli/internal/core/domain"
	"github.com/soprev-labs/soprev-cli/internal/core/ports/driven"
)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keySearchMode     = "search.mode"
	keyEmbedProvider  = "embedding.provider"
	keyEmbedModel     = "embedding.model"
	keyEmbedBaseURL   = "embedding.base_url"
	keyEmbedAPIKey    = "embedding.api_key"
	keyLLMProvider    = "llm.provider"
	keyLLMModel       = "llm.model"
	keyLLMBaseURL     = "llm.base_url"
	keyLLMAPIKey      = "llm.api_key"
	keyLLMRPM         = "llm.requests_per_minute"
	keyChunkSize      = "indexing.chunk_size"
	keyChunkOverlap   = "indexing.chunk_overlap"
	keyEmbedBatchSize = "indexing.embed_batch_size"
)

// SettingsService reads and writes application settings in config.toml.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings, falling back to defaults
// for unset keys.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Search: domain.ParseSearchMode(s.configStore.GetString(keySearchMode)),
		Embedding: domain.EmbeddingSettings{
			Provider: domain.AIProvider(s.configStore.GetString(keyEmbedProvider)),
			Model:    s.configStore.GetString(keyEmbedModel),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider:          domain.AIProvider(s.configStore.GetString(keyLLMProvider)),
			Model:             s.configStore.GetString(keyLLMModel),
			BaseURL:           s.configStore.GetString(keyLLMBaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerMinute: s.configStore.GetInt(keyLLMRPM),
		},
		Indexing: domain.IndexingSettings{
			ChunkSize:      s.getInt(keyChunkSize, defaults.Indexing.ChunkSize),
			ChunkOverlap:   s.getInt(keyChunkOverlap, defaults.Indexing.ChunkOverlap),
			EmbedBatchSize: s.getInt(keyEmbedBatchSize, defaults.Indexing.EmbedBatchSize),
		},
	}

	// Unset provider models fall back to the provider default.
	if settings.Embedding.Provider.IsValid() && settings.Embedding.Model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[settings.Embedding.Provider]
	}
	if settings.LLM.Provider.IsValid() && settings.LLM.Model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[settings.LLM.Provider]
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	pairs := []struct {
		key   string
		value any
	}{
		{keySearchMode, settings.Search.String()},
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyLLMRPM, settings.LLM.RequestsPerMinute},
		{keyChunkSize, settings.Indexing.ChunkSize},
		{keyChunkOverlap, settings.Indexing.ChunkOverlap},
		{keyEmbedBatchSize, settings.Indexing.EmbedBatchSize},
	}

	for _, pair := range pairs {
		if err := s.configStore.Set(pair.key, pair.value); err != nil {
			return fmt.Errorf("set %s: %w", pair.key, err)
		}
	}
	return s.configStore.Save()
}

func (s *SettingsService) getInt(key string, fallback int) int {
	if value := s.configStore.GetInt(key); value > 0 {
		return value
	}
	return fallback
}
