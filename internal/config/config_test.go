package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// validConfig returns a Config that passes validation; tests mutate
// single fields to probe each rule.
func validConfig() Config {
	return Config{
		OpenAIEndpoint:      "https://example.openai.azure.com",
		OpenAIAPIKey:        "gen-key",
		ChatDeployment:      "gpt-4o",
		EmbeddingDeployment: "text-embedding-ada-002",
		APIVersion:          DefaultAPIVersion,
		SearchEndpoint:      "https://example.search.windows.net",
		SearchAPIKey:        "search-key",
		SearchIndex:         "brochures-index",
		QueryMode:           QueryModeVector,
		TopK:                DefaultTopK,
		MaxAttempts:         DefaultMaxAttempts,
		RequestTimeout:      DefaultRequestTimeout,
		HistoryTokenBudget:  DefaultHistoryTokenBudget,
	}
}

func TestValidateAccepts(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing generation endpoint",
			mutate:  func(c *Config) { c.OpenAIEndpoint = "" },
			wantErr: ErrMissingOpenAIEndpoint,
		},
		{
			name:    "malformed generation endpoint",
			mutate:  func(c *Config) { c.OpenAIEndpoint = "not-a-url" },
			wantErr: ErrInvalidOpenAIEndpoint,
		},
		{
			name:    "ftp generation endpoint",
			mutate:  func(c *Config) { c.OpenAIEndpoint = "ftp://example.com" },
			wantErr: ErrInvalidOpenAIEndpoint,
		},
		{
			name:    "missing generation key",
			mutate:  func(c *Config) { c.OpenAIAPIKey = "" },
			wantErr: ErrMissingOpenAIKey,
		},
		{
			name:    "missing chat deployment",
			mutate:  func(c *Config) { c.ChatDeployment = "" },
			wantErr: ErrMissingChatDeployment,
		},
		{
			name:    "missing embedding deployment",
			mutate:  func(c *Config) { c.EmbeddingDeployment = "" },
			wantErr: ErrMissingEmbeddingDeployment,
		},
		{
			name:    "missing search endpoint",
			mutate:  func(c *Config) { c.SearchEndpoint = "" },
			wantErr: ErrMissingSearchEndpoint,
		},
		{
			name:    "malformed search endpoint",
			mutate:  func(c *Config) { c.SearchEndpoint = "://bad" },
			wantErr: ErrInvalidSearchEndpoint,
		},
		{
			name:    "missing search key",
			mutate:  func(c *Config) { c.SearchAPIKey = "" },
			wantErr: ErrMissingSearchKey,
		},
		{
			name:    "missing index name",
			mutate:  func(c *Config) { c.SearchIndex = "" },
			wantErr: ErrMissingSearchIndex,
		},
		{
			name:    "unknown query mode",
			mutate:  func(c *Config) { c.QueryMode = "semantic" },
			wantErr: ErrInvalidQueryMode,
		},
		{
			name:    "zero top-k",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "excessive top-k",
			mutate:  func(c *Config) { c.TopK = MaxTopK + 1 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.MaxAttempts = 0 },
			wantErr: ErrInvalidMaxAttempts,
		},
		{
			name:    "excessive attempts",
			mutate:  func(c *Config) { c.MaxAttempts = MaxAttemptsCeiling + 1 },
			wantErr: ErrInvalidMaxAttempts,
		},
		{
			name:    "timeout too short",
			mutate:  func(c *Config) { c.RequestTimeout = time.Second },
			wantErr: ErrInvalidRequestTimeout,
		},
		{
			name:    "timeout too long",
			mutate:  func(c *Config) { c.RequestTimeout = time.Hour },
			wantErr: ErrInvalidRequestTimeout,
		},
		{
			name:    "history budget too small",
			mutate:  func(c *Config) { c.HistoryTokenBudget = 100 },
			wantErr: ErrInvalidHistoryBudget,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	t.Parallel()

	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got %v", err)
	}
}

// Missing retrieval credential must fail before any session exists,
// and the error must name the credential field.
func TestLoadMissingSearchKey(t *testing.T) {
	t.Setenv("SAGE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("SAGE_OPENAI_API_KEY", "gen-key")
	t.Setenv("SAGE_CHAT_DEPLOYMENT", "gpt-4o")
	t.Setenv("SAGE_EMBEDDING_DEPLOYMENT", "text-embedding-ada-002")
	t.Setenv("SAGE_SEARCH_ENDPOINT", "https://example.search.windows.net")
	t.Setenv("SAGE_SEARCH_INDEX", "brochures-index")
	t.Setenv("SAGE_SEARCH_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing search credential")
	}
	if !errors.Is(err, ErrMissingSearchKey) {
		t.Errorf("expected ErrMissingSearchKey, got %v", err)
	}
	if !strings.Contains(err.Error(), "search_api_key") {
		t.Errorf("error should name the credential field, got %q", err)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SAGE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("SAGE_OPENAI_API_KEY", "gen-key")
	t.Setenv("SAGE_CHAT_DEPLOYMENT", "gpt-4o")
	t.Setenv("SAGE_EMBEDDING_DEPLOYMENT", "text-embedding-ada-002")
	t.Setenv("SAGE_SEARCH_ENDPOINT", "https://example.search.windows.net")
	t.Setenv("SAGE_SEARCH_API_KEY", "search-key")
	t.Setenv("SAGE_SEARCH_INDEX", "brochures-index")
	t.Setenv("SAGE_QUERY_MODE", "hybrid")
	t.Setenv("SAGE_REQUEST_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SearchIndex != "brochures-index" {
		t.Errorf("SearchIndex = %q, want brochures-index", cfg.SearchIndex)
	}
	if cfg.QueryMode != QueryModeHybrid {
		t.Errorf("QueryMode = %q, want hybrid", cfg.QueryMode)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	// Defaults fill unset optional values.
	if cfg.TopK != DefaultTopK {
		t.Errorf("TopK = %d, want default %d", cfg.TopK, DefaultTopK)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", cfg.MaxAttempts, DefaultMaxAttempts)
	}
}

func TestMarshalJSONMasksCredentials(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	data, err := json.Marshal(&cfg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	s := string(data)
	if strings.Contains(s, "gen-key") || strings.Contains(s, "search-key") {
		t.Errorf("credentials leaked in JSON output: %s", s)
	}
	if !strings.Contains(s, `"***"`) {
		t.Errorf("expected masked credentials, got %s", s)
	}
}
