// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (SAGE_ prefix)
//  2. Config file (~/.sage/config.yaml or ./config.yaml)
//  3. Default values
//
// The resolved Config is immutable and shared read-only across the
// process. Validation is fail-fast: a missing or malformed required
// value aborts startup with a sentinel error naming the field, checked
// with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation. Each names the field
// that failed so operators can correct the environment directly.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingOpenAIEndpoint indicates the generation endpoint is not set.
	ErrMissingOpenAIEndpoint = errors.New("missing openai_endpoint")

	// ErrInvalidOpenAIEndpoint indicates the generation endpoint is not a valid URL.
	ErrInvalidOpenAIEndpoint = errors.New("invalid openai_endpoint")

	// ErrMissingOpenAIKey indicates the generation credential is not set.
	ErrMissingOpenAIKey = errors.New("missing openai_api_key")

	// ErrMissingChatDeployment indicates the chat deployment name is not set.
	ErrMissingChatDeployment = errors.New("missing chat_deployment")

	// ErrMissingEmbeddingDeployment indicates the embedding deployment name is not set.
	ErrMissingEmbeddingDeployment = errors.New("missing embedding_deployment")

	// ErrMissingSearchEndpoint indicates the retrieval endpoint is not set.
	ErrMissingSearchEndpoint = errors.New("missing search_endpoint")

	// ErrInvalidSearchEndpoint indicates the retrieval endpoint is not a valid URL.
	ErrInvalidSearchEndpoint = errors.New("invalid search_endpoint")

	// ErrMissingSearchKey indicates the retrieval credential is not set.
	ErrMissingSearchKey = errors.New("missing search_api_key")

	// ErrMissingSearchIndex indicates the index name is not set.
	ErrMissingSearchIndex = errors.New("missing search_index")

	// ErrInvalidQueryMode indicates the query mode is not one of vector/keyword/hybrid.
	ErrInvalidQueryMode = errors.New("invalid query_mode")

	// ErrInvalidTopK indicates the retrieval top-K is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMaxAttempts indicates the retry attempt ceiling is out of range.
	ErrInvalidMaxAttempts = errors.New("invalid max_attempts")

	// ErrInvalidRequestTimeout indicates the backend call timeout is out of range.
	ErrInvalidRequestTimeout = errors.New("invalid request_timeout")

	// ErrInvalidHistoryBudget indicates the history token budget is too small.
	ErrInvalidHistoryBudget = errors.New("invalid history_token_budget")
)

// Query modes for the retrieval directive. Vector is the default
// (semantic search); keyword and hybrid may be selected via config.
const (
	QueryModeVector  = "vector"
	QueryModeKeyword = "keyword"
	QueryModeHybrid  = "hybrid"
)

const (
	// DefaultAPIVersion is the data-sources chat completions API version.
	DefaultAPIVersion = "2024-02-01"

	// DefaultTopK is the default number of passages retrieved per query.
	DefaultTopK = 5

	// MaxTopK is the upper bound accepted for top_k.
	MaxTopK = 50

	// DefaultMaxAttempts bounds retries of transient backend failures.
	DefaultMaxAttempts = 3

	// MaxAttemptsCeiling is the absolute upper bound for max_attempts.
	MaxAttemptsCeiling = 10

	// DefaultRequestTimeout bounds a single generation call.
	DefaultRequestTimeout = 45 * time.Second

	// DefaultHistoryTokenBudget bounds conversation history sent per call.
	DefaultHistoryTokenBudget = 8000

	// MinHistoryTokenBudget is the smallest usable history budget.
	MinHistoryTokenBudget = 512
)

// Config stores the resolved application configuration.
// SECURITY: credential fields are masked in MarshalJSON().
type Config struct {
	// Generation backend (Azure-OpenAI-style chat completions with data sources)
	OpenAIEndpoint      string `mapstructure:"openai_endpoint" json:"openai_endpoint"`
	OpenAIAPIKey        string `mapstructure:"openai_api_key" json:"openai_api_key"` // SENSITIVE
	ChatDeployment      string `mapstructure:"chat_deployment" json:"chat_deployment"`
	EmbeddingDeployment string `mapstructure:"embedding_deployment" json:"embedding_deployment"`
	APIVersion          string `mapstructure:"api_version" json:"api_version"`

	// Retrieval backend (reached indirectly via the generation call)
	SearchEndpoint string `mapstructure:"search_endpoint" json:"search_endpoint"`
	SearchAPIKey   string `mapstructure:"search_api_key" json:"search_api_key"` // SENSITIVE
	SearchIndex    string `mapstructure:"search_index" json:"search_index"`
	QueryMode      string `mapstructure:"query_mode" json:"query_mode"`
	TopK           int    `mapstructure:"top_k" json:"top_k"`

	// Resilience
	MaxAttempts    int           `mapstructure:"max_attempts" json:"max_attempts"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`

	// Conversation history bound
	HistoryTokenBudget int `mapstructure:"history_token_budget" json:"history_token_budget"`
}

// Load resolves configuration from environment variables, an optional
// config file, and defaults, then validates it.
// Priority: environment variables > configuration file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".sage"))
	}
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults remain.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail-fast: an invalid Config must never reach a session.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets defaults for all optional configuration values.
// Required connection values deliberately have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_version", DefaultAPIVersion)
	v.SetDefault("query_mode", QueryModeVector)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("max_attempts", DefaultMaxAttempts)
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("history_token_budget", DefaultHistoryTokenBudget)
}

// bindEnvVariables binds each configuration key to its SAGE_* variable.
// Bindings are explicit so the full surface is visible in one place.
func bindEnvVariables(v *viper.Viper) {
	envs := map[string]string{
		"openai_endpoint":      "SAGE_OPENAI_ENDPOINT",
		"openai_api_key":       "SAGE_OPENAI_API_KEY",
		"chat_deployment":      "SAGE_CHAT_DEPLOYMENT",
		"embedding_deployment": "SAGE_EMBEDDING_DEPLOYMENT",
		"api_version":          "SAGE_API_VERSION",
		"search_endpoint":      "SAGE_SEARCH_ENDPOINT",
		"search_api_key":       "SAGE_SEARCH_API_KEY",
		"search_index":         "SAGE_SEARCH_INDEX",
		"query_mode":           "SAGE_QUERY_MODE",
		"top_k":                "SAGE_TOP_K",
		"max_attempts":         "SAGE_MAX_ATTEMPTS",
		"request_timeout":      "SAGE_REQUEST_TIMEOUT",
		"history_token_budget": "SAGE_HISTORY_TOKEN_BUDGET",
	}
	for key, env := range envs {
		// BindEnv only errors on empty arguments.
		_ = v.BindEnv(key, env)
	}
}

// MarshalJSON masks credential fields so a Config can be logged or
// dumped for diagnostics without leaking secrets.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursion
	masked := alias(*c)
	if masked.OpenAIAPIKey != "" {
		masked.OpenAIAPIKey = "***"
	}
	if masked.SearchAPIKey != "" {
		masked.SearchAPIKey = "***"
	}
	return json.Marshal(masked)
}
