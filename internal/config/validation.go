package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Generation backend connection
	if c.OpenAIEndpoint == "" {
		return fmt.Errorf("%w: set SAGE_OPENAI_ENDPOINT to your generation service URL",
			ErrMissingOpenAIEndpoint)
	}
	if err := validateEndpoint(c.OpenAIEndpoint); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOpenAIEndpoint, err)
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set SAGE_OPENAI_API_KEY", ErrMissingOpenAIKey)
	}
	if c.ChatDeployment == "" {
		return fmt.Errorf("%w: set SAGE_CHAT_DEPLOYMENT to the chat model deployment name",
			ErrMissingChatDeployment)
	}
	if c.EmbeddingDeployment == "" {
		return fmt.Errorf("%w: set SAGE_EMBEDDING_DEPLOYMENT to the embedding model deployment name",
			ErrMissingEmbeddingDeployment)
	}

	// Retrieval backend connection
	if c.SearchEndpoint == "" {
		return fmt.Errorf("%w: set SAGE_SEARCH_ENDPOINT to your search service URL",
			ErrMissingSearchEndpoint)
	}
	if err := validateEndpoint(c.SearchEndpoint); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSearchEndpoint, err)
	}
	if c.SearchAPIKey == "" {
		return fmt.Errorf("%w: set SAGE_SEARCH_API_KEY", ErrMissingSearchKey)
	}
	if c.SearchIndex == "" {
		return fmt.Errorf("%w: set SAGE_SEARCH_INDEX to the index name", ErrMissingSearchIndex)
	}

	// Retrieval behavior
	switch c.QueryMode {
	case QueryModeVector, QueryModeKeyword, QueryModeHybrid:
	default:
		return fmt.Errorf("%w: %q is not one of %q, %q, %q",
			ErrInvalidQueryMode, c.QueryMode, QueryModeVector, QueryModeKeyword, QueryModeHybrid)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: must be between 1 and %d, got %d", ErrInvalidTopK, MaxTopK, c.TopK)
	}

	// Resilience bounds
	if c.MaxAttempts < 1 || c.MaxAttempts > MaxAttemptsCeiling {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidMaxAttempts, MaxAttemptsCeiling, c.MaxAttempts)
	}
	if c.RequestTimeout < 5*time.Second || c.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("%w: must be between 5s and 5m, got %v",
			ErrInvalidRequestTimeout, c.RequestTimeout)
	}

	// History bound
	if c.HistoryTokenBudget < MinHistoryTokenBudget {
		return fmt.Errorf("%w: must be at least %d tokens, got %d",
			ErrInvalidHistoryBudget, MinHistoryTokenBudget, c.HistoryTokenBudget)
	}

	return nil
}

// validateEndpoint checks that the value is an absolute http(s) URL.
func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}
