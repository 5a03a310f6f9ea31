// Package retrieval builds the retrieval directive that augments each
// generation call with external search context.
//
// A Directive is a pure function of the resolved configuration: the
// same Config always yields a field-for-field equal Directive. It is
// rebuilt fresh for every generation call; directives are cheap and
// config never changes within a session, so no caching exists. The
// wire encoding of a directive belongs to the backend client, not
// here.
package retrieval

import "github.com/sagechat/sage/internal/config"

// AuthTypeAPIKey authenticates against the retrieval index with an API key.
const AuthTypeAPIKey = "api_key"

// Authentication carries the credential reference for the retrieval
// backend. The generation backend presents it when querying the index.
type Authentication struct {
	Type string
	Key  string
}

// Directive describes how a generation call augments itself with
// retrieved context: which backend, which index, which query mode,
// and which embedding deployment vectorizes the query.
//
// The embedding deployment's output dimensionality must match the
// index's vector field; that precondition is asserted by configuration
// and can only be discovered at call time from a backend error.
type Directive struct {
	Endpoint            string
	IndexName           string
	QueryMode           string // config.QueryModeVector | Keyword | Hybrid
	EmbeddingDeployment string
	TopK                int
	Authentication      Authentication
}

// Build derives a Directive from the configuration.
// Pure and deterministic; no side effects, no network.
func Build(cfg *config.Config) Directive {
	return Directive{
		Endpoint:            cfg.SearchEndpoint,
		IndexName:           cfg.SearchIndex,
		QueryMode:           cfg.QueryMode,
		EmbeddingDeployment: cfg.EmbeddingDeployment,
		TopK:                cfg.TopK,
		Authentication: Authentication{
			Type: AuthTypeAPIKey,
			Key:  cfg.SearchAPIKey,
		},
	}
}
