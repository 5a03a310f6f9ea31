package backend

import (
	"github.com/sagechat/sage/internal/config"
	"github.com/sagechat/sage/internal/retrieval"
)

// Wire shapes for the data-sources chat completions protocol.
// All payloads are fixed-shape structs with named, typed fields;
// nothing is built from open-ended maps.

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireAuthentication struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

type wireEmbeddingDependency struct {
	Type           string `json:"type"`
	DeploymentName string `json:"deployment_name"`
}

type wireDataSourceParameters struct {
	Endpoint            string                  `json:"endpoint"`
	IndexName           string                  `json:"index_name"`
	QueryType           string                  `json:"query_type"`
	TopNDocuments       int                     `json:"top_n_documents,omitempty"`
	Authentication      wireAuthentication      `json:"authentication"`
	EmbeddingDependency wireEmbeddingDependency `json:"embedding_dependency"`
}

type wireDataSource struct {
	Type       string                   `json:"type"`
	Parameters wireDataSourceParameters `json:"parameters"`
}

type wireRequest struct {
	Messages    []wireMessage    `json:"messages"`
	DataSources []wireDataSource `json:"data_sources"`
}

type wireCitation struct {
	Content  string `json:"content"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Filepath string `json:"filepath"`
	ChunkID  string `json:"chunk_id"`
}

type wireContext struct {
	Citations []wireCitation `json:"citations"`
}

type wireResponseMessage struct {
	Role    string      `json:"role"`
	Content string      `json:"content"`
	Context wireContext `json:"context"`
}

type wireChoice struct {
	Message      wireResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
}

type wireErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// queryType translates a directive query mode to its wire value.
// Keyword search is called "simple" on the wire.
func queryType(mode string) string {
	switch mode {
	case config.QueryModeKeyword:
		return "simple"
	case config.QueryModeHybrid:
		return "vector_simple_hybrid"
	default:
		return "vector"
	}
}

// dataSource encodes a retrieval directive as the request's data
// source block.
func dataSource(d retrieval.Directive) wireDataSource {
	return wireDataSource{
		Type: "azure_search",
		Parameters: wireDataSourceParameters{
			Endpoint:      d.Endpoint,
			IndexName:     d.IndexName,
			QueryType:     queryType(d.QueryMode),
			TopNDocuments: d.TopK,
			Authentication: wireAuthentication{
				Type: d.Authentication.Type,
				Key:  d.Authentication.Key,
			},
			EmbeddingDependency: wireEmbeddingDependency{
				Type:           "deployment_name",
				DeploymentName: d.EmbeddingDeployment,
			},
		},
	}
}
