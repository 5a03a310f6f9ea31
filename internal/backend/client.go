// Package backend implements the client for the augmented generation
// call: a chat completion whose request carries a retrieval data
// source, so the backend vectorizes the latest query, searches the
// named index, and grounds its answer in the retrieved passages.
//
// Failures are classified into a small taxonomy (configuration /
// transient / fatal) that the orchestrator uses to decide whether to
// retry, surface, or abort. See errors.go.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sagechat/sage/internal/config"
	"github.com/sagechat/sage/internal/log"
	"github.com/sagechat/sage/internal/retrieval"
	"github.com/sagechat/sage/internal/session"
)

// Message is one role/content pair of the conversation sent to the
// generation backend.
type Message struct {
	Role    string
	Content string
}

// GenerationRequest is the resolved payload for one augmented
// generation call: the full ordered turn history plus the retrieval
// directive. Built fresh per call, never mutated after construction.
type GenerationRequest struct {
	Messages  []Message
	Directive retrieval.Directive
}

// Answer is a grounded generation result. Citations carry the
// 1-based rank of each passage in retrieval relevance order.
type Answer struct {
	Text      string
	Citations []session.Citation
}

// snippetLimit bounds the stored citation snippet length in runes.
const snippetLimit = 200

// Client issues augmented generation calls over HTTP.
//
// Client is immutable after construction and safe for concurrent use.
type Client struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient builds a Client from the resolved configuration.
// The request timeout from config bounds every call.
func NewClient(cfg *config.Config, logger log.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimRight(cfg.OpenAIEndpoint, "/"),
		apiKey:     cfg.OpenAIAPIKey,
		deployment: cfg.ChatDeployment,
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

// Generate performs one augmented generation call and extracts the
// answer text and ordered citations. Errors are returned as *Error
// with a classified Kind.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (Answer, error) {
	wreq := wireRequest{
		Messages:    make([]wireMessage, len(req.Messages)),
		DataSources: []wireDataSource{dataSource(req.Directive)},
	}
	for i, m := range req.Messages {
		wreq.Messages[i] = wireMessage{Role: m.Role, Content: m.Content}
	}

	body, err := json.Marshal(wreq)
	if err != nil {
		return Answer{}, &Error{Kind: KindFatal, Message: "encoding request", cause: err}
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Answer{}, &Error{Kind: KindConfiguration, Field: "openai_endpoint",
			Message: "building request", cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts and connection failures are transient unless the
		// caller itself canceled.
		if errors.Is(err, context.Canceled) {
			return Answer{}, &Error{Kind: KindFatal, Message: "call canceled", cause: err}
		}
		return Answer{}, &Error{Kind: KindTransient, Message: "calling generation backend", cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Answer{}, &Error{Kind: KindTransient, Status: resp.StatusCode,
			Message: "reading response", cause: err}
	}

	c.logger.Debug("generation call completed",
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
		"messages", len(req.Messages),
	)

	if resp.StatusCode != http.StatusOK {
		return Answer{}, c.errorFromResponse(resp.StatusCode, payload, req.Directive)
	}

	var wresp wireResponse
	if err := json.Unmarshal(payload, &wresp); err != nil {
		return Answer{}, &Error{Kind: KindFatal, Status: resp.StatusCode,
			Message: "decoding response", cause: err}
	}
	if len(wresp.Choices) == 0 {
		return Answer{}, &Error{Kind: KindFatal, Status: resp.StatusCode,
			Message: "response contains no choices"}
	}

	msg := wresp.Choices[0].Message
	if strings.TrimSpace(msg.Content) == "" {
		return Answer{}, &Error{Kind: KindFatal, Status: resp.StatusCode,
			Message: "response contains no answer text"}
	}

	return Answer{
		Text:      msg.Content,
		Citations: convertCitations(msg.Context.Citations),
	}, nil
}

// errorFromResponse builds a classified *Error from a non-200 response.
func (c *Client) errorFromResponse(status int, payload []byte, d retrieval.Directive) *Error {
	var eb wireErrorBody
	message := http.StatusText(status)
	code := ""
	if err := json.Unmarshal(payload, &eb); err == nil && eb.Error.Message != "" {
		message = eb.Error.Message
		code = eb.Error.Code
	}

	e := &Error{
		Kind:    classifyStatus(status),
		Status:  status,
		Message: message,
	}

	// A vector dimensionality mismatch between the embedding deployment
	// and the index schema is only discoverable here. Report it
	// distinctly so operators can correlate it with the index config.
	if strings.Contains(strings.ToLower(message), "dimension") {
		e.Kind = KindFatal
		e.Field = d.IndexName
		e.Message = fmt.Sprintf(
			"embedding dimensionality rejected by index %q (check embedding deployment %q against the index vector field): %s",
			d.IndexName, d.EmbeddingDeployment, message)
		return e
	}

	if e.Kind == KindConfiguration {
		switch {
		case status == 401 || status == 403:
			e.Field = "openai_api_key"
		case status == 404:
			e.Field = "chat_deployment"
		case code != "":
			e.Field = code
		}
	}
	return e
}

// convertCitations maps wire citations to ordered citations,
// assigning 1-based ranks in relevance order.
func convertCitations(ws []wireCitation) []session.Citation {
	if len(ws) == 0 {
		return nil
	}
	out := make([]session.Citation, len(ws))
	for i, w := range ws {
		id := w.ChunkID
		if id == "" {
			id = w.Filepath
		}
		if id == "" {
			id = w.URL
		}
		out[i] = session.Citation{
			ID:      id,
			Title:   w.Title,
			Snippet: truncate(w.Content, snippetLimit),
			Rank:    i + 1,
		}
	}
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
