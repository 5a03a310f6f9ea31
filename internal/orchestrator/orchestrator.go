// Package orchestrator coordinates one conversational turn: it takes
// a new user query plus the session history, issues the
// retrieval-augmented generation call, and records the grounded
// answer with its citations.
//
// The orchestrator is I/O-free except for the single backend call per
// invocation. Transient backend failures are retried internally with
// exponential backoff and jitter; configuration and fatal failures
// surface to the caller. The user turn appended at the start of an
// invocation is retained even when the call fails, so history always
// reflects what was actually asked.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/sagechat/sage/internal/backend"
	"github.com/sagechat/sage/internal/config"
	"github.com/sagechat/sage/internal/log"
	"github.com/sagechat/sage/internal/retrieval"
	"github.com/sagechat/sage/internal/session"
)

// Generator issues one augmented generation call. *backend.Client
// implements it; tests substitute fakes.
type Generator interface {
	Generate(ctx context.Context, req backend.GenerationRequest) (backend.Answer, error)
}

// RetryConfig configures retry behavior for transient backend failures.
type RetryConfig struct {
	MaxAttempts     int           // total attempts, including the first
	InitialInterval time.Duration // first backoff interval
	MaxInterval     time.Duration // backoff cap
}

// DefaultRetryConfig returns retry settings with the attempt ceiling
// taken from the application config.
func DefaultRetryConfig(cfg *config.Config) RetryConfig {
	return RetryConfig{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Config contains all required parameters for the Orchestrator.
type Config struct {
	Generator Generator
	AppConfig *config.Config
	Logger    log.Logger

	// Optional: proactive rate limiting applied per attempt (nil = use default)
	RateLimiter *rate.Limiter

	// Retry settings (zero-value uses DefaultRetryConfig)
	Retry RetryConfig
}

// validate checks that all required parameters are present.
func (cfg Config) validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.AppConfig == nil {
		return errors.New("app config is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator turns user queries into grounded answers.
//
// All configuration is captured immutably at construction time, so an
// Orchestrator is safe to share across sessions; each Ask call mutates
// only the session passed to it.
type Orchestrator struct {
	gen     Generator
	cfg     *config.Config
	retry   RetryConfig
	limiter *rate.Limiter
	logger  log.Logger
}

// New creates an Orchestrator with required configuration.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("orchestrator config: %w", err)
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig(cfg.AppConfig)
	}

	// Use provided rate limiter or create default
	// Default: 10 requests/sec sustained, burst of 30
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Orchestrator{
		gen:     cfg.Generator,
		cfg:     cfg.AppConfig,
		retry:   retry,
		limiter: limiter,
		logger:  cfg.Logger,
	}, nil
}

// Ask runs one conversational turn against the generation backend.
//
// The query is validated before any state changes; an empty query
// returns session.ErrEmptyQuery with the history untouched. On
// success the session gains exactly one user and one assistant turn.
// On failure only the user turn remains, and the returned error
// classifies as configuration, transient-exhausted, or fatal via
// backend.Classify.
func (o *Orchestrator) Ask(ctx context.Context, sess *session.Session, query string) (backend.Answer, error) {
	if _, err := sess.AppendUser(query); err != nil {
		return backend.Answer{}, err
	}

	// Bound the history before the request is formed so backend input
	// limits are respected. The just-appended user turn is never evicted.
	if evicted := sess.TrimToBudget(o.cfg.HistoryTokenBudget); evicted > 0 {
		o.logger.Debug("history trimmed to budget",
			"session", sess.ID,
			"evicted_turns", evicted,
			"budget_tokens", o.cfg.HistoryTokenBudget,
		)
	}

	req := backend.GenerationRequest{
		Messages:  toMessages(sess.History()),
		Directive: retrieval.Build(o.cfg),
	}

	answer, err := o.executeWithRetry(ctx, req)
	if err != nil {
		o.logger.Warn("generation failed",
			"session", sess.ID,
			"kind", backend.Classify(err).String(),
			"error", err,
		)
		return backend.Answer{}, err
	}

	if _, err := sess.AppendAssistant(answer.Text, answer.Citations); err != nil {
		return backend.Answer{}, fmt.Errorf("recording answer: %w", err)
	}
	return answer, nil
}

// toMessages flattens session turns into role/content pairs.
// Citations stay out of the payload; they are presentation state.
func toMessages(turns []session.Turn) []backend.Message {
	msgs := make([]backend.Message, len(turns))
	for i, turn := range turns {
		msgs[i] = backend.Message{Role: turn.Role, Content: turn.Content}
	}
	return msgs
}

// executeWithRetry issues the generation call with exponential backoff
// and full jitter. Only transient failures are retried; the attempt
// count is bounded by the configured ceiling. Retries never touch
// session state.
func (o *Orchestrator) executeWithRetry(ctx context.Context, req backend.GenerationRequest) (backend.Answer, error) {
	var lastErr error
	delay := o.retry.InitialInterval
	start := time.Now()

	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		if o.limiter != nil {
			if err := o.limiter.Wait(ctx); err != nil {
				return backend.Answer{}, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		answer, err := o.gen.Generate(ctx, req)
		if err == nil {
			o.logger.Debug("generation succeeded",
				"attempts", attempt,
				"elapsed", time.Since(start),
			)
			return answer, nil
		}
		lastErr = err

		if backend.Classify(err) != backend.KindTransient {
			return backend.Answer{}, err
		}
		if attempt == o.retry.MaxAttempts {
			break
		}

		// Full jitter avoids synchronized retry storms across sessions.
		sleep := time.Duration(rand.Int63n(int64(delay + 1)))
		o.logger.Debug("retrying after transient failure",
			"attempt", attempt,
			"sleep", sleep,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return backend.Answer{}, fmt.Errorf("canceled during retry: %w", ctx.Err())
		case <-time.After(sleep):
			delay = min(delay*2, o.retry.MaxInterval)
		}
	}

	return backend.Answer{}, backend.RetriesExhausted(o.retry.MaxAttempts, lastErr)
}
