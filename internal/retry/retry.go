// Package retry adds bounded exponential backoff around remote model calls.
package retry

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"docqa/internal/config"
	"docqa/internal/domain"
)

// Policy bounds how often and how fast a call is retried.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// PolicyFromConfig converts the retry section of the app config.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: time.Duration(cfg.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(cfg.MaxIntervalMs) * time.Millisecond,
	}
}

// Do runs op until it succeeds, the attempts are used up, or ctx is done.
// The error of the last attempt is returned as is.
func Do[T any](ctx context.Context, p Policy, logger *zap.Logger, name string, op func() (T, error)) (T, error) {
	if p.MaxAttempts <= 1 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && (ctx.Err() != nil || !Retryable(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("remote call failed, retrying",
				zap.String("call", name),
				zap.Duration("backoff", next),
				zap.Error(err),
			)
		}),
	)
}

// statusCoder is implemented by errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

// statusRe finds the status in langchaingo's OpenAI client errors, which are
// formatted as "API returned unexpected status code: 401: ...".
var statusRe = regexp.MustCompile(`status code:? ?(\d{3})`)

// Retryable reports whether err may succeed on a later attempt. Client errors
// (4xx) other than 408 and 429 are final: a bad key or request stays bad.
func Retryable(err error) bool {
	code := 0
	var sc statusCoder
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	} else if m := statusRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ = strconv.Atoi(m[1])
	}
	if code < 400 || code >= 500 {
		return true
	}
	return code == 408 || code == 429
}

// Embedder retries an EmbeddingProvider.
type Embedder struct {
	next   domain.EmbeddingProvider
	policy Policy
	logger *zap.Logger
}

// WrapEmbedder decorates next with the retry policy.
func WrapEmbedder(next domain.EmbeddingProvider, p Policy, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{next: next, policy: p, logger: logger}
}

// EmbedQuery embeds a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return Do(ctx, e.policy, e.logger, "embed_query", func() ([]float32, error) {
		return e.next.EmbedQuery(ctx, text)
	})
}

// EmbedDocuments embeds a batch of texts.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return Do(ctx, e.policy, e.logger, "embed_documents", func() ([][]float32, error) {
		return e.next.EmbedDocuments(ctx, texts)
	})
}

// ChatModel retries a ChatModel.
type ChatModel struct {
	next   domain.ChatModel
	policy Policy
	logger *zap.Logger
}

// WrapChatModel decorates next with the retry policy.
func WrapChatModel(next domain.ChatModel, p Policy, logger *zap.Logger) *ChatModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatModel{next: next, policy: p, logger: logger}
}

// Complete generates text for prompt.
func (c *ChatModel) Complete(ctx context.Context, prompt string) (string, error) {
	return Do(ctx, c.policy, c.logger, "chat_completion", func() (string, error) {
		return c.next.Complete(ctx, prompt)
	})
}
