package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"docqa/internal/config"
)

var fast = Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

type flakyChat struct {
	failures int
	calls    int
}

func (f *flakyChat) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("503 service unavailable")
	}
	return "echo: " + prompt, nil
}

type flakyEmbedder struct {
	failures int
	calls    int
}

func (f *flakyEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("429 rate limited")
	}
	return []float32{1, 0}, nil
}

func (f *flakyEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("429 rate limited")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func TestChatModel_RecoversAfterTransientFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	next := &flakyChat{failures: 2}

	got, err := WrapChatModel(next, fast, zap.New(core)).Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", got)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, 2, logs.FilterMessage("remote call failed, retrying").Len())
}

func TestChatModel_GivesUpAndReturnsLastError(t *testing.T) {
	next := &flakyChat{failures: 10}

	_, err := WrapChatModel(next, fast, nil).Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 3, next.calls)
}

func TestSingleAttemptDisablesRetry(t *testing.T) {
	next := &flakyEmbedder{failures: 1}

	_, err := WrapEmbedder(next, Policy{MaxAttempts: 1}, nil).EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestEmbedder_RetriesBatches(t *testing.T) {
	next := &flakyEmbedder{failures: 1}

	vecs, err := WrapEmbedder(next, fast, nil).EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 2, next.calls)
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &flakyChat{failures: 10}

	_, err := WrapChatModel(next, Policy{MaxAttempts: 5, InitialInterval: time.Second}, nil).Complete(ctx, "hi")
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.RetryConfig{MaxAttempts: 4, InitialIntervalMs: 250, MaxIntervalMs: 3000})
	assert.Equal(t, Policy{MaxAttempts: 4, InitialInterval: 250 * time.Millisecond, MaxInterval: 3 * time.Second}, p)
}

type statusErr int

func (e statusErr) Error() string   { return "http " + strconv.Itoa(int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("dial tcp: connection refused"), true},
		{"server error", errors.New("chat completion: API returned unexpected status code: 503: overloaded"), true},
		{"rate limited", errors.New("API returned unexpected status code: 429: slow down"), true},
		{"request timeout", statusErr(http.StatusRequestTimeout), true},
		{"bad key", errors.New("embedding: API returned unexpected status code: 401: invalid api key"), false},
		{"bad request", errors.New("API returned unexpected status code: 400: unsupported value"), false},
		{"typed forbidden", fmt.Errorf("wrapped: %w", statusErr(http.StatusForbidden)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

type failingChat struct {
	err   error
	calls int
}

func (f *failingChat) Complete(context.Context, string) (string, error) {
	f.calls++
	return "", f.err
}

func TestChatModel_DoesNotRetryClientErrors(t *testing.T) {
	next := &failingChat{err: errors.New("API returned unexpected status code: 401: invalid api key")}

	_, err := WrapChatModel(next, fast, nil).Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, next.calls)
}

func TestChatModel_RetriesRateLimits(t *testing.T) {
	next := &failingChat{err: errors.New("API returned unexpected status code: 429: slow down")}

	_, err := WrapChatModel(next, fast, nil).Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, 3, next.calls)
}
