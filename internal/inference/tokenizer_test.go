package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func countingCache(capacity int, loads *atomic.Int32) *TokenizerCache {
	c := NewTokenizerCache(capacity, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.load = func(string) (Tokenizer, error) {
		loads.Add(1)
		return wordTokenizer{}, nil
	}
	return c
}

func TestTokenizerCache_LoadsOnceUnderConcurrency(t *testing.T) {
	var loads atomic.Int32
	c := countingCache(3, &loads)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := c.Count(context.Background(), "model-a", "one two three")
			assert.NoError(t, err)
			assert.Equal(t, 3, n)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 1, c.Len())
}

func TestTokenizerCache_EvictsBeyondCapacity(t *testing.T) {
	var loads atomic.Int32
	c := countingCache(2, &loads)

	for _, m := range []string{"a", "b", "c"} {
		_, err := c.Get(m)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int32(3), loads.Load())

	// "a" was least recently used and must be rebuilt.
	_, err := c.Get("a")
	require.NoError(t, err)
	assert.Equal(t, int32(4), loads.Load())
}

func TestTokenizerCache_LoadFailureIsInferenceError(t *testing.T) {
	c := NewTokenizerCache(1, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.load = func(string) (Tokenizer, error) { return nil, errors.New("no vocab") }

	_, err := c.Get("broken")
	require.ErrorIs(t, err, ErrInference)
	assert.Equal(t, 0, c.Len())
}

func TestTokenizerCache_BPEFallbackEncoding(t *testing.T) {
	c := NewTokenizerCache(1, "cl100k_base", slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := c.Count(context.Background(), "facebook/bart-large-mnli", "hello world")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTokenizerCache_WarmLoadsEachModelOnce(t *testing.T) {
	var loads atomic.Int32
	c := countingCache(3, &loads)

	require.NoError(t, c.Warm([]string{"a", "b", "a", ""}))
	assert.Equal(t, int32(2), loads.Load())
	assert.Equal(t, 2, c.Len())

	_, err := c.Count(context.Background(), "b", "x y")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestTokenizerCache_WarmReportsLoadFailure(t *testing.T) {
	c := NewTokenizerCache(3, "no_such_encoding", slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := c.Warm([]string{"custom/model"})
	assert.ErrorIs(t, err, ErrInference)
}
