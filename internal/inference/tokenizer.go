package inference

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"golang.org/x/sync/singleflight"
)

func init() {
	// Use the embedded BPE ranks; never fetch them over the network.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer counts tokens for one model.
type Tokenizer interface {
	Count(text string) int
}

type bpeTokenizer struct {
	tk *tiktoken.Tiktoken
}

func (b bpeTokenizer) Count(text string) int {
	return len(b.tk.Encode(text, nil, nil))
}

// TokenizerCache holds at most capacity tokenizers keyed by model id. A
// tokenizer is built at most once per key even under concurrent first use;
// the least recently used entry is evicted when full.
type TokenizerCache struct {
	cache *ttlcache.Cache[string, Tokenizer]
	group singleflight.Group
	load  func(model string) (Tokenizer, error)
	log   *slog.Logger
}

// NewTokenizerCache builds BPE tokenizers, using the model's own encoding
// when tiktoken knows it and defaultEncoding otherwise.
func NewTokenizerCache(capacity int, defaultEncoding string, log *slog.Logger) *TokenizerCache {
	if capacity <= 0 {
		capacity = 3
	}
	if defaultEncoding == "" {
		defaultEncoding = "cl100k_base"
	}

	c := &TokenizerCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Tokenizer](ttlcache.NoTTL),
			ttlcache.WithCapacity[string, Tokenizer](uint64(capacity)),
		),
		log: log,
	}
	c.load = func(model string) (Tokenizer, error) {
		tk, err := tiktoken.EncodingForModel(model)
		if err != nil {
			tk, err = tiktoken.GetEncoding(defaultEncoding)
		}
		if err != nil {
			return nil, fmt.Errorf("load encoding %q: %w", defaultEncoding, err)
		}
		return bpeTokenizer{tk: tk}, nil
	}
	c.cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, Tokenizer]) {
		c.log.Debug("tokenizer evicted", "model", item.Key(), "reason", reason)
	})
	return c
}

// Get returns the tokenizer for model, loading it on first use.
func (c *TokenizerCache) Get(model string) (Tokenizer, error) {
	if item := c.cache.Get(model); item != nil {
		return item.Value(), nil
	}

	v, err, _ := c.group.Do(model, func() (any, error) {
		if item := c.cache.Get(model); item != nil {
			return item.Value(), nil
		}
		tok, err := c.load(model)
		if err != nil {
			return nil, err
		}
		c.cache.Set(model, tok, ttlcache.DefaultTTL)
		c.log.Info("tokenizer loaded", "model", model)
		return tok, nil
	})
	if err != nil {
		return nil, wrap("tokenize", model, err)
	}
	return v.(Tokenizer), nil
}

// Warm loads the tokenizers for models up front so the first job does not
// pay for it. Duplicates and empty ids are skipped.
func (c *TokenizerCache) Warm(models []string) error {
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		if _, err := c.Get(m); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the token length of text for model.
func (c *TokenizerCache) Count(ctx context.Context, model, text string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tok, err := c.Get(model)
	if err != nil {
		return 0, err
	}
	return tok.Count(text), nil
}

// Len is the number of cached tokenizers.
func (c *TokenizerCache) Len() int {
	return c.cache.Len()
}
