package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/dgallion1/docclass/internal/chunker"
)

// CallObserver is notified after every backend call, retries included.
type CallObserver func(op, model string, d time.Duration, err error)

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	EmbedModel string
	Timeout    time.Duration
	Tokenizers *TokenizerCache
	Observer   CallObserver
}

// Client calls a zero-shot classification / embedding server over HTTP:
//
//	POST /api/classify {"model","texts","labels","multi_label"} -> {"classifications": [[{label,score}]]}
//	POST /api/embed    {"model","input"}                          -> {"embeddings": [[float]]}
//
// Token counting is done locally through the tokenizer cache.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client
	tokens     *TokenizerCache
	observe    CallObserver
	backoff    func(attempt int) time.Duration

	Stats *LatencyStats
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     cfg.Tokenizers,
		observe:    cfg.Observer,
		backoff:    Backoff,
		Stats:      NewLatencyStats(time.Hour),
	}
}

type classifyRequest struct {
	Model      string   `json:"model"`
	Texts      []string `json:"texts"`
	Labels     []string `json:"labels"`
	MultiLabel bool     `json:"multi_label"`
}

type classifyResponse struct {
	Classifications [][]Score `json:"classifications"`
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Classify scores text against labels with the given model.
func (c *Client) Classify(ctx context.Context, model, text string, labels []string, multiLabel bool) ([]Score, error) {
	var resp classifyResponse
	err := c.call(ctx, "classify", model, "/api/classify", classifyRequest{
		Model:      model,
		Texts:      []string{text},
		Labels:     labels,
		MultiLabel: multiLabel,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Classifications) != 1 {
		return nil, wrap("classify", model, fmt.Errorf("expected 1 result, got %d", len(resp.Classifications)))
	}

	scores := resp.Classifications[0]
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}

// Embed returns unit-length embeddings from the configured embedding model.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := c.call(ctx, "embed", c.embedModel, "/api/embed", embedRequest{Model: c.embedModel, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, wrap("embed", c.embedModel, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}
	for _, v := range resp.Embeddings {
		normalize32(v)
	}
	return resp.Embeddings, nil
}

// CountTokens counts text with model's tokenizer. Without a tokenizer cache
// it falls back to the word estimate.
func (c *Client) CountTokens(ctx context.Context, model, text string) (int, error) {
	if c.tokens == nil {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return chunker.EstimateTokens(text), nil
	}
	return c.tokens.Count(ctx, model, text)
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// call posts body to path, retrying transient failures with backoff.
func (c *Client) call(ctx context.Context, op, model, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return wrap(op, model, fmt.Errorf("marshal request: %w", err))
	}

	var lastErr error
	for attempt := range MaxRetries {
		start := time.Now()
		lastErr = c.post(ctx, path, payload, out)
		elapsed := time.Since(start)
		c.Stats.Record(op, elapsed, lastErr)
		if c.observe != nil {
			c.observe(op, model, elapsed, lastErr)
		}
		if lastErr == nil || !IsRetryable(lastErr) || attempt == MaxRetries-1 {
			break
		}
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return wrap(op, model, ctx.Err())
		}
	}
	return wrap(op, model, lastErr)
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, truncate(string(respBody), 200))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func normalize32(v []float32) {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return
	}
	n := math.Sqrt(sq)
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}
