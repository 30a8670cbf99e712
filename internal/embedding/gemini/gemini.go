// Package gemini implements the Embedder interface against the Google
// Generative Language embeddings endpoints.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"alkitab/internal/domain"
)

const (
	taskDocument = "RETRIEVAL_DOCUMENT"
	taskQuery    = "RETRIEVAL_QUERY"
)

// Client is a Gemini embeddings client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	batchSize  int
	dimension  int
	client     *http.Client
	maxRetries int
}

// Config configures the Gemini embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	BatchSize int
}

// NewClient creates a new embeddings client using the provided configuration.
// The API key is read from the environment variable named in the config; a
// missing key fails with domain.ErrCredentialsMissing before any network call.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: env %s is empty", domain.ErrCredentialsMissing, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "embedding-001"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		batchSize:  cfg.BatchSize,
		client:     &http.Client{Timeout: t},
		maxRetries: 5,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "gemini" }

// Prepare is not required for remote embedding. Dimension is set lazily on
// the first successful embed.
func (c *Client) Prepare(ctx context.Context, corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// EmbedDocuments embeds the given texts in batches with the document
// retrieval task type, preserving input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedBatch(ctx, texts[start:end], taskDocument)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single query string with the query retrieval task type.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	type reqBody struct {
		Content  content `json:"content"`
		TaskType string  `json:"taskType"`
	}
	body := reqBody{Content: textContent(text), TaskType: taskQuery}
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.model)
	payload, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Embedding values `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding.Values) == 0 {
		return nil, errors.New("no embedding returned")
	}
	c.setDimension(len(out.Embedding.Values))
	return out.Embedding.Values, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string, task string) ([][]float64, error) {
	type request struct {
		Model    string  `json:"model"`
		Content  content `json:"content"`
		TaskType string  `json:"taskType"`
	}
	type reqBody struct {
		Requests []request `json:"requests"`
	}
	body := reqBody{Requests: make([]request, len(texts))}
	for i, t := range texts {
		body.Requests[i] = request{
			Model:    "models/" + c.model,
			Content:  textContent(t),
			TaskType: task,
		}
	}
	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.baseURL, c.model)
	payload, err := c.post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Embeddings []values `json:"embeddings"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Embeddings))
	}
	vecs := make([][]float64, len(out.Embeddings))
	for i, e := range out.Embeddings {
		if len(e.Values) == 0 {
			return nil, errors.New("no embedding returned")
		}
		vecs[i] = e.Values
	}
	c.setDimension(len(vecs[0]))
	return vecs, nil
}

// post sends the request, retrying on transient failures with exponential
// backoff and honoring Retry-After.
func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if serr := sleepCtx(ctx, retryDelay(attempt)); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			_ = resp.Body.Close()
			if attempt < c.maxRetries {
				if serr := sleepCtx(ctx, delay); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, fmt.Errorf("gemini embeddings failed: %s", resp.Status)
		}

		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= 300 {
			return nil, apiError(resp.StatusCode, payload)
		}
		return payload, nil
	}
}

func (c *Client) setDimension(n int) {
	if c.dimension == 0 {
		c.dimension = n
	}
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type values struct {
	Values []float64 `json:"values"`
}

func textContent(text string) content {
	return content{Parts: []part{{Text: text}}}
}

func apiError(status int, payload []byte) error {
	var out struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &out); err == nil && out.Error.Message != "" {
		return fmt.Errorf("gemini error (status %d): %s", status, out.Error.Message)
	}
	return fmt.Errorf("gemini error (status %d)", status)
}

// sleepCtx waits for d or until the context is cancelled, whichever comes
// first, so backoff never outlives the caller.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
