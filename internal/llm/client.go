// Package llm implements Argus's LLM Client (component J): text and
// structured-JSON generation plus text embedding, against
// google.golang.org/genai.
package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"argus/internal/errs"
)

// DefaultEmbeddingModel is the embedding model Argus targets; Matryoshka
// truncation lets one model serve every configured embedding width.
const DefaultEmbeddingModel = "gemini-embedding-001"

// Client wraps one genai.Client bound to a single model. The Decision and
// Analysis Workers each hold their own Client instance, configured from
// Config.LLM.Decision / Config.LLM.Analysis, so the two roles can point at
// different models/endpoints.
type Client struct {
	model       string
	temperature float32
	reasoning   bool
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	g           *genai.Client
}

// Option configures a Client at construction.
type Option func(*Client)

func WithTemperature(t float32) Option  { return func(c *Client) { c.temperature = t } }
func WithReasoningMode(b bool) Option   { return func(c *Client) { c.reasoning = b } }
func WithMaxRetries(n int) Option       { return func(c *Client) { c.maxRetries = n } }
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) { c.baseBackoff = base; c.maxBackoff = max }
}

// NewClient builds a Client for model, resolving the API key from, in
// order: the explicit apiKey argument (so each LLMPool's own configured key
// takes precedence when set), then GEMINI_API_KEY, then
// GOOGLE_GEMINI_API_KEY, then GOOGLE_AI_API_KEY, then viper's
// gemini.api_key.
func NewClient(ctx context.Context, model, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_AI_API_KEY")
	}
	if apiKey == "" {
		apiKey = viper.GetString("gemini.api_key")
	}
	if apiKey == "" {
		return nil, errs.Fatalf("no Gemini API key configured (set GEMINI_API_KEY or llm.<role>.api_key)")
	}

	g, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, errs.Fatalf("creating genai client: %v", err)
	}

	c := &Client{
		model:       model,
		temperature: 0.2,
		maxRetries:  3,
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  8 * time.Second,
		g:           g,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// qwenReasoningDirective is injected ahead of the user prompt only for
// model IDs beginning with "qwen", matching that family's convention of
// emitting a <think>...</think> block before the answer when asked to
// reason; other model families ignore an instruction they don't understand.
const qwenReasoningDirective = "Think step by step inside <think></think> tags, then give your final answer outside the tags.\n\n"

var thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinkTags removes a <think>...</think> block if present. An empty
// pair of tags is not an error — it simply contributed no reasoning text.
func stripThinkTags(s string) string {
	return strings.TrimSpace(thinkTagRe.ReplaceAllString(s, ""))
}

func (c *Client) preparePrompt(prompt string) string {
	if c.reasoning && strings.HasPrefix(strings.ToLower(c.model), "qwen") {
		return qwenReasoningDirective + prompt
	}
	return prompt
}

// withRetry runs fn up to c.maxRetries+1 times with exponential backoff and
// jitter: base doubling each attempt, capped at maxBackoff, jitter drawn
// uniformly from [0, backoff/2).
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(math.Min(
			float64(c.maxBackoff),
			float64(c.baseBackoff)*math.Pow(2, float64(attempt)),
		))
		jitter := time.Duration(rand.Int64N(int64(backoff/2) + 1))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return errs.Transientf("llm request failed after %d attempts: %v", c.maxRetries+1, lastErr)
}

func (c *Client) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: c.preparePrompt(prompt)}}, Role: "user"}}

	var cfg *genai.GenerateContentConfig
	if schema != nil || c.temperature != 0 {
		cfg = &genai.GenerateContentConfig{Temperature: &c.temperature}
		if schema != nil {
			cfg.ResponseSchema = schema
			cfg.ResponseMIMEType = "application/json"
		}
	}

	var text string
	err := c.withRetry(ctx, func() error {
		resp, err := c.g.Models.GenerateContent(ctx, c.model, contents, cfg)
		if err != nil {
			return fmt.Errorf("generating content: %w", err)
		}
		t := resp.Text()
		if t == "" {
			return fmt.Errorf("empty response from model")
		}
		text = t
		return nil
	})
	if err != nil {
		return "", err
	}
	return stripThinkTags(text), nil
}

// GenerateText produces free-form text for prompt.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

// GenerateJSON produces text constrained to schema and returns the raw
// JSON string; callers unmarshal into their own type. Each call builds its
// request config afresh, so no JSON-mode setting carries over to a later
// GenerateText call on the same Client.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	return c.generate(ctx, prompt, schema)
}

// GenerateEmbedding returns a dims-wide embedding of text via Matryoshka
// truncation of gemini-embedding-001.
func (c *Client) GenerateEmbedding(ctx context.Context, text string, dims int32) ([]float64, error) {
	contents := []*genai.Content{{Parts: []*genai.Part{{Text: text}}, Role: "user"}}
	cfg := &genai.EmbedContentConfig{OutputDimensionality: &dims}

	var embedding []float64
	err := c.withRetry(ctx, func() error {
		resp, err := c.g.Models.EmbedContent(ctx, DefaultEmbeddingModel, contents, cfg)
		if err != nil {
			return fmt.Errorf("generating embedding: %w", err)
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return fmt.Errorf("no embedding values returned")
		}
		values := resp.Embeddings[0].Values
		embedding = make([]float64, len(values))
		for i, v := range values {
			embedding[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

// CosineSimilarity computes the cosine similarity of two equal-length
// embeddings: plain dot-product over magnitude division, no BLAS dep.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
