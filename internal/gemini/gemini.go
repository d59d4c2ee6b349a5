// Package gemini wraps the Genkit Google AI plugin behind two narrow
// operations: text embedding and text generation.
//
// Both operations share the same resilience behavior:
//   - a proactive rate limiter gates every outbound attempt
//   - transient provider failures are retried with exponential backoff
//   - failures surface as ErrEmbedding / ErrGeneration sentinels so callers
//     can classify them without string matching
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"golang.org/x/time/rate"
	genaicfg "google.golang.org/genai"

	"github.com/nexobotics/nova/internal/config"
	"github.com/nexobotics/nova/internal/log"
)

// TaskType selects the embedding task hint sent to the provider.
// Documents and queries are embedded with different task types so the model
// can optimize each side of the retrieval pair.
type TaskType string

const (
	// TaskDocument embeds text that will be stored in the knowledge base.
	TaskDocument TaskType = "RETRIEVAL_DOCUMENT"

	// TaskQuery embeds a user query for similarity search.
	TaskQuery TaskType = "RETRIEVAL_QUERY"
)

// DefaultCallTimeout bounds a single outbound model attempt. A provider
// hang becomes a deadline error after this long, which retries like any
// other transient failure instead of pinning the request goroutine.
const DefaultCallTimeout = 60 * time.Second

// Options configures a Client.
type Options struct {
	GenerationModel string  // Provider-qualified model name (e.g. "googleai/gemini-2.5-flash")
	Temperature     float32 // Sampling temperature, low for factual consistency
	TopP            float32
	TopK            int
	MaxOutputTokens int

	CallTimeout time.Duration // Per-attempt deadline; 0 = DefaultCallTimeout
	RetryConfig RetryConfig   // Zero value uses defaults
	RateLimiter *rate.Limiter // nil = default limiter
	Logger      log.Logger    // nil = nop
}

// Client provides embedding and generation against Gemini models.
// Safe for concurrent use.
type Client struct {
	g        *genkit.Genkit
	embedder ai.Embedder

	model           string
	temperature     float32
	topP            float32
	topK            int
	maxOutputTokens int

	callTimeout time.Duration
	retryConfig RetryConfig
	limiter     *rate.Limiter
	logger      log.Logger
}

// New initializes Genkit with the Google AI plugin and returns a Client
// configured from cfg. The API key must already be validated by the caller.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: cfg.GeminiAPIKey}))

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not available", cfg.EmbedderModel)
	}

	return NewWithGenkit(g, embedder, Options{
		GenerationModel: cfg.GenerationModel,
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
		CallTimeout:     cfg.CallTimeout,
		Logger:          logger,
	}), nil
}

// NewWithGenkit builds a Client from an existing Genkit instance and embedder.
// Used directly by tests to inject mock models.
func NewWithGenkit(g *genkit.Genkit, embedder ai.Embedder, opts Options) *Client {
	retryConfig := opts.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	limiter := opts.RateLimiter
	if limiter == nil {
		// Default: 10 requests/sec sustained, burst of 30.
		limiter = rate.NewLimiter(10, 30)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	callTimeout := opts.CallTimeout
	if callTimeout == 0 {
		callTimeout = DefaultCallTimeout
	}

	return &Client{
		g:               g,
		embedder:        embedder,
		model:           opts.GenerationModel,
		temperature:     opts.Temperature,
		topP:            opts.TopP,
		topK:            opts.TopK,
		maxOutputTokens: opts.MaxOutputTokens,
		callTimeout:     callTimeout,
		retryConfig:     retryConfig,
		limiter:         limiter,
		logger:          logger,
	}
}

// Genkit exposes the underlying Genkit instance for wiring (e.g. test model
// registration happens against the same instance).
func (c *Client) Genkit() *genkit.Genkit { return c.g }

// Embed converts text into a fixed-length vector using the configured
// embedder model. Deterministic for a fixed model version.
// Failures wrap ErrEmbedding after bounded retries.
func (c *Client) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	var vector []float32

	err := c.withRetry(ctx, "embed", func(ctx context.Context) error {
		resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
			Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
			Options: &googlegenai.EmbedOptions{TaskType: string(task)},
		})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
			return fmt.Errorf("empty embedding returned")
		}
		vector = resp.Embeddings[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}

	return vector, nil
}

// EmbedDocument embeds text destined for the knowledge base.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text, TaskDocument)
}

// EmbedQuery embeds a user query for similarity search.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text, TaskQuery)
}

// Generate produces a text completion for the given system instruction and
// prompt, using the fixed sampling parameters from Options.
// Failures wrap ErrGeneration after bounded retries; an empty model output
// is reported as ErrEmptyResponse so callers can substitute a fallback.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	var text string

	err := c.withRetry(ctx, "generate", func(ctx context.Context) error {
		opts := []ai.GenerateOption{
			ai.WithPrompt(prompt),
			ai.WithConfig(&genaicfg.GenerateContentConfig{
				Temperature:     genaicfg.Ptr(c.temperature),
				TopP:            genaicfg.Ptr(c.topP),
				TopK:            genaicfg.Ptr(float32(c.topK)),
				MaxOutputTokens: int32(c.maxOutputTokens),
			}),
		}
		if system != "" {
			opts = append(opts, ai.WithSystem(system))
		}
		if c.model != "" {
			opts = append(opts, ai.WithModelName(c.model))
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: model returned no text", ErrEmptyResponse)
	}

	return text, nil
}
