package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/nexobotics/nova/internal/testutil"
)

// fastRetryConfig shrinks backoff timings so retry paths run instantly.
func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

// newMockClient wires a Client against an in-process mock model and
// embedder, with retry timings shrunk for tests.
func newMockClient(t *testing.T, fallback string) (*Client, *testutil.MockLLM, *testutil.MockEmbedder) {
	t.Helper()

	g := genkit.Init(context.Background())

	llm := testutil.NewMockLLM(fallback)
	llm.RegisterModel(g)

	mockEmb := testutil.NewMockEmbedder(8)
	embedder := mockEmb.RegisterEmbedder(g)

	client := NewWithGenkit(g, embedder, Options{
		GenerationModel: "mock/test-model",
		Temperature:     0.4,
		TopP:            0.85,
		TopK:            40,
		MaxOutputTokens: 1024,
		RetryConfig:     fastRetryConfig(),
		RateLimiter:     rate.NewLimiter(rate.Inf, 1),
	})
	return client, llm, mockEmb
}

func TestGenerateReturnsMatchedResponse(t *testing.T) {
	client, llm, _ := newMockClient(t, "generic answer")
	llm.AddResponse("warranty", "The warranty lasts 2 years.")

	text, err := client.Generate(context.Background(), "", "QUESTION: What is your warranty?")
	require.NoError(t, err)
	assert.Equal(t, "The warranty lasts 2 years.", text)
}

func TestGeneratePassesSystemInstruction(t *testing.T) {
	client, llm, _ := newMockClient(t, "hello")

	_, err := client.Generate(context.Background(), "You are NOVA.", "hi")
	require.NoError(t, err)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "You are NOVA.", calls[0].System)
	assert.Equal(t, "hi", calls[0].UserMessage)
}

func TestGenerateEmptyModelOutput(t *testing.T) {
	client, _, _ := newMockClient(t, "   ")

	_, err := client.Generate(context.Background(), "", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateWrapsFailures(t *testing.T) {
	client, llm, _ := newMockClient(t, "unused")
	llm.FailWith(errors.New("invalid request"))

	_, err := client.Generate(context.Background(), "", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerateHungProviderTimesOut(t *testing.T) {
	client, llm, _ := newMockClient(t, "unused")
	client.callTimeout = 20 * time.Millisecond
	llm.BlockUntilCancel()

	start := time.Now()
	_, err := client.Generate(context.Background(), "", "anything")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.Less(t, time.Since(start), 3*time.Second,
		"a hung provider call must return once the per-call timeout fires")
}

func TestEmbedDeterministic(t *testing.T) {
	client, _, _ := newMockClient(t, "unused")
	ctx := context.Background()

	a, err := client.EmbedDocument(ctx, "The warranty is 2 years.")
	require.NoError(t, err)
	require.Len(t, a, 8)

	b, err := client.EmbedDocument(ctx, "The warranty is 2 years.")
	require.NoError(t, err)
	assert.Equal(t, a, b, "same text embeds to the same vector")

	c, err := client.EmbedQuery(ctx, "a different text")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestEmbedWrapsFailures(t *testing.T) {
	client, _, emb := newMockClient(t, "unused")
	emb.FailWith(errors.New("provider rejected request"))

	_, err := client.EmbedQuery(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedding)
}
