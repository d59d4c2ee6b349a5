package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/session"
	"github.com/nexobotics/nova/internal/testutil"
)

type mockRetriever struct {
	results []knowledge.Result
	err     error
	queries []string
}

func (m *mockRetriever) Search(_ context.Context, query string, _ ...knowledge.SearchOption) ([]knowledge.Result, error) {
	m.queries = append(m.queries, query)
	return m.results, m.err
}

func (m *mockRetriever) Count(context.Context) (int, error) {
	return len(m.results), m.err
}

type mockGenerator struct {
	response string
	err      error

	calls   int
	systems []string
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	m.calls++
	m.systems = append(m.systems, system)
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func result(id, content string) knowledge.Result {
	return knowledge.Result{
		Document:   knowledge.Document{ID: id, Content: content},
		Similarity: 0.9,
	}
}

func newTestPipeline(retriever *mockRetriever, generator *mockGenerator, opts Options) (*Pipeline, *session.Store) {
	sessions := session.NewStore()
	return New(retriever, generator, sessions, log.NewNop(), opts), sessions
}

func TestAnswerRejectsEmptyQuery(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{response: "unused"}
	p, sessions := newTestPipeline(retriever, generator, Options{})

	for _, query := range []string{"", "   ", "\n\t  "} {
		_, err := p.Answer(context.Background(), "s1", query)
		assert.ErrorIs(t, err, ErrInvalidQuery, "query %q", query)
	}

	assert.Empty(t, retriever.queries, "no retrieval for rejected queries")
	assert.Zero(t, generator.calls, "no generation for rejected queries")
	assert.Empty(t, sessions.History("s1"), "rejected queries leave no history")
}

func TestAnswerHappyPath(t *testing.T) {
	retriever := &mockRetriever{results: []knowledge.Result{
		result("doc-1", "The warranty is 2 years."),
		result("doc-2", "Support email: help@example.com"),
	}}
	generator := &mockGenerator{response: "Our warranty lasts **2 years**."}
	p, sessions := newTestPipeline(retriever, generator, Options{})

	reply, err := p.Answer(context.Background(), "s1", "What is your warranty?")
	require.NoError(t, err)

	assert.Equal(t, "Our warranty lasts **2 years**.", reply.Text, "answer returned verbatim")
	assert.False(t, reply.Fallback)
	assert.Len(t, reply.Retrieved, 2)

	require.Len(t, generator.prompts, 1)
	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "QUESTION: What is your warranty?")
	assert.Contains(t, prompt, "PASSAGE 1: The warranty is 2 years.")
	assert.Contains(t, prompt, "PASSAGE 2: Support email: help@example.com")
	assert.Empty(t, generator.systems[0], "retrieval prompt carries its own framing")

	turns := sessions.History("s1")
	require.Len(t, turns, 2)
	assert.Equal(t, session.RoleUser, turns[0].Role)
	assert.Equal(t, "What is your warranty?", turns[0].Text)
	assert.Equal(t, session.RoleBot, turns[1].Role)
	assert.Equal(t, "Our warranty lasts **2 years**.", turns[1].Text)
}

func TestAnswerEmptyStoreStillGenerates(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{response: "I don't have that information on hand."}
	p, _ := newTestPipeline(retriever, generator, Options{})

	reply, err := p.Answer(context.Background(), "s1", "Do you ship to Mars?")
	require.NoError(t, err)

	assert.NotEmpty(t, reply.Text)
	assert.False(t, reply.Fallback, "empty retrieval is not a failure")

	require.Len(t, generator.prompts, 1)
	assert.NotContains(t, generator.prompts[0], "PASSAGE")
	assert.Contains(t, generator.prompts[0], "isn't in the passages",
		"prompt instructions cover the no-information case")
}

func TestAnswerRetrievalErrorPropagates(t *testing.T) {
	retriever := &mockRetriever{err: fmt.Errorf("%w: disk gone", knowledge.ErrStoreUnavailable)}
	generator := &mockGenerator{response: "unused"}
	p, sessions := newTestPipeline(retriever, generator, Options{})

	_, err := p.Answer(context.Background(), "s1", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, knowledge.ErrStoreUnavailable)

	assert.Zero(t, generator.calls, "no generation on retrieval failure")
	assert.Empty(t, sessions.History("s1"), "failed requests leave no history")
}

func TestAnswerGenerationFailureServesFallback(t *testing.T) {
	retriever := &mockRetriever{results: []knowledge.Result{result("doc-1", "passage")}}
	generator := &mockGenerator{err: errors.New("model unavailable")}
	p, sessions := newTestPipeline(retriever, generator, Options{})

	reply, err := p.Answer(context.Background(), "s1", "a question")
	require.NoError(t, err, "generation failure must not fail the request")

	assert.Equal(t, FallbackGeneration, reply.Text)
	assert.True(t, reply.Fallback)

	turns := sessions.History("s1")
	require.Len(t, turns, 2, "exchange recorded even when the answer is a fallback")
	assert.Equal(t, FallbackGeneration, turns[1].Text)
}

func TestAnswerSessionContinuity(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{response: "first answer"}
	p, _ := newTestPipeline(retriever, generator, Options{})

	_, err := p.Answer(context.Background(), "s1", "first question")
	require.NoError(t, err)

	generator.response = "second answer"
	_, err = p.Answer(context.Background(), "s1", "second question")
	require.NoError(t, err)

	require.Len(t, generator.prompts, 2)
	assert.NotContains(t, generator.prompts[0], "CONVERSATION SO FAR")

	second := generator.prompts[1]
	assert.Contains(t, second, "CONVERSATION SO FAR:")
	assert.Contains(t, second, "user: first question")
	assert.Contains(t, second, "bot: first answer")
}

func TestAnswerSessionsIsolated(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{response: "ok"}
	p, _ := newTestPipeline(retriever, generator, Options{})

	_, err := p.Answer(context.Background(), "alice", "alice's question")
	require.NoError(t, err)
	_, err = p.Answer(context.Background(), "bob", "bob's question")
	require.NoError(t, err)

	require.Len(t, generator.prompts, 2)
	assert.NotContains(t, generator.prompts[1], "alice's question")
}

func TestClearSessionResetsHistory(t *testing.T) {
	retriever := &mockRetriever{}
	generator := &mockGenerator{response: "ok"}
	p, _ := newTestPipeline(retriever, generator, Options{})

	_, err := p.Answer(context.Background(), "s1", "before clear")
	require.NoError(t, err)

	assert.True(t, p.ClearSession("s1"))
	assert.False(t, p.ClearSession("s1"))

	_, err = p.Answer(context.Background(), "s1", "after clear")
	require.NoError(t, err)

	last := generator.prompts[len(generator.prompts)-1]
	assert.NotContains(t, last, "before clear", "cleared history stays out of later prompts")
}

func TestAnswerPromptBudgetDropsHistoryFirst(t *testing.T) {
	passage := strings.Repeat("p", 200)
	retriever := &mockRetriever{results: []knowledge.Result{result("doc-1", passage)}}
	generator := &mockGenerator{response: "ok"}

	sessions := session.NewStore()
	p := New(retriever, generator, sessions, log.NewNop(), Options{
		MaxPromptBytes: len(ragPreamble) + 400,
	})

	sessions.Append("s1", "oldest question "+strings.Repeat("x", 300), "oldest answer")
	sessions.Append("s1", "newest question", "newest answer")

	_, err := p.Answer(context.Background(), "s1", "current question")
	require.NoError(t, err)

	prompt := generator.prompts[0]
	assert.NotContains(t, prompt, "oldest question", "oldest turns dropped first")
	assert.Contains(t, prompt, passage, "passages survive history truncation")
	assert.Contains(t, prompt, "QUESTION: current question")
}

func TestAnswerPromptBudgetKeepsTopPassage(t *testing.T) {
	top := strings.Repeat("a", 150)
	low := strings.Repeat("z", 500)
	retriever := &mockRetriever{results: []knowledge.Result{
		result("top", top),
		result("low", low),
	}}
	generator := &mockGenerator{response: "ok"}

	p, _ := newTestPipeline(retriever, generator, Options{
		MaxPromptBytes: len(ragPreamble) + 250,
	})

	_, err := p.Answer(context.Background(), "s1", "q")
	require.NoError(t, err)

	prompt := generator.prompts[0]
	assert.Contains(t, prompt, "PASSAGE 1: "+top, "top passage never dropped")
	assert.NotContains(t, prompt, low, "lowest-ranked passage dropped under budget pressure")
}

func TestAnswerPerCallTopK(t *testing.T) {
	ctx := context.Background()
	embedder := testutil.NewMockEmbedder(8)
	store, err := knowledge.Open(knowledge.Config{
		PersistDir:    t.TempDir(),
		Collection:    "test",
		EmbedderModel: "mock-embedder",
	}, embedder, log.NewNop())
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Upsert(ctx, knowledge.Document{
			ID:      fmt.Sprintf("doc-%d", i),
			Content: fmt.Sprintf("passage number %d", i),
		}))
	}

	generator := &mockGenerator{response: "ok"}
	p := New(store, generator, session.NewStore(), log.NewNop(), Options{TopK: 2})

	reply, err := p.Answer(ctx, "s1", "a question")
	require.NoError(t, err)
	assert.Len(t, reply.Retrieved, 2, "construction-time default applies without options")

	reply, err = p.Answer(ctx, "s1", "a question", WithTopK(1))
	require.NoError(t, err)
	assert.Len(t, reply.Retrieved, 1, "per-call option narrows retrieval for this call")

	reply, err = p.Answer(ctx, "s1", "a question", WithTopK(0))
	require.NoError(t, err)
	assert.Len(t, reply.Retrieved, 2, "non-positive per-call value keeps the default")
}

func TestAnswerDirectSkipsRetrieval(t *testing.T) {
	retriever := &mockRetriever{results: []knowledge.Result{result("doc-1", "unused passage")}}
	generator := &mockGenerator{response: "Hey! Welcome to Nexobotics."}
	p, sessions := newTestPipeline(retriever, generator, Options{})

	reply, err := p.AnswerDirect(context.Background(), "s1", "/start")
	require.NoError(t, err)

	assert.Equal(t, "Hey! Welcome to Nexobotics.", reply.Text)
	assert.Empty(t, reply.Retrieved)
	assert.Empty(t, retriever.queries, "direct mode never touches the store")

	require.Len(t, generator.systems, 1)
	assert.Contains(t, generator.systems[0], "NOVA")
	assert.Contains(t, generator.prompts[0], "user: /start")

	assert.Len(t, sessions.History("s1"), 2)
}

func TestAnswerDirectRejectsEmptyQuery(t *testing.T) {
	p, _ := newTestPipeline(&mockRetriever{}, &mockGenerator{}, Options{})

	_, err := p.AnswerDirect(context.Background(), "s1", "  ")
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestDocumentCount(t *testing.T) {
	retriever := &mockRetriever{results: []knowledge.Result{
		result("a", "1"), result("b", "2"),
	}}
	p, _ := newTestPipeline(retriever, &mockGenerator{}, Options{})

	n, err := p.DocumentCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
