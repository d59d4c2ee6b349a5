// Package pipeline implements the retrieval-augmented answer flow: embed
// the query, retrieve relevant passages, assemble a bounded prompt with
// conversation history, generate, and record the exchange.
//
// Failure policy follows the request path's needs. Retrieval failures
// (embedding or store) propagate as errors so the boundary can classify
// them. Generation failures degrade to a user-safe fallback message so a
// flaky model never turns into a failed request.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
	"github.com/nexobotics/nova/internal/session"
)

// Fallback texts returned to users when a dependency misbehaves. Kept
// exported so the HTTP layer reuses the same wording for retrieval-stage
// failures it converts at the boundary.
const (
	// FallbackGeneration replaces the answer when the generation model
	// errors or returns nothing.
	FallbackGeneration = "I apologize, but I'm having trouble accessing that information right now. Is there something else I can help you with?"

	// FallbackRetrieval replaces the answer when embedding or the
	// knowledge store fails.
	FallbackRetrieval = "I'm currently having trouble accessing my knowledge base. Please try asking a different question or try again later."
)

// DefaultTopK is the number of passages retrieved per query.
const DefaultTopK = 5

// Retriever is the slice of the knowledge store the pipeline needs.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
	Count(ctx context.Context) (int, error)
}

// Generator produces a completion for a system instruction and prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Reply is the outcome of one answered query.
type Reply struct {
	Text      string             // Answer returned verbatim to the user
	Retrieved []knowledge.Result // Passages that informed the answer
	Fallback  bool               // True when Text is a canned fallback
}

// Options tunes a Pipeline.
type Options struct {
	TopK           int // Passages per query; 0 = DefaultTopK
	MaxPromptBytes int // Prompt budget; 0 = unbounded
}

// Option adjusts a single Answer call.
type Option func(*callOptions)

type callOptions struct {
	topK int
}

// WithTopK overrides the number of passages retrieved for this call.
// Values below 1 are ignored and the pipeline default applies.
func WithTopK(k int) Option {
	return func(o *callOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// Pipeline answers user queries against the knowledge store.
// Safe for concurrent use.
type Pipeline struct {
	retriever Retriever
	generator Generator
	sessions  *session.Store
	logger    log.Logger

	topK           int
	maxPromptBytes int
}

// New wires a Pipeline from its collaborators. The session store must be
// provided by the caller; the pipeline never creates process-global state.
func New(retriever Retriever, generator Generator, sessions *session.Store, logger log.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Pipeline{
		retriever:      retriever,
		generator:      generator,
		sessions:       sessions,
		logger:         logger,
		topK:           topK,
		maxPromptBytes: opts.MaxPromptBytes,
	}
}

// Answer runs the full retrieval-augmented flow for one query.
//
// Empty or whitespace-only queries return ErrInvalidQuery. Embedding and
// store failures return an error for the boundary to classify. A
// generation failure is absorbed: the reply carries FallbackGeneration,
// the cause is logged, and the exchange is still recorded so the
// conversation stays coherent. Per-call options such as WithTopK override
// the pipeline defaults for this call only.
func (p *Pipeline) Answer(ctx context.Context, sessionID, query string, opts ...Option) (Reply, error) {
	if strings.TrimSpace(query) == "" {
		return Reply{}, ErrInvalidQuery
	}

	call := callOptions{topK: p.topK}
	for _, opt := range opts {
		opt(&call)
	}

	results, err := p.retriever.Search(ctx, query, knowledge.WithTopK(call.topK))
	if err != nil {
		return Reply{}, fmt.Errorf("retrieving context: %w", err)
	}

	passages := make([]string, len(results))
	for i, r := range results {
		passages[i] = r.Document.Content
	}

	history := p.sessions.History(sessionID)
	prompt := buildPrompt(query, history, passages, p.maxPromptBytes)

	p.logger.Debug("answering query",
		"session_id", sessionID,
		"passages", len(passages),
		"history_turns", len(history),
		"prompt_bytes", len(prompt),
	)

	reply := Reply{Retrieved: results}
	text, err := p.generator.Generate(ctx, "", prompt)
	if err != nil {
		p.logger.Error("generation failed, serving fallback",
			"session_id", sessionID, "error", err)
		reply.Text = FallbackGeneration
		reply.Fallback = true
	} else {
		reply.Text = text
	}

	p.sessions.Append(sessionID, query, reply.Text)
	return reply, nil
}

// AnswerDirect generates a persona-only reply without retrieval. Used when
// a client opts out of the knowledge base.
func (p *Pipeline) AnswerDirect(ctx context.Context, sessionID, query string) (Reply, error) {
	if strings.TrimSpace(query) == "" {
		return Reply{}, ErrInvalidQuery
	}

	history := p.sessions.History(sessionID)

	var b strings.Builder
	if h := renderHistory(history); h != "" {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString("user: ")
	b.WriteString(oneline(query))

	reply := Reply{}
	text, err := p.generator.Generate(ctx, personaSystem, b.String())
	if err != nil {
		p.logger.Error("generation failed, serving fallback",
			"session_id", sessionID, "error", err)
		reply.Text = FallbackGeneration
		reply.Fallback = true
	} else {
		reply.Text = text
	}

	p.sessions.Append(sessionID, query, reply.Text)
	return reply, nil
}

// ClearSession drops a session's history. Reports whether it existed.
func (p *Pipeline) ClearSession(sessionID string) bool {
	return p.sessions.Clear(sessionID)
}

// DocumentCount reports the knowledge base size, for health reporting.
func (p *Pipeline) DocumentCount(ctx context.Context) (int, error) {
	return p.retriever.Count(ctx)
}
