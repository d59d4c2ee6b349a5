package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
)

// memStore tracks upserts by ID, mimicking upsert-by-ID semantics.
type memStore struct {
	docs     map[string]knowledge.Document
	failIDs  map[string]bool
	clearErr error
	cleared  int
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]knowledge.Document), failIDs: make(map[string]bool)}
}

func (m *memStore) Upsert(_ context.Context, doc knowledge.Document) error {
	if m.failIDs[doc.ID] {
		return errors.New("upsert refused")
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memStore) Count(context.Context) (int, error) { return len(m.docs), nil }

func (m *memStore) Clear(context.Context) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared++
	m.docs = make(map[string]knowledge.Document)
	return nil
}

func TestContentIDStable(t *testing.T) {
	a := ContentID("The warranty is 2 years.")
	b := ContentID("The warranty is 2 years.")
	c := ContentID("Support email: help@example.com")

	assert.Equal(t, a, b, "same content, same ID")
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^doc-[0-9a-f]{12}$`, a)
}

func TestRunIngestsDocuments(t *testing.T) {
	store := newMemStore()
	sources := []Source{
		{Text: "The warranty is 2 years.", Metadata: map[string]string{"source": "faq"}},
		{Text: "Support email: help@example.com"},
	}

	res, err := Run(context.Background(), store, sources, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Ingested: 2}, res)

	doc, ok := store.docs[ContentID("The warranty is 2 years.")]
	require.True(t, ok)
	assert.Equal(t, "faq", doc.Metadata["source"])
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestRunIdempotent(t *testing.T) {
	store := newMemStore()
	sources := []Source{
		{Text: "doc one"},
		{Text: "doc two"},
	}

	_, err := Run(context.Background(), store, sources, log.NewNop())
	require.NoError(t, err)
	_, err = Run(context.Background(), store, sources, log.NewNop())
	require.NoError(t, err)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count, "re-running an unchanged list must not duplicate entries")
}

func TestRunSkipsBlankDocuments(t *testing.T) {
	store := newMemStore()
	sources := []Source{
		{Text: "real content"},
		{Text: "   "},
		{Text: ""},
	}

	res, err := Run(context.Background(), store, sources, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Result{Ingested: 1, Skipped: 2}, res)
}

func TestRunContinuesPastFailures(t *testing.T) {
	store := newMemStore()
	store.failIDs[ContentID("poison")] = true

	sources := []Source{
		{Text: "first"},
		{Text: "poison"},
		{Text: "last"},
	}

	res, err := Run(context.Background(), store, sources, log.NewNop())
	require.Error(t, err, "first failure is reported")
	assert.Equal(t, Result{Ingested: 2, Failed: 1}, res)

	_, ok := store.docs[ContentID("last")]
	assert.True(t, ok, "documents after a failure still ingest")
}

func TestRunRespectsExplicitIDs(t *testing.T) {
	store := newMemStore()
	sources := []Source{{ID: "custom-id", Text: "content"}}

	_, err := Run(context.Background(), store, sources, log.NewNop())
	require.NoError(t, err)

	_, ok := store.docs["custom-id"]
	assert.True(t, ok)
}

func TestRebuildClearsFirst(t *testing.T) {
	store := newMemStore()
	store.docs["stale"] = knowledge.Document{ID: "stale", Content: "old"}

	res, err := Rebuild(context.Background(), store, []Source{{Text: "fresh"}}, log.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, store.cleared)
	assert.Equal(t, Result{Ingested: 1}, res)
	_, stale := store.docs["stale"]
	assert.False(t, stale)
}

func TestRebuildClearFailureAborts(t *testing.T) {
	store := newMemStore()
	store.clearErr = errors.New("store locked")

	_, err := Rebuild(context.Background(), store, []Source{{Text: "doc"}}, log.NewNop())
	require.Error(t, err)
	assert.Empty(t, store.docs)
}

func TestSeedSources(t *testing.T) {
	sources := SeedSources()
	require.NotEmpty(t, sources)
	for _, src := range sources {
		assert.NotEmpty(t, src.Text)
		assert.Equal(t, "seed", src.Metadata["source"])
	}
}
