// Package knowledge manages the document collection backing retrieval.
//
// Storage is an embedded chromem-go database persisted to a directory on
// disk. The distance metric is cosine similarity, fixed at collection
// creation (chromem normalizes vectors, so similarity is the normalized dot
// product). Every document must carry an embedding from the single
// configured embedder model; a manifest file in the persist directory
// records the model and dimensionality so a model switch is detected at
// startup instead of silently corrupting ranking.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/nexobotics/nova/internal/log"
)

// manifestFile records the embedder identity for the persisted collection.
const manifestFile = "embedder.json"

// Embedder supplies vectors for documents and queries.
// Implemented by gemini.Client; tests inject deterministic fakes.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config configures a Store.
type Config struct {
	PersistDir    string // Directory for the on-disk collection
	Collection    string // Collection name
	EmbedderModel string // Recorded in the manifest for mismatch detection
	Compress      bool   // gzip-compress persisted documents
}

// manifest is the on-disk embedder identity record.
type manifest struct {
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// Store manages knowledge documents with vector search capabilities.
// It handles embedding generation and cosine-similarity search over an
// embedded chromem-go collection.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	cfg      Config
	embedder Embedder
	logger   log.Logger

	db *chromem.DB

	mu         sync.Mutex
	collection *chromem.Collection
	dimension  int // 0 until the first embedding is observed or loaded
}

// Open opens (or creates) the persistent collection at cfg.PersistDir.
// Returns ErrEmbedderMismatch when the directory was built with a different
// embedder model, and ErrStoreUnavailable for disk-level failures.
func Open(cfg Config, embedder Embedder, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	db, err := chromem.NewPersistentDB(cfg.PersistDir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %w", ErrStoreUnavailable, cfg.PersistDir, err)
	}

	s := &Store{
		cfg:      cfg,
		embedder: embedder,
		logger:   logger,
		db:       db,
	}

	if err := s.loadManifest(); err != nil {
		return nil, err
	}

	coll, err := s.openCollection()
	if err != nil {
		return nil, err
	}
	s.collection = coll

	logger.Debug("knowledge store opened",
		"dir", cfg.PersistDir,
		"collection", cfg.Collection,
		"documents", coll.Count(),
	)
	return s, nil
}

// openCollection gets or creates the chromem collection.
func (s *Store) openCollection() (*chromem.Collection, error) {
	coll, err := s.db.GetOrCreateCollection(s.cfg.Collection, map[string]string{
		"embedder_model": s.cfg.EmbedderModel,
		"distance":       "cosine",
	}, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("%w: collection %q: %w", ErrStoreUnavailable, s.cfg.Collection, err)
	}
	return coll, nil
}

// embeddingFunc bridges the Embedder to chromem's callback type.
// Only invoked by chromem when a document arrives without a precomputed
// embedding; Upsert always precomputes, so this is a safety net.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedDocument(ctx, text)
	}
}

// loadManifest reads the embedder manifest and verifies the model matches.
func (s *Store) loadManifest() error {
	path := filepath.Join(s.cfg.PersistDir, manifestFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil // fresh store, manifest written on first upsert
	}
	if err != nil {
		return fmt.Errorf("%w: reading manifest: %w", ErrStoreUnavailable, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: parsing manifest: %w", ErrStoreUnavailable, err)
	}

	if m.Model != s.cfg.EmbedderModel {
		return fmt.Errorf("%w: collection built with %q, configured %q (re-ingest required)",
			ErrEmbedderMismatch, m.Model, s.cfg.EmbedderModel)
	}

	s.dimension = m.Dimension
	return nil
}

// writeManifest persists the embedder identity next to the collection.
func (s *Store) writeManifest() error {
	m := manifest{Model: s.cfg.EmbedderModel, Dimension: s.dimension}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(s.cfg.PersistDir, manifestFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("%w: writing manifest: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// checkDimension validates vec against the collection dimensionality,
// learning it from the first vector observed. Caller must hold s.mu.
func (s *Store) checkDimension(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	if s.dimension == 0 {
		s.dimension = len(vec)
		if err := s.writeManifest(); err != nil {
			return err
		}
		return nil
	}
	if len(vec) != s.dimension {
		return fmt.Errorf("%w: got %d, collection uses %d", ErrDimensionMismatch, len(vec), s.dimension)
	}
	return nil
}

// Upsert inserts or replaces the document by ID.
// The content is embedded with the document task type and the result is
// persisted to disk before returning.
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	vec, err := s.embedder.EmbedDocument(ctx, doc.Content)
	if err != nil {
		return fmt.Errorf("embedding document %q: %w", doc.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkDimension(vec); err != nil {
		return fmt.Errorf("document %q: %w", doc.ID, err)
	}

	metadata := make(map[string]string, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	if !doc.CreatedAt.IsZero() {
		metadata["created_at"] = doc.CreatedAt.UTC().Format(time.RFC3339)
	}

	err = s.collection.AddDocument(ctx, chromem.Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: vec,
		Metadata:  metadata,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting %q: %w", ErrStoreUnavailable, doc.ID, err)
	}

	s.logger.Debug("upserted document", "id", doc.ID, "content_length", len(doc.Content))
	return nil
}

// Search performs semantic search using functional options.
// Results are ordered by descending cosine similarity (most similar first);
// ties break by document ID for determinism. topK values larger than the
// collection are clamped; topK <= 0 returns an empty result.
//
// Example:
//
//	results, err := store.Search(ctx, "warranty period",
//	    knowledge.WithTopK(5))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	if cfg.topK <= 0 {
		return nil, nil
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	s.mu.Lock()
	if err := s.checkDimension(vec); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	coll := s.collection
	s.mu.Unlock()

	// chromem rejects nResults > count; clamp so "give me everything" works.
	k := cfg.topK
	if count := coll.Count(); k > count {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	rows, err := coll.QueryEmbedding(ctx, vec, k, cfg.filter, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %w", ErrStoreUnavailable, err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Document: Document{
				ID:        row.ID,
				Content:   row.Content,
				Metadata:  row.Metadata,
				CreatedAt: parseCreatedAt(row.Metadata),
			},
			Similarity: row.Similarity,
		})
	}

	// Deterministic ordering: similarity descending, ID as tiebreak.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	return results, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection.Count(), nil
}

// Delete removes a document by ID. Deleting a missing ID is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("%w: deleting %q: %w", ErrStoreUnavailable, id, err)
	}
	s.logger.Debug("deleted document", "id", id)
	return nil
}

// Clear drops and recreates the collection, removing all documents.
// Used by ingestion for full rebuilds.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.cfg.Collection); err != nil {
		return fmt.Errorf("%w: dropping collection: %w", ErrStoreUnavailable, err)
	}

	coll, err := s.openCollection()
	if err != nil {
		return err
	}
	s.collection = coll

	s.logger.Debug("collection cleared", "collection", s.cfg.Collection)
	return nil
}

// parseCreatedAt extracts the creation timestamp recorded by Upsert.
func parseCreatedAt(metadata map[string]string) time.Time {
	raw, ok := metadata["created_at"]
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
