// Package ingest rebuilds the knowledge base from a document list.
//
// Document IDs derive from a hash of the content, so re-running an
// unchanged ingestion upserts the same IDs and the collection does not
// grow. A rebuild is not transactional: a failure partway leaves the store
// partially updated, which is acceptable for an offline maintenance tool.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/nexobotics/nova/internal/knowledge"
	"github.com/nexobotics/nova/internal/log"
)

// Source is one document to ingest.
type Source struct {
	ID       string            // Optional; derived from content when empty
	Text     string            // Document content
	Metadata map[string]string // Optional metadata recorded with the document
}

// Result summarizes an ingestion run.
type Result struct {
	Ingested int
	Skipped  int // Blank documents
	Failed   int
}

// Upserter is the slice of the knowledge store ingestion needs.
type Upserter interface {
	Upsert(ctx context.Context, doc knowledge.Document) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// ContentID derives a stable document ID from the content hash.
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "doc-" + hex.EncodeToString(sum[:])[:12]
}

// Run upserts each source into the store. Blank sources are skipped and a
// failed document does not abort the rest of the run; the Result reports
// what happened and the first failure is returned alongside it.
func Run(ctx context.Context, store Upserter, sources []Source, logger log.Logger) (Result, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	var res Result
	var firstErr error

	for i, src := range sources {
		if strings.TrimSpace(src.Text) == "" {
			res.Skipped++
			continue
		}

		id := src.ID
		if id == "" {
			id = ContentID(src.Text)
		}

		err := store.Upsert(ctx, knowledge.Document{
			ID:        id,
			Content:   src.Text,
			Metadata:  src.Metadata,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			res.Failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("document %d (%s): %w", i, id, err)
			}
			logger.Error("ingest failed for document", "id", id, "error", err)
			continue
		}
		res.Ingested++
	}

	logger.Info("ingestion complete",
		"ingested", res.Ingested,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, firstErr
}

// Rebuild clears the store and ingests sources from scratch.
func Rebuild(ctx context.Context, store Upserter, sources []Source, logger log.Logger) (Result, error) {
	if err := store.Clear(ctx); err != nil {
		return Result{}, fmt.Errorf("clearing store: %w", err)
	}
	return Run(ctx, store, sources, logger)
}
