// Package search holds the vector-search collection the system
// carries but does not yet exercise: no ingestion path writes
// documents into it and no query path reads from it. It exists so the
// storage_engine feature flag has something concrete behind it, and so
// that future full-text/vector search work has a starting collection
// rather than a green field.
package search

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"

	"github.com/ctxmemory/ctx-agent/internal/store"
)

// FeatureKey is the Store feature flag gating this collection's use.
// It is recorded at project setup and never read by any ingestion or
// query path today.
const FeatureKey = "vector_search_backend"

const collectionName = "events"

// Collection wraps an in-memory chromem-go database scoped to one
// project. Nothing in the recorder, RPC server, or hook ingestor
// currently calls Add or Query on it.
type Collection struct {
	db  *chromem.DB
	col *chromem.Collection
}

// Open creates the in-memory collection and records the feature flag
// against the Store so `ctxagent status`/`doctor` can report whether
// vector search is provisioned for a project.
func Open(ctx context.Context, st *store.Store) (*Collection, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("creating vector collection: %w", err)
	}

	if err := st.SetFeature(ctx, FeatureKey, "provisioned"); err != nil {
		return nil, fmt.Errorf("recording feature flag: %w", err)
	}

	return &Collection{db: db, col: col}, nil
}

// Count returns the number of documents currently in the collection.
// Always zero until an ingestion path is wired up.
func (c *Collection) Count() int {
	return c.col.Count()
}
