package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"leadqualify/pkg"
)

const (
	// CollectionWebsite holds chunks scraped from the public site.
	CollectionWebsite = "website"
	// CollectionSales holds curated sales enablement content.
	CollectionSales = "sales"

	defaultTopK = 5
)

// Retriever finds content chunks relevant to a query. An empty result is
// valid and means no grounding material exists.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string) ([]pkg.Chunk, error)
}

// Store is a chromem-go vector store with one collection per content
// namespace. Retrieval tries the website collection first and falls back to
// sales content.
type Store struct {
	db      *chromem.DB
	website *chromem.Collection
	sales   *chromem.Collection
}

// NewStore opens a persistent vector store under dir.
func NewStore(dir string, embed chromem.EmbeddingFunc) (*Store, error) {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	return newStore(db, embed)
}

// NewStoreInMemory creates a non-persistent store for development and tests.
func NewStoreInMemory(embed chromem.EmbeddingFunc) (*Store, error) {
	return newStore(chromem.NewDB(), embed)
}

func newStore(db *chromem.DB, embed chromem.EmbeddingFunc) (*Store, error) {
	website, err := db.GetOrCreateCollection(CollectionWebsite, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", CollectionWebsite, err)
	}
	sales, err := db.GetOrCreateCollection(CollectionSales, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", CollectionSales, err)
	}
	return &Store{db: db, website: website, sales: sales}, nil
}

// Replace swaps all chunks for a source inside a collection: existing
// documents from that source are deleted first, so a re-ingest never leaves
// stale chunks behind.
func (s *Store) Replace(ctx context.Context, collection, source, category string, chunks []string) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}

	if col.Count() > 0 {
		if err := col.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
			return fmt.Errorf("failed to delete stale chunks for %s: %w", source, err)
		}
	}

	for i, chunk := range chunks {
		sum := md5.Sum([]byte(fmt.Sprintf("%s%d", source, i)))
		doc := chromem.Document{
			ID:      hex.EncodeToString(sum[:]),
			Content: chunk,
			Metadata: map[string]string{
				"source":   source,
				"category": category,
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to add chunk %d for %s: %w", i, source, err)
		}
	}

	log.Info().
		Str("collection", collection).
		Str("source", source).
		Int("chunks", len(chunks)).
		Msg("content ingested")
	return nil
}

// Retrieve returns the top chunks for the query, website collection first,
// sales as fallback. A non-empty category restricts matches to that label.
func (s *Store) Retrieve(ctx context.Context, query, category string) ([]pkg.Chunk, error) {
	chunks, err := s.query(ctx, s.website, query, category)
	if err != nil {
		return nil, err
	}
	if len(chunks) > 0 {
		return chunks, nil
	}
	return s.query(ctx, s.sales, query, category)
}

// Counts reports the number of documents per collection.
func (s *Store) Counts() map[string]int {
	return map[string]int{
		CollectionWebsite: s.website.Count(),
		CollectionSales:   s.sales.Count(),
	}
}

func (s *Store) query(ctx context.Context, col *chromem.Collection, query, category string) ([]pkg.Chunk, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	nResults := defaultTopK
	if nResults > count {
		nResults = count
	}

	var where map[string]string
	if category != "" {
		where = map[string]string{"category": category}
	}

	results, err := col.Query(ctx, query, nResults, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	chunks := make([]pkg.Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, pkg.Chunk{
			Text:     r.Content,
			Source:   r.Metadata["source"],
			Category: r.Metadata["category"],
			Score:    float64(r.Similarity),
		})
	}
	return chunks, nil
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	switch name {
	case CollectionWebsite:
		return s.website, nil
	case CollectionSales:
		return s.sales, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", name)
	}
}
