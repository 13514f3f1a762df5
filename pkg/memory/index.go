package memory

import (
	"context"
	"fmt"
	"os"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hasad-erp/hasad/pkg/config"
)

// Hit is a search result from the Index
type Hit struct {
	ID         string
	Similarity float32
}

// Index is a semantic index of memories backed by an in-process chromem-go
// collection. Memories are indexed by id; the text stored is what was
// embedded, not the memory itself.
type Index struct {
	coll *chromem.Collection
}

// NewIndex creates an empty index embedding text with ef
func NewIndex(ef chromem.EmbeddingFunc) (*Index, error) {
	db := chromem.NewDB()
	coll, err := db.GetOrCreateCollection("memories", nil, ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory collection: %w", err)
	}
	return &Index{coll: coll}, nil
}

// EmbeddingFunc returns the embedder selected by the configuration, or nil
// when embedding_provider is "none". The OpenAI key is read from
// OPENAI_API_KEY.
func EmbeddingFunc(cfg *config.HasadConfig) (chromem.EmbeddingFunc, error) {
	switch cfg.EmbeddingProvider {
	case "", "none":
		return nil, nil
	case "ollama":
		model := cfg.EmbeddingModel
		if model == "" {
			model = "nomic-embed-text"
		}
		return chromem.NewEmbeddingFuncOllama(model, cfg.EmbeddingURL), nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		model := cfg.EmbeddingModel
		if model == "" {
			model = string(chromem.EmbeddingModelOpenAI3Small)
		}
		if cfg.EmbeddingURL != "" {
			return chromem.NewEmbeddingFuncOpenAICompat(cfg.EmbeddingURL, apiKey, model, nil), nil
		}
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
		return chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI(model)), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
}

// Upsert embeds text and stores it under id, replacing any earlier entry
func (x *Index) Upsert(ctx context.Context, id, text string) error {
	return x.coll.AddDocument(ctx, chromem.Document{ID: id, Content: text})
}

// Remove drops id from the index
func (x *Index) Remove(ctx context.Context, id string) error {
	return x.coll.Delete(ctx, nil, nil, id)
}

// Len returns the number of indexed memories
func (x *Index) Len() int {
	return x.coll.Count()
}

// Query returns up to n entries most similar to query, best first
func (x *Index) Query(ctx context.Context, query string, n int) ([]Hit, error) {
	count := x.coll.Count()
	if count == 0 || n <= 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	results, err := x.coll.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ID: r.ID, Similarity: r.Similarity})
	}
	return hits, nil
}
