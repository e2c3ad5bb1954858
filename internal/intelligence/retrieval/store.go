package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Document is one chunk as written to a vector store.
type Document struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]interface{}
}

// Hit is one nearest-neighbour result. Distance is squared Euclidean; lower
// is closer.
type Hit struct {
	ID       string
	Text     string
	Metadata map[string]interface{}
	Distance float64
}

// VectorStore persists chunk vectors in named collections. Implementations
// guard their own state and are safe for concurrent use.
type VectorStore interface {
	// Name labels the backend in logs and metrics.
	Name() string
	EnsureCollection(ctx context.Context, collection string, dim int) error
	// Upsert writes docs, replacing any document with the same ID.
	Upsert(ctx context.Context, collection string, docs []Document) error
	// DeleteSource removes every chunk written for source and reports how
	// many were removed.
	DeleteSource(ctx context.Context, collection, source string) (int, error)
	// Search returns at most topK hits ordered by ascending distance.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error)
	Count(ctx context.Context, collection string) (int64, error)
	Close() error
}

// ChunkID names the index-th chunk of source.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s_%d", source, index)
}

// IsChunkOf reports whether id was produced by ChunkID for source. The
// suffix must be all digits, so source "a" does not claim chunks of "a_b".
func IsChunkOf(id, source string) bool {
	rest, ok := strings.CutPrefix(id, source+"_")
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
