package retrieval

import (
	"context"
	"sort"
	"sync"

	"github.com/turtacn/LegalLens/pkg/errors"
)

// MemoryStore is a brute-force in-process VectorStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dim  int
	docs []Document
	byID map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	if dim <= 0 {
		return errors.Newf(errors.ErrCodeVectorStore, "invalid dimension %d for %s", dim, collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[collection]; ok {
		if c.dim != dim {
			return errors.Newf(errors.ErrCodeVectorStore, "collection %s has dimension %d, want %d", collection, c.dim, dim)
		}
		return nil
	}
	s.collections[collection] = &memCollection{dim: dim, byID: make(map[string]int)}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return errors.Newf(errors.ErrCodeVectorStore, "collection %s does not exist", collection)
	}
	for _, d := range docs {
		if len(d.Vector) != c.dim {
			return errors.Newf(errors.ErrCodeVectorStore, "vector dimension mismatch: got %d, want %d", len(d.Vector), c.dim)
		}
	}
	for _, d := range docs {
		d.Vector = append([]float32(nil), d.Vector...)
		d.Metadata = copyMetadata(d.Metadata)
		if i, exists := c.byID[d.ID]; exists {
			c.docs[i] = d
			continue
		}
		c.byID[d.ID] = len(c.docs)
		c.docs = append(c.docs, d)
	}
	return nil
}

func (s *MemoryStore) DeleteSource(ctx context.Context, collection, source string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[collection]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeVectorStore, "collection %s does not exist", collection)
	}
	kept := c.docs[:0]
	removed := 0
	for _, d := range c.docs {
		if IsChunkOf(d.ID, source) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	if removed == 0 {
		return 0, nil
	}
	for i := len(kept); i < len(c.docs); i++ {
		c.docs[i] = Document{}
	}
	c.docs = kept
	c.byID = make(map[string]int, len(kept))
	for i, d := range kept {
		c.byID[d.ID] = i
	}
	return removed, nil
}

func (s *MemoryStore) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeVectorStore, "collection %s does not exist", collection)
	}

	hits := make([]Hit, 0, len(c.docs))
	for _, d := range c.docs {
		hits = append(hits, Hit{
			ID:       d.ID,
			Text:     d.Text,
			Metadata: copyMetadata(d.Metadata),
			Distance: squaredL2(vector, d.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeVectorStore, "collection %s does not exist", collection)
	}
	return int64(len(c.docs)), nil
}

func (s *MemoryStore) Close() error { return nil }

func squaredL2(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
