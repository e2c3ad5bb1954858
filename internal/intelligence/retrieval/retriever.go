// Package retrieval keeps one vector collection of legal knowledge per
// advisory domain and answers nearest-neighbour queries against it.
package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/LegalLens/internal/intelligence/embedding"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

// DefaultTopK is used when a caller passes a non-positive topK.
const DefaultTopK = 5

var domainOrder = []string{"Property", "Immigration", "Business", "Contract", "Employment", "Family", "Tax"}

var collectionNames = map[string]string{
	"Property":    "property_laws",
	"Immigration": "immigration_rules",
	"Business":    "business_compliance",
	"Contract":    "contract_templates",
	"Employment":  "employment_law",
	"Family":      "family_law",
	"Tax":         "tax_regulations",
}

// CollectionFor returns the collection backing domain.
func CollectionFor(domain string) (string, bool) {
	c, ok := collectionNames[domain]
	return c, ok
}

// Retriever ingests knowledge documents and answers retrieval queries.
// Retrieve never fails; errors yield an empty result.
type Retriever interface {
	Ingest(ctx context.Context, domain, text string, metadata map[string]interface{}) (bool, error)
	Retrieve(ctx context.Context, domain, query string, topK int) []legal.RetrievedChunk
	Stats(ctx context.Context) map[string]CollectionStats
}

// CollectionStats reports one domain's collection size.
type CollectionStats struct {
	Collection    string `json:"collection"`
	DocumentCount int64  `json:"document_count"`
	Error         string `json:"error,omitempty"`
}

// KnowledgeRetriever is the Retriever over a VectorStore.
type KnowledgeRetriever struct {
	store     VectorStore
	encoder   embedding.Encoder
	chunkSize int
	metrics   *prometheus.AppMetrics
	logger    logging.Logger
}

type Option func(*KnowledgeRetriever)

func WithChunkSize(n int) Option {
	return func(r *KnowledgeRetriever) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(r *KnowledgeRetriever) { r.metrics = m }
}

// NewKnowledgeRetriever ensures one collection per domain exists in store.
func NewKnowledgeRetriever(ctx context.Context, store VectorStore, enc embedding.Encoder, log logging.Logger, opts ...Option) (*KnowledgeRetriever, error) {
	if store == nil || enc == nil {
		return nil, errors.New(errors.ErrCodeVectorStore, "retriever requires a store and an encoder")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	r := &KnowledgeRetriever{
		store:     store,
		encoder:   enc,
		chunkSize: DefaultChunkSize,
		logger:    log.Named("retriever"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = prometheus.NewNoopAppMetrics()
	}

	for _, d := range domainOrder {
		name := collectionNames[d]
		if err := store.EnsureCollection(ctx, name, enc.Dimensions()); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeVectorStore, "failed to prepare collection "+name)
		}
		r.logger.Debug("collection ready", logging.String("collection", name))
	}
	r.logger.Info("knowledge retriever initialized",
		logging.String("backend", store.Name()),
		logging.Int("collections", len(domainOrder)))
	return r, nil
}

// Ingest chunks text, encodes every chunk and writes it to the domain's
// collection, replacing whatever was previously stored for the same source.
// Chunk IDs are "{source}_{index}" with source taken from
// metadata["source"] (default "doc"); each chunk's metadata gains
// chunk_index. An unknown domain returns false with an error.
func (r *KnowledgeRetriever) Ingest(ctx context.Context, domain, text string, metadata map[string]interface{}) (bool, error) {
	collection, ok := collectionNames[domain]
	if !ok {
		r.logger.Error("unknown domain", logging.String("domain", domain))
		return false, errors.Newf(errors.ErrCodeUnknownDomain, "unknown domain %q", domain)
	}
	if strings.TrimSpace(text) == "" {
		return false, errors.New(errors.ErrCodeIngestFailed, "document text is empty")
	}

	source := "doc"
	if s, ok := metadata["source"].(string); ok && s != "" {
		source = s
	}

	chunks := SplitText(text, r.chunkSize)
	docs := make([]Document, 0, len(chunks))
	for i, chunk := range chunks {
		vec, err := r.encoder.Encode(ctx, chunk)
		if err != nil {
			r.logger.Error("error ingesting document", logging.String("domain", domain), logging.Err(err))
			return false, errors.Wrap(err, errors.ErrCodeIngestFailed, "failed to encode chunk")
		}
		md := copyMetadata(metadata)
		md["chunk_index"] = i
		docs = append(docs, Document{
			ID:       ChunkID(source, i),
			Text:     chunk,
			Vector:   vec,
			Metadata: md,
		})
	}

	removed, err := r.store.DeleteSource(ctx, collection, source)
	if err != nil {
		r.logger.Error("error ingesting document", logging.String("domain", domain), logging.Err(err))
		return false, errors.Wrap(err, errors.ErrCodeIngestFailed, "failed to drop previous chunks")
	}
	if removed > 0 {
		r.logger.Debug("replaced previous chunks",
			logging.String("source", source),
			logging.Int("removed", removed))
	}

	if err := r.store.Upsert(ctx, collection, docs); err != nil {
		r.logger.Error("error ingesting document", logging.String("domain", domain), logging.Err(err))
		return false, errors.Wrap(err, errors.ErrCodeIngestFailed, "failed to write chunks")
	}

	r.metrics.RecordIngest(domain, len(docs))
	r.logger.Info("ingested chunks",
		logging.String("domain", domain),
		logging.String("source", source),
		logging.Int("chunks", len(docs)))
	return true, nil
}

// Retrieve returns at most topK chunks ordered by ascending distance. A
// domain without a collection is answered from every collection.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, domain, query string, topK int) []legal.RetrievedChunk {
	if topK <= 0 {
		topK = DefaultTopK
	}
	start := time.Now()

	hits, err := r.retrieve(ctx, domain, query, topK)
	r.metrics.RecordRetrieval(r.store.Name(), domain, err == nil, time.Since(start))
	if err != nil {
		r.logger.Error("error retrieving documents", logging.String("domain", domain), logging.Err(err))
		return []legal.RetrievedChunk{}
	}

	out := make([]legal.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, legal.RetrievedChunk{ID: h.ID, Text: h.Text, Metadata: h.Metadata, Distance: h.Distance})
	}
	return out
}

func (r *KnowledgeRetriever) retrieve(ctx context.Context, domain, query string, topK int) ([]Hit, error) {
	vec, err := r.encoder.Encode(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRetrievalFailed, "failed to encode query")
	}

	if collection, ok := collectionNames[domain]; ok {
		return r.store.Search(ctx, collection, vec, topK)
	}

	r.logger.Warn("unknown domain, using all collections", logging.String("domain", domain))
	results := make([][]Hit, len(domainOrder))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range domainOrder {
		i, collection := i, collectionNames[d]
		g.Go(func() error {
			hits, err := r.store.Search(gctx, collection, vec, topK)
			if err != nil {
				return err
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRetrievalFailed, "cross-domain search failed")
	}

	var merged []Hit
	for _, hits := range results {
		merged = append(merged, hits...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Distance < merged[j].Distance })
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}

// Stats reports each domain's chunk count. Per-collection failures are
// reported inline.
func (r *KnowledgeRetriever) Stats(ctx context.Context) map[string]CollectionStats {
	out := make(map[string]CollectionStats, len(domainOrder))
	for _, d := range domainOrder {
		st := CollectionStats{Collection: collectionNames[d]}
		n, err := r.store.Count(ctx, st.Collection)
		if err != nil {
			st.Error = err.Error()
		} else {
			st.DocumentCount = n
		}
		out[d] = st
	}
	return out
}

// LoadResult summarizes a LoadDirectory run.
type LoadResult struct {
	Loaded  []string          `json:"loaded"`
	Skipped []string          `json:"skipped"`
	Failed  map[string]string `json:"failed"`
}

// IngestFunc ingests one document into a domain.
type IngestFunc func(ctx context.Context, domain, text string, metadata map[string]interface{}) (bool, error)

// LoadDirectory ingests every .txt and .md file in dir into the retriever.
func (r *KnowledgeRetriever) LoadDirectory(ctx context.Context, dir string) (LoadResult, error) {
	return LoadDirectory(ctx, dir, r.Ingest, r.logger)
}

// LoadDirectory feeds every .txt and .md file in dir to ingest. A file
// belongs to the domain whose collection name, or lower-cased domain name,
// prefixes the file name (property_laws.txt, family_notes.md). Other files
// are skipped. Per-file failures are collected, not returned.
func LoadDirectory(ctx context.Context, dir string, ingest IngestFunc, log logging.Logger) (LoadResult, error) {
	if log == nil {
		log = logging.NewNopLogger()
	}
	res := LoadResult{Loaded: []string{}, Skipped: []string{}, Failed: map[string]string{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrCodeIngestFailed, "failed to read knowledge directory")
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && ext != ".md" {
			continue
		}
		domain, ok := DomainForFile(name)
		if !ok {
			log.Warn("no domain for knowledge file, skipping", logging.String("file", name))
			res.Skipped = append(res.Skipped, name)
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			res.Failed[name] = err.Error()
			continue
		}
		md := map[string]interface{}{
			"source": name,
			"domain": domain,
			"type":   "legal_knowledge",
		}
		if _, err := ingest(ctx, domain, string(content), md); err != nil {
			res.Failed[name] = err.Error()
			continue
		}
		res.Loaded = append(res.Loaded, name)
	}

	log.Info("knowledge directory loaded",
		logging.String("dir", dir),
		logging.Int("loaded", len(res.Loaded)),
		logging.Int("skipped", len(res.Skipped)),
		logging.Int("failed", len(res.Failed)))
	return res, nil
}

// DomainForFile maps a knowledge file name to its domain.
func DomainForFile(name string) (string, bool) {
	base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	for _, d := range domainOrder {
		if strings.HasPrefix(base, collectionNames[d]) {
			return d, true
		}
	}
	for _, d := range domainOrder {
		if strings.HasPrefix(base, strings.ToLower(d)) {
			return d, true
		}
	}
	return "", false
}
