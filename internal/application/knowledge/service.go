// Package knowledge is the application service over the knowledge retriever.
// It adds a source registry, per-source locking and asynchronous ingestion
// through the message bus.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/turtacn/LegalLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/pkg/errors"
	"github.com/turtacn/LegalLens/pkg/types/common"
	"github.com/turtacn/LegalLens/pkg/types/legal"
)

const defaultSource = "doc"

// Registry records ingested sources. Implemented by the Postgres repository.
type Registry interface {
	Upsert(ctx context.Context, ks *legal.KnowledgeSource) error
	GetBySource(ctx context.Context, domain, source string) (*legal.KnowledgeSource, error)
	List(ctx context.Context, domain string, limit, offset int) ([]*legal.KnowledgeSource, error)
	CountByDomain(ctx context.Context) ([]legal.DomainCount, error)
}

// Locker is a mutual-exclusion lock shared between processes.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LockFactory returns the lock guarding name.
type LockFactory func(name string) Locker

// EventPublisher sends an event envelope to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, eventType string, key []byte, payload interface{}) error
}

// IngestRequest is one document to add to a domain collection.
type IngestRequest struct {
	Domain   string                 `json:"domain" binding:"required"`
	Text     string                 `json:"text" binding:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IngestResult reports what an ingest did.
type IngestResult struct {
	Success    bool   `json:"success"`
	Domain     string `json:"domain"`
	Source     string `json:"source"`
	Collection string `json:"collection"`
	Chunks     int    `json:"chunks"`
	// Unchanged is set when the registry already holds identical content.
	Unchanged bool `json:"unchanged,omitempty"`
	// Queued is set when the request was handed to the message bus.
	Queued bool `json:"queued,omitempty"`
}

// DomainStats joins the vector store view with the registry view.
type DomainStats struct {
	retrieval.CollectionStats
	Sources int `json:"sources"`
}

// Service coordinates ingestion and retrieval.
type Service struct {
	retriever   retrieval.Retriever
	chunkSize   int
	registry    Registry
	locks       LockFactory
	publisher   EventPublisher
	ingestTopic string
	logger      logging.Logger
}

type Option func(*Service)

// WithRegistry records every successful ingest.
func WithRegistry(r Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithLocks serializes concurrent ingests of the same source.
func WithLocks(f LockFactory) Option {
	return func(s *Service) { s.locks = f }
}

// WithPublisher enables Enqueue on topic.
func WithPublisher(p EventPublisher, topic string) Option {
	return func(s *Service) {
		s.publisher = p
		s.ingestTopic = topic
	}
}

// WithChunkSize must match the retriever's chunk size for chunk counts to
// be exact.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

func NewService(r retrieval.Retriever, log logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &Service{retriever: r, chunkSize: retrieval.DefaultChunkSize, logger: log.Named("knowledge")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest writes req into its domain's collection. With a registry, content
// whose hash matches the registered source is skipped.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	collection, ok := retrieval.CollectionFor(req.Domain)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownDomain, "unknown domain %q", req.Domain)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New(errors.ErrCodeIngestFailed, "document text is empty")
	}
	source := defaultSource
	if v, ok := req.Metadata["source"].(string); ok && v != "" {
		source = v
	}
	res := &IngestResult{Domain: req.Domain, Source: source, Collection: collection}
	hash := contentHash(req.Text)

	if s.locks != nil {
		lock := s.locks("knowledge:" + collection + ":" + source)
		if err := lock.Lock(ctx); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConflict, "source is being ingested").WithDetail(source)
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release ingest lock", logging.String("source", source), logging.Err(err))
			}
		}()
	}

	if s.registry != nil {
		existing, err := s.registry.GetBySource(ctx, req.Domain, source)
		switch {
		case err == nil && existing.ContentHash == hash:
			s.logger.Info("source unchanged, skipping ingest",
				logging.String("domain", req.Domain), logging.String("source", source))
			res.Success, res.Unchanged, res.Chunks = true, true, existing.ChunkCount
			return res, nil
		case err != nil && !errors.IsNotFound(err):
			s.logger.Warn("registry lookup failed, ingesting anyway", logging.Err(err))
		}
	}

	if _, err := s.retriever.Ingest(ctx, req.Domain, req.Text, req.Metadata); err != nil {
		return nil, err
	}
	res.Success = true
	res.Chunks = len(retrieval.SplitText(req.Text, s.chunkSize))

	if s.registry != nil {
		ks := &legal.KnowledgeSource{
			Domain:      req.Domain,
			Source:      source,
			Collection:  collection,
			ChunkCount:  res.Chunks,
			ContentHash: hash,
			Metadata:    req.Metadata,
		}
		// The chunks are already searchable; a registry failure only loses
		// bookkeeping.
		if err := s.registry.Upsert(ctx, ks); err != nil {
			s.logger.Error("failed to register knowledge source", logging.String("source", source), logging.Err(err))
		}
	}
	return res, nil
}

// Enqueue hands req to the ingestion worker. Without a publisher it ingests
// synchronously.
func (s *Service) Enqueue(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if s.publisher == nil {
		return s.Ingest(ctx, req)
	}
	collection, ok := retrieval.CollectionFor(req.Domain)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeUnknownDomain, "unknown domain %q", req.Domain)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New(errors.ErrCodeIngestFailed, "document text is empty")
	}
	payload := kafka.KnowledgeIngestPayload{Domain: req.Domain, Text: req.Text, Metadata: req.Metadata}
	if err := s.publisher.PublishEvent(ctx, s.ingestTopic, kafka.EventKnowledgeIngest, []byte(req.Domain), payload); err != nil {
		return nil, err
	}
	source, _ := req.Metadata["source"].(string)
	return &IngestResult{Success: true, Queued: true, Domain: req.Domain, Source: source, Collection: collection}, nil
}

// HandleMessage is the consumer handler for the ingest topic. Malformed or
// unroutable messages are logged and dropped; only failures that a retry
// could fix are returned.
func (s *Service) HandleMessage(ctx context.Context, msg *common.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		s.logger.Error("dropping malformed ingest message", logging.Int64("offset", msg.Offset), logging.Err(err))
		return nil
	}
	if env.EventType != kafka.EventKnowledgeIngest {
		s.logger.Warn("ignoring event", logging.String("event_type", env.EventType))
		return nil
	}
	var p kafka.KnowledgeIngestPayload
	if err := env.DecodePayload(&p); err != nil {
		s.logger.Error("dropping ingest message with bad payload", logging.String("event_id", env.EventID), logging.Err(err))
		return nil
	}

	if _, ok := retrieval.CollectionFor(p.Domain); !ok || strings.TrimSpace(p.Text) == "" {
		s.logger.Error("dropping unprocessable ingest message",
			logging.String("event_id", env.EventID), logging.String("domain", p.Domain))
		return nil
	}

	ctx = logging.ContextWithRequestID(ctx, env.TraceID)
	res, err := s.Ingest(ctx, IngestRequest{Domain: p.Domain, Text: p.Text, Metadata: p.Metadata})
	if err != nil {
		return err
	}
	s.logger.Info("ingest message processed",
		logging.String("event_id", env.EventID),
		logging.String("domain", res.Domain),
		logging.Int("chunks", res.Chunks))
	return nil
}

// Retrieve passes through to the retriever.
func (s *Service) Retrieve(ctx context.Context, domain, query string, topK int) []legal.RetrievedChunk {
	return s.retriever.Retrieve(ctx, domain, query, topK)
}

// Stats returns per-domain chunk counts, with registered source counts when
// a registry is configured.
func (s *Service) Stats(ctx context.Context) map[string]DomainStats {
	base := s.retriever.Stats(ctx)
	out := make(map[string]DomainStats, len(base))
	for d, st := range base {
		out[d] = DomainStats{CollectionStats: st}
	}
	if s.registry == nil {
		return out
	}
	counts, err := s.registry.CountByDomain(ctx)
	if err != nil {
		s.logger.Warn("failed to read registry counts", logging.Err(err))
		return out
	}
	for _, c := range counts {
		st := out[c.Domain]
		st.Sources = c.Sources
		out[c.Domain] = st
	}
	return out
}

// Sources lists registered sources. Without a registry it returns nil.
func (s *Service) Sources(ctx context.Context, domain string, limit, offset int) ([]*legal.KnowledgeSource, error) {
	if s.registry == nil {
		return nil, nil
	}
	return s.registry.List(ctx, domain, limit, offset)
}

// LoadDirectory ingests a knowledge directory through Ingest, so loaded
// files are registered and locked like any other source.
func (s *Service) LoadDirectory(ctx context.Context, dir string) (retrieval.LoadResult, error) {
	return retrieval.LoadDirectory(ctx, dir, func(ctx context.Context, domain, text string, md map[string]interface{}) (bool, error) {
		res, err := s.Ingest(ctx, IngestRequest{Domain: domain, Text: text, Metadata: md})
		if err != nil {
			return false, err
		}
		return res.Success, nil
	}, s.logger)
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
