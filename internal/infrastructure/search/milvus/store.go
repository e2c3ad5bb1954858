package milvus

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/turtacn/LegalLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	"github.com/turtacn/LegalLens/pkg/errors"
)

const (
	fieldID       = "id"
	fieldText     = "text"
	fieldMetadata = "metadata"
	fieldVector   = "vector"

	maxIDLength   = 512
	maxTextLength = 65535
)

// StoreConfig tunes collection layout and search.
type StoreConfig struct {
	// CollectionPrefix is prepended to every collection name.
	CollectionPrefix string
	ShardsNum        int32
	NList            int
	NProbe           int
}

// Store implements retrieval.VectorStore on Milvus. Each collection holds
// id (varchar primary key), text, metadata (JSON) and an IVF_FLAT/L2
// indexed float vector. Searches use strong consistency so freshly ingested
// chunks are visible.
type Store struct {
	client *Client
	config StoreConfig
	logger logging.Logger

	mu   sync.RWMutex
	dims map[string]int
}

var _ retrieval.VectorStore = (*Store)(nil)

func NewStore(c *Client, cfg StoreConfig, logger logging.Logger) *Store {
	if cfg.ShardsNum == 0 {
		cfg.ShardsNum = 1
	}
	if cfg.NList == 0 {
		cfg.NList = 128
	}
	if cfg.NProbe == 0 {
		cfg.NProbe = 16
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Store{client: c, config: cfg, logger: logger.Named("milvus-store"), dims: make(map[string]int)}
}

func (s *Store) Name() string { return "milvus" }

func (s *Store) fullName(collection string) string {
	return s.config.CollectionPrefix + collection
}

// Schema returns the collection schema for dim-dimensional vectors.
func Schema(name string, dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Description:    "legal knowledge chunks",
		Fields: []*entity.Field{
			{Name: fieldID, DataType: entity.FieldTypeVarChar, PrimaryKey: true, AutoID: false,
				TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(maxIDLength)}},
			{Name: fieldText, DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{entity.TypeParamMaxLength: strconv.Itoa(maxTextLength)}},
			{Name: fieldMetadata, DataType: entity.FieldTypeJSON},
			{Name: fieldVector, DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{entity.TypeParamDim: strconv.Itoa(dim)}},
		},
	}
}

// EnsureCollection creates, indexes and loads the collection when missing.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dim int) error {
	if dim <= 0 {
		return errors.Newf(errors.ErrCodeVectorStore, "invalid dimension %d for %s", dim, collection)
	}
	name := s.fullName(collection)
	mc := s.client.sdk()

	has, err := mc.HasCollection(ctx, name)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeVectorStore, "failed to check collection "+name)
	}
	if !has {
		if err := mc.CreateCollection(ctx, Schema(name, dim), s.config.ShardsNum); err != nil {
			return errors.Wrap(err, errors.ErrCodeVectorStore, "failed to create collection "+name)
		}
		idx, err := entity.NewIndexIvfFlat(entity.L2, s.config.NList)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeVectorStore, "invalid index parameters")
		}
		if err := mc.CreateIndex(ctx, name, fieldVector, idx, false); err != nil {
			return errors.Wrap(err, errors.ErrCodeVectorStore, "failed to create index on "+name)
		}
		s.logger.Info("collection created", logging.String("collection", name), logging.Int("dim", dim))
	}
	if err := mc.LoadCollection(ctx, name, false); err != nil {
		return errors.Wrap(err, errors.ErrCodeVectorStore, "failed to load collection "+name)
	}

	s.mu.Lock()
	s.dims[collection] = dim
	s.mu.Unlock()
	return nil
}

// Upsert writes docs column-wise, replacing rows with the same id.
func (s *Store) Upsert(ctx context.Context, collection string, docs []retrieval.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.RLock()
	dim, ok := s.dims[collection]
	s.mu.RUnlock()
	if !ok {
		return errors.Newf(errors.ErrCodeVectorStore, "collection %s is not prepared", collection)
	}

	ids := make([]string, len(docs))
	texts := make([]string, len(docs))
	metas := make([][]byte, len(docs))
	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		if len(d.Vector) != dim {
			return errors.Newf(errors.ErrCodeVectorStore, "vector dimension mismatch: got %d, want %d", len(d.Vector), dim)
		}
		md := d.Metadata
		if md == nil {
			md = map[string]interface{}{}
		}
		raw, err := json.Marshal(md)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode chunk metadata")
		}
		ids[i], texts[i], metas[i], vectors[i] = d.ID, d.Text, raw, d.Vector
	}

	_, err := s.client.sdk().Upsert(ctx, s.fullName(collection), "",
		entity.NewColumnVarChar(fieldID, ids),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnJSONBytes(fieldMetadata, metas),
		entity.NewColumnFloatVector(fieldVector, dim, vectors),
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeVectorStore, "failed to upsert chunks")
	}
	s.logger.Debug("chunks upserted", logging.String("collection", collection), logging.Int("count", len(docs)))
	return nil
}

// DeleteSource drops the chunks of source. Candidates are fetched with a
// prefix match on id and filtered with retrieval.IsChunkOf before deleting by
// primary key.
func (s *Store) DeleteSource(ctx context.Context, collection, source string) (int, error) {
	name := s.fullName(collection)
	rs, err := s.client.sdk().Query(ctx, name, []string{}, sourceExpr(source), []string{fieldID},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeVectorStore, "failed to list chunks of "+source)
	}
	col := rs.GetColumn(fieldID)
	if col == nil {
		return 0, nil
	}
	ids := make([]string, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		id, err := col.GetAsString(i)
		if err == nil && retrieval.IsChunkOf(id, source) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.client.sdk().DeleteByPks(ctx, name, "", entity.NewColumnVarChar(fieldID, ids)); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeVectorStore, "failed to delete chunks of "+source)
	}
	s.logger.Debug("chunks deleted", logging.String("collection", collection), logging.Int("count", len(ids)))
	return len(ids), nil
}

func sourceExpr(source string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(source)
	return fieldID + ` like "` + escaped + `_%"`
}

// Search returns up to topK hits; Milvus L2 scores are squared distances in
// ascending order.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int) ([]retrieval.Hit, error) {
	if topK <= 0 {
		return []retrieval.Hit{}, nil
	}
	sp, err := entity.NewIndexIvfFlatSearchParam(s.config.NProbe)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVectorStore, "invalid search parameters")
	}

	results, err := s.client.sdk().Search(ctx, s.fullName(collection), []string{}, "",
		[]string{fieldID, fieldText, fieldMetadata},
		[]entity.Vector{entity.FloatVector(vector)},
		fieldVector, entity.L2, topK, sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVectorStore, "milvus search failed")
	}
	if len(results) == 0 {
		return []retrieval.Hit{}, nil
	}
	return convertResult(results[0])
}

func convertResult(res client.SearchResult) ([]retrieval.Hit, error) {
	if res.Err != nil {
		return nil, errors.Wrap(res.Err, errors.ErrCodeVectorStore, "milvus search failed")
	}
	textCol := res.Fields.GetColumn(fieldText)
	metaCol := res.Fields.GetColumn(fieldMetadata)

	hits := make([]retrieval.Hit, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		h := retrieval.Hit{Metadata: map[string]interface{}{}}
		if res.IDs != nil {
			h.ID, _ = res.IDs.GetAsString(i)
		}
		if i < len(res.Scores) {
			h.Distance = float64(res.Scores[i])
		}
		if textCol != nil {
			h.Text, _ = textCol.GetAsString(i)
		}
		if metaCol != nil {
			if v, err := metaCol.Get(i); err == nil {
				if raw, ok := v.([]byte); ok && len(raw) > 0 {
					if err := json.Unmarshal(raw, &h.Metadata); err != nil {
						return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode chunk metadata")
					}
				}
			}
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// Count returns the live row count via a count(*) query.
func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	rs, err := s.client.sdk().Query(ctx, s.fullName(collection), []string{}, "", []string{"count(*)"},
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeVectorStore, "milvus count failed")
	}
	col := rs.GetColumn("count(*)")
	if col == nil || col.Len() == 0 {
		return 0, nil
	}
	n, err := col.GetAsInt64(0)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeVectorStore, "unexpected count result")
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
