package milvus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/LegalLens/internal/intelligence/retrieval"
	apperrors "github.com/turtacn/LegalLens/pkg/errors"
)

func newTestStore(mock client.Client) *Store {
	return NewStore(newTestClient(mock), StoreConfig{CollectionPrefix: "ll_"}, nil)
}

func TestStore_EnsureCollection_Creates(t *testing.T) {
	var created *entity.Schema
	var indexed, loaded string
	mock := &mockMilvusClient{
		hasCollectionFunc: func(ctx context.Context, name string) (bool, error) { return false, nil },
		createFunc: func(ctx context.Context, schema *entity.Schema, shards int32) error {
			created = schema
			return nil
		},
		createIndexFunc: func(ctx context.Context, coll, field string, idx entity.Index) error {
			indexed = coll + "/" + field
			assert.Equal(t, entity.IvfFlat, idx.IndexType())
			return nil
		},
		loadFunc: func(ctx context.Context, coll string) error {
			loaded = coll
			return nil
		},
	}
	s := newTestStore(mock)

	require.NoError(t, s.EnsureCollection(context.Background(), "tax_regulations", 384))
	require.NotNil(t, created)
	assert.Equal(t, "ll_tax_regulations", created.CollectionName)
	require.Len(t, created.Fields, 4)
	assert.True(t, created.Fields[0].PrimaryKey)
	assert.Equal(t, "384", created.Fields[3].TypeParams[entity.TypeParamDim])
	assert.Equal(t, "ll_tax_regulations/vector", indexed)
	assert.Equal(t, "ll_tax_regulations", loaded)
}

func TestStore_EnsureCollection_Existing(t *testing.T) {
	mock := &mockMilvusClient{
		hasCollectionFunc: func(ctx context.Context, name string) (bool, error) { return true, nil },
		loadFunc:          func(ctx context.Context, coll string) error { return nil },
	}
	s := newTestStore(mock)
	require.NoError(t, s.EnsureCollection(context.Background(), "family_law", 8))

	mock.hasCollectionFunc = func(ctx context.Context, name string) (bool, error) { return false, errors.New("rpc error") }
	err := s.EnsureCollection(context.Background(), "family_law", 8)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVectorStore))
	assert.Error(t, s.EnsureCollection(context.Background(), "family_law", 0))
}

func TestStore_Upsert(t *testing.T) {
	var cols []entity.Column
	mock := &mockMilvusClient{
		hasCollectionFunc: func(ctx context.Context, name string) (bool, error) { return true, nil },
		loadFunc:          func(ctx context.Context, coll string) error { return nil },
		upsertFunc: func(ctx context.Context, coll string, c ...entity.Column) (entity.Column, error) {
			assert.Equal(t, "ll_property_laws", coll)
			cols = c
			return c[0], nil
		},
	}
	s := newTestStore(mock)
	ctx := context.Background()

	err := s.Upsert(ctx, "property_laws", []retrieval.Document{{ID: "a", Vector: []float32{1, 0}}})
	assert.Error(t, err, "collection not prepared")

	require.NoError(t, s.EnsureCollection(ctx, "property_laws", 2))
	require.NoError(t, s.Upsert(ctx, "property_laws", nil))
	require.NoError(t, s.Upsert(ctx, "property_laws", []retrieval.Document{
		{ID: "deed_0", Text: "stamp duty", Vector: []float32{1, 0}, Metadata: map[string]interface{}{"chunk_index": 0}},
		{ID: "deed_1", Text: "lease", Vector: []float32{0, 1}},
	}))
	require.Len(t, cols, 4)
	assert.Equal(t, "id", cols[0].Name())
	assert.Equal(t, 2, cols[0].Len())
	raw, err := cols[2].Get(0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chunk_index":0}`, string(raw.([]byte)))
	raw, err = cols[2].Get(1)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw.([]byte)))

	err = s.Upsert(ctx, "property_laws", []retrieval.Document{{ID: "bad", Vector: []float32{1}}})
	assert.Error(t, err)

	mock.upsertFunc = func(context.Context, string, ...entity.Column) (entity.Column, error) {
		return nil, errors.New("write failed")
	}
	err = s.Upsert(ctx, "property_laws", []retrieval.Document{{ID: "x", Vector: []float32{1, 1}}})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVectorStore))
}

func TestStore_Search(t *testing.T) {
	md, _ := json.Marshal(map[string]interface{}{"source": "tax.txt", "chunk_index": 1})
	mock := &mockMilvusClient{
		searchFunc: func(ctx context.Context, coll string, output []string, vectors []entity.Vector, field string, metric entity.MetricType, topK int) ([]client.SearchResult, error) {
			assert.Equal(t, "ll_tax_regulations", coll)
			assert.Equal(t, "vector", field)
			assert.Equal(t, entity.L2, metric)
			assert.Equal(t, 2, topK)
			assert.Equal(t, []string{"id", "text", "metadata"}, output)
			return []client.SearchResult{{
				ResultCount: 2,
				IDs:         entity.NewColumnVarChar("id", []string{"tax.txt_1", "tax.txt_0"}),
				Scores:      []float32{0.25, 0.5},
				Fields: client.ResultSet{
					entity.NewColumnVarChar("text", []string{"GST registration", "income tax return"}),
					entity.NewColumnJSONBytes("metadata", [][]byte{md, nil}),
				},
			}}, nil
		},
	}
	s := newTestStore(mock)

	hits, err := s.Search(context.Background(), "tax_regulations", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "tax.txt_1", hits[0].ID)
	assert.Equal(t, "GST registration", hits[0].Text)
	assert.InDelta(t, 0.25, hits[0].Distance, 1e-6)
	assert.Equal(t, "tax.txt", hits[0].Metadata["source"])
	assert.Equal(t, float64(1), hits[0].Metadata["chunk_index"])
	assert.Empty(t, hits[1].Metadata)

	empty, err := s.Search(context.Background(), "tax_regulations", []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	mock.searchFunc = func(context.Context, string, []string, []entity.Vector, string, entity.MetricType, int) ([]client.SearchResult, error) {
		return nil, errors.New("collection not loaded")
	}
	_, err = s.Search(context.Background(), "tax_regulations", []float32{1, 0}, 2)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVectorStore))
}

func TestStore_Count(t *testing.T) {
	mock := &mockMilvusClient{
		queryFunc: func(ctx context.Context, coll, expr string, output []string) (client.ResultSet, error) {
			assert.Empty(t, expr)
			assert.Equal(t, []string{"count(*)"}, output)
			return client.ResultSet{entity.NewColumnInt64("count(*)", []int64{42})}, nil
		},
	}
	s := newTestStore(mock)
	n, err := s.Count(context.Background(), "family_law")
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	mock.queryFunc = func(context.Context, string, string, []string) (client.ResultSet, error) {
		return nil, errors.New("boom")
	}
	_, err = s.Count(context.Background(), "family_law")
	assert.Error(t, err)
}

func TestStore_DeleteSource(t *testing.T) {
	var deleted []string
	mock := &mockMilvusClient{
		queryFunc: func(ctx context.Context, coll, expr string, output []string) (client.ResultSet, error) {
			assert.Equal(t, "ll_property_laws", coll)
			assert.Equal(t, `id like "lease.txt_%"`, expr)
			assert.Equal(t, []string{"id"}, output)
			return client.ResultSet{entity.NewColumnVarChar("id", []string{
				"lease.txt_0", "lease.txt_1", "lease.txt_notes_0", "lease.txt_2",
			})}, nil
		},
		deleteFunc: func(ctx context.Context, coll string, ids entity.Column) error {
			assert.Equal(t, "ll_property_laws", coll)
			for i := 0; i < ids.Len(); i++ {
				id, err := ids.GetAsString(i)
				require.NoError(t, err)
				deleted = append(deleted, id)
			}
			return nil
		},
	}
	s := newTestStore(mock)

	n, err := s.DeleteSource(context.Background(), "property_laws", "lease.txt")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"lease.txt_0", "lease.txt_1", "lease.txt_2"}, deleted)

	mock.deleteFunc = func(context.Context, string, entity.Column) error { return errors.New("boom") }
	_, err = s.DeleteSource(context.Background(), "property_laws", "lease.txt")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVectorStore))
}

func TestSourceExpr_Escapes(t *testing.T) {
	assert.Equal(t, `id like "a\"b_%"`, sourceExpr(`a"b`))
}

func TestStore_TracksDimensions(t *testing.T) {
	mock := &mockMilvusClient{
		hasCollectionFunc: func(ctx context.Context, name string) (bool, error) { return true, nil },
		loadFunc:          func(ctx context.Context, coll string) error { return nil },
	}
	s := newTestStore(mock)
	assert.Equal(t, "milvus", s.Name())
	for _, name := range []string{"property_laws", "tax_regulations"} {
		require.NoError(t, s.EnsureCollection(context.Background(), name, 16))
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	assert.Equal(t, 16, s.dims["tax_regulations"])
}
