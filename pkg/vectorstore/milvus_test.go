package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMilvus 只实现用到的方法，其余方法调用会 panic。
type fakeMilvus struct {
	client.Client

	results []client.SearchResult
	err     error

	searchCollection string
	searchFields     []string
	searchMetric     entity.MetricType
	searchTopK       int

	upsertCollection string
	upserted         []entity.Column
	closed           bool
}

func (f *fakeMilvus) Search(_ context.Context, collName string, _ []string, _ string, outputFields []string,
	_ []entity.Vector, _ string, metricType entity.MetricType, topK int, _ entity.SearchParam, _ ...client.SearchQueryOptionFunc) ([]client.SearchResult, error) {
	f.searchCollection = collName
	f.searchFields = outputFields
	f.searchMetric = metricType
	f.searchTopK = topK
	return f.results, f.err
}

func (f *fakeMilvus) Upsert(_ context.Context, collName string, _ string, columns ...entity.Column) (entity.Column, error) {
	f.upsertCollection = collName
	f.upserted = columns
	return nil, f.err
}

func (f *fakeMilvus) Close() error {
	f.closed = true
	return nil
}

func TestMilvus_Query(t *testing.T) {
	fake := &fakeMilvus{results: []client.SearchResult{{
		ResultCount: 2,
		IDs:         entity.NewColumnVarChar(milvusIDField, []string{"m1", "m2"}),
		Fields: client.ResultSet{
			entity.NewColumnVarChar(fieldText, []string{"Snow emergency parking rules.", "Tow lot locations."}),
			entity.NewColumnVarChar(fieldURL, []string{"https://boston.gov/snow", ""}),
		},
		Scores: []float32{0.93, 0.71},
	}}}
	store := &milvusStore{client: fake, collection: "boston"}

	nodes, err := store.Query(context.Background(), []float32{0.1, 0.2}, 2)
	require.NoError(t, err)

	assert.Equal(t, "boston", fake.searchCollection)
	assert.Equal(t, entity.COSINE, fake.searchMetric)
	assert.Equal(t, 2, fake.searchTopK)
	assert.Equal(t, []string{fieldText, fieldURL, fieldTitle}, fake.searchFields)

	require.Len(t, nodes, 2)
	assert.Equal(t, "m1", nodes[0].ID)
	assert.InDelta(t, 0.93, nodes[0].Score, 1e-6)
	assert.Equal(t, "Snow emergency parking rules.", nodes[0].Text)
	assert.Equal(t, "https://boston.gov/snow", nodes[0].URL)
	// title 列不存在
	assert.Empty(t, nodes[0].Title)

	assert.Equal(t, "m2", nodes[1].ID)
	assert.InDelta(t, 0.71, nodes[1].Score, 1e-6)
	assert.Equal(t, "Tow lot locations.", nodes[1].Text)
	assert.Empty(t, nodes[1].URL)
}

func TestMilvus_QueryNoResults(t *testing.T) {
	store := &milvusStore{client: &fakeMilvus{}, collection: "boston"}

	nodes, err := store.Query(context.Background(), []float32{1}, 2)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestMilvus_QueryError(t *testing.T) {
	boom := errors.New("collection not loaded")
	store := &milvusStore{client: &fakeMilvus{err: boom}, collection: "boston"}

	_, err := store.Query(context.Background(), []float32{1}, 2)
	assert.ErrorIs(t, err, boom)
}

func TestMilvus_Upsert(t *testing.T) {
	fake := &fakeMilvus{}
	store := &milvusStore{client: fake, collection: "boston"}

	err := store.Upsert(context.Background(), []model.Chunk{
		{ID: "c1", Text: "first", URL: "u1", Title: "t1", Vector: []float32{1, 0, 0}},
		{ID: "c2", Text: "second", URL: "u2", Title: "t2", Vector: []float32{0, 1, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, "boston", fake.upsertCollection)
	require.Len(t, fake.upserted, 5)

	ids, ok := fake.upserted[0].(*entity.ColumnVarChar)
	require.True(t, ok)
	assert.Equal(t, milvusIDField, ids.Name())
	assert.Equal(t, []string{"c1", "c2"}, ids.Data())

	vectors, ok := fake.upserted[1].(*entity.ColumnFloatVector)
	require.True(t, ok)
	assert.Equal(t, milvusVectorField, vectors.Name())
	assert.Equal(t, 3, vectors.Dim())
	assert.Equal(t, [][]float32{{1, 0, 0}, {0, 1, 0}}, vectors.Data())

	for i, want := range []struct {
		name   string
		values []string
	}{
		{fieldText, []string{"first", "second"}},
		{fieldURL, []string{"u1", "u2"}},
		{fieldTitle, []string{"t1", "t2"}},
	} {
		col, ok := fake.upserted[i+2].(*entity.ColumnVarChar)
		require.True(t, ok)
		assert.Equal(t, want.name, col.Name())
		assert.Equal(t, want.values, col.Data())
	}

	require.NoError(t, store.Close())
	assert.True(t, fake.closed)
}

func TestMilvus_UpsertEmpty(t *testing.T) {
	fake := &fakeMilvus{}
	store := &milvusStore{client: fake, collection: "boston"}

	require.NoError(t, store.Upsert(context.Background(), nil))
	assert.Nil(t, fake.upserted)
}
