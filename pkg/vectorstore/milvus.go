package vectorstore

import (
	"context"
	"fmt"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

const (
	milvusIDField     = "id"
	milvusVectorField = "vector"
)

type milvusStore struct {
	client     client.Client
	collection string
}

// NewMilvus 连接到 Milvus / Zilliz Cloud。Index 为集合名，Environment 为数据库名。
// 集合需预先按 id(varchar 主键)、vector、text、url、title 字段建好。
func NewMilvus(ctx context.Context, cfg config.VectorConfig) (Store, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: cfg.Host,
		APIKey:  cfg.APIKey,
		DBName:  cfg.Environment,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	if err := c.LoadCollection(ctx, cfg.Index, false); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to load milvus collection %q: %w", cfg.Index, err)
	}
	log.Infof("[Milvus] 已连接到集合 '%s' (database: %s)", cfg.Index, cfg.Environment)
	return &milvusStore{client: c, collection: cfg.Index}, nil
}

func (s *milvusStore) Query(ctx context.Context, vector []float32, topK int) ([]model.SourceNode, error) {
	sp, err := entity.NewIndexAUTOINDEXSearchParam(1)
	if err != nil {
		return nil, err
	}
	results, err := s.client.Search(
		ctx,
		s.collection,
		nil,
		"",
		[]string{fieldText, fieldURL, fieldTitle},
		[]entity.Vector{entity.FloatVector(vector)},
		milvusVectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	rs := results[0]
	nodes := make([]model.SourceNode, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		id, _ := rs.IDs.GetAsString(i)
		md := map[string]interface{}{
			fieldText:  columnString(rs.Fields, fieldText, i),
			fieldURL:   columnString(rs.Fields, fieldURL, i),
			fieldTitle: columnString(rs.Fields, fieldTitle, i),
		}
		nodes = append(nodes, nodeFromMetadata(id, float64(rs.Scores[i]), md))
	}
	return nodes, nil
}

func columnString(fields client.ResultSet, name string, i int) string {
	col := fields.GetColumn(name)
	if col == nil {
		return ""
	}
	v, err := col.GetAsString(i)
	if err != nil {
		return ""
	}
	return v
}

func (s *milvusStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	urls := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i], texts[i], urls[i], titles[i], vectors[i] = c.ID, c.Text, c.URL, c.Title, c.Vector
	}
	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvusIDField, ids),
		entity.NewColumnFloatVector(milvusVectorField, len(vectors[0]), vectors),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnVarChar(fieldURL, urls),
		entity.NewColumnVarChar(fieldTitle, titles),
	)
	if err != nil {
		return fmt.Errorf("milvus upsert failed: %w", err)
	}
	return nil
}

func (s *milvusStore) Close() error {
	return s.client.Close()
}
