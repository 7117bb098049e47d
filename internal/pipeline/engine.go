package pipeline

import (
	"context"
	"fmt"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/embedding"
	"github.com/KummariJohnson/boston-api/pkg/vectorstore"
)

// QueryEngine 是请求处理层依赖的查询接口。
type QueryEngine interface {
	Query(ctx context.Context, query string) (*model.QueryResult, error)
}

// Engine 绑定向量索引、Embedding 模型和 LLM。构建后只读，可被并发请求共享。
type Engine struct {
	embedder     embedding.Client
	store        vectorstore.Store
	synthesizer  Synthesizer
	topK         int
	snapshotDocs int
}

// Query 向量化问题，检索最近邻文本块，并用树状汇总生成答案。
func (e *Engine) Query(ctx context.Context, query string) (*model.QueryResult, error) {
	vector, err := e.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrRetrieval, err)
	}

	nodes, err := e.store.Query(ctx, vector, e.topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Text
	}
	answer, err := e.synthesizer.Synthesize(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	return &model.QueryResult{Answer: answer, Sources: nodes}, nil
}

// SnapshotDocuments 返回构建时从快照加载的文档数。
func (e *Engine) SnapshotDocuments() int {
	return e.snapshotDocs
}

func (e *Engine) Close() error {
	return e.store.Close()
}
