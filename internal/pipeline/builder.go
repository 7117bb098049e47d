// Package pipeline 负责构建并缓存 RAG 查询管道。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/embedding"
	"github.com/KummariJohnson/boston-api/pkg/llm"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/KummariJohnson/boston-api/pkg/storage"
	"github.com/KummariJohnson/boston-api/pkg/tokenizer"
	"github.com/KummariJohnson/boston-api/pkg/vectorstore"
)

// Dependencies 是构建管道所用的工厂，为 nil 的字段使用默认实现。
type Dependencies struct {
	NewStore    func(ctx context.Context, cfg config.VectorConfig) (vectorstore.Store, error)
	NewEmbedder func(cfg config.EmbeddingConfig) embedding.Client
	NewLLM      func(cfg config.LLMConfig) llm.Client
	Snapshot    SnapshotLoader
	Counter     tokenizer.Counter
}

// Builder 至多构建一次 Engine，之后每次 Build 返回同一个结果。
// 构建失败的结果同样被缓存，进程内不会重试。
type Builder struct {
	cfg  *config.Config
	deps Dependencies

	once   sync.Once
	engine *Engine
	err    error
}

func NewBuilder(cfg *config.Config, deps Dependencies) *Builder {
	if deps.NewStore == nil {
		deps.NewStore = vectorstore.New
	}
	if deps.NewEmbedder == nil {
		deps.NewEmbedder = embedding.NewClient
	}
	if deps.NewLLM == nil {
		deps.NewLLM = llm.NewClient
	}
	return &Builder{cfg: cfg, deps: deps}
}

// Build 返回缓存的 Engine；首次调用时执行构建。
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	b.once.Do(func() {
		b.engine, b.err = b.build(ctx)
	})
	return b.engine, b.err
}

func (b *Builder) build(ctx context.Context) (*Engine, error) {
	log.Info("[Pipeline] 开始初始化查询管道组件")

	// 1. 校验必需配置
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	// 2. 加载可选的本地快照
	docs, err := b.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	// 3. 连接远程向量索引
	store, err := b.deps.NewStore(ctx, b.cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorStore, err)
	}
	log.Infof("[Pipeline] 已连接到向量索引: %s (%s)", b.cfg.Vector.Index, b.cfg.Vector.Provider)

	// 4. Embedding 模型
	embedder := b.deps.NewEmbedder(b.cfg.Embedding)
	log.Infof("[Pipeline] 使用 Embedding 模型: %s", embedder.Model())

	// 5. LLM
	llmClient := b.deps.NewLLM(b.cfg.LLM)
	log.Infof("[Pipeline] 使用 LLM: %s (temperature=%.1f, max_tokens=%d)", llmClient.Model(), b.cfg.LLM.Temperature, b.cfg.LLM.MaxTokens)

	counter := b.deps.Counter
	if counter == nil {
		counter = tokenizer.New(tokenizer.DefaultEncoding)
	}

	if len(docs) > 0 && b.cfg.Snapshot.IndexOnStartup {
		splitter := NewSplitter(counter, b.cfg.Snapshot.ChunkSize, b.cfg.Snapshot.ChunkOverlap)
		n, err := NewIndexer(embedder, store, splitter, b.cfg.Embedding.BatchSize).Index(ctx, docs)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%w: %w", ErrIndexing, err)
		}
		log.Infof("[Pipeline] 已将 %d 个文本块写入向量索引", n)
	}

	// 6. 组装查询引擎
	engine := &Engine{
		embedder:     embedder,
		store:        store,
		synthesizer:  NewTreeSummarizer(llmClient, counter, b.cfg.LLM.ContextWindow, b.cfg.LLM.MaxTokens),
		topK:         b.cfg.Retrieval.TopK,
		snapshotDocs: len(docs),
	}
	log.Info("[Pipeline] RAG 查询引擎创建完成")
	return engine, nil
}

func (b *Builder) loadSnapshot(ctx context.Context) ([]model.Document, error) {
	loader, err := b.snapshotLoader()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	docs, err := loader.Load(ctx)
	if errors.Is(err, ErrSnapshotNotFound) {
		log.Warnf("[Pipeline] 未找到快照 %s, 假定向量索引已经填充完毕", loader.Location())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSnapshot, loader.Location(), err)
	}
	log.Infof("[Pipeline] 从 '%s' 加载了 %d 篇文档", loader.Location(), len(docs))
	return docs, nil
}

func (b *Builder) snapshotLoader() (SnapshotLoader, error) {
	if b.deps.Snapshot != nil {
		return b.deps.Snapshot, nil
	}
	m := b.cfg.Snapshot.MinIO
	if m.BucketName == "" {
		return FileSnapshot{Path: b.cfg.Snapshot.Path}, nil
	}
	client, err := storage.NewMinIO(m)
	if err != nil {
		return nil, err
	}
	return ObjectSnapshot{Client: client, BucketName: m.BucketName, ObjectName: m.ObjectName}, nil
}
