package pipeline

import (
	"context"
	"fmt"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/embedding"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/KummariJohnson/boston-api/pkg/vectorstore"
	"github.com/google/uuid"
)

// Indexer 把快照文档切块、向量化后写入向量索引。
type Indexer struct {
	embedder  embedding.Client
	store     vectorstore.Store
	splitter  Splitter
	batchSize int
}

func NewIndexer(embedder embedding.Client, store vectorstore.Store, splitter Splitter, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Indexer{embedder: embedder, store: store, splitter: splitter, batchSize: batchSize}
}

// Index 返回写入的文本块数量。块 ID 由来源和内容确定，重复执行会覆盖而不是新增。
func (ix *Indexer) Index(ctx context.Context, docs []model.Document) (int, error) {
	var chunks []model.Chunk
	for _, d := range docs {
		for i, text := range ix.splitter.Split(d.Content) {
			chunks = append(chunks, model.Chunk{
				ID:    chunkID(d.URL, i, text),
				Text:  text,
				URL:   d.URL,
				Title: d.Title,
			})
		}
	}
	log.Infof("[Indexer] %d 篇文档切分为 %d 个文本块", len(docs), len(chunks))

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := ix.embedder.CreateEmbeddings(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return start, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vectors))
		}
		for i := range batch {
			batch[i].Vector = vectors[i]
		}
		if err := ix.store.Upsert(ctx, batch); err != nil {
			return start, fmt.Errorf("upsert chunks %d-%d: %w", start, end, err)
		}
	}
	return len(chunks), nil
}

func chunkID(source string, n int, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d#%s", source, n, text))).String()
}
