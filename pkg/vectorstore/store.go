// Package vectorstore 封装远程向量索引服务：查询最近邻文本块，以及写入快照文档。
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
)

// 元数据中的字段名。_node_content 是 LlamaIndex 写入的节点 JSON。
const (
	fieldText        = "text"
	fieldURL         = "url"
	fieldTitle       = "title"
	fieldNodeContent = "_node_content"
)

// Store 是向量索引的最小接口，实现需要支持并发调用。
type Store interface {
	// Query 返回与 vector 最相近的 topK 个文本块，按相关度降序排列。
	Query(ctx context.Context, vector []float32, topK int) ([]model.SourceNode, error)
	// Upsert 按 ID 写入或覆盖文本块。
	Upsert(ctx context.Context, chunks []model.Chunk) error
	Close() error
}

// New 根据 provider 创建对应的向量存储客户端。
func New(ctx context.Context, cfg config.VectorConfig) (Store, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "pinecone":
		return NewPinecone(ctx, cfg)
	case "elasticsearch", "es":
		return NewElasticsearch(ctx, cfg)
	case "milvus":
		return NewMilvus(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported vector provider %q", cfg.Provider)
	}
}

// nodeFromMetadata 从元数据中取出文本、url、title。
// score 必须是余弦相似度，各后端在调用前自行换算。
func nodeFromMetadata(id string, score float64, md map[string]interface{}) model.SourceNode {
	node := model.SourceNode{
		ID:    id,
		Score: score,
		Text:  stringField(md, fieldText),
		URL:   stringField(md, fieldURL),
		Title: stringField(md, fieldTitle),
	}
	if node.Text == "" {
		node.Text = textFromNodeContent(stringField(md, fieldNodeContent))
	}
	return node
}

func textFromNodeContent(raw string) string {
	if raw == "" {
		return ""
	}
	var nc struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &nc); err != nil {
		return ""
	}
	return nc.Text
}

func stringField(md map[string]interface{}, key string) string {
	if md == nil {
		return ""
	}
	if s, ok := md[key].(string); ok {
		return s
	}
	return ""
}

func chunkMetadata(c model.Chunk) map[string]interface{} {
	return map[string]interface{}{
		fieldText:  c.Text,
		fieldURL:   c.URL,
		fieldTitle: c.Title,
	}
}
