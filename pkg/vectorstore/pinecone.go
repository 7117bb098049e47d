package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/pinecone-io/go-pinecone/v3/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

const pineconeUpsertBatch = 100

// pineconeIndex 是 *pinecone.IndexConnection 中用到的部分。
type pineconeIndex interface {
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	Close() error
}

type pineconeStore struct {
	index     pineconeIndex
	indexName string
}

// NewPinecone 连接到已存在的 Pinecone 索引。cfg.Host 为空时通过控制面查询数据面地址。
func NewPinecone(ctx context.Context, cfg config.VectorConfig) (Store, error) {
	pc, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: cfg.APIKey,
		Host:   cfg.ControlURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	host := cfg.Host
	if host == "" {
		host, err = describeIndexHost(ctx, pc, cfg.Index)
		if err != nil {
			return nil, err
		}
	}

	conn, err := pc.Index(pinecone.NewIndexConnParams{
		Host:      indexHost(host),
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pinecone index %q: %w", cfg.Index, err)
	}
	log.Infof("[Pinecone] 已连接到索引 '%s' (environment: %s, host: %s)", cfg.Index, cfg.Environment, indexHost(host))
	return &pineconeStore{index: conn, indexName: cfg.Index}, nil
}

func describeIndexHost(ctx context.Context, pc *pinecone.Client, name string) (string, error) {
	idx, err := pc.DescribeIndex(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to describe pinecone index %q: %w", name, err)
	}
	if idx.Host == "" {
		return "", fmt.Errorf("pinecone index %q has no host", name)
	}
	if idx.Status != nil && !idx.Status.Ready {
		log.Warnf("[Pinecone] 索引 '%s' 尚未就绪", name)
	}
	return idx.Host, nil
}

// indexHost 去掉协议前缀和结尾的斜杠，SDK 只接受主机名。
func indexHost(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.TrimSuffix(host, "/")
}

func (s *pineconeStore) Query(ctx context.Context, vector []float32, topK int) ([]model.SourceNode, error) {
	resp, err := s.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	nodes := make([]model.SourceNode, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		var md map[string]interface{}
		if m.Vector.Metadata != nil {
			md = m.Vector.Metadata.AsMap()
		}
		nodes = append(nodes, nodeFromMetadata(m.Vector.Id, float64(m.Score), md))
	}
	return nodes, nil
}

func (s *pineconeStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	for start := 0; start < len(chunks); start += pineconeUpsertBatch {
		end := start + pineconeUpsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]*pinecone.Vector, 0, end-start)
		for _, c := range chunks[start:end] {
			md, err := structpb.NewStruct(chunkMetadata(c))
			if err != nil {
				return fmt.Errorf("failed to build metadata for chunk %s: %w", c.ID, err)
			}
			values := c.Vector
			batch = append(batch, &pinecone.Vector{Id: c.ID, Values: &values, Metadata: md})
		}
		if _, err := s.index.UpsertVectors(ctx, batch); err != nil {
			return fmt.Errorf("pinecone upsert failed: %w", err)
		}
		log.Infof("[Pinecone] 已写入 %d/%d 个向量", end, len(chunks))
	}
	return nil
}

func (s *pineconeStore) Close() error {
	return s.index.Close()
}
