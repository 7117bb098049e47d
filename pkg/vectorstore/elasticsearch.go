package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type esStore struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
}

// esDocument 是存储在 Elasticsearch 中的文本块。
type esDocument struct {
	Text   string    `json:"text"`
	URL    string    `json:"url"`
	Title  string    `json:"title"`
	Vector []float32 `json:"vector"`
}

// NewElasticsearch 初始化 Elasticsearch 客户端，索引不存在时按 dense_vector 映射创建。
func NewElasticsearch(ctx context.Context, cfg config.VectorConfig) (Store, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(cfg.Host, ","),
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	s := &esStore{client: client, indexName: cfg.Index, dims: cfg.Dimensions}
	if err := s.createIndexIfNotExists(ctx); err != nil {
		return nil, err
	}
	log.Infof("[Elasticsearch] 已连接到索引 '%s' (environment: %s)", cfg.Index, cfg.Environment)
	return s, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (s *esStore) createIndexIfNotExists(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.indexName}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("[Elasticsearch] 检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status checking index %q: %d", s.indexName, res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"text":   { "type": "text" },
				"url":    { "type": "keyword" },
				"title":  { "type": "keyword" },
				"vector": { "type": "dense_vector", "dims": %d, "index": true, "similarity": "cosine" }
			}
		}
	}`, s.dims)

	res, err = s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		log.Errorf("[Elasticsearch] 创建索引 '%s' 失败: %v", s.indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[Elasticsearch] 创建索引 '%s' 时返回错误: %s", s.indexName, res.String())
		return errors.New("elasticsearch returned an error creating the index")
	}
	log.Infof("[Elasticsearch] 索引 '%s' 创建成功", s.indexName)
	return nil
}

func (s *esStore) Query(ctx context.Context, vector []float32, topK int) ([]model.SourceNode, error) {
	var buf bytes.Buffer
	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 10,
		},
		"size":    topK,
		"_source": []string{"text", "url", "title"},
	}
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned an error: %s, body: %s", res.Status(), string(bodyBytes))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	nodes := make([]model.SourceNode, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		nodes = append(nodes, nodeFromMetadata(hit.ID, cosineFromKNNScore(hit.Score), hit.Source))
	}
	return nodes, nil
}

// Upsert 以文本块 ID 作为文档 ID 写入，重复写入会覆盖。
func (s *esStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	for i, c := range chunks {
		docBytes, err := json.Marshal(esDocument{Text: c.Text, URL: c.URL, Title: c.Title, Vector: c.Vector})
		if err != nil {
			return err
		}
		refresh := "false"
		if i == len(chunks)-1 {
			refresh = "true"
		}
		req := esapi.IndexRequest{
			Index:      s.indexName,
			DocumentID: c.ID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    refresh,
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return err
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			log.Errorf("[Elasticsearch] 索引文本块出错: %s", msg)
			return fmt.Errorf("failed to index chunk %s", c.ID)
		}
		res.Body.Close()
	}
	return nil
}

// cosineFromKNNScore 把 ES cosine kNN 的 _score，即 (1+cos)/2，换算回余弦相似度。
func cosineFromKNNScore(score float64) float64 {
	return 2*score - 1
}

func (s *esStore) Close() error {
	return nil
}
