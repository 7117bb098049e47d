// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"math"
	"time"
	"unicode/utf8"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/internal/pipeline"
	"github.com/KummariJohnson/boston-api/internal/repository"
	"github.com/KummariJohnson/boston-api/pkg/kafka"
	"github.com/KummariJohnson/boston-api/pkg/log"
)

// ErrNotInitialized 表示启动阶段没有成功构建查询引擎。
var ErrNotInitialized = errors.New("chatbot not initialized")

const (
	snippetRunes  = 200
	snippetSuffix = "..."
)

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	Chat(ctx context.Context, requestID, query string) (*model.ChatResponse, error)
	// Ready 报告查询引擎是否可用。
	Ready() bool
}

type chatService struct {
	engine    pipeline.QueryEngine
	cache     repository.AnswerCacheRepository
	publisher kafka.Publisher
}

// NewChatService 创建一个新的 ChatService 实例。
// engine 为 nil 时所有请求都返回 ErrNotInitialized；cache 可以为 nil。
func NewChatService(engine pipeline.QueryEngine, cache repository.AnswerCacheRepository, publisher kafka.Publisher) ChatService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &chatService{engine: engine, cache: cache, publisher: publisher}
}

func (s *chatService) Ready() bool {
	return s.engine != nil
}

// Chat 把问题交给查询引擎，并把结果整理成接口响应。
func (s *chatService) Chat(ctx context.Context, requestID, query string) (*model.ChatResponse, error) {
	if s.engine == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, query)
		if err != nil {
			log.Warnf("[ChatService] 读取答案缓存失败: %v", err)
		} else if cached != nil {
			log.Debugf("[ChatService] 命中答案缓存, requestID: %s", requestID)
			s.publish(ctx, requestID, query, start, cached, true, nil)
			return cached, nil
		}
	}

	result, err := s.engine.Query(ctx, query)
	if err != nil {
		s.publish(ctx, requestID, query, start, nil, false, err)
		return nil, err
	}

	resp := &model.ChatResponse{
		Answer:       result.Answer,
		SourceChunks: ShapeSources(result.Sources),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, query, resp); err != nil {
			log.Warnf("[ChatService] 写入答案缓存失败: %v", err)
		}
	}
	s.publish(ctx, requestID, query, start, resp, false, nil)
	return resp, nil
}

func (s *chatService) publish(ctx context.Context, requestID, query string, start time.Time, resp *model.ChatResponse, cached bool, queryErr error) {
	event := model.QueryEvent{
		RequestID: requestID,
		Query:     query,
		LatencyMs: time.Since(start).Milliseconds(),
		Cached:    cached,
		Timestamp: time.Now().UTC(),
	}
	if resp != nil {
		event.AnswerChars = utf8.RuneCountInString(resp.Answer)
		event.SourceCount = len(resp.SourceChunks)
	}
	if queryErr != nil {
		event.Error = queryErr.Error()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warnf("[ChatService] 发布查询事件失败: %v", err)
	}
}

// ShapeSources 按检索顺序为来源编号（从 1 开始），分数保留两位小数（四舍六入五成双），
// 缺失的 url/title 填 "N/A"，文本截取前 200 个字符并追加 "..."。
func ShapeSources(nodes []model.SourceNode) []model.SourceChunk {
	chunks := make([]model.SourceChunk, 0, len(nodes))
	for i, n := range nodes {
		chunks = append(chunks, model.SourceChunk{
			ChunkID:     i + 1,
			Score:       roundScore(n.Score),
			URL:         orNA(n.URL),
			Title:       orNA(n.Title),
			TextSnippet: snippet(n.Text),
		})
	}
	return chunks
}

func roundScore(score float64) float64 {
	return math.RoundToEven(score*100) / 100
}

func orNA(s string) string {
	if s == "" {
		return model.MetadataNA
	}
	return s
}

func snippet(text string) string {
	if utf8.RuneCountInString(text) <= snippetRunes {
		return text + snippetSuffix
	}
	return string([]rune(text)[:snippetRunes]) + snippetSuffix
}
