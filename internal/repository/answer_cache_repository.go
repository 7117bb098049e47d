// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/go-redis/redis/v8"
)

const answerKeyPrefix = "chat:answer:"

// AnswerCacheRepository 缓存已生成的答案，相同的问题直接返回缓存结果。
type AnswerCacheRepository interface {
	// Get 未命中时返回 nil, nil。
	Get(ctx context.Context, query string) (*model.ChatResponse, error)
	Set(ctx context.Context, query string, resp *model.ChatResponse) error
}

type redisAnswerCacheRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewAnswerCacheRepository 创建一个新的 AnswerCacheRepository 实例。ttl 为 0 表示永不过期。
func NewAnswerCacheRepository(redisClient *redis.Client, ttl time.Duration) AnswerCacheRepository {
	return &redisAnswerCacheRepository{redisClient: redisClient, ttl: ttl}
}

func answerKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return answerKeyPrefix + hex.EncodeToString(sum[:])
}

// Get 从 Redis 读取缓存的答案。
func (r *redisAnswerCacheRepository) Get(ctx context.Context, query string) (*model.ChatResponse, error) {
	data, err := r.redisClient.Get(ctx, answerKey(query)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached answer: %w", err)
	}
	var resp model.ChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached answer: %w", err)
	}
	return &resp, nil
}

// Set 将答案写入 Redis。
func (r *redisAnswerCacheRepository) Set(ctx context.Context, query string, resp *model.ChatResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}
	if err := r.redisClient.Set(ctx, answerKey(query), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache answer: %w", err)
	}
	return nil
}
