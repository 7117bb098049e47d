// Package kafka 提供了向 Kafka 发布查询审计事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/segmentio/kafka-go"
)

// Publisher 发布查询事件。
type Publisher interface {
	Publish(ctx context.Context, event model.QueryEvent) error
	Close() error
}

type writerPublisher struct {
	writer *kafka.Writer
}

// NewPublisher 根据配置创建生产者；Brokers 为空时返回不做任何事的实现。
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if cfg.Brokers == "" {
		return NopPublisher{}
	}
	w := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
		// 异步写入，不阻塞请求
		Async: true,
	}
	log.Infof("[Kafka] 生产者初始化成功, topic: %s", cfg.Topic)
	return &writerPublisher{writer: w}
}

func (p *writerPublisher) Publish(ctx context.Context, event model.QueryEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RequestID),
		Value: value,
	})
}

func (p *writerPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher 丢弃所有事件。
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.QueryEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }
