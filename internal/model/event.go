package model

import "time"

// QueryEvent 是每次查询后发布到 Kafka 的审计记录。
type QueryEvent struct {
	RequestID   string    `json:"request_id"`
	Query       string    `json:"query"`
	AnswerChars int       `json:"answer_chars"`
	SourceCount int       `json:"source_count"`
	LatencyMs   int64     `json:"latency_ms"`
	Cached      bool      `json:"cached"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
