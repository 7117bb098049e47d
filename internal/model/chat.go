// Package model 定义了请求、响应以及检索结果的数据结构。
package model

// ChatRequest 是 POST /api/v1/chat 的请求体。
// Query 使用指针以区分缺失字段与空字符串。
type ChatRequest struct {
	Query *string `json:"query"`
}

// SourceChunk 是返回给前端的单条引用来源。
type SourceChunk struct {
	ChunkID     int     `json:"chunk_id"`
	Score       float64 `json:"score"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	TextSnippet string  `json:"text_snippet"`
}

// ChatResponse 是聊天接口的成功响应。
type ChatResponse struct {
	Answer       string        `json:"answer"`
	SourceChunks []SourceChunk `json:"source_chunks"`
}

// ErrorResponse 是所有错误响应的响应体。
type ErrorResponse struct {
	Detail string `json:"detail"`
}
