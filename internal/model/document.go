package model

// MetadataNA 是缺失 url/title 时使用的占位值。
const MetadataNA = "N/A"

// Document 是本地快照中的一条记录。
type Document struct {
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Chunk 是写入向量索引的文本块。
type Chunk struct {
	ID     string
	Text   string
	URL    string
	Title  string
	Vector []float32
}

// SourceNode 是一次检索命中的文本块，URL/Title 为空表示元数据中没有该字段。
type SourceNode struct {
	ID    string
	Text  string
	Score float64
	URL   string
	Title string
}

// QueryResult 是查询管道的输出：合成的答案以及按相关度排序的来源。
type QueryResult struct {
	Answer  string
	Sources []SourceNode
}
