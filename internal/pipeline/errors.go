package pipeline

import "errors"

// 构建阶段和查询阶段的错误类型，调用方用 errors.Is 区分。
var (
	ErrSnapshot    = errors.New("snapshot load failed")
	ErrVectorStore = errors.New("vector store connection failed")
	ErrIndexing    = errors.New("snapshot indexing failed")
	ErrRetrieval   = errors.New("retrieval failed")
	ErrSynthesis   = errors.New("answer synthesis failed")
)

// ErrSnapshotNotFound 表示快照文件不存在，构建过程会忽略它。
var ErrSnapshotNotFound = errors.New("snapshot not found")
