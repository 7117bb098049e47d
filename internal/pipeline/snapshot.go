package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/KummariJohnson/boston-api/internal/model"
	"github.com/KummariJohnson/boston-api/pkg/storage"
	"github.com/minio/minio-go/v7"
)

// SnapshotLoader 读取预先抓取的文档快照。快照不存在时返回 ErrSnapshotNotFound。
type SnapshotLoader interface {
	Load(ctx context.Context) ([]model.Document, error)
	Location() string
}

// FileSnapshot 从本地 JSON 文件读取快照。
type FileSnapshot struct {
	Path string
}

func (f FileSnapshot) Load(ctx context.Context) ([]model.Document, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return DecodeSnapshot(data)
}

func (f FileSnapshot) Location() string {
	return f.Path
}

// ObjectSnapshot 从 MinIO / S3 存储桶读取快照。
type ObjectSnapshot struct {
	Client     *minio.Client
	BucketName string
	ObjectName string
}

func (o ObjectSnapshot) Load(ctx context.Context) ([]model.Document, error) {
	data, err := storage.ReadObject(ctx, o.Client, o.BucketName, o.ObjectName)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return DecodeSnapshot(data)
}

func (o ObjectSnapshot) Location() string {
	return fmt.Sprintf("s3://%s/%s", o.BucketName, o.ObjectName)
}

type snapshotRecord struct {
	Content *string `json:"content"`
	URL     *string `json:"url"`
	Title   *string `json:"title"`
}

// DecodeSnapshot 解析 JSON 数组形式的快照。content 为空的记录被跳过，
// 缺少 url/title 的记录使用 "N/A"。
func DecodeSnapshot(data []byte) ([]model.Document, error) {
	var records []snapshotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	docs := make([]model.Document, 0, len(records))
	for _, r := range records {
		if r.Content == nil || *r.Content == "" {
			continue
		}
		docs = append(docs, model.Document{
			Content: *r.Content,
			URL:     valueOr(r.URL, model.MetadataNA),
			Title:   valueOr(r.Title, model.MetadataNA),
		})
	}
	return docs, nil
}

func valueOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
