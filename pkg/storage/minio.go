// Package storage 提供了与对象存储服务（如 MinIO / S3）交互的功能。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/KummariJohnson/boston-api/internal/config"
	"github.com/KummariJohnson/boston-api/pkg/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound 表示存储桶或对象不存在。
var ErrObjectNotFound = errors.New("object not found")

// NewMinIO 创建 MinIO 客户端。客户端只用于读取快照，不会创建存储桶。
func NewMinIO(cfg config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Infof("[MinIO] 客户端初始化成功, endpoint: %s", cfg.Endpoint)
	return client, nil
}

// ReadObject 读取整个对象的内容。对象或存储桶不存在时返回 ErrObjectNotFound。
func ReadObject(ctx context.Context, client *minio.Client, bucketName, objectName string) ([]byte, error) {
	object, err := client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer object.Close()

	if _, err := object.Stat(); err != nil {
		return nil, classify(err)
	}
	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("读取 MinIO 对象失败: %w", err)
	}
	return data, nil
}

func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}
