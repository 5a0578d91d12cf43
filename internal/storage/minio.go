package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/types"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// DocumentStore 文档存储接口：流水线从这里列举并拉取待处理的原始文档
type DocumentStore interface {
	// ListDocuments 列举存储桶内全部文档对象
	ListDocuments(ctx context.Context, bucket string) ([]types.DocumentRef, error)

	// FetchDocument 下载单个文档的字节内容
	FetchDocument(ctx context.Context, bucket string, key string) ([]byte, error)

	// UploadDocument 上传文档（主要用于数据准备和测试）
	UploadDocument(ctx context.Context, bucket string, key string, data []byte, contentType string) error
}

// 确保MinIO实现了DocumentStore接口
var _ DocumentStore = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client       *minio.Client
	cfg          *config.MinIOConfig
	resumeBucket string
	jobBucket    string
	logger       zerolog.Logger
}

// NewMinIO 创建MinIO客户端，并确保配置的存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	resumeBucket := cfg.ResumeBucket
	if resumeBucket == "" {
		resumeBucket = "resumes"
	}
	jobBucket := cfg.JobBucket
	if jobBucket == "" {
		jobBucket = "job-descriptions"
	}

	m := &MinIO{
		client:       client,
		cfg:          cfg,
		resumeBucket: resumeBucket,
		jobBucket:    jobBucket,
		logger:       logger,
	}

	for _, bucket := range []string{resumeBucket, jobBucket} {
		if err := m.ensureBucketExists(bucket, cfg.Location); err != nil {
			return nil, fmt.Errorf("确保存储桶 %s 存在失败: %w", bucket, err)
		}
	}

	logger.Info().Str("endpoint", cfg.Endpoint).Str("resume_bucket", resumeBucket).
		Str("job_bucket", jobBucket).Msg("MinIO客户端已初始化")
	return m, nil
}

// ResumeBucket 返回候选人简历桶名
func (m *MinIO) ResumeBucket() string {
	return m.resumeBucket
}

// JobBucket 返回岗位描述桶名
func (m *MinIO) JobBucket() string {
	return m.jobBucket
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Info().Str("bucket", bucketName).Msg("存储桶不存在，将创建")
		if err := m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
	}
	return nil
}

// ListDocuments 列举存储桶内全部文档对象。
// 对象的Content-Type从stat信息带出，缺失时留空由提取器自行探测。
func (m *MinIO) ListDocuments(ctx context.Context, bucket string) ([]types.DocumentRef, error) {
	var refs []types.DocumentRef
	for object := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("列举存储桶 %s 对象失败: %w", bucket, object.Err)
		}
		refs = append(refs, types.DocumentRef{
			Key:         object.Key,
			ContentType: object.ContentType,
		})
	}
	m.logger.Debug().Str("bucket", bucket).Int("count", len(refs)).Msg("列举文档完成")
	return refs, nil
}

// FetchDocument 下载单个文档的字节内容
func (m *MinIO) FetchDocument(ctx context.Context, bucket string, key string) ([]byte, error) {
	object, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, key, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 内容失败: %w", bucket, key, err)
	}
	return data, nil
}

// UploadDocument 上传文档
func (m *MinIO) UploadDocument(ctx context.Context, bucket string, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("上传对象 %s/%s 失败: %w", bucket, key, err)
	}
	m.logger.Debug().Str("bucket", bucket).Str("key", key).Int("size", len(data)).Msg("文档上传完成")
	return nil
}
