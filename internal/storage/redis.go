package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"cv-agent-go/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// documentMD5SetKey 已处理文档内容MD5的集合键
const documentMD5SetKey = "cv:document:md5_set"

// DedupCache 文档内容去重接口。
// 返回true表示该内容之前已处理过，流水线据此跳过重复文档。
type DedupCache interface {
	CheckAndAddDocumentMD5(ctx context.Context, md5Hex string) (bool, error)
	Close() error
}

// 确保Redis实现了DedupCache接口
var _ DedupCache = (*Redis)(nil)

// Redis 基于Redis Set的内容去重缓存
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
	logger zerolog.Logger
}

// NewRedis 创建Redis去重缓存并验证连通性
func NewRedis(cfg *config.RedisConfig, logger zerolog.Logger) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	logger.Info().Str("address", cfg.Address).Int("db", cfg.DB).Msg("Redis去重缓存已连接")
	return &Redis{
		Client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// md5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) md5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = 365
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckAndAddDocumentMD5 检查并添加文档MD5到集合，是一个原子操作。
// SAdd返回0表示成员已存在，即该内容之前处理过。
func (r *Redis) CheckAndAddDocumentMD5(ctx context.Context, md5Hex string) (bool, error) {
	added, err := r.Client.SAdd(ctx, documentMD5SetKey, md5Hex).Result()
	if err != nil {
		return false, fmt.Errorf("添加文档MD5失败: %w", err)
	}

	// ExpireNX: 仅在键还没有过期时间时设置，避免每次写入都刷新
	if err := r.Client.ExpireNX(ctx, documentMD5SetKey, r.md5ExpireDuration()).Err(); err != nil {
		r.logger.Warn().Err(err).Msg("设置MD5集合过期时间失败")
	}

	return added == 0, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	return r.Client.Close()
}

// ContentMD5 计算文档字节内容的MD5十六进制摘要
func ContentMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
