package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TextExtractor 文档文本提取接口。
// 约定：不支持的媒体类型或内容无法解析时返回空串而不是错误，
// 由上层按"跳过该文档"处理；只有传输层故障才返回错误。
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string, sourceKey string) (string, error)
}

// TikaExtractor 基于Apache Tika服务器的文本提取器，
// 支持PDF、Word等Tika认识的全部格式。
type TikaExtractor struct {
	// Tika服务器地址，例如 http://localhost:9998
	ServerURL string
	// HTTP客户端，可配置超时等参数
	Client *http.Client
	logger zerolog.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaExtractor)

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		e.Client.Timeout = timeout
	}
}

// 确保TikaExtractor实现了TextExtractor接口
var _ TextExtractor = (*TikaExtractor)(nil)

// NewTikaExtractor 创建一个新的Tika文本提取器
func NewTikaExtractor(serverURL string, logger zerolog.Logger, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		ServerURL: serverURL,
		Client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}

	for _, option := range options {
		option(extractor)
	}

	return extractor
}

// ExtractText 把文档字节PUT到Tika的纯文本端点
func (e *TikaExtractor) ExtractText(ctx context.Context, data []byte, contentType string, sourceKey string) (string, error) {
	startTime := time.Now()
	e.logger.Debug().Str("source", sourceKey).Str("content_type", contentType).Int("size", len(data)).
		Msg("开始Tika文本提取")

	url := fmt.Sprintf("%s/tika", e.ServerURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建Tika请求失败: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	// 415表示Tika不认识这种格式，按约定返回空文本而不是错误
	if resp.StatusCode == http.StatusUnsupportedMediaType {
		e.logger.Warn().Str("source", sourceKey).Str("content_type", contentType).
			Msg("Tika不支持该媒体类型，返回空文本")
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Tika提取失败, 状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}

	text := strings.TrimSpace(string(textBytes))
	e.logger.Debug().Str("source", sourceKey).Int("chars", len(text)).
		Dur("elapsed", time.Since(startTime)).Msg("Tika文本提取完成")
	return text, nil
}
