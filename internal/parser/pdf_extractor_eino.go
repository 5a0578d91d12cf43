package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/rs/zerolog"
)

// EinoPDFExtractor 使用Eino PDF Parser在本地提取文本，
// 不依赖外部Tika服务器，但只处理PDF；其他媒体类型按不支持处理（返回空文本）。
type EinoPDFExtractor struct {
	parser *pdf.PDFParser
	logger zerolog.Logger
}

// 确保EinoPDFExtractor实现了TextExtractor接口
var _ TextExtractor = (*EinoPDFExtractor)(nil)

// NewEinoPDFExtractor 初始化本地PDF文本提取器。
// 配置为不按页面分割，以获取整个文档的连续文本。
func NewEinoPDFExtractor(ctx context.Context, logger zerolog.Logger) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Eino PDF解析器失败: %w", err)
	}

	return &EinoPDFExtractor{
		parser: p,
		logger: logger,
	}, nil
}

// ExtractText 从PDF字节中提取全文。
// 解析失败按提取器契约返回空文本，由上层跳过该文档。
func (e *EinoPDFExtractor) ExtractText(ctx context.Context, data []byte, contentType string, sourceKey string) (string, error) {
	if contentType != "" && contentType != "application/pdf" {
		e.logger.Warn().Str("source", sourceKey).Str("content_type", contentType).
			Msg("本地提取器只处理PDF，返回空文本")
		return "", nil
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(sourceKey),
	)
	if err != nil {
		e.logger.Warn().Err(err).Str("source", sourceKey).Msg("PDF解析失败，返回空文本")
		return "", nil
	}
	if len(docs) == 0 {
		e.logger.Warn().Str("source", sourceKey).Msg("PDF解析无结果，返回空文本")
		return "", nil
	}

	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(doc.Content)
	}

	text := strings.TrimSpace(sb.String())
	e.logger.Debug().Str("source", sourceKey).Int("chars", len(text)).
		Dur("elapsed", time.Since(startTime)).Msg("本地PDF文本提取完成")
	return text, nil
}
