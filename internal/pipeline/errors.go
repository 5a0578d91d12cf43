package pipeline

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrDocumentFetchFailed  = errors.New("下载文档失败")
	ErrEmptyExtraction      = errors.New("文档未提取出文本")
	ErrLLMCallFailed        = errors.New("调用抽取服务失败")
	ErrExtractionParse      = errors.New("抽取结果不是有效JSON")
	ErrSchemaMismatch       = errors.New("抽取结果不符合schema")
	ErrIndexCreationFailed  = errors.New("创建向量集合失败")
	ErrVectorUpsertFailed   = errors.New("写入向量失败")
	ErrEmbeddingCallFailed  = errors.New("调用向量化服务失败")
	ErrDuplicateDocument    = errors.New("文档内容重复，已跳过")
	ErrOutputArtifactFailed = errors.New("写出聚合结果失败")
)

// DocumentProcessError 包含详细错误信息的自定义错误
type DocumentProcessError struct {
	SourceKey string
	Stage     string
	BaseErr   error
	Detail    string
}

func (e *DocumentProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (阶段:%s, 文档:%s): %s", e.BaseErr, e.Stage, e.SourceKey, e.Detail)
	}
	return fmt.Sprintf("%s (阶段:%s, 文档:%s)", e.BaseErr, e.Stage, e.SourceKey)
}

func (e *DocumentProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *DocumentProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewFetchError(key, detail string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "fetch",
		BaseErr:   ErrDocumentFetchFailed,
		Detail:    detail,
	}
}

func NewEmptyExtractionError(key string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "extract_text",
		BaseErr:   ErrEmptyExtraction,
	}
}

func NewLLMError(key, detail string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "llm",
		BaseErr:   ErrLLMCallFailed,
		Detail:    detail,
	}
}

func NewExtractionParseError(key, detail string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "parse_json",
		BaseErr:   ErrExtractionParse,
		Detail:    detail,
	}
}

func NewSchemaError(key, detail string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "validate",
		BaseErr:   ErrSchemaMismatch,
		Detail:    detail,
	}
}

func NewDuplicateError(key string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "dedup",
		BaseErr:   ErrDuplicateDocument,
	}
}

func NewUpsertError(key, detail string) error {
	return &DocumentProcessError{
		SourceKey: key,
		Stage:     "upsert",
		BaseErr:   ErrVectorUpsertFailed,
		Detail:    detail,
	}
}
