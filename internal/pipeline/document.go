package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cv-agent-go/internal/duration"
	"cv-agent-go/internal/extractor"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultWorkers = 10

// DocumentPipeline 文档处理流水线：
// 拉取原始文档 → 提取文本 → LLM结构化抽取 → schema校验 → 任职时长聚合。
type DocumentPipeline struct {
	store      storage.DocumentStore
	textExt    parser.TextExtractor
	llm        extractor.LLMClient
	aggregator *duration.Aggregator
	// dedup 为nil时不做内容去重
	dedup         storage.DedupCache
	workers       int
	referenceDate time.Time
	logger        zerolog.Logger
}

// PipelineOption 定义DocumentPipeline构造选项
type PipelineOption func(*DocumentPipeline)

// WithWorkers 设置并发worker数量
func WithWorkers(n int) PipelineOption {
	return func(p *DocumentPipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithDedupCache 启用基于内容MD5的重复文档跳过
func WithDedupCache(cache storage.DedupCache) PipelineOption {
	return func(p *DocumentPipeline) {
		p.dedup = cache
	}
}

// WithReferenceDate 设置开放区间任职时长的参考日期（默认当前时间）
func WithReferenceDate(t time.Time) PipelineOption {
	return func(p *DocumentPipeline) {
		p.referenceDate = t
	}
}

// NewDocumentPipeline 创建文档处理流水线
func NewDocumentPipeline(
	store storage.DocumentStore,
	textExt parser.TextExtractor,
	llm extractor.LLMClient,
	logger zerolog.Logger,
	opts ...PipelineOption,
) *DocumentPipeline {
	p := &DocumentPipeline{
		store:         store,
		textExt:       textExt,
		llm:           llm,
		aggregator:    duration.NewAggregator(logger),
		workers:       defaultWorkers,
		referenceDate: time.Now(),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// candidateResult 单个文档的处理结果，Err非nil时Record为nil
type candidateResult struct {
	SourceKey string
	Record    *types.CandidateRecord
	Err       error
}

type jobResult struct {
	SourceKey string
	Record    *types.JobRecord
	Err       error
}

// ProcessCandidates 批量处理指定桶内的全部简历文档。
// 固定大小的worker池并发处理，结果按完成顺序收集；
// 单个文档的失败不会中断批次，错误逐条带出。
func (p *DocumentPipeline) ProcessCandidates(ctx context.Context, bucket string) ([]*types.CandidateRecord, []error) {
	refs, err := p.store.ListDocuments(ctx, bucket)
	if err != nil {
		return nil, []error{fmt.Errorf("列举文档失败: %w", err)}
	}

	runID := uuid.NewString()
	p.logger.Info().Str("run_id", runID).Str("bucket", bucket).
		Int("documents", len(refs)).Int("workers", p.workers).Msg("开始批量处理简历")

	jobs := make(chan types.DocumentRef)
	results := make(chan candidateResult)

	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(refs) {
		workers = len(refs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				record, err := p.ProcessCandidateDocument(ctx, bucket, ref)
				results <- candidateResult{SourceKey: ref.Key, Record: record, Err: err}
			}
		}()
	}

	go func() {
		for _, ref := range refs {
			jobs <- ref
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var records []*types.CandidateRecord
	var errs []error
	skipped := 0
	for res := range results {
		switch {
		case res.Err != nil && (errors.Is(res.Err, ErrEmptyExtraction) || errors.Is(res.Err, ErrDuplicateDocument)):
			skipped++
			p.logger.Info().Str("run_id", runID).Str("source", res.SourceKey).
				Err(res.Err).Msg("文档已跳过")
		case res.Err != nil:
			errs = append(errs, res.Err)
			p.logger.Error().Str("run_id", runID).Str("source", res.SourceKey).
				Err(res.Err).Msg("文档处理失败")
		default:
			records = append(records, res.Record)
		}
	}

	p.logger.Info().Str("run_id", runID).Int("succeeded", len(records)).
		Int("failed", len(errs)).Int("skipped", skipped).Msg("简历批量处理完成")
	return records, errs
}

// ProcessCandidateDocument 处理单个简历文档
func (p *DocumentPipeline) ProcessCandidateDocument(ctx context.Context, bucket string, ref types.DocumentRef) (*types.CandidateRecord, error) {
	text, err := p.prepareText(ctx, bucket, ref)
	if err != nil {
		return nil, err
	}

	raw, err := p.llm.Complete(ctx, extractor.CandidateSystemPrompt, text)
	if err != nil {
		return nil, NewLLMError(ref.Key, err.Error())
	}

	parsed, err := p.decodeExtraction(ref.Key, raw)
	if err != nil {
		return nil, err
	}

	record, err := extractor.ValidateCandidate(parsed)
	if err != nil {
		return nil, NewSchemaError(ref.Key, err.Error())
	}

	// 模型给出的总时长不可信，服务端基于experience条目重新计算
	total, byTitle := p.aggregator.Aggregate(record.Experience, p.referenceDate)
	record.TotalExperience = total
	record.RelevantExperience = byTitle

	p.logger.Debug().Str("source", ref.Key).Str("candidate", record.DisplayName()).
		Float64("total_experience", total).Msg("简历文档处理完成")
	return record, nil
}

// ProcessJobs 批量处理指定桶内的全部岗位描述文档
func (p *DocumentPipeline) ProcessJobs(ctx context.Context, bucket string) ([]*types.JobRecord, []error) {
	refs, err := p.store.ListDocuments(ctx, bucket)
	if err != nil {
		return nil, []error{fmt.Errorf("列举文档失败: %w", err)}
	}

	runID := uuid.NewString()
	p.logger.Info().Str("run_id", runID).Str("bucket", bucket).
		Int("documents", len(refs)).Int("workers", p.workers).Msg("开始批量处理岗位描述")

	jobs := make(chan types.DocumentRef)
	results := make(chan jobResult)

	var wg sync.WaitGroup
	workers := p.workers
	if workers > len(refs) {
		workers = len(refs)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				record, err := p.ProcessJobDocument(ctx, bucket, ref)
				results <- jobResult{SourceKey: ref.Key, Record: record, Err: err}
			}
		}()
	}

	go func() {
		for _, ref := range refs {
			jobs <- ref
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var records []*types.JobRecord
	var errs []error
	for res := range results {
		switch {
		case res.Err != nil && (errors.Is(res.Err, ErrEmptyExtraction) || errors.Is(res.Err, ErrDuplicateDocument)):
			p.logger.Info().Str("run_id", runID).Str("source", res.SourceKey).
				Err(res.Err).Msg("文档已跳过")
		case res.Err != nil:
			errs = append(errs, res.Err)
			p.logger.Error().Str("run_id", runID).Str("source", res.SourceKey).
				Err(res.Err).Msg("文档处理失败")
		default:
			records = append(records, res.Record)
		}
	}

	p.logger.Info().Str("run_id", runID).Int("succeeded", len(records)).
		Int("failed", len(errs)).Msg("岗位描述批量处理完成")
	return records, errs
}

// ProcessJobDocument 处理单个岗位描述文档
func (p *DocumentPipeline) ProcessJobDocument(ctx context.Context, bucket string, ref types.DocumentRef) (*types.JobRecord, error) {
	text, err := p.prepareText(ctx, bucket, ref)
	if err != nil {
		return nil, err
	}

	raw, err := p.llm.Complete(ctx, extractor.JobSystemPrompt, text)
	if err != nil {
		return nil, NewLLMError(ref.Key, err.Error())
	}

	parsed, err := p.decodeExtraction(ref.Key, raw)
	if err != nil {
		return nil, err
	}

	record, err := extractor.ValidateJob(parsed)
	if err != nil {
		return nil, NewSchemaError(ref.Key, err.Error())
	}

	p.logger.Debug().Str("source", ref.Key).Msg("岗位描述文档处理完成")
	return record, nil
}

// prepareText 下载文档、做可选的内容去重并提取纯文本。
// 空文本和重复内容分别以 ErrEmptyExtraction / ErrDuplicateDocument 返回，
// 由批处理层按跳过处理。
func (p *DocumentPipeline) prepareText(ctx context.Context, bucket string, ref types.DocumentRef) (string, error) {
	data, err := p.store.FetchDocument(ctx, bucket, ref.Key)
	if err != nil {
		return "", NewFetchError(ref.Key, err.Error())
	}

	if p.dedup != nil {
		exists, err := p.dedup.CheckAndAddDocumentMD5(ctx, storage.ContentMD5(data))
		if err != nil {
			// 去重缓存故障不阻塞处理，只记录
			p.logger.Warn().Err(err).Str("source", ref.Key).Msg("内容去重检查失败，继续处理")
		} else if exists {
			return "", NewDuplicateError(ref.Key)
		}
	}

	text, err := p.textExt.ExtractText(ctx, data, ref.ContentType, ref.Key)
	if err != nil {
		return "", NewFetchError(ref.Key, err.Error())
	}
	if text == "" {
		return "", NewEmptyExtractionError(ref.Key)
	}
	return text, nil
}

// decodeExtraction 剥离代码围栏并解析LLM输出为JSON对象
func (p *DocumentPipeline) decodeExtraction(key string, raw string) (map[string]interface{}, error) {
	jsonText := extractor.ExtractJSON(raw)
	if jsonText == "" {
		return nil, NewExtractionParseError(key, "响应中找不到JSON对象")
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, NewExtractionParseError(key, err.Error())
	}
	return parsed, nil
}
