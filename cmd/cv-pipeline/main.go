package main

import (
	"context"
	"os"
	"time"

	"cv-agent-go/internal/config"
	"cv-agent-go/internal/extractor"
	"cv-agent-go/internal/logger"
	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/pipeline"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/tracing"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	configPath = pflag.String("config", "", "配置文件路径，为空时在默认位置查找")
	mode       = pflag.String("mode", "resume", "处理模式: resume=候选人简历, jd=岗位描述")
	indexMode  = pflag.String("index-mode", "", "索引粒度: chunk=固定长度分块, candidate=每候选人一条, none=不索引 (默认取配置文件)")
	outputPath = pflag.String("output", "", "聚合JSON产物路径 (默认取配置文件)")
)

func main() {
	pflag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置文件失败")
	}

	initLogger(cfg)

	// 抽取服务凭证缺失直接启动失败，不做静默降级
	if cfg.LLM.APIKey == "" {
		logger.Fatal().Msg("未配置LLM API密钥 (llm.api_key 或 ALIYUN_API_KEY)")
	}

	if *indexMode != "" {
		cfg.Pipeline.IndexMode = *indexMode
	}
	if *outputPath != "" {
		cfg.Pipeline.OutputPath = *outputPath
	}

	ctx := context.Background()

	// OTLP endpoint未配置时追踪为no-op
	shutdownTracing, err := tracing.InitTracerProvider(ctx, "cv-agent-go", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化追踪失败")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭追踪provider失败")
		}
	}()

	switch *mode {
	case "resume":
		runResumePipeline(ctx, cfg)
	case "jd":
		runJobPipeline(ctx, cfg)
	default:
		logger.Fatal().Str("mode", *mode).Msg("未知处理模式，支持: resume, jd")
	}
}

// initLogger 按配置初始化日志系统并附加全局字段
func initLogger(cfg *config.Config) {
	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	logger.Logger = logger.Logger.With().
		Str("app", "cv-agent-go").
		Logger()
}

// buildPipeline 按配置装配文档处理流水线和它的协作方
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.DocumentPipeline, *storage.MinIO) {
	store, err := storage.NewMinIO(&cfg.MinIO, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化MinIO失败")
	}

	// Tika未配置时退回到本地Eino PDF提取器
	var textExt parser.TextExtractor
	if cfg.Tika.ServerURL != "" {
		textExt = parser.NewTikaExtractor(cfg.Tika.ServerURL, logger.Logger,
			parser.WithTikaTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
	} else {
		textExt, err = parser.NewEinoPDFExtractor(ctx, logger.Logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化本地PDF提取器失败")
		}
		logger.Info().Msg("未配置Tika服务器，使用本地PDF文本提取")
	}

	llm, err := extractor.NewAliyunChatClient(cfg.LLM, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化LLM抽取客户端失败")
	}

	opts := []pipeline.PipelineOption{
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithReferenceDate(cfg.ReferenceDate()),
	}
	if cfg.Redis.Enabled {
		dedup, err := storage.NewRedis(&cfg.Redis, logger.Logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化Redis去重缓存失败")
		}
		opts = append(opts, pipeline.WithDedupCache(dedup))
	}

	return pipeline.NewDocumentPipeline(store, textExt, llm, logger.Logger, opts...), store
}

// buildIndexer 按配置装配向量索引流水线
func buildIndexer(cfg *config.Config) *pipeline.IndexingPipeline {
	embedder, err := parser.NewAliyunEmbedder(cfg.EmbeddingAPIKey(), cfg.Embedding, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化向量化客户端失败")
	}

	index, err := storage.NewQdrant(&cfg.Qdrant, logger.Logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化Qdrant客户端失败")
	}

	return pipeline.NewIndexingPipeline(index, embedder, logger.Logger,
		pipeline.WithChunkSize(cfg.Pipeline.ChunkSize))
}

func runResumePipeline(ctx context.Context, cfg *config.Config) {
	docPipeline, store := buildPipeline(ctx, cfg)

	records, errs := docPipeline.ProcessCandidates(ctx, store.ResumeBucket())
	for _, err := range errs {
		logger.Error().Err(err).Msg("简历处理错误")
	}

	if err := pipeline.WriteAggregatedCandidates(cfg.Pipeline.OutputPath, records); err != nil {
		logger.Fatal().Err(err).Msg("写出聚合候选人文件失败")
	}
	logger.Info().Str("path", cfg.Pipeline.OutputPath).Int("candidates", len(records)).
		Msg("聚合候选人文件已写出")

	switch cfg.Pipeline.IndexMode {
	case "candidate":
		indexer := buildIndexer(cfg)
		if err := indexer.IndexCandidates(ctx, records); err != nil {
			logger.Fatal().Err(err).Msg("候选人向量索引失败")
		}
	case "chunk":
		indexer := buildIndexer(cfg)
		aggregated, err := pipeline.LoadAggregatedCandidates(cfg.Pipeline.OutputPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("读回聚合候选人文件失败")
		}
		if err := indexer.IndexAggregatedChunked(ctx, aggregated, "aggregated_json"); err != nil {
			logger.Fatal().Err(err).Msg("分块向量索引失败")
		}
	case "none":
		logger.Info().Msg("已按配置跳过向量索引")
	default:
		logger.Fatal().Str("index_mode", cfg.Pipeline.IndexMode).
			Msg("未知索引粒度，支持: chunk, candidate, none")
	}
}

func runJobPipeline(ctx context.Context, cfg *config.Config) {
	docPipeline, store := buildPipeline(ctx, cfg)

	records, errs := docPipeline.ProcessJobs(ctx, store.JobBucket())
	for _, err := range errs {
		logger.Error().Err(err).Msg("岗位描述处理错误")
	}

	if err := pipeline.WriteAggregatedJobs(cfg.Pipeline.OutputPath, records); err != nil {
		logger.Fatal().Err(err).Msg("写出聚合岗位文件失败")
	}
	logger.Info().Str("path", cfg.Pipeline.OutputPath).Int("jobs", len(records)).
		Msg("聚合岗位文件已写出")

	// 岗位描述只支持分块粒度，candidate粒度对JD没有意义
	switch cfg.Pipeline.IndexMode {
	case "chunk":
		indexer := buildIndexer(cfg)
		aggregated, err := pipeline.LoadAggregatedJobs(cfg.Pipeline.OutputPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("读回聚合岗位文件失败")
		}
		if err := indexer.IndexAggregatedChunked(ctx, aggregated, "jd_json"); err != nil {
			logger.Fatal().Err(err).Msg("分块向量索引失败")
		}
	case "none", "candidate":
		logger.Info().Msg("岗位描述模式跳过向量索引")
	default:
		logger.Fatal().Str("index_mode", cfg.Pipeline.IndexMode).
			Msg("未知索引粒度，支持: chunk, none")
	}
}
