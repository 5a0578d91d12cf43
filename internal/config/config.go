package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	// LLM 结构化抽取服务配置
	LLM LLMConfig `yaml:"llm"`

	// Embedding 向量化服务配置
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant 向量数据库配置
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Tika 文本提取服务器配置
	Tika TikaConfig `yaml:"tika"`

	// MinIO 对象存储配置
	MinIO MinIOConfig `yaml:"minio"`

	// Redis 去重缓存配置
	Redis RedisConfig `yaml:"redis"`

	// Pipeline 处理流水线配置
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Logger 日志配置
	Logger LoggerConfig `yaml:"logger"`
}

// LLMConfig 结构化抽取所用chat模型的配置
type LLMConfig struct {
	APIKey    string `yaml:"api_key"`
	APIURL    string `yaml:"api_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// EmbeddingConfig 向量化服务配置
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
	// APIKey 为空时复用LLM的api_key
	APIKey string `yaml:"api_key,omitempty"`
}

// QdrantConfig Qdrant向量数据库配置
type QdrantConfig struct {
	Endpoint   string `yaml:"endpoint"`          // Qdrant HTTP 服务地址
	Collection string `yaml:"collection"`        // 集合名称
	Dimension  int    `yaml:"dimension"`         // 向量维度
	Metric     string `yaml:"metric"`            // 距离度量：Cosine, Euclid, Dot
	APIKey     string `yaml:"api_key,omitempty"` // (可选) Qdrant API Key
}

// TikaConfig Tika服务器配置结构
type TikaConfig struct {
	ServerURL string `yaml:"server_url"`      // Tika服务器URL
	Timeout   int    `yaml:"timeout_seconds"` // 超时时间(秒)
}

// MinIOConfig MinIO配置结构
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	// ResumeBucket 候选人简历原始文件桶
	ResumeBucket string `yaml:"resumeBucket"`
	// JobBucket 岗位描述原始文件桶
	JobBucket string `yaml:"jobBucket"`
	Location  string `yaml:"location"` // 可选，存储桶区域
}

// RedisConfig Redis去重缓存配置
type RedisConfig struct {
	// Enabled 为false时不做内容去重，所有文档都会被处理
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// MD5记录过期时间(天)
	MD5RecordExpireDays int `yaml:"md5_record_expire_days"`
}

// PipelineConfig 处理流水线配置
type PipelineConfig struct {
	// Workers 并发处理文档的worker数量
	Workers int `yaml:"workers"`
	// ChunkSize 分块索引模式下每个文本块的最大字符数
	ChunkSize int `yaml:"chunk_size"`
	// IndexMode 索引粒度："chunk"（固定长度分块）或 "candidate"（每候选人一条）
	IndexMode string `yaml:"index_mode"`
	// OutputPath 聚合JSON产物的写出路径
	OutputPath string `yaml:"output_path"`
	// ReferenceDate 计算开放区间任职时长的参考日期（YYYY-MM-DD），为空则用当前日期
	ReferenceDate string `yaml:"reference_date"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// EmbeddingAPIKey 返回向量化服务应使用的API密钥，
// embedding未单独配置时复用LLM的密钥。
func (c *Config) EmbeddingAPIKey() string {
	if c.Embedding.APIKey != "" {
		return c.Embedding.APIKey
	}
	return c.LLM.APIKey
}

// ReferenceDate 解析流水线配置的参考日期，未配置或无法解析时返回当前时间
func (c *Config) ReferenceDate() time.Time {
	if c.Pipeline.ReferenceDate == "" {
		return time.Now()
	}
	t, err := time.Parse("2006-01-02", c.Pipeline.ReferenceDate)
	if err != nil {
		return time.Now()
	}
	return t
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 如果未指定配置文件路径，则尝试在默认位置查找
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			"../../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".cv-agent", "config.yaml"),
		}

		// 可执行文件所在目录及其上级目录
		execPath, err := os.Executable()
		if err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths, filepath.Join(execDir, "config.yaml"))
			searchPaths = append(searchPaths, filepath.Join(execDir, "..", "config.yaml"))
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		// 仍找不到配置文件时：测试环境返回默认配置，否则用默认路径
		if configPath == "" {
			if inTestEnvironment() {
				return createDefaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	// 检查文件是否存在
	if _, err := os.Stat(configPath); err != nil {
		if inTestEnvironment() {
			return createDefaultConfig(), nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	// 读取配置文件
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置文件
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 从环境变量覆盖配置（如果存在）
	if envKey := os.Getenv("ALIYUN_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	}
	if envURL := os.Getenv("ALIYUN_API_URL"); envURL != "" {
		config.LLM.APIURL = envURL
	}
	if envModel := os.Getenv("ALIYUN_MODEL"); envModel != "" {
		config.LLM.Model = envModel
	}

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults 补齐未配置项的默认值
func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "qwen-plus"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "text-embedding-v3"
	}
	if config.Embedding.Dimensions == 0 {
		config.Embedding.Dimensions = 1024
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"
	}
	if config.Qdrant.Dimension == 0 {
		config.Qdrant.Dimension = config.Embedding.Dimensions
	}
	if config.Qdrant.Metric == "" {
		config.Qdrant.Metric = "Cosine"
	}
	if config.Tika.Timeout == 0 {
		config.Tika.Timeout = 60
	}
	if config.Pipeline.Workers <= 0 {
		config.Pipeline.Workers = 10
	}
	if config.Pipeline.ChunkSize <= 0 {
		config.Pipeline.ChunkSize = 4000
	}
	if config.Pipeline.IndexMode == "" {
		config.Pipeline.IndexMode = "candidate"
	}
	if config.Pipeline.OutputPath == "" {
		config.Pipeline.OutputPath = "aggregated_candidates.json"
	}
	if config.Redis.MD5RecordExpireDays == 0 {
		config.Redis.MD5RecordExpireDays = 365
	}
	if config.Logger.Level == "" {
		config.Logger.Level = "info"
	}
	if config.Logger.Format == "" {
		config.Logger.Format = "json"
	}
}

// inTestEnvironment 通过命令行参数粗略判断是否运行在go test下
func inTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

// 创建一个默认配置，用于测试环境
func createDefaultConfig() *Config {
	config := &Config{}

	config.LLM.APIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	config.LLM.Model = "qwen-plus"

	config.Qdrant.Endpoint = "http://localhost:6333"
	config.Qdrant.Collection = "candidates"

	config.Tika.ServerURL = "http://localhost:9998"

	config.MinIO.Endpoint = "localhost:9000"
	config.MinIO.AccessKeyID = "minioadmin"
	config.MinIO.SecretAccessKey = "minioadmin123"
	config.MinIO.UseSSL = false
	config.MinIO.ResumeBucket = "resumes"
	config.MinIO.JobBucket = "job-descriptions"

	config.Redis.Address = "localhost:6379"
	config.Redis.DB = 0

	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	if envKey := os.Getenv("ALIYUN_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	} else {
		config.LLM.APIKey = "test_api_key"
	}

	applyDefaults(config)
	return config
}
