package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"cv-agent-go/internal/config"

	"github.com/rs/zerolog"
)

const (
	// DashScope的OpenAI兼容端点
	defaultChatAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultChatModel  = "qwen-plus"
	defaultMaxTokens  = 2000
)

// LLMClient 结构化抽取服务接口：给定system提示和用户文本，返回模型的原始文本输出
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt string, userText string) (string, error)
}

// 确保AliyunChatClient实现了LLMClient接口
var _ LLMClient = (*AliyunChatClient)(nil)

// AliyunChatClient 基于OpenAI兼容chat completions协议的LLM客户端
type AliyunChatClient struct {
	apiKey     string
	modelName  string
	apiURL     string
	maxTokens  int
	httpClient *http.Client
	logger     zerolog.Logger
}

// ChatClientOption 定义AliyunChatClient的构造选项
type ChatClientOption func(*AliyunChatClient)

// WithChatTimeout 设置HTTP客户端超时
func WithChatTimeout(timeout time.Duration) ChatClientOption {
	return func(c *AliyunChatClient) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithMaxTokens 设置单次补全的最大token数
func WithMaxTokens(n int) ChatClientOption {
	return func(c *AliyunChatClient) {
		c.maxTokens = n
	}
}

// NewAliyunChatClient 创建LLM抽取客户端
func NewAliyunChatClient(cfg config.LLMConfig, logger zerolog.Logger, opts ...ChatClientOption) (*AliyunChatClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("LLM API密钥不能为空")
	}

	model := cfg.Model
	if strings.TrimSpace(model) == "" {
		model = defaultChatModel
	}
	apiURL := cfg.APIURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultChatAPIURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	c := &AliyunChatClient{
		apiKey:     cfg.APIKey,
		modelName:  model,
		apiURL:     apiURL,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	logger.Info().Str("api_url", apiURL).Str("model", model).Msg("LLM抽取客户端已初始化")
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete 调用chat completions接口，返回模型输出的原始文本。
// 非200响应作为错误返回，状态码和响应体一并带出供上层记录。
func (c *AliyunChatClient) Complete(ctx context.Context, systemPrompt string, userText string) (string, error) {
	reqPayload := chatCompletionRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		MaxTokens: c.maxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("model", c.modelName).Int("user_text_len", len(userText)).Msg("发送LLM抽取请求")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API请求失败, 状态码: %d, 响应: %s", httpResp.StatusCode, string(bodyBytes))
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return "", fmt.Errorf("反序列化API响应失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("API返回了空的choices: %s", string(bodyBytes))
	}

	return resp.Choices[0].Message.Content, nil
}

// fencedJSONRe 匹配 ```json ... ``` 代码块
var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON 从LLM响应中提取JSON对象文本。
// 优先剥离markdown代码围栏；没有围栏时退回到花括号配对查找。
// 找不到有效JSON时返回空串。
func ExtractJSON(text string) string {
	matches := fencedJSONRe.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
