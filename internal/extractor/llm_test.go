package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cv-agent-go/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2, "应包含system和user两条消息")
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
			return
		}

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestChatClient(t *testing.T, serverURL string) *AliyunChatClient {
	t.Helper()
	client, err := NewAliyunChatClient(config.LLMConfig{
		APIKey: "test-key",
		APIURL: serverURL,
		Model:  "qwen-plus",
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

// TestCompleteSuccess 正常响应返回模型输出文本
func TestCompleteSuccess(t *testing.T) {
	server := newTestChatServer(t, http.StatusOK, `{"skills": ["Go"]}`)
	defer server.Close()

	client := newTestChatClient(t, server.URL)
	out, err := client.Complete(context.Background(), "system prompt", "resume text")
	require.NoError(t, err)
	assert.Equal(t, `{"skills": ["Go"]}`, out)
}

// TestCompleteNon200 非200响应作为错误带出状态码和响应体
func TestCompleteNon200(t *testing.T) {
	server := newTestChatServer(t, http.StatusTooManyRequests, "")
	defer server.Close()

	client := newTestChatClient(t, server.URL)
	_, err := client.Complete(context.Background(), "system prompt", "resume text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429", "错误信息应带状态码")
	assert.Contains(t, err.Error(), "quota exceeded", "错误信息应带响应体")
}

// TestNewAliyunChatClientRequiresAPIKey 缺少API密钥应构造失败
func TestNewAliyunChatClientRequiresAPIKey(t *testing.T) {
	_, err := NewAliyunChatClient(config.LLMConfig{}, zerolog.Nop())
	require.Error(t, err)
}

// TestExtractJSON 从各种包装形式中提取JSON对象
func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"json代码围栏",
			"```json\n{\"a\": 1}\n```",
			`{"a": 1}`,
		},
		{
			"无语言标注的围栏",
			"```\n{\"a\": 1}\n```",
			`{"a": 1}`,
		},
		{
			"围栏前后有说明文字",
			"Here is the result:\n```json\n{\"a\": 1}\n```\nDone.",
			`{"a": 1}`,
		},
		{
			"裸JSON",
			`{"a": 1}`,
			`{"a": 1}`,
		},
		{
			"嵌套对象按花括号配对",
			`prefix {"a": {"b": 2}} suffix`,
			`{"a": {"b": 2}}`,
		},
		{
			"没有JSON",
			"sorry, I cannot help",
			"",
		},
		{
			"花括号不闭合",
			`{"a": 1`,
			"",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSON(tc.in))
		})
	}
}
