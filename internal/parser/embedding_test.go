package parser

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

func newTestEmbedder(t *testing.T, serverURL string) *AliyunEmbedder {
	t.Helper()
	e, err := NewAliyunEmbedder("test-key", config.EmbeddingConfig{
		Model:      "text-embedding-v3",
		Dimensions: 4,
		BaseURL:    serverURL,
	}, zerolog.Nop())
	require.NoError(t, err)
	return e
}

// TestEmbedStrings 正常向量化
func TestEmbedStrings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-v3", req.Model)
		assert.Equal(t, 4, req.Dimensions)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "embedding": []float64{0.1, 0.2, 0.3, 0.4}, "index": 0},
			},
			"model": "text-embedding-v3",
		})
	}))
	defer server.Close()

	e := newTestEmbedder(t, server.URL)
	vectors, err := e.EmbedStrings(context.Background(), []string{"some resume text"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, vectors[0])
	assert.Equal(t, 4, e.GetDimensions())
}

// TestEmbedStringsEmptyInput 空输入不发请求
func TestEmbedStringsEmptyInput(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	e := newTestEmbedder(t, server.URL)
	vectors, err := e.EmbedStrings(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.False(t, called, "空输入不应触发HTTP请求")
}

// TestEmbedStringsAPIError API级错误（随200返回）应上抛
func TestEmbedStringsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{
				"message": "input too long",
				"type":    "invalid_request_error",
				"code":    "400",
			},
		})
	}))
	defer server.Close()

	e := newTestEmbedder(t, server.URL)
	_, err := e.EmbedStrings(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input too long")
}

// TestNewAliyunEmbedderRequiresAPIKey 缺少API密钥应构造失败
func TestNewAliyunEmbedderRequiresAPIKey(t *testing.T) {
	_, err := NewAliyunEmbedder("", config.EmbeddingConfig{}, zerolog.Nop())
	require.Error(t, err)
}
