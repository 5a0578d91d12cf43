package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cv-agent-go/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrantServer 模拟Qdrant REST接口的最小子集
type fakeQdrantServer struct {
	mu sync.Mutex
	// collections 已存在的集合及其维度/距离
	collections map[string]map[string]interface{}
	// upserted 收到的全部point
	upserted []map[string]interface{}
	// createCalls 创建集合的调用次数
	createCalls int
}

func newFakeQdrantServer() (*fakeQdrantServer, *httptest.Server) {
	f := &fakeQdrantServer{collections: make(map[string]map[string]interface{})}
	mux := http.NewServeMux()

	mux.HandleFunc("/collections/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		name := r.URL.Path[len("/collections/"):]
		switch {
		case r.Method == http.MethodGet:
			vectors, ok := f.collections[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"config": map[string]interface{}{
						"params": map[string]interface{}{
							"vectors": vectors,
						},
					},
				},
			})
		case r.Method == http.MethodPut:
			// /collections/<name> 创建，/collections/<name>/points upsert
			if strings.HasSuffix(name, "/points") {
				var body struct {
					Points []map[string]interface{} `json:"points"`
				}
				_ = json.NewDecoder(r.Body).Decode(&body)
				f.upserted = append(f.upserted, body.Points...)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
				return
			}

			var body struct {
				Vectors map[string]interface{} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.collections[name] = body.Vectors
			f.createCalls++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	return f, httptest.NewServer(mux)
}

func newTestQdrant(t *testing.T, endpoint string) *Qdrant {
	t.Helper()
	q, err := NewQdrant(&config.QdrantConfig{
		Endpoint:   endpoint,
		Collection: "candidates",
		Dimension:  3,
		Metric:     "Cosine",
	}, zerolog.Nop())
	require.NoError(t, err)
	return q
}

// TestEnsureCollectionCreatesWhenAbsent 集合不存在时创建
func TestEnsureCollectionCreatesWhenAbsent(t *testing.T) {
	fake, server := newFakeQdrantServer()
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	require.NoError(t, q.EnsureCollection(context.Background()))

	assert.Equal(t, 1, fake.createCalls)
	vectors := fake.collections["candidates"]
	require.NotNil(t, vectors, "集合应已创建")
	assert.Equal(t, float64(3), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

// TestEnsureCollectionIdempotent 重复调用不重建集合
func TestEnsureCollectionIdempotent(t *testing.T) {
	fake, server := newFakeQdrantServer()
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	require.NoError(t, q.EnsureCollection(context.Background()))
	require.NoError(t, q.EnsureCollection(context.Background()))
	require.NoError(t, q.EnsureCollection(context.Background()))

	assert.Equal(t, 1, fake.createCalls, "已存在的集合不应被重建")
}

// TestUpsertPoints upsert请求体包含id、向量和payload
func TestUpsertPoints(t *testing.T) {
	fake, server := newFakeQdrantServer()
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	require.NoError(t, q.EnsureCollection(context.Background()))

	point := VectorPoint{
		ID:     CandidatePointID("Alice"),
		Vector: []float64{0.1, 0.2, 0.3},
		Payload: map[string]interface{}{
			"candidate_id": "Alice",
			"content":      "skills: Go",
		},
	}
	require.NoError(t, q.UpsertPoints(context.Background(), []VectorPoint{point}))

	require.Len(t, fake.upserted, 1)
	got := fake.upserted[0]
	assert.Equal(t, point.ID, got["id"])
	payload := got["payload"].(map[string]interface{})
	assert.Equal(t, "Alice", payload["candidate_id"])
}

// TestUpsertPointsEmpty 空批次不发请求
func TestUpsertPointsEmpty(t *testing.T) {
	fake, server := newFakeQdrantServer()
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	require.NoError(t, q.UpsertPoints(context.Background(), nil))
	assert.Empty(t, fake.upserted)
}

// TestUpsertPointsServerError 服务端错误带状态码上抛
func TestUpsertPointsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("storage full"))
	}))
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	err := q.UpsertPoints(context.Background(), []VectorPoint{{ID: ChunkPointID(1), Vector: []float64{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "storage full")
}

// TestPointIDNamespacing 同一逻辑键总是映射到同一个UUID，不同键不同UUID
func TestPointIDNamespacing(t *testing.T) {
	assert.Equal(t, CandidatePointID("Alice"), CandidatePointID("Alice"))
	assert.NotEqual(t, CandidatePointID("Alice"), CandidatePointID("alice"), "键区分大小写")
	assert.NotEqual(t, CandidatePointID("Alice"), ChunkPointID(1), "两类键不共享ID空间")
}
