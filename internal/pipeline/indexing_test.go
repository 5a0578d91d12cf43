package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/types"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex 内存版向量索引，按point ID覆盖写入
type fakeIndex struct {
	mu          sync.Mutex
	ensureCalls int
	points      map[string]storage.VectorPoint
	// order 记录upsert顺序（point ID）
	order []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]storage.VectorPoint)}
}

func (f *fakeIndex) EnsureCollection(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return nil
}

func (f *fakeIndex) UpsertPoints(_ context.Context, points []storage.VectorPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.points[p.ID] = p
		f.order = append(f.order, p.ID)
	}
	return nil
}

// fakeEmbedder 返回固定向量
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (fakeEmbedder) GetDimensions() int { return 3 }

// TestSplitIntoChunks 固定长度切块
func TestSplitIntoChunks(t *testing.T) {
	text := strings.Repeat("a", 10000)
	chunks := splitIntoChunks(text, 4000)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 4000)
	assert.Len(t, chunks[1], 4000)
	assert.Len(t, chunks[2], 2000)
	assert.Equal(t, text, strings.Join(chunks, ""), "切块拼回应还原原文")

	assert.Nil(t, splitIntoChunks("", 4000), "空文本没有块")
	assert.Equal(t, []string{"short"}, splitIntoChunks("short", 4000))
}

// TestSplitIntoChunksRuneBoundary 按rune切块，不应把多字节字符劈开
func TestSplitIntoChunksRuneBoundary(t *testing.T) {
	text := strings.Repeat("简", 5)
	chunks := splitIntoChunks(text, 2)

	require.Len(t, chunks, 3)
	assert.Equal(t, "简简", chunks[0])
	assert.Equal(t, "简", chunks[2])
}

// TestCombineCandidateSections 章节按固定顺序文本化
func TestCombineCandidateSections(t *testing.T) {
	name := "Alice"
	title := "Engineer"
	rec := &types.CandidateRecord{
		PersonalInfo:       &types.PersonalInfo{Name: &name},
		Skills:             []string{"Go", "Python"},
		Experience:         []types.WorkEntry{{JobTitle: &title, Responsibilities: []string{"coding"}}},
		TotalExperience:    2.5,
		RelevantExperience: map[string]float64{"Engineer": 2.5},
	}

	combined, err := CombineCandidateSections(rec)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(combined, "\n"), "\n")
	require.Len(t, lines, len(candidateSectionOrder), "每个章节占一行")
	for i, section := range candidateSectionOrder {
		assert.True(t, strings.HasPrefix(lines[i], section+": "),
			"第%d行应以章节名 %s 开头", i, section)
	}

	assert.Contains(t, combined, "name: Alice")
	assert.Contains(t, combined, "Go Python")
	assert.Contains(t, combined, "total_experience: 2.5")
	assert.Contains(t, combined, "Engineer: 2.5")

	// 相同记录的文本化结果应稳定（map键已排序）
	again, err := CombineCandidateSections(rec)
	require.NoError(t, err)
	assert.Equal(t, combined, again)
}

// TestIndexCandidatesSameNameOverwrites 同名候选人后写覆盖先写
func TestIndexCandidatesSameNameOverwrites(t *testing.T) {
	name := "Alice"
	skill1 := []string{"Go"}
	skill2 := []string{"Rust"}
	first := &types.CandidateRecord{PersonalInfo: &types.PersonalInfo{Name: &name}, Skills: skill1}
	second := &types.CandidateRecord{PersonalInfo: &types.PersonalInfo{Name: &name}, Skills: skill2}

	index := newFakeIndex()
	ip := NewIndexingPipeline(index, fakeEmbedder{}, zerolog.Nop())

	require.NoError(t, ip.IndexCandidates(context.Background(), []*types.CandidateRecord{first, second}))

	assert.Len(t, index.points, 1, "同名候选人应只留一条向量")
	point := index.points[storage.CandidatePointID("Alice")]
	assert.Contains(t, point.Payload["content"].(string), "Rust", "留下的应是后写入的内容")
	assert.Equal(t, "Alice", point.Payload["candidate_id"])
}

// TestIndexCandidatesMissingNameFallsBackToNull 缺失姓名的候选人以"null"为键
func TestIndexCandidatesMissingNameFallsBackToNull(t *testing.T) {
	index := newFakeIndex()
	ip := NewIndexingPipeline(index, fakeEmbedder{}, zerolog.Nop())

	rec := &types.CandidateRecord{Skills: []string{"Go"}}
	require.NoError(t, ip.IndexCandidates(context.Background(), []*types.CandidateRecord{rec}))

	point, ok := index.points[storage.CandidatePointID("null")]
	require.True(t, ok, "缺名候选人应落到null键")
	assert.Equal(t, "null", point.Payload["candidate_id"])
}

// TestIndexAggregatedChunked 分块模式：块序号、来源标识和计数器单调性
func TestIndexAggregatedChunked(t *testing.T) {
	index := newFakeIndex()
	ip := NewIndexingPipeline(index, fakeEmbedder{}, zerolog.Nop(), WithChunkSize(10))

	doc := map[string]interface{}{
		"candidates": strings.Repeat("x", 25),
	}
	require.NoError(t, ip.IndexAggregatedChunked(context.Background(), doc, "aggregated_json"))

	require.GreaterOrEqual(t, len(index.points), 3, "25字符按10切块至少3块")
	assert.Equal(t, 1, index.ensureCalls, "集合创建只应做一次")

	seenChunkIndex := make(map[int]bool)
	for _, p := range index.points {
		assert.Equal(t, "aggregated_json", p.Payload["source_type"])
		assert.NotEmpty(t, p.Payload["content"])
		seenChunkIndex[p.Payload["chunk_index"].(int)] = true
	}
	assert.True(t, seenChunkIndex[1], "块序号从1开始")

	// 再跑一遍：进程级计数器继续递增，产生新的point而不是覆盖
	before := len(index.points)
	require.NoError(t, ip.IndexAggregatedChunked(context.Background(), doc, "aggregated_json"))
	assert.Greater(t, len(index.points), before, "分块索引重跑不幂等，按设计产生新point")
}

// TestChunkPointIDDeterministic point ID由逻辑键确定
func TestChunkPointIDDeterministic(t *testing.T) {
	assert.Equal(t, storage.ChunkPointID(42), storage.ChunkPointID(42))
	assert.NotEqual(t, storage.ChunkPointID(1), storage.ChunkPointID(2))
	assert.Equal(t, storage.CandidatePointID("Alice"), storage.CandidatePointID("Alice"))
	assert.NotEqual(t, storage.CandidatePointID("Alice"), storage.CandidatePointID("Bob"))
}
