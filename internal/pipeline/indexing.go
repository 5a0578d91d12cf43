package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"cv-agent-go/internal/parser"
	"cv-agent-go/internal/storage"
	"cv-agent-go/internal/types"

	"github.com/rs/zerolog"
)

const defaultChunkSize = 4000

// chunkCounter 分块模式的point序号，进程生命周期内单调递增。
// 跨进程重启会从头计数，因此分块索引本身不幂等（重跑产生新point），
// 按设计保留该行为。
var chunkCounter atomic.Int64

// IndexingPipeline 向量索引流水线：
// 把规范化记录文本化、向量化并写入向量库。
// 两种粒度：固定长度分块（chunk）和每候选人一条（candidate）。
type IndexingPipeline struct {
	index     storage.VectorIndex
	embedder  parser.TextEmbedder
	chunkSize int
	logger    zerolog.Logger
}

// IndexingOption 定义IndexingPipeline构造选项
type IndexingOption func(*IndexingPipeline)

// WithChunkSize 设置分块模式下每个文本块的最大字符数
func WithChunkSize(n int) IndexingOption {
	return func(ip *IndexingPipeline) {
		if n > 0 {
			ip.chunkSize = n
		}
	}
}

// NewIndexingPipeline 创建向量索引流水线
func NewIndexingPipeline(index storage.VectorIndex, embedder parser.TextEmbedder, logger zerolog.Logger, opts ...IndexingOption) *IndexingPipeline {
	ip := &IndexingPipeline{
		index:     index,
		embedder:  embedder,
		chunkSize: defaultChunkSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(ip)
	}
	return ip
}

// IndexAggregatedChunked 分块模式：把整个聚合文档压平为文本、
// 按固定长度切块后逐块向量化写入。
// sourceType 标识文档来源（例如 "aggregated_json" / "jd_json"）。
func (ip *IndexingPipeline) IndexAggregatedChunked(ctx context.Context, doc interface{}, sourceType string) error {
	if err := ip.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCreationFailed, err)
	}

	text, err := flattenDocument(doc)
	if err != nil {
		return fmt.Errorf("压平聚合文档失败: %w", err)
	}

	chunks := splitIntoChunks(text, ip.chunkSize)
	units := make([]types.EmbeddingUnit, 0, len(chunks))
	for i, chunk := range chunks {
		units = append(units, types.EmbeddingUnit{
			Text:       chunk,
			SourceType: sourceType,
			Sequence:   i + 1,
		})
	}

	for _, unit := range units {
		vectors, err := ip.embedder.EmbedStrings(ctx, []string{unit.Text})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingCallFailed, err)
		}
		if len(vectors) == 0 {
			return fmt.Errorf("%w: 向量化返回空结果", ErrEmbeddingCallFailed)
		}

		seq := chunkCounter.Add(1)
		point := storage.VectorPoint{
			ID:     storage.ChunkPointID(seq),
			Vector: vectors[0],
			Payload: map[string]interface{}{
				"chunk_index": unit.Sequence,
				"source_type": unit.SourceType,
				"content":     unit.Text,
			},
		}
		if err := ip.index.UpsertPoints(ctx, []storage.VectorPoint{point}); err != nil {
			return NewUpsertError(strconv.FormatInt(seq, 10), err.Error())
		}
		ip.logger.Debug().Int64("point_seq", seq).Int("chunk_index", unit.Sequence).
			Str("source_type", unit.SourceType).Msg("分块向量写入完成")
	}

	ip.logger.Info().Str("source_type", sourceType).Int("chunks", len(chunks)).
		Msg("分块索引完成")
	return nil
}

// IndexCandidates 每候选人模式：把每个候选人的全部章节合并成单段文本，
// 以展示名为逻辑键写入一条向量。同名候选人后写覆盖先写。
func (ip *IndexingPipeline) IndexCandidates(ctx context.Context, candidates []*types.CandidateRecord) error {
	if err := ip.index.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrIndexCreationFailed, err)
	}

	for _, candidate := range candidates {
		candidateID := candidate.DisplayName()
		combined, err := CombineCandidateSections(candidate)
		if err != nil {
			return fmt.Errorf("合并候选人 %s 章节失败: %w", candidateID, err)
		}

		vectors, err := ip.embedder.EmbedStrings(ctx, []string{combined})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmbeddingCallFailed, err)
		}
		if len(vectors) == 0 {
			return fmt.Errorf("%w: 向量化返回空结果", ErrEmbeddingCallFailed)
		}

		point := storage.VectorPoint{
			ID:     storage.CandidatePointID(candidateID),
			Vector: vectors[0],
			Payload: map[string]interface{}{
				"candidate_id": candidateID,
				"content":      combined,
			},
		}
		if err := ip.index.UpsertPoints(ctx, []storage.VectorPoint{point}); err != nil {
			return NewUpsertError(candidateID, err.Error())
		}
		ip.logger.Debug().Str("candidate", candidateID).Msg("候选人向量写入完成")
	}

	ip.logger.Info().Int("candidates", len(candidates)).Msg("候选人索引完成")
	return nil
}

// candidateSectionOrder 候选人文本化时的章节顺序，保持稳定以便向量可复现
var candidateSectionOrder = []string{
	"personal_info",
	"skills",
	"experience",
	"education",
	"projects",
	"certifications",
	"achievements",
	"total_experience",
	"relevant_experience",
}

// CombineCandidateSections 把候选人记录的各章节合并为
// "章节名: 压平文本" 的多行文本
func CombineCandidateSections(candidate *types.CandidateRecord) (string, error) {
	data, err := json.Marshal(candidate)
	if err != nil {
		return "", fmt.Errorf("序列化候选人记录失败: %w", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("反序列化候选人记录失败: %w", err)
	}

	var sb strings.Builder
	for _, section := range candidateSectionOrder {
		sb.WriteString(section)
		sb.WriteString(": ")
		sb.WriteString(jsonToText(generic[section]))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// flattenDocument 把任意可JSON化的文档压平为 "key: value" 文本
func flattenDocument(doc interface{}) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}

	obj, ok := generic.(map[string]interface{})
	if !ok {
		return jsonToText(generic), nil
	}

	keys := sortedKeys(obj)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", key, jsonToText(obj[key])))
	}
	return strings.Join(parts, " "), nil
}

// jsonToText 递归地把JSON值压平为空格分隔的纯文本。
// 对象按键名排序保证输出稳定（Go map遍历无序）。
func jsonToText(value interface{}) string {
	switch v := value.(type) {
	case map[string]interface{}:
		keys := sortedKeys(v)
		parts := make([]string, 0, len(keys))
		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", key, jsonToText(v[key])))
		}
		return strings.Join(parts, " ")
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, jsonToText(item))
		}
		return strings.Join(parts, " ")
	case nil:
		return "null"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// splitIntoChunks 按最大字符数（rune计）切分文本
func splitIntoChunks(text string, chunkSize int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
