package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"cv-agent-go/internal/types"
)

// WriteAggregatedCandidates 把候选人记录写出为聚合JSON文件。
// UTF-8编码、4空格缩进、整体覆盖：重跑总是产出当前批次的完整快照。
func WriteAggregatedCandidates(path string, candidates []*types.CandidateRecord) error {
	if candidates == nil {
		candidates = []*types.CandidateRecord{}
	}
	return writeJSONArtifact(path, types.AggregatedCandidates{Candidates: candidates})
}

// WriteAggregatedJobs 把岗位描述记录写出为聚合JSON文件
func WriteAggregatedJobs(path string, jobs []*types.JobRecord) error {
	if jobs == nil {
		jobs = []*types.JobRecord{}
	}
	return writeJSONArtifact(path, types.AggregatedJobs{JobDescriptions: jobs})
}

func writeJSONArtifact(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: 序列化失败: %v", ErrOutputArtifactFailed, err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: 写入 %s 失败: %v", ErrOutputArtifactFailed, path, err)
	}
	return nil
}

// LoadAggregatedCandidates 读回聚合候选人JSON文件，供索引阶段使用。
// 与WriteAggregatedCandidates构成往返：写出再读回得到相同记录。
func LoadAggregatedCandidates(path string) (*types.AggregatedCandidates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取聚合文件 %s 失败: %w", path, err)
	}

	var out types.AggregatedCandidates
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析聚合文件 %s 失败: %w", path, err)
	}
	return &out, nil
}

// LoadAggregatedJobs 读回聚合岗位描述JSON文件
func LoadAggregatedJobs(path string) (*types.AggregatedJobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取聚合文件 %s 失败: %w", path, err)
	}

	var out types.AggregatedJobs
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("解析聚合文件 %s 失败: %w", path, err)
	}
	return &out, nil
}
