package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cv-agent-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAggregatedCandidatesRoundTrip 写出再读回应得到相同记录
func TestAggregatedCandidatesRoundTrip(t *testing.T) {
	name := "Alice"
	title := "Engineer"
	duration := "2 years"
	records := []*types.CandidateRecord{
		{
			PersonalInfo: &types.PersonalInfo{Name: &name},
			Skills:       []string{"Go"},
			Experience: []types.WorkEntry{
				{JobTitle: &title, Duration: &duration, Responsibilities: []string{"coding"}},
			},
			TotalExperience:    2.0,
			RelevantExperience: map[string]float64{"Engineer": 2.0},
		},
	}

	path := filepath.Join(t.TempDir(), "aggregated.json")
	require.NoError(t, WriteAggregatedCandidates(path, records))

	loaded, err := LoadAggregatedCandidates(path)
	require.NoError(t, err)
	require.Len(t, loaded.Candidates, 1)
	assert.Equal(t, records[0], loaded.Candidates[0], "往返后记录应相同")
}

// TestWriteAggregatedCandidatesFormat 产物应为4空格缩进、顶层candidates键
func TestWriteAggregatedCandidatesFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregated.json")
	require.NoError(t, WriteAggregatedCandidates(path, []*types.CandidateRecord{{}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "{\n    \"candidates\""), "顶层键应为candidates且用4空格缩进")
}

// TestWriteAggregatedCandidatesOverwrites 重跑整体覆盖，不追加
func TestWriteAggregatedCandidatesOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregated.json")

	name1 := "Alice"
	require.NoError(t, WriteAggregatedCandidates(path,
		[]*types.CandidateRecord{{PersonalInfo: &types.PersonalInfo{Name: &name1}}}))

	name2 := "Bob"
	require.NoError(t, WriteAggregatedCandidates(path,
		[]*types.CandidateRecord{{PersonalInfo: &types.PersonalInfo{Name: &name2}}}))

	loaded, err := LoadAggregatedCandidates(path)
	require.NoError(t, err)
	require.Len(t, loaded.Candidates, 1, "第二次写出应完全覆盖第一次")
	assert.Equal(t, "Bob", loaded.Candidates[0].DisplayName())
}

// TestWriteAggregatedCandidatesEmpty 空批次也要产出合法文件
func TestWriteAggregatedCandidatesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aggregated.json")
	require.NoError(t, WriteAggregatedCandidates(path, nil))

	loaded, err := LoadAggregatedCandidates(path)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Candidates)
	assert.Empty(t, loaded.Candidates)
}

// TestAggregatedJobsRoundTrip 岗位描述产物往返
func TestAggregatedJobsRoundTrip(t *testing.T) {
	role := "Backend Engineer"
	records := []*types.JobRecord{
		{
			Role:                &role,
			KeyResponsibilities: []string{"design"},
			Qualifications:      []string{},
			Skills:              []string{"Go"},
		},
	}

	path := filepath.Join(t.TempDir(), "jd.json")
	require.NoError(t, WriteAggregatedJobs(path, records))

	loaded, err := LoadAggregatedJobs(path)
	require.NoError(t, err)
	require.Len(t, loaded.JobDescriptions, 1)
	assert.Equal(t, records[0], loaded.JobDescriptions[0])
}
