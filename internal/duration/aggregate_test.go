package duration

import (
	"testing"
	"time"

	"cv-agent-go/internal/types"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func newTestAggregator() *Aggregator {
	return NewAggregator(zerolog.Nop())
}

// TestAggregateSameTitle 同一岗位名称的多段经历应累计到同一个键
func TestAggregateSameTitle(t *testing.T) {
	entries := []types.WorkEntry{
		{JobTitle: strPtr("Engineer"), Duration: strPtr("2 years")},
		{JobTitle: strPtr("Engineer"), Duration: strPtr("6 months")},
	}

	total, byTitle := newTestAggregator().Aggregate(entries, referenceDate)

	assert.InDelta(t, 2.5, total, 1e-9, "总年限应为两段经历之和")
	require.Len(t, byTitle, 1, "同名岗位应归并为一个键")
	assert.InDelta(t, 2.5, byTitle["Engineer"], 1e-9, "岗位年限与预期不符")
}

// TestAggregateCaseInsensitiveTitle 岗位名称大小写不同视为同一岗位，键保留最后出现的写法
func TestAggregateCaseInsensitiveTitle(t *testing.T) {
	entries := []types.WorkEntry{
		{JobTitle: strPtr("engineer"), Duration: strPtr("1 year")},
		{JobTitle: strPtr("Engineer"), Duration: strPtr("1 year")},
	}

	total, byTitle := newTestAggregator().Aggregate(entries, referenceDate)

	assert.InDelta(t, 2.0, total, 1e-9)
	require.Len(t, byTitle, 1, "大小写不同的同名岗位应归并")
	_, ok := byTitle["Engineer"]
	assert.True(t, ok, "键应保留最后一次出现的写法")
	assert.InDelta(t, 2.0, byTitle["Engineer"], 1e-9)
}

// TestAggregateSkipsEmptyAndUnparseable 空时长跳过，解析失败按零年计入但不中断
func TestAggregateSkipsEmptyAndUnparseable(t *testing.T) {
	entries := []types.WorkEntry{
		{JobTitle: strPtr("Engineer"), Duration: strPtr("2 years")},
		{JobTitle: strPtr("Manager"), Duration: nil},
		{JobTitle: strPtr("Manager"), Duration: strPtr("")},
		{JobTitle: strPtr("Analyst"), Duration: strPtr("since forever")},
	}

	total, byTitle := newTestAggregator().Aggregate(entries, referenceDate)

	assert.InDelta(t, 2.0, total, 1e-9, "只有可解析的条目计入总年限")
	assert.NotContains(t, byTitle, "Manager", "空时长的岗位不应出现在结果里")
	assert.NotContains(t, byTitle, "Analyst", "解析失败的岗位不应出现在结果里")
}

// TestAggregateRounding 总年限和各岗位年限都应四舍五入到两位小数
func TestAggregateRounding(t *testing.T) {
	entries := []types.WorkEntry{
		{JobTitle: strPtr("Engineer"), Duration: strPtr("5 months")},
	}

	total, byTitle := newTestAggregator().Aggregate(entries, referenceDate)

	// 5/12 = 0.41666... → 0.42
	assert.Equal(t, 0.42, total, "总年限应舍入到两位小数")
	assert.Equal(t, 0.42, byTitle["Engineer"], "岗位年限应舍入到两位小数")
}

// TestAggregateNegativeRangeClamped 首尾颠倒的区间不应把总年限拉成负数
func TestAggregateNegativeRangeClamped(t *testing.T) {
	entries := []types.WorkEntry{
		{JobTitle: strPtr("Engineer"), Duration: strPtr("Dec 2022 - Jan 2020")},
		{JobTitle: strPtr("Engineer"), Duration: strPtr("1 year")},
	}

	total, byTitle := newTestAggregator().Aggregate(entries, referenceDate)

	assert.GreaterOrEqual(t, total, 0.0, "总年限不能为负")
	assert.InDelta(t, 1.0, total, 1e-9, "负区间应按零年计入")
	assert.InDelta(t, 1.0, byTitle["Engineer"], 1e-9)
}

// TestAggregateEmptyInput 空输入返回零总年限和空映射
func TestAggregateEmptyInput(t *testing.T) {
	total, byTitle := newTestAggregator().Aggregate(nil, referenceDate)

	assert.Equal(t, 0.0, total)
	assert.NotNil(t, byTitle, "映射应为空而不是nil，序列化后保持 {} 而不是 null")
	assert.Empty(t, byTitle)
}

// TestAggregateOpenEndedUsesReferenceDate 开放区间用参考日期收尾，结果可复现
func TestAggregateOpenEndedUsesReferenceDate(t *testing.T) {
	entries := []types.WorkEntry{
		{JobTitle: strPtr("Engineer"), Duration: strPtr("Jan 2020 - Present")},
	}
	ref := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)

	total, _ := newTestAggregator().Aggregate(entries, ref)

	// (2025-2020) + (3-1)/12 = 5.1667 → 5.17
	assert.Equal(t, 5.17, total)
}
