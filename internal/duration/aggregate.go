package duration

import (
	"math"
	"strings"
	"time"

	"cv-agent-go/internal/types"

	"github.com/rs/zerolog"
)

// Aggregator 汇总一份简历中所有工作经历的年限。
// 单条解析失败只记日志、按零年计入，不影响其余条目。
type Aggregator struct {
	logger zerolog.Logger
}

// NewAggregator 创建经历汇总器
func NewAggregator(logger zerolog.Logger) *Aggregator {
	return &Aggregator{logger: logger}
}

// Aggregate 逐条解析任职时长，返回总年限和按岗位名称累计的年限。
// 岗位名称按大小写不敏感归并，输出键保留最后一次出现的写法。
// 两者都四舍五入到两位小数（只在汇总层做一次，避免逐条舍入累积误差）。
// 不同条目的日期区间即使互相重叠也不去重，这是既定的简化而非缺陷。
func (a *Aggregator) Aggregate(entries []types.WorkEntry, referenceDate time.Time) (float64, map[string]float64) {
	var total float64
	accumulated := make(map[string]float64)
	lastCasing := make(map[string]string)

	for i, entry := range entries {
		raw := ""
		if entry.Duration != nil {
			raw = strings.TrimSpace(*entry.Duration)
		}
		if raw == "" {
			a.logger.Debug().Int("entry_index", i).Msg("工作经历缺少任职时长，跳过该条")
			continue
		}

		years, err := Parse(raw, referenceDate)
		if err != nil {
			a.logger.Warn().Err(err).Int("entry_index", i).Str("duration", raw).
				Msg("任职时长解析失败，该条按零年计入")
			continue
		}
		if years < 0 {
			// 区间首尾颠倒会算出负数，按零处理以维持总年限非负的不变量
			a.logger.Warn().Int("entry_index", i).Str("duration", raw).Float64("years", years).
				Msg("解析得到负的年限，按零年计入")
			continue
		}

		total += years

		title := ""
		if entry.JobTitle != nil {
			title = *entry.JobTitle
		}
		key := strings.ToLower(title)
		accumulated[key] += years
		lastCasing[key] = title
	}

	byTitle := make(map[string]float64, len(accumulated))
	for key, years := range accumulated {
		byTitle[lastCasing[key]] = round2(years)
	}

	return round2(total), byTitle
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
