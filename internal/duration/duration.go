package duration

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"regexp"
)

// 定义基础错误类型
var (
	// ErrMalformedDuration 时长文本不符合任何已知模式
	ErrMalformedDuration = errors.New("无法识别的任职时长格式")
	// ErrDateParse 日期区间中的某一侧无法解析为日历日期
	ErrDateParse = errors.New("任职日期解析失败")
)

// openToken 开放区间的规范化标记，归一化阶段把 present/current/till date 等统一为它
const openToken = "Present"

var (
	// 归一化用的正则
	wordToRe  = regexp.MustCompile(`(?i)\bto\b`)
	openEndRe = regexp.MustCompile(`(?i)\b(?:till date|till|present|current|now|on-going|ongoing)\b`)
	hyphenRe  = regexp.MustCompile(`\s*-\s*`)

	// 各模式匹配器用的正则，全部锚定整串，保证互不吞并
	floatYearsRe  = regexp.MustCompile(`(?i)^(\d+\.\d+|\d+)\s*years?$`)
	yearsMonthsRe = regexp.MustCompile(`(?i)^(\d+)\s*years?\s*(\d+)\s*months?$`)
	monthsRe      = regexp.MustCompile(`(?i)^(\d+)\s*months?$`)
)

// Normalize 归一化时长文本。三个步骤按序执行，且各自幂等：
//  1. 统一各种连接符（em/en破折号、单词"to"）为ASCII连字符
//  2. 把开放区间标记统一为规范token
//  3. 保证连字符两侧恰好各一个空格
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "—", "-") // em dash
	s = strings.ReplaceAll(s, "–", "-") // en dash
	s = wordToRe.ReplaceAllString(s, "-")
	s = openEndRe.ReplaceAllString(s, openToken)
	s = hyphenRe.ReplaceAllString(s, " - ")
	return strings.TrimSpace(s)
}

// patternMatcher 单个时长模式匹配器。
// 命中时返回 (年数, true, nil)；不命中返回 (0, false, nil)；
// 命中但内容非法时返回错误，由 Parse 直接上抛。
type patternMatcher struct {
	name  string
	match func(s string, referenceDate time.Time) (float64, bool, error)
}

// matchers 按优先级排列的匹配器链，先命中者生效
var matchers = []patternMatcher{
	{name: "float_years", match: matchFloatYears},
	{name: "years_months", match: matchYearsMonths},
	{name: "months", match: matchMonths},
	{name: "date_range", match: matchDateRange},
}

// Parse 把自由文本的任职时长解析为年数。
// referenceDate 用于解析开放区间（"Present"）的结束时间，
// 必须由调用方显式传入而不是取系统时钟，保证解析结果可复现。
func Parse(raw string, referenceDate time.Time) (float64, error) {
	s := Normalize(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: 空字符串", ErrMalformedDuration)
	}

	for _, m := range matchers {
		years, ok, err := m.match(s, referenceDate)
		if err != nil {
			return 0, err
		}
		if ok {
			return years, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrMalformedDuration, raw)
}

// matchFloatYears 处理 "2.5 years" / "3 years" 这类纯年数
func matchFloatYears(s string, _ time.Time) (float64, bool, error) {
	m := floatYearsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false, nil
	}
	years, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: 年数 %q 不是有效数字", ErrMalformedDuration, m[1])
	}
	return years, true, nil
}

// matchYearsMonths 处理 "2 years 3 months" 这类年月混合
func matchYearsMonths(s string, _ time.Time) (float64, bool, error) {
	m := yearsMonthsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false, nil
	}
	years, _ := strconv.Atoi(m[1])
	months, _ := strconv.Atoi(m[2])
	return float64(years) + float64(months)/12, true, nil
}

// matchMonths 处理 "5 months" 这类纯月数
func matchMonths(s string, _ time.Time) (float64, bool, error) {
	m := monthsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false, nil
	}
	months, _ := strconv.Atoi(m[1])
	return float64(months) / 12, true, nil
}

// matchDateRange 处理 "July 2021 - Present" / "April 2019 - Nov 2021" 这类日期区间。
// 年限 = (结束年 - 起始年) + (结束月 - 起始月)/12，有意忽略日，按月粒度近似。
func matchDateRange(s string, referenceDate time.Time) (float64, bool, error) {
	if !strings.Contains(s, "-") {
		return 0, false, nil
	}

	parts := strings.Split(s, " - ")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return 0, false, fmt.Errorf("%w: %q 按连字符拆分后不是两个非空部分", ErrMalformedDuration, s)
	}

	start, err := parseCalendarDate(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, false, fmt.Errorf("%w: 起始日期 %q: %v", ErrDateParse, parts[0], err)
	}

	endStr := strings.TrimSpace(parts[1])
	var end time.Time
	if strings.EqualFold(endStr, openToken) {
		end = referenceDate
	} else {
		end, err = parseCalendarDate(endStr)
		if err != nil {
			return 0, false, fmt.Errorf("%w: 结束日期 %q: %v", ErrDateParse, endStr, err)
		}
	}

	years := float64(end.Year()-start.Year()) + float64(int(end.Month())-int(start.Month()))/12
	return years, true, nil
}

// calendarLayouts 日历日期的候选格式。
// 数字日期采用日在月前的约定（与源数据一致），月粒度即可，日被忽略。
var calendarLayouts = []string{
	"January 2006",
	"Jan 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2/1/2006", // day first
	"1/2006",
	"2006-01",
	"2006",
}

// parseCalendarDate 尝试用候选格式列表解析单侧日期
func parseCalendarDate(s string) (time.Time, error) {
	// Go的"Jan"布局不认四字母缩写
	s = strings.NewReplacer("Sept ", "Sep ", "sept ", "Sep ").Replace(s)

	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("不匹配任何已知日期格式")
}
