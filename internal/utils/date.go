package utils

import (
	"regexp"
	"strings"
	"time"
)

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	clockTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
	monthDayPattern  = regexp.MustCompile(`^(\d{2})\.(\d{2})$`)
	shortDatePattern = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{2})$`)
)

// DateKeyLayout 日期键格式
// 定长、补零、年月日顺序,可以直接按字符串比较大小
const DateKeyLayout = "2006-01-02"

// DateNormalizer 将列表页中各种形式的日期文本转换为 YYYY-MM-DD
type DateNormalizer struct {
	// Now 返回当前时间,为nil时使用time.Now
	Now func() time.Time
}

func (d DateNormalizer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Normalize 规范化日期文本,无法识别时返回空字符串
//
//	"2024-01-05 14:32:10" -> "2024-01-05"
//	"14:32"               -> 今天
//	"03.15"               -> 今年-03-15
//	"23.03.15"            -> 2023-03-15
func (d DateNormalizer) Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if isoDatePattern.MatchString(text) {
		return text[:10]
	}

	if clockTimePattern.MatchString(text) {
		return d.now().Format(DateKeyLayout)
	}

	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		return d.now().Format("2006") + "-" + m[1] + "-" + m[2]
	}

	if m := shortDatePattern.FindStringSubmatch(text); m != nil {
		return "20" + m[1] + "-" + m[2] + "-" + m[3]
	}

	return ""
}

var defaultNormalizer DateNormalizer

// NormalizeDate 使用本地时钟规范化日期文本
func NormalizeDate(text string) string {
	return defaultNormalizer.Normalize(text)
}

// InRange 判断日期键是否位于 [start, end] 内,边界为空表示不限制
// 空日期键永远不在范围内
func InRange(key, start, end string) bool {
	if key == "" {
		return false
	}
	if start != "" && key < start {
		return false
	}
	if end != "" && key > end {
		return false
	}
	return true
}

// IsOlder 判断日期键是否早于起始日期
func IsOlder(key, start string) bool {
	if key == "" || start == "" {
		return false
	}
	return key < start
}
