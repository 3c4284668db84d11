package main

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/report"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateURL 验证URL格式
func ValidateURL(urlStr string) error {
	return models.ValidateURL(urlStr)
}

// ValidateFlags 验证命令行标志
// 画廊ID能否识别在爬取开始前由解析器检查
func ValidateFlags(
	targetURL string,
	mode string,
	pages int,
	startDate string,
	endDate string,
	format string,
	top int,
) error {
	// 验证URL
	if targetURL != "" {
		normalized, err := NormalizeURL(targetURL)
		if err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
		if err := ValidateURL(normalized); err != nil {
			return fmt.Errorf("无效的目标URL: %w", err)
		}
	}

	// 验证模式
	hasDates := startDate != "" || endDate != ""
	switch models.CrawlMode(mode) {
	case "":
	case models.ModeFixedPages:
		if hasDates {
			return fmt.Errorf("固定页数模式不支持 --start/--end,请使用 --mode dateRange")
		}
	case models.ModeDateRange:
	default:
		return fmt.Errorf("无效的爬取模式: %s (有效值: fixedPages, dateRange)", mode)
	}

	// 验证页数 (日期模式下不使用)
	dateMode := hasDates || models.CrawlMode(mode) == models.ModeDateRange
	if !dateMode && (pages < 1 || pages > 10000) {
		return fmt.Errorf("页数必须在1-10000之间,当前值: %d", pages)
	}

	// 验证日期
	for _, d := range []string{startDate, endDate} {
		if d != "" && !datePattern.MatchString(d) {
			return fmt.Errorf("日期格式必须为YYYY-MM-DD,当前值: %s", d)
		}
	}
	if startDate != "" && endDate != "" && startDate > endDate {
		return fmt.Errorf("起始日期 %s 晚于结束日期 %s", startDate, endDate)
	}

	// 验证格式
	if _, err := report.ParseFormat(format); err != nil {
		return err
	}

	if top < 0 {
		return fmt.Errorf("显示用户数不能为负数,当前值: %d", top)
	}

	return nil
}

// ValidateURLFile 验证URL文件路径
func ValidateURLFile(filepath string) error {
	if filepath == "" {
		return fmt.Errorf("URL文件路径不能为空")
	}
	// 文件存在性检查将在运行时进行
	return nil
}

// NormalizeURL 规范化URL
// 没有协议时默认使用https
func NormalizeURL(urlStr string) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}

	if parsed.Scheme == "" {
		urlStr = "https://" + urlStr
		parsed, err = url.Parse(urlStr)
		if err != nil {
			return "", err
		}
	}

	return parsed.String(), nil
}
