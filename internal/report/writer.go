package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

// Format 报告格式
type Format string

const (
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatXLSX     Format = "xlsx"
)

// Formats 所有支持的格式
var Formats = []Format{FormatJSON, FormatYAML, FormatMarkdown, FormatHTML, FormatXLSX}

var extensions = map[Format]string{
	FormatJSON:     ".json",
	FormatYAML:     ".yaml",
	FormatMarkdown: ".md",
	FormatHTML:     ".html",
	FormatXLSX:     ".xlsx",
}

// Writer 报告输出接口
type Writer interface {
	Write(report *models.ScrapeReport) error
}

// ParseFormat 解析格式名称,md/yml 作为别名
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("不支持的报告格式: %s (有效值: json, yaml, markdown, html, xlsx)", name)
}

// Extension 文件扩展名
func (f Format) Extension() string {
	return extensions[f]
}

// IsBinary 是否为二进制格式(不能写到终端)
func (f Format) IsBinary() bool {
	return f == FormatXLSX
}

// NewWriter 按格式创建Writer
// top 为图表和排行表显示的用户数,<=0 表示全部
func NewWriter(format Format, output io.Writer, top int) (Writer, error) {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output), nil
	case FormatYAML:
		return NewYAMLWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output, top), nil
	case FormatHTML:
		return NewHTMLWriter(output, top), nil
	case FormatXLSX:
		return NewXLSXWriter(output), nil
	}
	return nil, fmt.Errorf("不支持的报告格式: %s", format)
}

// FileName 报告文件名: <galleryId>_<时间>.<ext>
func FileName(report *models.ScrapeReport, format Format) string {
	return fmt.Sprintf("%s_%s%s", report.GalleryID, report.FinishedAt.Format("20060102_150405"), format.Extension())
}

// dateRange 日期范围的显示文本
func dateRange(report *models.ScrapeReport) string {
	if report.StartDate == nil && report.EndDate == nil {
		return "-"
	}
	start, end := "不限", "不限"
	if report.StartDate != nil {
		start = *report.StartDate
	}
	if report.EndDate != nil {
		end = *report.EndDate
	}
	return start + " ~ " + end
}

// summaryRows 汇总信息,markdown和xlsx共用
func summaryRows(report *models.ScrapeReport) [][]string {
	return [][]string{
		{"画廊ID", report.GalleryID},
		{"画廊类型", report.GalleryType},
		{"URL", report.URL},
		{"日期范围", dateRange(report)},
		{"爬取页数", fmt.Sprintf("%d", report.PagesScraped)},
		{"跳过页数", fmt.Sprintf("%d", report.PagesSkipped)},
		{"帖子总数", fmt.Sprintf("%d", report.TotalPosts)},
		{"用户数", fmt.Sprintf("%d", report.UniqueUsers)},
		{"完成时间", report.FinishedAt.Format("2006-01-02 15:04:05")},
		{"耗时(秒)", fmt.Sprintf("%.1f", report.Duration)},
	}
}
