package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

func sampleReport() *models.ScrapeReport {
	start := "2024-01-01"
	finished := time.Date(2024, 1, 20, 15, 4, 5, 0, time.UTC)
	return &models.ScrapeReport{
		ID:           "r1",
		Success:      true,
		Type:         models.ReportType,
		GalleryID:    "testgall",
		GalleryType:  "mgallery",
		URL:          "https://gall.dcinside.com/mgallery/board/lists/?id=testgall",
		PagesScraped: 3,
		PagesSkipped: 1,
		StartDate:    &start,
		TotalPosts:   6,
		UniqueUsers:  3,
		UserStats: []models.UserAggregate{
			{UserID: "alpha", Nickname: "에이", IP: "1.2", Count: 3},
			{UserID: "beta", Nickname: "비", Count: 2},
			{UserID: "gamma", Nickname: "감마", IP: "3.4", Count: 1},
		},
		StartedAt:  finished.Add(-2 * time.Second),
		FinishedAt: finished,
		Duration:   2,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Format
		wantErr bool
	}{
		{"默认json", "", FormatJSON, false},
		{"md别名", "md", FormatMarkdown, false},
		{"yml别名", "YML", FormatYAML, false},
		{"excel别名", "excel", FormatXLSX, false},
		{"html", " html ", FormatHTML, false},
		{"未知格式", "pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	got := FileName(sampleReport(), FormatMarkdown)
	if got != "testgall_20240120_150405.md" {
		t.Errorf("FileName() = %s", got)
	}
	if !FormatXLSX.IsBinary() || FormatJSON.IsBinary() {
		t.Error("只有xlsx是二进制格式")
	}
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONWriter(&buf).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded models.ScrapeReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("输出不是有效JSON: %v", err)
	}
	if decoded.GalleryID != "testgall" || len(decoded.UserStats) != 3 {
		t.Errorf("解码结果不匹配: %+v", decoded)
	}
	if !strings.Contains(buf.String(), "에이") {
		t.Error("非ASCII昵称不应被转义")
	}
}

func TestYAMLWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLWriter(&buf).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("输出不是有效YAML: %v", err)
	}
	if raw["galleryId"] != "testgall" || raw["totalPosts"] != 6 {
		t.Errorf("YAML字段不正确: %v", raw)
	}
	if raw["endDate"] != nil {
		t.Errorf("未设置的结束日期应为null, 得到 %v", raw["endDate"])
	}
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewMarkdownWriter(&buf, 2).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# testgall 画廊发帖统计",
		"发帖排行 (前2名)",
		"2024-01-01 ~ 不限",
		"`alpha`",
		"50.0%",
		"```mermaid",
		"pie",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("输出缺少 %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "`gamma`") {
		t.Error("排行表应只包含前2名")
	}
	if !strings.Contains(out, "1 页在多次重试后仍然失败") {
		t.Error("有跳过页时应输出警告")
	}
}

func TestMarkdownWriter_Empty(t *testing.T) {
	report := sampleReport()
	report.UserStats = nil
	report.TotalPosts = 0
	report.PagesSkipped = 0

	var buf bytes.Buffer
	if err := NewMarkdownWriter(&buf, 0).Write(report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), "没有找到任何帖子") {
		t.Errorf("空报告应给出提示, 得到:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "mermaid") {
		t.Error("空报告不应输出饼图")
	}
}

func TestHTMLWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewHTMLWriter(&buf, 2).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"<html", "echarts", "testgall 发帖统计", "alpha"} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML缺少 %q", want)
		}
	}
	if strings.Contains(out, "gamma") {
		t.Error("柱状图应只包含前2名")
	}
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewXLSXWriter(&buf).Write(sampleReport()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("无法读回工作簿: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(usersSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("期望表头+3行, 得到 %d 行", len(rows))
	}
	if rows[0][2] != "用户ID" {
		t.Errorf("表头不正确: %v", rows[0])
	}
	if rows[1][2] != "alpha" || rows[1][4] != "3" {
		t.Errorf("第一名不正确: %v", rows[1])
	}

	summary, err := f.GetRows(summarySheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if summary[0][1] != "testgall" {
		t.Errorf("汇总表不正确: %v", summary[0])
	}
}

func TestNewWriter(t *testing.T) {
	for _, format := range Formats {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(format, &buf, 10)
			if err != nil {
				t.Fatalf("NewWriter() error = %v", err)
			}
			if err := w.Write(sampleReport()); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if buf.Len() == 0 {
				t.Error("输出为空")
			}
		})
	}

	if _, err := NewWriter("pdf", &bytes.Buffer{}, 0); err == nil {
		t.Error("未知格式应返回错误")
	}
}
