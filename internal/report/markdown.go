package report

import (
	"io"
	"strconv"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// pieSlices 饼图最多显示的用户数,其余合并为"其他"
const pieSlices = 10

// MarkdownWriter 输出Markdown报告
type MarkdownWriter struct {
	output io.Writer
	top    int
}

// NewMarkdownWriter 创建MarkdownWriter
func NewMarkdownWriter(output io.Writer, top int) *MarkdownWriter {
	return &MarkdownWriter{output: output, top: top}
}

// Write 实现Writer接口
func (w *MarkdownWriter) Write(report *models.ScrapeReport) error {
	md := markdown.NewMarkdown(w.output)

	md.H1f("%s 画廊发帖统计", report.GalleryID)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"项目", "值"},
		Rows:   summaryRows(report),
	})
	md.PlainText("")

	if report.PagesSkipped > 0 {
		md.Warningf("有 %d 页在多次重试后仍然失败,统计结果可能不完整", report.PagesSkipped)
		md.PlainText("")
	}

	if len(report.UserStats) == 0 {
		md.Note("没有找到任何帖子")
		return md.Build()
	}

	w.writeRanking(md, report)
	w.writePieChart(md, report)

	return md.Build()
}

func (w *MarkdownWriter) writeRanking(md *markdown.Markdown, report *models.ScrapeReport) {
	users := report.TopUsers(w.top)
	if len(users) < len(report.UserStats) {
		md.H2f("发帖排行 (前%d名)", len(users))
	} else {
		md.H2("发帖排行")
	}
	md.PlainText("")

	rows := make([][]string, 0, len(users))
	for i, u := range users {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			u.Nickname,
			"`" + u.UserID + "`",
			u.IP,
			strconv.Itoa(u.Count),
			percent(u.Count, report.TotalPosts),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"排名", "昵称", "用户ID", "IP", "帖子数", "占比"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *models.ScrapeReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("发帖占比"),
		piechart.WithShowData(true),
	)

	rest := report.TotalPosts
	for _, u := range report.TopUsers(pieSlices) {
		chart.LabelAndIntValue(u.Nickname+" ("+u.UserID+")", uint64(u.Count))
		rest -= u.Count
	}
	if rest > 0 {
		chart.LabelAndIntValue("其他", uint64(rest))
	}

	md.H2("发帖占比")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func percent(n, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return strconv.FormatFloat(float64(n)*100/float64(total), 'f', 1, 64) + "%"
}
