package report

import (
	"fmt"
	"io"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// defaultChartUsers 未指定top时柱状图显示的用户数
const defaultChartUsers = 30

// HTMLWriter 输出带柱状图的HTML页面
type HTMLWriter struct {
	output io.Writer
	top    int
}

// NewHTMLWriter 创建HTMLWriter
func NewHTMLWriter(output io.Writer, top int) *HTMLWriter {
	if top <= 0 {
		top = defaultChartUsers
	}
	return &HTMLWriter{output: output, top: top}
}

// Write 实现Writer接口
func (w *HTMLWriter) Write(report *models.ScrapeReport) error {
	users := report.TopUsers(w.top)

	names := make([]string, 0, len(users))
	counts := make([]opts.BarData, 0, len(users))
	for _, u := range users {
		names = append(names, u.Nickname+"("+u.UserID+")")
		counts = append(counts, opts.BarData{Value: u.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: report.GalleryID + " 发帖统计",
			Width:     "1200px",
			Height:    "600px",
			Theme:     types.ThemeWesteros,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s 发帖排行 (前%d名)", report.GalleryID, len(users)),
			Subtitle: fmt.Sprintf("帖子 %d | 用户 %d | 页数 %d | 日期 %s",
				report.TotalPosts, report.UniqueUsers, report.PagesScraped, dateRange(report)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: 45, Interval: "0"},
		}),
	)
	bar.SetXAxis(names).AddSeries("帖子数", counts)

	if err := bar.Render(w.output); err != nil {
		return fmt.Errorf("渲染图表失败: %w", err)
	}
	return nil
}
