package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/report"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"github.com/olekukonko/tablewriter"
)

// emitReport 输出单个报告
//   - path为空: 文本格式写到标准输出,xlsx写到输出目录
//   - path为已存在的目录: 在目录中按画廊ID和时间命名
//   - 其他: 写到该文件
func emitReport(r *models.ScrapeReport, path string) error {
	format, err := report.ParseFormat(appConfig.Output.Format)
	if err != nil {
		return err
	}

	if path == "" {
		if format.IsBinary() {
			return writeReportFile(r, appConfig.Output.Dir)
		}
		w, err := report.NewWriter(format, os.Stdout, appConfig.Output.Top)
		if err != nil {
			return err
		}
		return w.Write(r)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return writeReportFile(r, path)
	}
	return writeReportTo(r, format, path)
}

// writeReportFile 在目录中写入报告文件
func writeReportFile(r *models.ScrapeReport, dir string) error {
	format, err := report.ParseFormat(appConfig.Output.Format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	return writeReportTo(r, format, filepath.Join(dir, report.FileName(r, format)))
}

func writeReportTo(r *models.ScrapeReport, format report.Format, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建报告文件失败: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w, err := report.NewWriter(format, f, appConfig.Output.Top)
	if err != nil {
		return err
	}
	if err := w.Write(r); err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}

	utils.Infof("📄 报告已保存: %s", path)
	return nil
}

// printSummary 打印统计摘要和前top名用户
func printSummary(w io.Writer, r *models.ScrapeReport, top int) {
	fmt.Fprintln(w, "\n==================================================")
	fmt.Fprintf(w, "📊 %s (%s) 发帖统计\n", r.GalleryID, r.GalleryType)
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, "✅ 爬取页数: %d\n", r.PagesScraped)
	if r.PagesSkipped > 0 {
		fmt.Fprintf(w, "❌ 跳过页数: %d\n", r.PagesSkipped)
	}
	fmt.Fprintf(w, "✅ 帖子总数: %d\n", r.TotalPosts)
	fmt.Fprintf(w, "✅ 用户数: %d\n", r.UniqueUsers)
	fmt.Fprintf(w, "⏱️  总耗时: %.2f秒\n", r.Duration)
	fmt.Fprintln(w, "==================================================")

	if len(r.UserStats) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("排名", "昵称", "用户ID", "IP", "帖子数")
	for i, u := range r.TopUsers(top) {
		_ = table.Append([]string{strconv.Itoa(i + 1), u.Nickname, u.UserID, u.IP, strconv.Itoa(u.Count)})
	}
	_ = table.Render()
}
