package report

import (
	"fmt"
	"io"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "汇总"
	usersSheet   = "用户统计"
)

// XLSXWriter 输出Excel工作簿
type XLSXWriter struct {
	output io.Writer
}

// NewXLSXWriter 创建XLSXWriter
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{output: output}
}

// Write 实现Writer接口
func (w *XLSXWriter) Write(report *models.ScrapeReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}
	if _, err := f.NewSheet(usersSheet); err != nil {
		return fmt.Errorf("创建工作表失败: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("创建样式失败: %w", err)
	}

	if err := writeSummarySheet(f, report, bold); err != nil {
		return err
	}
	if err := writeUsersSheet(f, report, bold); err != nil {
		return err
	}

	if err := f.Write(w.output); err != nil {
		return fmt.Errorf("写入工作簿失败: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, report *models.ScrapeReport, style int) error {
	for i, row := range summaryRows(report) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &[]interface{}{row[0], row[1]}); err != nil {
			return fmt.Errorf("写入汇总失败: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(1, len(summaryRows(report)))
	if err := f.SetCellStyle(summarySheet, "A1", last, style); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 14); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "B", "B", 60)
}

func writeUsersSheet(f *excelize.File, report *models.ScrapeReport, style int) error {
	header := []interface{}{"排名", "昵称", "用户ID", "IP", "帖子数"}
	if err := f.SetSheetRow(usersSheet, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	if err := f.SetCellStyle(usersSheet, "A1", "E1", style); err != nil {
		return err
	}

	for i, u := range report.UserStats {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{i + 1, u.Nickname, u.UserID, u.IP, u.Count}
		if err := f.SetSheetRow(usersSheet, cell, &row); err != nil {
			return fmt.Errorf("写入第%d行失败: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(usersSheet, "B", "D", 20); err != nil {
		return err
	}
	// 冻结表头
	return f.SetPanes(usersSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
