package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
)

// BatchCrawler 批量爬取多个画廊
// 每个画廊使用相同的页数/日期参数,按顺序依次执行
type BatchCrawler struct {
	runner        *Runner
	template      models.CrawlRequest
	batchDelay    time.Duration
	continueOnErr bool
}

// BatchResult 单个画廊的结果
type BatchResult struct {
	URL         string
	Success     bool
	Error       error
	Report      *models.ScrapeReport
	ProcessedAt time.Time
	Duration    float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalPosts    int
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchCrawler 创建批量爬取器
// template 中的URL会被忽略
func NewBatchCrawler(runner *Runner, template models.CrawlRequest, batchDelay int, continueOnErr bool) *BatchCrawler {
	return &BatchCrawler{
		runner:        runner,
		template:      template,
		batchDelay:    time.Duration(batchDelay) * time.Second,
		continueOnErr: continueOnErr,
	}
}

// CrawlBatch 依次爬取URL列表
// ctx取消时停止处理剩余URL并返回已有结果
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string, sink models.ProgressSink) (*BatchSummary, error) {
	utils.Infof("开始批量爬取: %d个画廊", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}
	startTime := time.Now()

	for i, targetURL := range urls {
		if err := ctx.Err(); err != nil {
			summary.TotalDuration = time.Since(startTime).Seconds()
			return summary, err
		}

		utils.Infof("[%d/%d] %s", i+1, len(urls), targetURL)

		result := bc.crawlSingleURL(ctx, targetURL, sink)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalPosts += result.Report.TotalPosts
		} else {
			summary.FailCount++
			utils.Errorf("爬取失败: %v", result.Error)

			if !bc.continueOnErr {
				utils.Warn("批量爬取中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个画廊...", bc.batchDelay.Seconds())
			select {
			case <-time.After(bc.batchDelay):
			case <-ctx.Done():
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)

	return summary, nil
}

func (bc *BatchCrawler) crawlSingleURL(ctx context.Context, targetURL string, sink models.ProgressSink) BatchResult {
	result := BatchResult{
		URL:         targetURL,
		ProcessedAt: time.Now(),
	}
	startTime := time.Now()

	req := bc.template
	req.URL = targetURL

	report, err := bc.runner.Run(ctx, req, sink, false)
	result.Duration = time.Since(startTime).Seconds()
	if err != nil {
		result.Error = fmt.Errorf("爬取失败: %w", err)
		return result
	}

	result.Success = true
	result.Report = report
	return result
}

// printSummary 打印批量爬取摘要
func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("批量爬取摘要")
	utils.Info("==================================================")
	utils.Infof("画廊总数: %d", summary.TotalURLs)
	utils.Infof("成功: %d", summary.SuccessCount)
	utils.Infof("失败: %d", summary.FailCount)
	utils.Infof("帖子总数: %d", summary.TotalPosts)
	utils.Infof("总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	if summary.FailCount > 0 {
		utils.Warn("失败的画廊:")
		for _, result := range summary.Results {
			if !result.Success {
				utils.Warnf("  - %s: %v", result.URL, result.Error)
			}
		}
	}
}
