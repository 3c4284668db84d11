package crawler

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/DCGallStat/internal/gallery"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"golang.org/x/sync/errgroup"
)

// maxConsecutiveFailures 日期模式下连续失败页数上限,超过后停止爬取
const maxConsecutiveFailures = 10

// Job 单次爬取任务
type Job struct {
	Gallery   models.GalleryDescriptor
	Request   models.CrawlRequest
	Extractor gallery.Extractor
	Sink      models.ProgressSink
}

func (j Job) emit(event models.ProgressEvent) {
	if j.Sink != nil {
		j.Sink.Emit(event)
	}
}

// Strategy 分页策略
type Strategy interface {
	Name() string
	Crawl(ctx context.Context, job Job) (models.CrawlOutcome, error)
}

// Sequential 固定页数,逐页抓取
// 重试耗尽的页面按空页计入,PagesScraped 始终等于请求页数
type Sequential struct {
	Fetcher PageFetcher
}

// Name 实现Strategy接口
func (s *Sequential) Name() string { return "sequential" }

// Crawl 实现Strategy接口
func (s *Sequential) Crawl(ctx context.Context, job Job) (models.CrawlOutcome, error) {
	total := job.Request.Pages
	tally := NewTally()
	failed := 0

	for page := 1; page <= total; page++ {
		if err := ctx.Err(); err != nil {
			return models.CrawlOutcome{}, &models.CrawlError{Page: page, Err: err}
		}

		job.emit(progressEvent(page, total, tally))

		result, err := s.Fetcher.Fetch(ctx, page, gallery.BuildPageURL(job.Gallery, page), job.Extractor)
		if err != nil {
			return models.CrawlOutcome{}, err
		}
		if result.Failed {
			failed++
			job.emit(skipEvent(page))
		}

		tally.Add(result.Posts)
		job.emit(pageCompleteEvent(page, len(result.Posts), tally))
	}

	return tally.Outcome(total, failed), nil
}

// Batched 固定页数,按批并发抓取
// 批内页面同时抓取,全部完成后按页码顺序合并,结果与 Sequential 一致
type Batched struct {
	Fetcher   PageFetcher
	BatchSize int
}

// Name 实现Strategy接口
func (b *Batched) Name() string { return "batched" }

// Crawl 实现Strategy接口
func (b *Batched) Crawl(ctx context.Context, job Job) (models.CrawlOutcome, error) {
	if job.Request.IsDateBounded() {
		return models.CrawlOutcome{}, models.ErrBatchedDateRange
	}

	size := max(b.BatchSize, 1)
	total := job.Request.Pages
	tally := NewTally()
	failed := 0

	for start := 1; start <= total; start += size {
		end := min(start+size-1, total)
		results := make([]models.PageResult, end-start+1)

		utils.Debugf("批量抓取第%d-%d页", start, end)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(size)
		for page := start; page <= end; page++ {
			job.emit(progressEvent(page, total, tally))

			pageURL := gallery.BuildPageURL(job.Gallery, page)
			g.Go(func() error {
				result, err := b.Fetcher.Fetch(gctx, page, pageURL, job.Extractor)
				if err != nil {
					return err
				}
				results[page-start] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return models.CrawlOutcome{}, err
		}

		for i, result := range results {
			page := start + i
			if result.Failed {
				failed++
				job.emit(skipEvent(page))
			}
			tally.Add(result.Posts)
			job.emit(pageCompleteEvent(page, len(result.Posts), tally))
		}
	}

	return tally.Outcome(total, failed), nil
}

// DateBounded 日期范围爬取
// 从第1页开始逐页抓取,停止条件:
//   - 有起始日期: 本页出现早于起始日期的帖子且没有范围内的帖子
//   - 无起始日期: 本页没有范围内的帖子
//
// 重试耗尽的页面跳过,不参与停止判断
type DateBounded struct {
	Fetcher PageFetcher

	// MaxPages 最多抓取的页码,0表示不限制
	MaxPages int
}

// Name 实现Strategy接口
func (d *DateBounded) Name() string { return "dateBounded" }

// Crawl 实现Strategy接口
func (d *DateBounded) Crawl(ctx context.Context, job Job) (models.CrawlOutcome, error) {
	tally := NewTally()
	processed, skipped, consecutive := 0, 0, 0

	for page := 1; ; page++ {
		if d.MaxPages > 0 && page > d.MaxPages {
			job.emit(models.NewEvent(models.EventWarning, fmt.Sprintf("已达到最大页数 %d,停止爬取", d.MaxPages)))
			break
		}
		if err := ctx.Err(); err != nil {
			return models.CrawlOutcome{}, &models.CrawlError{Page: page, Err: err}
		}

		job.emit(progressEvent(page, 0, tally))

		result, err := d.Fetcher.Fetch(ctx, page, gallery.BuildPageURL(job.Gallery, page), job.Extractor)
		if err != nil {
			return models.CrawlOutcome{}, err
		}

		if result.Failed {
			skipped++
			consecutive++
			job.emit(skipEvent(page))
			if consecutive >= maxConsecutiveFailures {
				job.emit(models.NewEvent(models.EventWarning, fmt.Sprintf("连续%d页抓取失败,停止爬取", consecutive)))
				break
			}
			continue
		}
		consecutive = 0

		tally.Add(result.Posts)
		processed++
		job.emit(pageCompleteEvent(page, len(result.Posts), tally))

		if len(result.Posts) > 0 {
			continue
		}
		if job.Request.StartDate != "" && result.FoundOlder {
			job.emit(models.NewEvent(models.EventInfo, "发现早于起始日期的帖子,停止爬取"))
			break
		}
		if job.Request.StartDate == "" {
			job.emit(models.NewEvent(models.EventInfo, "没有更多符合条件的帖子,停止爬取"))
			break
		}
	}

	return tally.Outcome(processed, skipped), nil
}

// progressEvent totalPages<=0 时不写入(日期模式页数未知)
func progressEvent(page, totalPages int, tally *Tally) models.ProgressEvent {
	var msg string
	if totalPages > 0 {
		msg = fmt.Sprintf("正在爬取第 %d/%d 页", page, totalPages)
	} else {
		msg = fmt.Sprintf("正在爬取第 %d 页", page)
	}
	event := models.NewEvent(models.EventProgress, msg,
		"currentPage", page,
		"totalPosts", tally.TotalPosts(),
		"uniqueUsers", tally.UniqueUsers(),
	)
	if totalPages > 0 {
		event.Data["totalPages"] = totalPages
	}
	return event
}

func pageCompleteEvent(page, postsFound int, tally *Tally) models.ProgressEvent {
	return models.NewEvent(models.EventPageComplete, "",
		"page", page,
		"postsFound", postsFound,
		"totalPosts", tally.TotalPosts(),
		"uniqueUsers", tally.UniqueUsers(),
	)
}

func skipEvent(page int) models.ProgressEvent {
	return models.NewEvent(models.EventWarning, fmt.Sprintf("第 %d 页抓取失败,已跳过", page), "page", page)
}
