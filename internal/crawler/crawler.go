package crawler

import (
	"context"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/gallery"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
)

// Crawler 爬取调度器
// 负责请求校验、策略选择、事件发送和报告格式化
type Crawler struct {
	fetcher PageFetcher
	cfg     models.CrawlConfig

	// Dates 日期过滤模式使用的日期规范化器,零值使用本地时钟
	Dates utils.DateNormalizer

	now func() time.Time
}

// NewCrawler 创建爬取调度器
func NewCrawler(fetcher PageFetcher, cfg models.CrawlConfig) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		cfg:     cfg,
		now:     time.Now,
	}
}

// StrategyFor 根据请求选择分页策略
//   - 日期范围: DateBounded,永远顺序执行
//   - 流式调用: Sequential,保证逐页事件顺序
//   - 页数不超过阈值: Sequential
//   - 其余: Batched
func (c *Crawler) StrategyFor(req models.CrawlRequest, streaming bool) Strategy {
	if req.IsDateBounded() {
		return &DateBounded{Fetcher: c.fetcher, MaxPages: c.cfg.MaxDatePages}
	}
	if streaming || req.Pages <= c.cfg.SequentialThreshold {
		return &Sequential{Fetcher: c.fetcher}
	}
	return &Batched{Fetcher: c.fetcher, BatchSize: c.cfg.BatchSize}
}

// Run 执行一次爬取
// 输入无效时在任何抓取之前返回 ErrInvalidRequest / ErrInvalidURL;
// 致命错误时返回 *models.CrawlError,已抓取的部分结果丢弃
func (c *Crawler) Run(ctx context.Context, req models.CrawlRequest, sink models.ProgressSink, streaming bool) (*models.ScrapeReport, error) {
	if sink == nil {
		sink = models.NopSink{}
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		sink.Emit(models.NewEvent(models.EventError, err.Error()))
		return nil, err
	}

	desc, err := gallery.ResolveValid(req.URL)
	if err != nil {
		sink.Emit(models.NewEvent(models.EventError, "无效的画廊URL", "url", req.URL))
		return nil, err
	}

	startedAt := c.now()
	strategy := c.StrategyFor(req, streaming)
	job := Job{
		Gallery:   desc,
		Request:   req,
		Extractor: gallery.ForRequest(req, c.Dates),
		Sink:      sink,
	}

	log := utils.Logger.With().Str("gallery", desc.ID).Str("type", desc.Variant.String()).Str("strategy", strategy.Name()).Logger()
	log.Info().Msg("开始爬取")

	start := models.NewEvent(models.EventStart, "",
		"galleryId", desc.ID,
		"galleryType", desc.Variant.String(),
		"url", desc.SourceURL,
		"startDate", optionalDate(req.StartDate),
		"endDate", optionalDate(req.EndDate),
	)
	if !req.IsDateBounded() {
		start.Data["totalPages"] = req.Pages
	}
	sink.Emit(start)

	if req.IsDateBounded() {
		sink.Emit(models.NewEvent(models.EventInfo, "开始按日期范围爬取: "+dateLabel(req.StartDate)+" ~ "+dateLabel(req.EndDate)))
	} else {
		sink.Emit(models.NewEvent(models.EventInfo, "开始按页数爬取", "totalPages", req.Pages))
	}

	outcome, err := strategy.Crawl(ctx, job)
	if err != nil {
		log.Error().Err(err).Msg("爬取失败")
		sink.Emit(models.NewEvent(models.EventError, err.Error()))
		return nil, err
	}

	report := FormatReport(desc, outcome, req, startedAt, c.now())
	log.Info().
		Int("pages", report.PagesScraped).
		Int("skipped", report.PagesSkipped).
		Int("posts", report.TotalPosts).
		Int("users", report.UniqueUsers).
		Msg("爬取完成")

	sink.Emit(models.NewEvent(models.EventComplete, "", "report", report))
	return report, nil
}

func dateLabel(d string) string {
	if d == "" {
		return "不限"
	}
	return d
}
