package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/browser"
	"github.com/RecoveryAshes/DCGallStat/internal/gallery"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"golang.org/x/time/rate"
)

const (
	backoffBase = time.Second
	backoffMax  = 10 * time.Second
)

// PageFetcher 抓取单个列表页
// 重试耗尽时返回 Failed 结果和nil错误,只有无法继续爬取的错误才会返回error
type PageFetcher interface {
	Fetch(ctx context.Context, page int, pageURL string, ex gallery.Extractor) (models.PageResult, error)
}

// Observer 抓取过程观察者(指标采集)
type Observer interface {
	OnAttempt(page int)
	OnRetry(page, attempt int, err error)
	OnPageDone(page, posts int, elapsed time.Duration)
	OnPageFailed(page int)
}

type nopObserver struct{}

func (nopObserver) OnAttempt(int)                      {}
func (nopObserver) OnRetry(int, int, error)            {}
func (nopObserver) OnPageDone(int, int, time.Duration) {}
func (nopObserver) OnPageFailed(int)                   {}

// FetcherConfig 抓取器配置
type FetcherConfig struct {
	MaxRetries        int
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	RateLimit         float64 // 每秒导航次数,0表示不限制
}

// FetcherConfigFrom 从爬取配置生成抓取器配置
func FetcherConfigFrom(cfg models.CrawlConfig) FetcherConfig {
	return FetcherConfig{
		MaxRetries:        cfg.MaxRetries,
		NavigationTimeout: cfg.NavigationTimeoutDuration(),
		SelectorTimeout:   cfg.SelectorTimeoutDuration(),
		RateLimit:         cfg.RateLimit,
	}
}

// Fetcher 带重试和指数退避的列表页抓取器
type Fetcher struct {
	session  browser.Session
	cfg      FetcherConfig
	limiter  *rate.Limiter
	observer Observer

	// sleep 等待退避时间,ctx结束时提前返回
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher 创建抓取器,observer可以为nil
func NewFetcher(session browser.Session, cfg FetcherConfig, observer Observer) *Fetcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if observer == nil {
		observer = nopObserver{}
	}

	f := &Fetcher{
		session:  session,
		cfg:      cfg,
		observer: observer,
		sleep:    sleepContext,
	}
	if cfg.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return f
}

// Backoff 第retry次失败后的等待时间: min(1s*2^(retry-1), 10s)
func Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	d := backoffBase
	for i := 1; i < retry && d < backoffMax; i++ {
		d *= 2
	}
	return min(d, backoffMax)
}

// Fetch 实现PageFetcher接口
func (f *Fetcher) Fetch(ctx context.Context, page int, pageURL string, ex gallery.Extractor) (models.PageResult, error) {
	log := utils.Logger.With().Int("page", page).Str("url", pageURL).Logger()

	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.PageResult{}, &models.CrawlError{Page: page, Attempt: attempt, Err: err}
		}

		f.observer.OnAttempt(page)
		started := time.Now()

		result, err := f.attempt(ctx, pageURL, ex)
		if err == nil {
			result.Page = page
			f.observer.OnPageDone(page, len(result.Posts), time.Since(started))
			log.Debug().Int("posts", len(result.Posts)).Bool("found_older", result.FoundOlder).Msg("列表页抓取完成")
			return result, nil
		}

		if ctx.Err() != nil || errors.Is(err, browser.ErrBrowserCrashed) {
			return models.PageResult{}, &models.CrawlError{Page: page, Attempt: attempt, Err: err}
		}

		f.observer.OnRetry(page, attempt, err)
		log.Warn().Err(err).Msgf("列表页抓取失败 (第%d/%d次尝试)", attempt, f.cfg.MaxRetries)

		if attempt == f.cfg.MaxRetries {
			break
		}
		if err := f.sleep(ctx, Backoff(attempt)); err != nil {
			return models.PageResult{}, &models.CrawlError{Page: page, Attempt: attempt, Err: err}
		}
	}

	f.observer.OnPageFailed(page)
	log.Error().Msgf("已尝试%d次,跳过该页", f.cfg.MaxRetries)
	return models.FailedPage(page), nil
}

// attempt 单次抓取,标签页在所有路径上都会关闭
func (f *Fetcher) attempt(ctx context.Context, pageURL string, ex gallery.Extractor) (result models.PageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("抓取panic: %v: %w", r, browser.ErrBrowserCrashed)
		}
	}()

	page, err := f.session.OpenPage(ctx)
	if err != nil {
		return result, fmt.Errorf("打开标签页失败: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			utils.Debugf("关闭标签页失败: %v", cerr)
		}
	}()

	if err := page.ConfigureForScraping(ctx); err != nil {
		return result, fmt.Errorf("配置标签页失败: %w", err)
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return result, err
		}
	}

	status, err := page.Navigate(ctx, pageURL, f.cfg.NavigationTimeout)
	if err != nil {
		return result, err
	}
	if models.IsServerBusy(status) {
		return result, &models.StatusError{Status: status}
	}

	// 列表容器没出现不算错误,提取结果为空即可
	if err := page.WaitForSelector(ctx, gallery.ListContainerSelector, f.cfg.SelectorTimeout); err != nil {
		utils.Debugf("等待列表容器超时 [%s]: %v", pageURL, err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return result, fmt.Errorf("读取页面HTML失败: %w", err)
	}
	return gallery.ExtractHTML(ex, html)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
