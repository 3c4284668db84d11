package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrBrowserCrashed 浏览器崩溃或连接断开,重试没有意义
var ErrBrowserCrashed = errors.New("浏览器崩溃")

// Session 浏览器会话,多个goroutine可以并发打开标签页
type Session interface {
	OpenPage(ctx context.Context) (Page, error)
	Close() error
}

// Page 单个标签页,只归一个抓取任务使用
type Page interface {
	// ConfigureForScraping 屏蔽样式表/图片/字体并应用请求头
	ConfigureForScraping(ctx context.Context) error

	// Navigate 导航到url,返回主文档的HTTP状态码(未知时为0)
	Navigate(ctx context.Context, url string, timeout time.Duration) (int, error)

	// WaitForSelector 等待元素出现,超时返回错误
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// HTML 返回当前DOM快照
	HTML(ctx context.Context) (string, error)

	Close() error
}

// Options 会话选项
type Options struct {
	Engine    models.EngineType
	Headless  bool
	BatchSize int
	Headers   models.HeaderProvider
	Resources ResourceMonitorConfig
}

// OptionsFromConfig 从爬取配置构造会话选项
func OptionsFromConfig(cfg models.CrawlConfig, headers models.HeaderProvider) Options {
	return Options{
		Engine:    cfg.Engine,
		Headless:  cfg.Headless,
		BatchSize: cfg.BatchSize,
		Headers:   headers,
		Resources: ResourceMonitorConfig{
			SafetyReserveMemory: int64(cfg.SafetyReserveMemory) * 1024 * 1024,
			SafetyThreshold:     int64(cfg.SafetyThreshold) * 1024 * 1024,
			CPULoadThreshold:    cfg.CPULoadThreshold,
			MaxTabsLimit:        cfg.MaxTabsLimit,
		},
	}
}

// NewSession 按引擎类型创建会话
func NewSession(opts Options) (Session, error) {
	switch opts.Engine {
	case models.EngineRod, "":
		return NewRodSession(opts)
	case models.EngineStatic:
		return NewStaticSession(opts)
	default:
		return nil, fmt.Errorf("不支持的浏览器引擎: %s", opts.Engine)
	}
}

// recoverCrash 把浏览器操作中的panic转换为ErrBrowserCrashed
func recoverCrash(op string, err *error) {
	if r := recover(); r != nil {
		log.Error().Str("op", op).Msgf("浏览器操作panic: %v", r)
		*err = fmt.Errorf("%s: %v: %w", op, r, ErrBrowserCrashed)
	}
}
