package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// 拦截后直接拒绝的资源类型
var blockedResourceTypes = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeStylesheet: true,
	proto.NetworkResourceTypeImage:      true,
	proto.NetworkResourceTypeFont:       true,
}

// RodSession 无头Chrome会话
// 所有标签页共享一个浏览器进程,同时打开的标签页数量受slots限制
type RodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	monitor  *ResourceMonitor
	headers  models.HeaderProvider

	slots     chan struct{}
	closeOnce sync.Once
}

// NewRodSession 启动浏览器
func NewRodSession(opts Options) (s *RodSession, err error) {
	defer recoverCrash("启动浏览器", &err)

	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-gpu").
		Set("blink-settings", "imagesEnabled=false")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	log.Debug().Msgf("浏览器已启动: %s", controlURL)

	monitor := NewResourceMonitor(opts.Resources)
	monitor.StartMonitoring(time.Second)

	maxTabs := monitor.CalculateMaxTabs()
	if opts.BatchSize > 0 && opts.BatchSize < maxTabs {
		maxTabs = opts.BatchSize
	}
	log.Debug().Msgf("标签页上限: %d (批量大小=%d, 资源上限=%d)", maxTabs, opts.BatchSize, monitor.CalculateMaxTabs())

	return &RodSession{
		launcher: l,
		browser:  browser,
		monitor:  monitor,
		headers:  opts.Headers,
		slots:    make(chan struct{}, maxTabs),
	}, nil
}

// MaxTabs 同时打开的标签页上限
func (s *RodSession) MaxTabs() int {
	return cap(s.slots)
}

// OpenPage 打开新标签页,达到上限时阻塞直到有标签页关闭或ctx结束
func (s *RodSession) OpenPage(ctx context.Context) (p Page, err error) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	release := func() { <-s.slots }
	defer func() {
		if err != nil {
			release()
		}
	}()
	defer recoverCrash("创建标签页", &err)

	if ok, reason := s.monitor.CheckResourceAvailability(); !ok {
		log.Warn().Msgf("资源紧张,仍继续打开标签页: %s", reason)
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		if s.browser.GetContext().Err() != nil {
			return nil, fmt.Errorf("创建标签页失败: %w", ErrBrowserCrashed)
		}
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	return &rodPage{page: page, headers: s.headers, release: release}, nil
}

// Close 关闭浏览器进程
func (s *RodSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.monitor.StopMonitoring()
		err = s.browser.Close()
		s.launcher.Cleanup()
		log.Debug().Msg("浏览器已关闭")
	})
	return err
}

type rodPage struct {
	page    *rod.Page
	headers models.HeaderProvider
	release func()

	router         *rod.HijackRouter
	restoreHeaders func()
	closeOnce      sync.Once
}

func (p *rodPage) ConfigureForScraping(ctx context.Context) (err error) {
	defer recoverCrash("配置标签页", &err)

	page := p.page.Context(ctx)

	if p.headers != nil {
		h, err := p.headers.GetHeaders()
		if err != nil {
			return fmt.Errorf("获取HTTP头部失败: %w", err)
		}
		if ua := h.Get("User-Agent"); ua != "" {
			if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
				UserAgent:      ua,
				AcceptLanguage: h.Get("Accept-Language"),
			}); err != nil {
				return fmt.Errorf("设置User-Agent失败: %w", err)
			}
		}
		extra := h.Clone()
		extra.Del("User-Agent")
		restore, err := page.SetExtraHeaders(models.HeaderPairs(extra))
		if err != nil {
			return fmt.Errorf("设置请求头失败: %w", err)
		}
		p.restoreHeaders = restore
	}

	router := page.HijackRequests()
	if err := router.Add("*", "", func(h *rod.Hijack) {
		if blockedResourceTypes[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	}); err != nil {
		return fmt.Errorf("设置请求拦截失败: %w", err)
	}
	go router.Run()
	p.router = router

	return nil
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) (status int, err error) {
	defer recoverCrash("页面导航", &err)

	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	restore := page.EnableDomain(&proto.NetworkEnable{})
	defer restore()

	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		status = e.Response.Status
		return true
	})

	if err := page.Navigate(url); err != nil {
		return 0, fmt.Errorf("导航失败: %w", err)
	}
	wait()

	if err := page.WaitLoad(); err != nil {
		return status, fmt.Errorf("等待页面加载失败: %w", err)
	}
	return status, nil
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (err error) {
	defer recoverCrash("等待元素", &err)

	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	_, err = page.Element(selector)
	return err
}

func (p *rodPage) HTML(ctx context.Context) (html string, err error) {
	defer recoverCrash("读取页面HTML", &err)
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Close() (err error) {
	p.closeOnce.Do(func() {
		defer p.release()
		defer recoverCrash("关闭标签页", &err)

		if p.router != nil {
			_ = p.router.Stop()
		}
		if p.restoreHeaders != nil {
			p.restoreHeaders()
		}
		err = p.page.Close()
	})
	return err
}

var (
	_ Session = (*RodSession)(nil)
	_ Page    = (*rodPage)(nil)
)
