package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/browser"
	"github.com/RecoveryAshes/DCGallStat/internal/crawler"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
)

// ReportStore 报告持久化
type ReportStore interface {
	Save(ctx context.Context, report *models.ScrapeReport) error
}

// Runner 爬取任务协调器
// 持有浏览器会话,可以被多个请求并发使用(服务模式)
type Runner struct {
	config  models.CrawlConfig
	session *lazySession
	fetcher *crawler.Fetcher
	store   ReportStore
}

// NewRunner 创建协调器
// observer 和 store 可以为nil;浏览器在第一次抓取时才启动
func NewRunner(config models.CrawlConfig, headerProvider models.HeaderProvider, observer crawler.Observer, store ReportStore) *Runner {
	session := &lazySession{
		opts:    browser.OptionsFromConfig(config, headerProvider),
		factory: browser.NewSession,
	}
	return &Runner{
		config:  config,
		session: session,
		fetcher: crawler.NewFetcher(session, crawler.FetcherConfigFrom(config), observer),
		store:   store,
	}
}

// Run 执行一次爬取
// streaming 为true时(SSE)总是顺序爬取,保证事件按页码顺序到达
func (r *Runner) Run(ctx context.Context, req models.CrawlRequest, sink models.ProgressSink, streaming bool) (*models.ScrapeReport, error) {
	c := crawler.NewCrawler(r.fetcher, r.config)

	report, err := c.Run(ctx, req, sink, streaming)
	if err != nil {
		return nil, err
	}

	if r.store != nil {
		if err := r.store.Save(ctx, report); err != nil {
			utils.Warnf("保存报告失败 [%s]: %v", report.ID, err)
		} else {
			utils.Debugf("报告已保存: %s", report.ID)
		}
	}

	return report, nil
}

// Close 关闭浏览器会话
func (r *Runner) Close() error {
	return r.session.Close()
}

// lazySession 第一次打开标签页时才创建底层会话
// 标签页报告浏览器崩溃时,只淘汰该标签页所属的会话;下一次打开标签页启动新会话,
// 被淘汰的会话等其余标签页全部关闭后再关闭
type lazySession struct {
	opts    browser.Options
	factory func(browser.Options) (browser.Session, error)

	mu      sync.Mutex
	current *sessionRef
}

// sessionRef 底层会话及其打开的标签页数,字段由lazySession.mu保护
type sessionRef struct {
	browser.Session
	open    int
	retired bool
	closed  bool
}

func (l *lazySession) acquire() (*sessionRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		utils.Infof("启动浏览器会话 (引擎: %s)", l.opts.Engine)
		session, err := l.factory(l.opts)
		if err != nil {
			return nil, fmt.Errorf("启动浏览器失败: %w", err)
		}
		l.current = &sessionRef{Session: session}
	}
	l.current.open++
	return l.current, nil
}

// OpenPage 实现browser.Session接口
func (l *lazySession) OpenPage(ctx context.Context) (browser.Page, error) {
	ref, err := l.acquire()
	if err != nil {
		return nil, err
	}

	page, err := ref.OpenPage(ctx)
	if err != nil {
		l.check(ref, err)
		l.release(ref)
		return nil, err
	}
	return &trackedPage{Page: page, owner: l, ref: ref}, nil
}

// check 出现浏览器崩溃时淘汰会话
func (l *lazySession) check(ref *sessionRef, err error) {
	if errors.Is(err, browser.ErrBrowserCrashed) {
		l.retire(ref)
	}
}

// retire 淘汰会话,只在它仍是当前会话时替换
func (l *lazySession) retire(ref *sessionRef) {
	l.mu.Lock()
	if l.current == ref {
		l.current = nil
		utils.Warn("浏览器会话已失效,将在下次打开页面时重新启动")
	}
	ref.retired = true
	closeNow := ref.open == 0 && !ref.closed
	if closeNow {
		ref.closed = true
	}
	l.mu.Unlock()

	if closeNow {
		l.closeRef(ref)
	}
}

func (l *lazySession) release(ref *sessionRef) {
	l.mu.Lock()
	ref.open--
	closeNow := ref.retired && ref.open == 0 && !ref.closed
	if closeNow {
		ref.closed = true
	}
	l.mu.Unlock()

	if closeNow {
		l.closeRef(ref)
	}
}

func (l *lazySession) closeRef(ref *sessionRef) {
	if err := ref.Session.Close(); err != nil {
		utils.Warnf("关闭失效的浏览器会话失败: %v", err)
	}
}

// Close 实现browser.Session接口,立即关闭当前会话
func (l *lazySession) Close() error {
	l.mu.Lock()
	ref := l.current
	l.current = nil
	if ref == nil || ref.closed {
		l.mu.Unlock()
		return nil
	}
	ref.retired = true
	ref.closed = true
	l.mu.Unlock()

	return ref.Session.Close()
}

// trackedPage 记录标签页所属的会话,关闭时归还
type trackedPage struct {
	browser.Page
	owner *lazySession
	ref   *sessionRef
	once  sync.Once
}

func (p *trackedPage) ConfigureForScraping(ctx context.Context) error {
	err := p.Page.ConfigureForScraping(ctx)
	p.owner.check(p.ref, err)
	return err
}

func (p *trackedPage) Navigate(ctx context.Context, url string, timeout time.Duration) (int, error) {
	status, err := p.Page.Navigate(ctx, url, timeout)
	p.owner.check(p.ref, err)
	return status, err
}

func (p *trackedPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.Page.WaitForSelector(ctx, selector, timeout)
	p.owner.check(p.ref, err)
	return err
}

func (p *trackedPage) HTML(ctx context.Context) (string, error) {
	html, err := p.Page.HTML(ctx)
	p.owner.check(p.ref, err)
	return html, err
}

func (p *trackedPage) Close() error {
	err := p.Page.Close()
	p.once.Do(func() { p.owner.release(p.ref) })
	return err
}
