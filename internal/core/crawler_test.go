package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/browser"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

// stubSession 所有URL返回同一个列表页,crash为true时导航返回ErrBrowserCrashed
type stubSession struct {
	html   string
	crash  bool
	closed bool
}

func (s *stubSession) OpenPage(context.Context) (browser.Page, error) { return &stubPage{s: s}, nil }
func (s *stubSession) Close() error                                   { s.closed = true; return nil }

type stubPage struct{ s *stubSession }

func (p *stubPage) ConfigureForScraping(context.Context) error { return nil }
func (p *stubPage) Navigate(context.Context, string, time.Duration) (int, error) {
	if p.s.crash {
		return 0, browser.ErrBrowserCrashed
	}
	return 200, nil
}
func (p *stubPage) WaitForSelector(context.Context, string, time.Duration) error { return nil }
func (p *stubPage) HTML(context.Context) (string, error)                       { return p.s.html, nil }
func (p *stubPage) Close() error                                               { return nil }

func listHTML(uids ...string) string {
	var b strings.Builder
	b.WriteString(`<table><tbody class="listwrap2">`)
	for _, uid := range uids {
		fmt.Fprintf(&b, `<tr class="ub-content"><td class="gall_writer" data-uid="%s"><span class="nickname">%s</span></td><td class="gall_date" title="2024-01-01 00:00:00">01.01</td></tr>`, uid, uid)
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// memoryStore 记录保存的报告
type memoryStore struct {
	mu      sync.Mutex
	reports []*models.ScrapeReport
}

func (m *memoryStore) Save(_ context.Context, r *models.ScrapeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return nil
}

func newStubRunner(t *testing.T, session *stubSession, store ReportStore) (*Runner, *int) {
	t.Helper()
	cfg := models.DefaultCrawlConfig()
	cfg.MaxRetries = 1
	r := NewRunner(cfg, models.StaticHeaders{}, nil, store)

	launches := 0
	r.session.factory = func(browser.Options) (browser.Session, error) {
		launches++
		return session, nil
	}
	return r, &launches
}

const galleryURL = "https://gall.dcinside.com/mgallery/board/lists/?id=xyz"

func TestRunner_Run(t *testing.T) {
	store := &memoryStore{}
	r, launches := newStubRunner(t, &stubSession{html: listHTML("a", "b", "a")}, store)

	report, err := r.Run(context.Background(), models.CrawlRequest{URL: galleryURL, Pages: 2}, nil, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.GalleryID != "xyz" || report.GalleryType != "mgallery" {
		t.Errorf("画廊信息不正确: %+v", report)
	}
	if report.TotalPosts != 6 || report.UniqueUsers != 2 || report.UserStats[0].UserID != "a" || report.UserStats[0].Count != 4 {
		t.Errorf("统计不正确: %+v", report)
	}
	if len(store.reports) != 1 || store.reports[0] != report {
		t.Errorf("报告应被保存")
	}

	// 会话复用
	if _, err := r.Run(context.Background(), models.CrawlRequest{URL: galleryURL, Pages: 1}, nil, true); err != nil {
		t.Fatalf("第二次Run() error = %v", err)
	}
	if *launches != 1 {
		t.Errorf("浏览器应只启动一次, 实际 %d 次", *launches)
	}
}

func TestRunner_InvalidURLDoesNotLaunchBrowser(t *testing.T) {
	r, launches := newStubRunner(t, &stubSession{}, nil)

	_, err := r.Run(context.Background(), models.CrawlRequest{URL: "https://example.com"}, nil, false)
	if !errors.Is(err, models.ErrInvalidURL) {
		t.Fatalf("期望ErrInvalidURL, 得到 %v", err)
	}
	if *launches != 0 {
		t.Errorf("无效输入不应启动浏览器")
	}
}

func TestRunner_CrashResetsSession(t *testing.T) {
	session := &stubSession{crash: true}
	r, launches := newStubRunner(t, session, nil)

	_, err := r.Run(context.Background(), models.CrawlRequest{URL: galleryURL, Pages: 1}, nil, false)
	if !errors.Is(err, browser.ErrBrowserCrashed) {
		t.Fatalf("期望ErrBrowserCrashed, 得到 %v", err)
	}
	if !session.closed {
		t.Error("崩溃后应关闭会话")
	}

	session.crash = false
	session.html = listHTML("a")
	if _, err := r.Run(context.Background(), models.CrawlRequest{URL: galleryURL, Pages: 1}, nil, false); err != nil {
		t.Fatalf("重启后Run() error = %v", err)
	}
	if *launches != 2 {
		t.Errorf("崩溃后应重新启动浏览器, 启动次数 %d", *launches)
	}
}

func TestLazySession_CrashRetiresOnlyOwnSession(t *testing.T) {
	first, second := &stubSession{}, &stubSession{}
	sessions := []*stubSession{first, second}
	l := &lazySession{factory: func(browser.Options) (browser.Session, error) {
		s := sessions[0]
		sessions = sessions[1:]
		return s, nil
	}}
	ctx := context.Background()

	// 两个请求共用第一个浏览器
	p1, err := l.OpenPage(ctx)
	if err != nil {
		t.Fatalf("OpenPage() error = %v", err)
	}
	p2, _ := l.OpenPage(ctx)

	first.crash = true
	if _, err := p2.Navigate(ctx, galleryURL, time.Second); !errors.Is(err, browser.ErrBrowserCrashed) {
		t.Fatalf("期望ErrBrowserCrashed, 得到 %v", err)
	}
	_ = p2.Close()
	if first.closed {
		t.Fatal("仍有标签页使用时不应关闭会话")
	}

	// 崩溃后新标签页使用新浏览器
	p3, _ := l.OpenPage(ctx)
	if p3.(*trackedPage).ref.Session != second {
		t.Fatal("崩溃后应启动新会话")
	}

	// 旧会话上的标签页随后也报告崩溃,不应影响新会话
	_, _ = p1.Navigate(ctx, galleryURL, time.Second)
	if l.current == nil || l.current.Session != second {
		t.Error("旧会话的崩溃不应淘汰新会话")
	}

	_ = p1.Close()
	if !first.closed {
		t.Error("最后一个标签页关闭后应关闭旧会话")
	}
	_ = p3.Close()
	if second.closed {
		t.Error("当前会话不应被关闭")
	}

	if err := l.Close(); err != nil || !second.closed {
		t.Errorf("Close() 应关闭当前会话, err = %v", err)
	}
}

func TestRunner_LaunchFailure(t *testing.T) {
	cfg := models.DefaultCrawlConfig()
	cfg.MaxRetries = 1
	r := NewRunner(cfg, models.StaticHeaders{}, nil, nil)
	r.session.factory = func(browser.Options) (browser.Session, error) {
		return nil, errors.New("找不到Chrome")
	}

	// 启动失败按普通页面失败处理,重试耗尽后该页计为空页
	report, err := r.Run(context.Background(), models.CrawlRequest{URL: galleryURL, Pages: 1}, nil, false)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.PagesScraped != 1 || report.PagesSkipped != 1 || report.TotalPosts != 0 {
		t.Errorf("报告不正确: %+v", report)
	}
}

func TestBatchCrawler_CrawlBatch(t *testing.T) {
	tests := []struct {
		name          string
		continueOnErr bool
		wantResults   int
		wantSuccess   int
	}{
		{"遇到错误继续", true, 3, 2},
		{"遇到错误停止", false, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newStubRunner(t, &stubSession{html: listHTML("a")}, nil)
			bc := NewBatchCrawler(r, models.CrawlRequest{Pages: 1}, 0, tt.continueOnErr)

			urls := []string{galleryURL, "https://example.com/bad", "https://gall.dcinside.com/mini/other"}
			summary, err := bc.CrawlBatch(context.Background(), urls, nil)
			if err != nil {
				t.Fatalf("CrawlBatch() error = %v", err)
			}
			if len(summary.Results) != tt.wantResults || summary.SuccessCount != tt.wantSuccess {
				t.Errorf("摘要不正确: %+v", summary)
			}
			if summary.Results[1].Success || !errors.Is(summary.Results[1].Error, models.ErrInvalidURL) {
				t.Errorf("第2个URL应失败: %+v", summary.Results[1])
			}
			if summary.TotalPosts != tt.wantSuccess {
				t.Errorf("TotalPosts = %d", summary.TotalPosts)
			}
		})
	}
}

func TestBatchCrawler_Cancelled(t *testing.T) {
	r, _ := newStubRunner(t, &stubSession{html: listHTML("a")}, nil)
	bc := NewBatchCrawler(r, models.CrawlRequest{Pages: 1}, 0, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := bc.CrawlBatch(ctx, []string{galleryURL, galleryURL}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望context.Canceled, 得到 %v", err)
	}
	if len(summary.Results) != 0 {
		t.Errorf("取消后不应处理URL")
	}
}
