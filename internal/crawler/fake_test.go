package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/browser"
)

// fakeResponse 单次导航的响应
type fakeResponse struct {
	status int
	html   string
	err    error
	panic  bool
}

// fakeSession 按URL返回预设响应的浏览器会话
// 同一URL的第n次导航使用第n个响应,超出后重复最后一个
type fakeSession struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	visits    map[string]int
	opened    int
	closed    int
	openErr   error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		responses: make(map[string][]fakeResponse),
		visits:    make(map[string]int),
	}
}

func (s *fakeSession) serve(url string, responses ...fakeResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[url] = responses
}

func (s *fakeSession) OpenPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened++
	return &fakePage{session: s}, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) next(url string) fakeResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.responses[url]
	if !ok || len(list) == 0 {
		return fakeResponse{status: 404, html: "<html><body></body></html>"}
	}
	i := s.visits[url]
	s.visits[url]++
	if i >= len(list) {
		i = len(list) - 1
	}
	return list[i]
}

func (s *fakeSession) visitCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[url]
}

func (s *fakeSession) counts() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

type fakePage struct {
	session *fakeSession
	current fakeResponse
}

func (p *fakePage) ConfigureForScraping(context.Context) error { return nil }

func (p *fakePage) Navigate(ctx context.Context, url string, _ time.Duration) (int, error) {
	p.current = p.session.next(url)
	if p.current.panic {
		panic("cdp连接断开")
	}
	if p.current.err != nil {
		return 0, p.current.err
	}
	return p.current.status, nil
}

func (p *fakePage) WaitForSelector(context.Context, string, time.Duration) error {
	if !strings.Contains(p.current.html, "listwrap2") {
		return fmt.Errorf("等待超时")
	}
	return nil
}

func (p *fakePage) HTML(context.Context) (string, error) { return p.current.html, nil }

func (p *fakePage) Close() error {
	p.session.mu.Lock()
	defer p.session.mu.Unlock()
	p.session.closed++
	return nil
}

// row 列表页中的一行
type row struct {
	uid  string
	nick string
	date string // YYYY-MM-DD
}

// listPage 生成只包含给定行的列表页
func listPage(rows ...row) string {
	var b strings.Builder
	b.WriteString(`<html><body><table><tbody class="listwrap2">`)
	for i, r := range rows {
		date := r.date
		if date == "" {
			date = "2024-01-01"
		}
		fmt.Fprintf(&b, `<tr class="ub-content us-post" data-no="%d"><td class="gall_num">%d</td>`, i+1, i+1)
		fmt.Fprintf(&b, `<td class="gall_writer" data-uid="%s"><span class="nickname">%s</span></td>`, r.uid, r.nick)
		fmt.Fprintf(&b, `<td class="gall_date" title="%s 12:00:00">%s</td></tr>`, date, date[5:])
	}
	b.WriteString(`</tbody></table></body></html>`)
	return b.String()
}

func ok(html string) fakeResponse { return fakeResponse{status: 200, html: html} }

// sleepRecorder 记录退避时间,不真正等待
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestFetcher(session browser.Session, retries int) (*Fetcher, *sleepRecorder) {
	rec := &sleepRecorder{}
	f := NewFetcher(session, FetcherConfig{MaxRetries: retries, NavigationTimeout: time.Second}, nil)
	f.sleep = rec.sleep
	return f, rec
}
