package browser

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

// StaticSession 纯HTTP会话(Colly)
// 不执行JavaScript,样式表/图片/字体本来就不会被请求
type StaticSession struct {
	base    *colly.Collector
	headers models.HeaderProvider
}

// NewStaticSession 创建HTTP会话,所有标签页共享同一个Cookie罐
func NewStaticSession(opts Options) (*StaticSession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("创建Cookie罐失败: %w", err)
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.WithTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
	})
	c.SetCookieJar(jar)

	log.Debug().Msg("静态会话已创建(Colly)")
	return &StaticSession{base: c, headers: opts.Headers}, nil
}

// OpenPage 实现Session接口
func (s *StaticSession) OpenPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &staticPage{session: s}, nil
}

// Close 实现Session接口
func (s *StaticSession) Close() error {
	return nil
}

type staticPage struct {
	session *StaticSession
	headers http.Header
	html    string
}

func (p *staticPage) ConfigureForScraping(ctx context.Context) error {
	if p.session.headers == nil {
		return nil
	}
	h, err := p.session.headers.GetHeaders()
	if err != nil {
		return fmt.Errorf("获取HTTP头部失败: %w", err)
	}
	p.headers = h
	return nil
}

func (p *staticPage) Navigate(ctx context.Context, url string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := p.session.base.Clone()
	c.Context = ctx

	c.OnRequest(func(r *colly.Request) {
		for name, values := range p.headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	var (
		status  int
		bodyErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body, err := decodeBody(r.Body, r.Headers.Get("Content-Encoding"))
		if err != nil {
			bodyErr = err
			return
		}
		p.html = string(body)
	})

	if err := c.Visit(url); err != nil {
		return status, fmt.Errorf("请求失败: %w", err)
	}
	if bodyErr != nil {
		return status, fmt.Errorf("解码响应失败: %w", bodyErr)
	}
	return status, nil
}

// WaitForSelector 静态页面不会再变化,只检查一次
func (p *staticPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return fmt.Errorf("解析HTML失败: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("未找到元素: %s", selector)
	}
	return nil
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	return p.html, nil
}

func (p *staticPage) Close() error {
	p.html = ""
	return nil
}

// decodeBody 按Content-Encoding解压响应体
// Colly已经处理过gzip,这里只在仍能看到gzip魔数时再解一次
func decodeBody(body []byte, contentEncoding string) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)

	case "deflate":
		// HTTP的deflate通常是zlib封装,少数服务器发送裸deflate
		if reader, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer reader.Close()
			return io.ReadAll(reader)
		}
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return io.ReadAll(reader)

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		log.Warn().Msgf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

var (
	_ Session = (*StaticSession)(nil)
	_ Page    = (*staticPage)(nil)
)
