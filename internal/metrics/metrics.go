// Package metrics 采集爬取过程的Prometheus指标。
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dcgallstat"

// Metrics 指标集合,实现 crawler.Observer
// 每个实例使用独立的Registry,便于测试
type Metrics struct {
	registry *prometheus.Registry

	attempts     prometheus.Counter
	retries      *prometheus.CounterVec
	pagesFailed  prometheus.Counter
	pagesDone    prometheus.Counter
	postsFound   prometheus.Counter
	pageDuration prometheus.Histogram

	crawls      *prometheus.CounterVec
	crawlActive prometheus.Gauge
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_attempts_total",
			Help:      "列表页抓取尝试次数",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_retries_total",
			Help:      "列表页重试次数,按原因分类",
		}, []string{"reason"}),
		pagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_failed_total",
			Help:      "重试耗尽后仍失败的页数",
		}),
		pagesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_scraped_total",
			Help:      "成功抓取的页数",
		}),
		postsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_found_total",
			Help:      "提取到的帖子数",
		}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "单页从导航到提取完成的耗时",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawls_total",
			Help:      "爬取任务数,按结果分类",
		}, []string{"result"}),
		crawlActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "crawls_in_progress",
			Help:      "正在进行的爬取任务数",
		}),
	}

	m.registry.MustRegister(
		m.attempts, m.retries, m.pagesFailed, m.pagesDone,
		m.postsFound, m.pageDuration, m.crawls, m.crawlActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 底层Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnAttempt 实现 crawler.Observer
func (m *Metrics) OnAttempt(int) {
	m.attempts.Inc()
}

// OnRetry 实现 crawler.Observer
func (m *Metrics) OnRetry(_ int, _ int, err error) {
	m.retries.WithLabelValues(retryReason(err)).Inc()
}

// OnPageDone 实现 crawler.Observer
func (m *Metrics) OnPageDone(_ int, posts int, elapsed time.Duration) {
	m.pagesDone.Inc()
	m.postsFound.Add(float64(posts))
	m.pageDuration.Observe(elapsed.Seconds())
}

// OnPageFailed 实现 crawler.Observer
func (m *Metrics) OnPageFailed(int) {
	m.pagesFailed.Inc()
}

// CrawlStarted 记录任务开始,返回结束回调
func (m *Metrics) CrawlStarted() func(err error) {
	m.crawlActive.Inc()
	return func(err error) {
		m.crawlActive.Dec()
		if err != nil {
			m.crawls.WithLabelValues("error").Inc()
			return
		}
		m.crawls.WithLabelValues("success").Inc()
	}
}

// retryReason 重试原因标签: 服务器繁忙时为状态码,否则为 error
func retryReason(err error) string {
	var se *models.StatusError
	if errors.As(err, &se) {
		return strconv.Itoa(se.Status)
	}
	return "error"
}
