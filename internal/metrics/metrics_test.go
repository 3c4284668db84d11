package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observer(t *testing.T) {
	m := New()

	m.OnAttempt(1)
	m.OnAttempt(1)
	m.OnRetry(1, 1, fmt.Errorf("导航失败: %w", &models.StatusError{Status: 503}))
	m.OnPageDone(1, 50, 2*time.Second)
	m.OnAttempt(2)
	m.OnRetry(2, 1, errors.New("timeout"))
	m.OnPageFailed(2)

	if got := testutil.ToFloat64(m.attempts); got != 3 {
		t.Errorf("attempts = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("503")); got != 1 {
		t.Errorf("retries{503} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.retries.WithLabelValues("error")); got != 1 {
		t.Errorf("retries{error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.postsFound); got != 50 {
		t.Errorf("postsFound = %v, want 50", got)
	}
	if got := testutil.ToFloat64(m.pagesFailed); got != 1 {
		t.Errorf("pagesFailed = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.pageDuration); got != 1 {
		t.Errorf("pageDuration 应有1个序列, 得到 %d", got)
	}
}

func TestMetrics_CrawlStarted(t *testing.T) {
	m := New()

	done := m.CrawlStarted()
	if got := testutil.ToFloat64(m.crawlActive); got != 1 {
		t.Errorf("进行中任务 = %v, want 1", got)
	}
	done(nil)

	m.CrawlStarted()(errors.New("boom"))

	if got := testutil.ToFloat64(m.crawlActive); got != 0 {
		t.Errorf("结束后进行中任务 = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.crawls.WithLabelValues("success")); got != 1 {
		t.Errorf("crawls{success} = %v", got)
	}
	if got := testutil.ToFloat64(m.crawls.WithLabelValues("error")); got != 1 {
		t.Errorf("crawls{error} = %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.OnAttempt(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{"dcgallstat_page_attempts_total 1", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("输出缺少 %q", want)
		}
	}
}
