package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/metrics"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"github.com/rs/zerolog/hlog"
)

// maxBodySize POST请求体上限
const maxBodySize = 1 << 20

// shutdownTimeout 优雅关闭等待时间
const shutdownTimeout = 10 * time.Second

// Scraper 执行爬取的对象(core.Runner)
type Scraper interface {
	Run(ctx context.Context, req models.CrawlRequest, sink models.ProgressSink, streaming bool) (*models.ScrapeReport, error)
}

// Server HTTP服务
type Server struct {
	scraper Scraper
	metrics *metrics.Metrics
	addr    string
}

// New 创建服务,m 可以为nil(此时不提供 /metrics)
func New(addr string, scraper Scraper, m *metrics.Metrics) *Server {
	return &Server{scraper: scraper, metrics: m, addr: addr}
}

// Handler 返回带中间件的路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /scrape", s.handleScrape)
	mux.HandleFunc("GET /scrape-stream", s.handleScrapeStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var h http.Handler = mux
	h = cors(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("请求完成")
	})(h)
	h = hlog.NewHandler(utils.Component("server"))(h)
	return h
}

// ListenAndServe 启动服务,ctx取消后优雅关闭
// 爬取可能持续数分钟,因此不设置写超时
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		utils.Infof("HTTP服务已启动: http://%s", displayAddr(s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		utils.Info("正在关闭HTTP服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// track 记录任务指标
func (s *Server) track() func(error) {
	if s.metrics == nil {
		return func(error) {}
	}
	return s.metrics.CrawlStarted()
}

// cors 允许浏览器前端跨域调用
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
