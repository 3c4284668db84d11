// Package server 提供HTTP接口。
//
// 路由:
//   - POST /scrape          JSON请求体,返回完整报告
//   - GET  /scrape-stream   SSE进度流,最后一个事件为 complete 或 error
//   - GET  /metrics         Prometheus指标
//   - GET  /healthz         存活检查
package server
