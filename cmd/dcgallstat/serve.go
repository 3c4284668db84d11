package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/DCGallStat/internal/core"
	"github.com/RecoveryAshes/DCGallStat/internal/metrics"
	"github.com/RecoveryAshes/DCGallStat/internal/server"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	Long: `启动HTTP服务,浏览器在第一个请求到达时启动并在请求之间复用。

接口:
  POST /scrape          {"url": "...", "mode": "fixedPages", "pages": 5, "startDate": "", "endDate": ""}
  GET  /scrape-stream   ?url=...&mode=dateRange&pages=5&startDate=&endDate= (Server-Sent Events)
  GET  /metrics         Prometheus指标
  GET  /healthz         存活检查`,
	RunE: func(cmd *cobra.Command, args []string) error {
		headerManager, err := core.NewHeaderManager(headerConfigFile, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		store, closeStore, err := openStore(appConfig)
		if err != nil {
			return err
		}
		defer closeStore()

		m := metrics.New()
		runner := core.NewRunner(appConfig.GetCrawlConfig(), headerManager, m, store)
		defer func() {
			if err := runner.Close(); err != nil {
				utils.Warnf("关闭浏览器失败: %v", err)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.New(appConfig.Server.Addr, runner, m).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "监听地址 (默认 :4321)")
}
