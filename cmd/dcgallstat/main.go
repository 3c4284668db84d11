package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/DCGallStat/internal/core"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/storage"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile       string
	headerConfigFile string
	verbose          bool
	logLevel         string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证配置文件

	// 爬取参数
	targetURL    string
	urlFile      string
	mode         string
	pages        int
	startDate    string
	endDate      string
	engine       string
	headless     bool
	maxRetries   int
	batchSize    int
	rateLimit    float64
	maxDatePages int

	// 输出参数
	format     string
	outputPath string
	top        int
	save       bool

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

// appConfig PersistentPreRunE中加载,子命令共用
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "dcgallstat",
	Short: "DCInside画廊发帖统计工具",
	Long: `DCGallStat - DCInside画廊发帖用户统计工具

爬取画廊列表页,按用户汇总发帖数,支持:
  • 按页数爬取 (页数较多时批量并发)
  • 按日期范围爬取 (自动判断停止页)
  • 无头Chrome或纯HTTP两种引擎
  • json / markdown / yaml / html / xlsx 报告
  • HTTP服务模式 (POST /scrape, SSE /scrape-stream)
  • SQLite历史记录

示例:
  # 爬取前5页
  dcgallstat -u "https://gall.dcinside.com/mgallery/board/lists/?id=xyz" -p 5

  # 按日期范围爬取并输出markdown
  dcgallstat -u "https://gall.dcinside.com/board/lists/?id=abc" --start 2024-01-01 --end 2024-01-31 --format markdown -o report.md

  # 不限日期,一直爬到没有帖子的页面
  dcgallstat -u "https://gall.dcinside.com/mini/abc" --mode dateRange

  # 自定义请求头
  dcgallstat -u URL -H "Cookie: PHPSESSID=xxx"

  # 启动HTTP服务
  dcgallstat serve --addr :4321

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env 中的 DCGALLSTAT_* 变量参与配置加载
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("加载.env失败: %w", err)
		}

		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		if err := config.MergeCLIFlags(cliOverrides(cmd)); err != nil {
			return fmt.Errorf("参数无效: %w", err)
		}
		if cmd.Flags().Changed("batch-delay") {
			config.Batch.Delay = batchDelay
		}
		if cmd.Flags().Changed("continue-on-error") {
			config.Batch.ContinueOnError = continueOnError
		}

		logConfig := config.LogConfig()
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
	RunE: runCrawl,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DCGallStat %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// cliOverrides 只收集用户显式指定的参数
func cliOverrides(cmd *cobra.Command) core.CLIOverrides {
	o := core.CLIOverrides{
		Engine:       engine,
		MaxRetries:   maxRetries,
		BatchSize:    batchSize,
		RateLimit:    rateLimit,
		MaxDatePages: maxDatePages,
		Format:       format,
		Top:          top,
	}
	flags := cmd.Flags()
	if flags.Changed("headless") {
		o.Headless = &headless
	}
	if flags.Changed("save") {
		o.Save = &save
	}
	if f := flags.Lookup("addr"); f != nil && f.Changed {
		o.Addr = f.Value.String()
	}
	return o
}

func runCrawl(cmd *cobra.Command, args []string) error {
	headerManager, err := core.NewHeaderManager(headerConfigFile, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return runValidateConfig(headerManager)
	}

	if targetURL == "" && urlFile == "" {
		return cmd.Help()
	}

	if err := ValidateFlags(targetURL, mode, pages, startDate, endDate, appConfig.Output.Format, appConfig.Output.Top); err != nil {
		return err
	}

	// Ctrl+C 取消爬取,已完成的批量结果仍会写出
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(appConfig)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := core.NewRunner(appConfig.GetCrawlConfig(), headerManager, nil, store)
	defer func() {
		if err := runner.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
	}()

	template := models.CrawlRequest{Mode: models.CrawlMode(mode), Pages: pages, StartDate: startDate, EndDate: endDate}
	sink := models.MultiSink(utils.NewProgressBarSink(nil), utils.NewLogSink())

	if urlFile != "" {
		return runBatch(ctx, runner, template, sink)
	}

	req := template
	req.URL, err = NormalizeURL(targetURL)
	if err != nil {
		return fmt.Errorf("无效的目标URL: %w", err)
	}

	report, err := runner.Run(ctx, req, sink, false)
	if err != nil {
		if ctx.Err() != nil {
			utils.Warn("收到中断信号,爬取已取消")
		}
		return fmt.Errorf("爬取失败: %w", err)
	}

	if err := emitReport(report, outputPath); err != nil {
		return err
	}
	printSummary(os.Stderr, report, appConfig.Output.Top)

	utils.Info("✨ 爬取任务完成!")
	return nil
}

func runBatch(ctx context.Context, runner *core.Runner, template models.CrawlRequest, sink models.ProgressSink) error {
	if err := ValidateURLFile(urlFile); err != nil {
		return err
	}
	urls, err := utils.ReadURLsFromFile(urlFile)
	if err != nil {
		return fmt.Errorf("读取URL文件失败: %w", err)
	}

	batch := core.NewBatchCrawler(runner, template, appConfig.Batch.Delay, appConfig.Batch.ContinueOnError)
	summary, err := batch.CrawlBatch(ctx, urls, sink)
	if summary != nil {
		// 批量模式每个画廊写一个文件
		dir := outputPath
		if dir == "" {
			dir = appConfig.Output.Dir
		}
		for _, result := range summary.Results {
			if !result.Success {
				continue
			}
			if werr := writeReportFile(result.Report, dir); werr != nil {
				utils.Errorf("写入报告失败 [%s]: %v", result.URL, werr)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("批量爬取中断: %w", err)
	}

	utils.Info("✨ 批量爬取任务完成!")
	return nil
}

func runValidateConfig(headerManager *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部: %s", headerManager.GetSafeHeaders())
	return nil
}

// openStore 未启用存储时返回nil
func openStore(cfg *core.Config) (core.ReportStore, func(), error) {
	if !cfg.Storage.Enabled {
		return nil, func() {}, nil
	}
	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("打开历史数据库失败: %w", err)
	}
	utils.Debugf("历史数据库: %s", store.Path())
	return store, func() { _ = store.Close() }, nil
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVar(&headerConfigFile, "header-config", "", "HTTP头部配置文件路径 (默认 configs/headers.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 爬取参数 (浏览器相关参数服务模式也使用)
	rootCmd.Flags().StringVarP(&targetURL, "url", "u", "", "画廊URL (必需,除非使用 --url-file)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含画廊URL列表的文件路径")
	rootCmd.Flags().StringVar(&mode, "mode", "", "爬取模式 (fixedPages|dateRange),默认根据是否指定日期判断")
	rootCmd.Flags().IntVarP(&pages, "pages", "p", 1, "爬取页数 (日期模式下忽略)")
	rootCmd.Flags().StringVar(&startDate, "start", "", "起始日期 YYYY-MM-DD")
	rootCmd.Flags().StringVar(&endDate, "end", "", "结束日期 YYYY-MM-DD")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "浏览器引擎 (rod|static)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "retries", 0, "单页最大尝试次数")
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0, "批量并发页数")
	rootCmd.PersistentFlags().Float64Var(&rateLimit, "rate", 0, "每秒最大导航次数")
	rootCmd.PersistentFlags().IntVar(&maxDatePages, "max-date-pages", 0, "日期模式最大页数")

	// 输出参数
	rootCmd.Flags().StringVar(&format, "format", "", "报告格式 (json|markdown|yaml|html|xlsx)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "报告输出路径 (文件或目录,文本格式默认输出到标准输出)")
	rootCmd.Flags().IntVar(&top, "top", 0, "终端摘要显示的用户数")
	rootCmd.PersistentFlags().BoolVar(&save, "save", false, "保存报告到历史数据库")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 1, "批量处理画廊间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	// 添加子命令
	rootCmd.AddCommand(versionCmd, serveCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
