package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,例如 DCGALLSTAT_CRAWL_MAX_RETRIES
const EnvPrefix = "DCGALLSTAT"

// appName 用于XDG目录
const appName = "dcgallstat"

// Config 应用程序配置
type Config struct {
	Crawl   models.CrawlConfig `mapstructure:"crawl"`
	Logging LoggingConfig      `mapstructure:"logging"`
	Output  OutputConfig       `mapstructure:"output"`
	Server  ServerConfig       `mapstructure:"server"`
	Storage StorageConfig      `mapstructure:"storage"`
	Batch   BatchConfig        `mapstructure:"batch"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 报告输出配置
type OutputConfig struct {
	Format string `mapstructure:"format"` // json|markdown|yaml|html|xlsx
	Dir    string `mapstructure:"dir"`
	Top    int    `mapstructure:"top"` // 终端摘要显示的用户数
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StorageConfig 历史报告存储配置
type StorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // SQLite文件路径
}

// BatchConfig 批量处理配置
type BatchConfig struct {
	Delay           int  `mapstructure:"delay"` // 画廊之间的间隔(秒)
	ContinueOnError bool `mapstructure:"continue_on_error"`
}

// LoadConfig 加载配置文件
// 优先级: 默认值 < 配置文件 < DCGALLSTAT_* 环境变量
// configPath为空时依次搜索 ./configs, ., $XDG_CONFIG_HOME/dcgallstat
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: fmt.Errorf("读取配置文件失败: %w", err)}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Crawl.Validate(); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: err}
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	crawl := models.DefaultCrawlConfig()

	// 爬取配置默认值
	v.SetDefault("crawl.engine", string(crawl.Engine))
	v.SetDefault("crawl.headless", crawl.Headless)
	v.SetDefault("crawl.max_retries", crawl.MaxRetries)
	v.SetDefault("crawl.batch_size", crawl.BatchSize)
	v.SetDefault("crawl.sequential_threshold", crawl.SequentialThreshold)
	v.SetDefault("crawl.navigation_timeout", crawl.NavigationTimeout)
	v.SetDefault("crawl.selector_timeout", crawl.SelectorTimeout)
	v.SetDefault("crawl.rate_limit", crawl.RateLimit)
	v.SetDefault("crawl.max_date_pages", crawl.MaxDatePages)
	v.SetDefault("crawl.max_tabs_limit", crawl.MaxTabsLimit)
	v.SetDefault("crawl.safety_reserve_memory", crawl.SafetyReserveMemory)
	v.SetDefault("crawl.safety_threshold", crawl.SafetyThreshold)
	v.SetDefault("crawl.cpu_load_threshold", crawl.CPULoadThreshold)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.format", "json")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.top", 20)

	// 服务配置默认值
	v.SetDefault("server.addr", ":4321")

	// 存储配置默认值
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.path", filepath.Join(xdg.DataHome, appName, "reports.db"))

	// 批量处理默认值
	v.SetDefault("batch.delay", 1)
	v.SetDefault("batch.continue_on_error", true)
}

// GetCrawlConfig 从配置中提取爬取配置
func (c *Config) GetCrawlConfig() models.CrawlConfig {
	return c.Crawl
}

// LogConfig 生成日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CLIOverrides 命令行参数
// 数值为0/空字符串表示未指定,保留配置文件中的值
type CLIOverrides struct {
	Engine       string
	Headless     *bool
	MaxRetries   int
	BatchSize    int
	RateLimit    float64
	MaxDatePages int
	Format       string
	Top          int
	Save         *bool
	Addr         string
}

// MergeCLIFlags 合并命令行参数到配置,命令行优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) error {
	if o.Engine != "" {
		c.Crawl.Engine = models.EngineType(o.Engine)
	}
	if o.Headless != nil {
		c.Crawl.Headless = *o.Headless
	}
	if o.MaxRetries > 0 {
		c.Crawl.MaxRetries = o.MaxRetries
	}
	if o.BatchSize > 0 {
		c.Crawl.BatchSize = o.BatchSize
	}
	if o.RateLimit > 0 {
		c.Crawl.RateLimit = o.RateLimit
	}
	if o.MaxDatePages > 0 {
		c.Crawl.MaxDatePages = o.MaxDatePages
	}
	if o.Format != "" {
		c.Output.Format = o.Format
	}
	if o.Top > 0 {
		c.Output.Top = o.Top
	}
	if o.Save != nil {
		c.Storage.Enabled = *o.Save
	}
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}

	return c.Crawl.Validate()
}
