package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// CrawlMode 爬取模式
type CrawlMode string

const (
	ModeFixedPages CrawlMode = "fixedPages" // 固定页数
	ModeDateRange  CrawlMode = "dateRange"  // 日期范围(页数不定)
)

// EngineType 浏览器引擎类型
type EngineType string

const (
	EngineRod    EngineType = "rod"    // 无头Chrome(go-rod)
	EngineStatic EngineType = "static" // 纯HTTP(Colly),不执行JS
)

var dateKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// CrawlRequest 单次爬取请求
type CrawlRequest struct {
	URL       string    `json:"url"`
	Mode      CrawlMode `json:"mode,omitempty"`
	Pages     int       `json:"pages,omitempty"`
	StartDate string    `json:"startDate,omitempty"`
	EndDate   string    `json:"endDate,omitempty"`
}

// Normalize 补全模式字段
// 未指定模式时,只要给出任一日期边界即视为日期范围模式
func (r *CrawlRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)

	if r.Mode == "" {
		if r.StartDate != "" || r.EndDate != "" {
			r.Mode = ModeDateRange
		} else {
			r.Mode = ModeFixedPages
		}
	}
	if r.Mode == ModeFixedPages && r.Pages == 0 {
		r.Pages = 1
	}
}

// Validate 验证请求参数
// URL能否解析为画廊由解析器负责,这里只做格式检查
func (r *CrawlRequest) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: URL不能为空", ErrInvalidRequest)
	}

	switch r.Mode {
	case ModeFixedPages:
		if r.Pages < 1 {
			return fmt.Errorf("%w: 页数必须大于等于1,当前值: %d", ErrInvalidRequest, r.Pages)
		}
		// 固定页数模式不做日期过滤,带日期的报告会与实际统计范围不符
		if r.StartDate != "" || r.EndDate != "" {
			return fmt.Errorf("%w: 固定页数模式不支持日期范围,请使用 dateRange 模式", ErrInvalidRequest)
		}
	case ModeDateRange:
	default:
		return fmt.Errorf("%w: 无效的爬取模式: %s (有效值: fixedPages, dateRange)", ErrInvalidRequest, r.Mode)
	}

	if r.StartDate != "" && !dateKeyPattern.MatchString(r.StartDate) {
		return fmt.Errorf("%w: 起始日期格式必须为YYYY-MM-DD,当前值: %s", ErrInvalidRequest, r.StartDate)
	}
	if r.EndDate != "" && !dateKeyPattern.MatchString(r.EndDate) {
		return fmt.Errorf("%w: 结束日期格式必须为YYYY-MM-DD,当前值: %s", ErrInvalidRequest, r.EndDate)
	}
	if r.StartDate != "" && r.EndDate != "" && r.StartDate > r.EndDate {
		return fmt.Errorf("%w: 起始日期 %s 晚于结束日期 %s", ErrInvalidRequest, r.StartDate, r.EndDate)
	}

	return nil
}

// IsDateBounded 是否为日期范围爬取
func (r *CrawlRequest) IsDateBounded() bool {
	return r.Mode == ModeDateRange
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Engine              EngineType `mapstructure:"engine" json:"engine"`                             // 浏览器引擎 (默认:rod)
	Headless            bool       `mapstructure:"headless" json:"headless"`                         // 无头模式 (默认:true)
	MaxRetries          int        `mapstructure:"max_retries" json:"max_retries"`                   // 单页最大尝试次数 (默认:5)
	BatchSize           int        `mapstructure:"batch_size" json:"batch_size"`                     // 批量并发页数 (默认:20)
	SequentialThreshold int        `mapstructure:"sequential_threshold" json:"sequential_threshold"` // 页数不超过该值时顺序爬取 (默认:3)
	NavigationTimeout   int        `mapstructure:"navigation_timeout" json:"navigation_timeout"`     // 页面导航超时(秒) (默认:60)
	SelectorTimeout     int        `mapstructure:"selector_timeout" json:"selector_timeout"`         // 等待列表容器超时(秒) (默认:10)
	RateLimit           float64    `mapstructure:"rate_limit" json:"rate_limit"`                     // 每秒最大导航次数,0表示不限制
	MaxDatePages        int        `mapstructure:"max_date_pages" json:"max_date_pages"`             // 日期模式最大页数,0表示不限制

	// 资源限制
	MaxTabsLimit        int `mapstructure:"max_tabs_limit" json:"max_tabs_limit"`               // 同时打开的标签页上限
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory" json:"safety_reserve_memory"` // 系统预留内存(MB)
	SafetyThreshold     int `mapstructure:"safety_threshold" json:"safety_threshold"`           // 可用内存阈值(MB)
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold" json:"cpu_load_threshold"`       // CPU负载阈值(%)
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Engine:              EngineRod,
		Headless:            true,
		MaxRetries:          5,
		BatchSize:           20,
		SequentialThreshold: 3,
		NavigationTimeout:   60,
		SelectorTimeout:     10,
		MaxTabsLimit:        20,
		SafetyReserveMemory: 1024,
		SafetyThreshold:     500,
		CPULoadThreshold:    80,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Engine != EngineRod && c.Engine != EngineStatic {
		return fmt.Errorf("无效的浏览器引擎: %s (有效值: rod, static)", c.Engine)
	}
	if c.MaxRetries < 1 || c.MaxRetries > 20 {
		return fmt.Errorf("最大尝试次数必须在1-20之间")
	}
	if c.BatchSize < 1 || c.BatchSize > 100 {
		return fmt.Errorf("批量大小必须在1-100之间")
	}
	if c.SequentialThreshold < 0 {
		return fmt.Errorf("顺序爬取阈值不能为负数")
	}
	if c.NavigationTimeout < 1 || c.NavigationTimeout > 600 {
		return fmt.Errorf("导航超时必须在1-600秒之间")
	}
	if c.SelectorTimeout < 0 || c.SelectorTimeout > 120 {
		return fmt.Errorf("等待超时必须在0-120秒之间")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("速率限制不能为负数")
	}
	if c.MaxDatePages < 0 {
		return fmt.Errorf("日期模式最大页数不能为负数")
	}
	return nil
}

// NavigationTimeoutDuration 导航超时
func (c *CrawlConfig) NavigationTimeoutDuration() time.Duration {
	return time.Duration(c.NavigationTimeout) * time.Second
}

// SelectorTimeoutDuration 等待列表容器超时
func (c *CrawlConfig) SelectorTimeoutDuration() time.Duration {
	return time.Duration(c.SelectorTimeout) * time.Second
}
