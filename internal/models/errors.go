package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL URL无法识别为DCInside画廊地址
	ErrInvalidURL = errors.New("无效的DCInside画廊URL")

	// ErrInvalidRequest 请求参数不合法
	ErrInvalidRequest = errors.New("无效的爬取请求")

	// ErrBatchedDateRange 批量策略不支持日期范围爬取
	ErrBatchedDateRange = errors.New("批量策略不支持日期范围爬取")
)

// CrawlError 单页抓取错误
// 记录出错页码,便于在警告与日志中定位
type CrawlError struct {
	Page    int
	Attempt int
	Err     error
}

// Error 实现error接口
func (e *CrawlError) Error() string {
	if e.Attempt > 0 {
		return fmt.Sprintf("第%d页抓取失败(第%d次尝试): %v", e.Page, e.Attempt, e.Err)
	}
	return fmt.Sprintf("第%d页抓取失败: %v", e.Page, e.Err)
}

// Unwrap 支持errors.Is/As
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// StatusError 服务器返回了需要重试的HTTP状态码
type StatusError struct {
	Status int
}

// Error 实现error接口
func (e *StatusError) Error() string {
	return fmt.Sprintf("服务器错误: HTTP %d", e.Status)
}

// IsServerBusy 判断状态码是否属于服务器过载类错误(500/503/504)
func IsServerBusy(status int) bool {
	return status == 500 || status == 503 || status == 504
}

// ValidationError 头部验证错误
type ValidationError struct {
	// Field 出错的字段 ("name" 或 "value")
	Field string

	HeaderName string
	Reason     string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
