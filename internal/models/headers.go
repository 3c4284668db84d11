package models

import (
	"fmt"
	"net/http"
	"strings"
)

// CliHeaders 命令行 -H/--header 传入的头部列表
// 每项格式为 "Name: Value"
type CliHeaders []string

// Parse 将字符串列表解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("格式错误: 缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])

	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}

	return name, value, nil
}

// HeaderProvider 提供列表页请求使用的HTTP头部
// 浏览器会话在打开每个标签页时调用 GetHeaders
type HeaderProvider interface {
	// GetHeaders 返回按优先级合并后的头部(默认 < 配置 < 命令行)
	GetHeaders() (http.Header, error)
}

// StaticHeaders 固定头部集合,主要用于测试和服务模式
type StaticHeaders http.Header

// GetHeaders 实现HeaderProvider接口
func (h StaticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h).Clone(), nil
}

// HeaderPairs 将头部展开为 [name, value, name, value, ...] 形式
// 同名多值时只取第一个值
func HeaderPairs(h http.Header) []string {
	pairs := make([]string, 0, len(h)*2)
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		pairs = append(pairs, name, values[0])
	}
	return pairs
}

// HeaderConfig 头部配置文件结构 (configs/headers.yaml)
type HeaderConfig struct {
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}
