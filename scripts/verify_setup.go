package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

// minGoMinor 需要的最低Go版本 1.x
const minGoMinor = 25

func main() {
	fmt.Println("==============================================")
	fmt.Println("  DCGallStat 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	goVersion := runtime.Version()
	if goMinor(goVersion) >= minGoMinor {
		fmt.Printf("✅ Go版本: %s\n", goVersion)
	} else {
		fmt.Printf("⚠️  Go版本: %s (建议使用Go 1.%d+)\n", goVersion, minGoMinor)
	}

	// 检查操作系统
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 检查Chrome/Chromium (rod引擎)
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ 浏览器: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chrome/Chromium - rod引擎首次运行时会自动下载")
		fmt.Println("   也可以使用 --engine static 以纯HTTP方式爬取")
	}

	// 检查能否访问DCInside
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("https://gall.dcinside.com/")
	if err != nil {
		fmt.Printf("❌ 无法访问 gall.dcinside.com: %v\n", err)
		allOK = false
	} else {
		resp.Body.Close()
		fmt.Printf("✅ gall.dcinside.com 可访问 (HTTP %d)\n", resp.StatusCode)
	}

	// 检查项目结构
	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/dcgallstat",
		"internal/crawler",
		"internal/gallery",
		"internal/browser",
		"internal/models",
		"internal/utils",
	}

	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/dcgallstat' 构建项目")
		fmt.Println("  2. 运行 './dcgallstat --help' 查看帮助")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}

// goMinor 解析 go1.N[.x] 中的N,无法解析时返回0
func goMinor(version string) int {
	v := strings.TrimPrefix(version, "go1.")
	if i := strings.IndexAny(v, ".-+ "); i >= 0 {
		v = v[:i]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
