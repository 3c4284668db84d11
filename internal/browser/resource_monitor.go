package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 根据可用内存和CPU负载计算允许同时打开的标签页数量
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 最近一次采样的系统可用内存(字节)
	availableMemory uint64
	totalMemory     uint64
	lastCPUUsage    float64
	mu              sync.RWMutex

	cancelFunc context.CancelFunc
	isRunning  bool
	runMu      sync.Mutex
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SafetyThreshold     int64 // 安全阈值(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200视为禁用
	MaxTabsLimit        int   // 绝对最大标签页数
	TabMemoryUsage      int64 // 单个标签页平均内存消耗(字节)
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64
	AvailableMemory int64 // 扣除安全保留后的可用内存(字节)
	MemoryPressure  string
}

// memorySampler 读取系统内存,测试中可以替换
var memorySampler = func() (total, available uint64, err error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}
	return vm.Total, vm.Available, nil
}

// cpuSampler 读取CPU使用率,测试中可以替换
var cpuSampler = func() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// NewResourceMonitor 创建资源监控器并立即采样一次
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage == 0 {
		config.TabMemoryUsage = 100 * 1024 * 1024 // 100MB
	}
	if config.MaxTabsLimit <= 0 {
		config.MaxTabsLimit = 20
	}

	rm := &ResourceMonitor{config: config}
	rm.sample()

	log.Info().Msgf("系统总内存: %.2f GB, 可用: %.2f GB",
		float64(rm.totalMemory)/(1024*1024*1024), float64(rm.availableMemory)/(1024*1024*1024))
	return rm
}

func (rm *ResourceMonitor) sample() {
	total, available, err := memorySampler()
	if err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值")
		total, available = 4*1024*1024*1024, 2*1024*1024*1024
	}

	usage, err := cpuSampler()
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
	}

	rm.mu.Lock()
	rm.totalMemory = total
	rm.availableMemory = available
	rm.lastCPUUsage = usage
	rm.mu.Unlock()
}

// StartMonitoring 启动后台周期采样(幂等)
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.sample()
			}
		}
	}()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.runMu.Lock()
	defer rm.runMu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

func (rm *ResourceMonitor) usableMemory() int64 {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return int64(rm.availableMemory) - rm.config.SafetyReserveMemory
}

// CalculateMaxTabs 计算当前允许的最大标签页数
// 取内存上限、CPU核数和配置上限三者的最小值,至少为1
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	usable := rm.usableMemory()

	maxTabsByMemory := 1
	if usable > rm.config.SafetyThreshold {
		maxTabsByMemory = int((usable - rm.config.SafetyThreshold) / rm.config.TabMemoryUsage)
	}

	result := min(maxTabsByMemory, runtime.NumCPU(), rm.config.MaxTabsLimit)
	if result < 1 {
		result = 1
	}
	return result
}

// CheckResourceAvailability 检查当前资源是否允许再打开一个标签页
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	usable := rm.usableMemory()
	if usable < rm.config.SafetyThreshold {
		usableMB := usable / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),标签页创建受限", usableMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", usableMB)
	}

	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 200 {
		rm.mu.RLock()
		usage := rm.lastCPUUsage
		rm.mu.RUnlock()
		if usage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
		}
	}

	return true, ""
}

// GetMemoryStatus 获取当前内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	usable := rm.usableMemory()

	var pressure string
	switch usableMB := usable / (1024 * 1024); {
	case usableMB < 200:
		pressure = "emergency"
	case usableMB < 300:
		pressure = "critical"
	case usableMB < 500:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	rm.mu.RLock()
	total := rm.totalMemory
	rm.mu.RUnlock()

	return MemoryStatus{
		TotalMemory:     total,
		AvailableMemory: usable,
		MemoryPressure:  pressure,
	}
}
