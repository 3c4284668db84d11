package models

import (
	"encoding/json"
	"time"
)

// UserAggregate 单个用户在整个爬取过程中的发帖统计
type UserAggregate struct {
	UserID   string `json:"uid" yaml:"uid"`
	Nickname string `json:"nickname" yaml:"nickname"`
	IP       string `json:"ip" yaml:"ip"`
	Count    int    `json:"count" yaml:"count"`
}

// CrawlOutcome 爬取策略的输出
// Users 按首次出现顺序排列,格式化阶段依赖这一顺序做稳定排序
type CrawlOutcome struct {
	Users        []UserAggregate `json:"users"`
	TotalPosts   int             `json:"totalPosts"`
	PagesScraped int             `json:"pagesScraped"`
	PagesSkipped int             `json:"pagesSkipped"`
}

// ScrapeReport 最终爬取报告
type ScrapeReport struct {
	// 任务信息
	ID          string `json:"id" yaml:"id"`
	Success     bool   `json:"success" yaml:"success"`
	Type        string `json:"type" yaml:"type"`
	GalleryID   string `json:"galleryId" yaml:"galleryId"`
	GalleryType string `json:"galleryType" yaml:"galleryType"`
	URL         string `json:"url" yaml:"url"`

	// 范围
	PagesScraped int     `json:"pagesScraped" yaml:"pagesScraped"`
	PagesSkipped int     `json:"pagesSkipped" yaml:"pagesSkipped"`
	StartDate    *string `json:"startDate" yaml:"startDate"`
	EndDate      *string `json:"endDate" yaml:"endDate"`

	// 统计信息
	TotalPosts  int             `json:"totalPosts" yaml:"totalPosts"`
	UniqueUsers int             `json:"uniqueUsers" yaml:"uniqueUsers"`
	UserStats   []UserAggregate `json:"userStats" yaml:"userStats"`

	// 时间信息
	StartedAt  time.Time `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time `json:"finishedAt" yaml:"finishedAt"`
	Duration   float64   `json:"duration" yaml:"duration"` // 秒
}

// ReportType 报告类型标识
const ReportType = "dcgallery"

// TopUsers 返回发帖数最多的前n个用户,n<=0时返回全部
func (r *ScrapeReport) TopUsers(n int) []UserAggregate {
	if n <= 0 || n >= len(r.UserStats) {
		return r.UserStats
	}
	return r.UserStats[:n]
}

// ToJSON 序列化为JSON
func (r *ScrapeReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *ScrapeReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
