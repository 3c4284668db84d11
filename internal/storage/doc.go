// Package storage 使用SQLite保存历史爬取报告。
//
// 每次成功的爬取写入一行 reports 记录(完整报告以JSON保存)和若干 user_counts 记录,
// 后者便于按画廊查询某个用户在多次爬取中的发帖变化。
package storage
