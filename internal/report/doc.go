// Package report 将爬取报告写出为不同格式。
//
// 支持的格式:
//   - json: 与HTTP接口返回值相同的结构
//   - yaml: 同json字段
//   - markdown: 汇总表、用户排行表和发帖占比饼图(mermaid)
//   - html: 用户发帖数柱状图(go-echarts)
//   - xlsx: 汇总和用户统计两个工作表(excelize)
package report
