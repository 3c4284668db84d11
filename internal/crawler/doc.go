// Package crawler 实现画廊列表页的抓取、分页策略和用户发帖统计。
//
// 数据流: gallery.Resolve -> Strategy(循环调用 Fetcher -> Extractor -> Tally) -> FormatReport。
//
// 三种策略:
//   - Sequential: 固定页数,逐页抓取
//   - Batched: 固定页数,按批并发抓取,批内结果按页码顺序合并
//   - DateBounded: 日期范围,从第1页开始逐页抓取,直到遇到早于起始日期的页面
//
// 日期范围爬取永远不会并发执行,Batched 会直接拒绝日期范围请求。
package crawler
