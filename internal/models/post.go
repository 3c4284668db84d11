package models

// PostRecord 列表页中一行帖子的作者信息
// UserID 始终非空,没有作者标识的行在提取阶段已被丢弃
type PostRecord struct {
	UserID   string `json:"uid"`
	Nickname string `json:"nickname"`
	IP       string `json:"ip"`
	Date     string `json:"date,omitempty"` // 仅日期过滤模式下填充(YYYY-MM-DD)
}

// PageResult 单页抓取结果
// 两种提取模式共用同一结构:
//   - 无条件模式: FoundOlder 恒为 false
//   - 日期过滤模式: FoundOlder 表示本页出现了早于起始日期的帖子(即使该帖子未计入 Posts)
//
// Failed 为抓取器在重试耗尽后返回的失败标记,具体含义由爬取策略决定
type PageResult struct {
	Page       int          `json:"page"`
	Posts      []PostRecord `json:"posts"`
	FoundOlder bool         `json:"foundOlderDate"`
	Failed     bool         `json:"failed"`
}

// FailedPage 构造失败标记结果
func FailedPage(page int) PageResult {
	return PageResult{Page: page, Failed: true}
}
