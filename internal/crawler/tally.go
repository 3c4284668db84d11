package crawler

import "github.com/RecoveryAshes/DCGallStat/internal/models"

// Tally 用户发帖计数器
// 只在爬取协程中使用,不需要加锁
type Tally struct {
	index      map[string]int // userID -> users下标
	users      []models.UserAggregate
	totalPosts int
}

// NewTally 创建空计数器
func NewTally() *Tally {
	return &Tally{index: make(map[string]int)}
}

// Add 合并一页的帖子
// 首次出现的用户创建记录(count=1),之后只增加计数,昵称和IP保留首次出现的值
func (t *Tally) Add(posts []models.PostRecord) {
	for _, p := range posts {
		if i, ok := t.index[p.UserID]; ok {
			t.users[i].Count++
		} else {
			t.index[p.UserID] = len(t.users)
			t.users = append(t.users, models.UserAggregate{
				UserID:   p.UserID,
				Nickname: p.Nickname,
				IP:       p.IP,
				Count:    1,
			})
		}
		t.totalPosts++
	}
}

// TotalPosts 已计入的帖子总数
func (t *Tally) TotalPosts() int { return t.totalPosts }

// UniqueUsers 已出现的用户数
func (t *Tally) UniqueUsers() int { return len(t.users) }

// Outcome 生成策略输出,用户按首次出现顺序排列
func (t *Tally) Outcome(pagesScraped, pagesSkipped int) models.CrawlOutcome {
	users := make([]models.UserAggregate, len(t.users))
	copy(users, t.users)
	return models.CrawlOutcome{
		Users:        users,
		TotalPosts:   t.totalPosts,
		PagesScraped: pagesScraped,
		PagesSkipped: pagesSkipped,
	}
}
