package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "reports.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testReport(id, gallery string, finished time.Time, users ...models.UserAggregate) *models.ScrapeReport {
	total := 0
	for _, u := range users {
		total += u.Count
	}
	return &models.ScrapeReport{
		ID:           id,
		Success:      true,
		Type:         models.ReportType,
		GalleryID:    gallery,
		GalleryType:  "mgallery",
		URL:          "https://gall.dcinside.com/mgallery/board/lists/?id=" + gallery,
		PagesScraped: 2,
		TotalPosts:   total,
		UniqueUsers:  len(users),
		UserStats:    users,
		StartedAt:    finished.Add(-time.Second),
		FinishedAt:   finished,
		Duration:     1,
	}
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "reports.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("数据库文件未创建: %v", err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %s", s.Path())
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	start := "2024-01-01"
	report := testReport("r1", "xyz", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		models.UserAggregate{UserID: "a", Nickname: "에이", IP: "1.2", Count: 3},
		models.UserAggregate{UserID: "b", Nickname: "비", Count: 1},
	)
	report.StartDate = &start

	if err := s.Save(ctx, report); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.GalleryID != "xyz" || got.TotalPosts != 4 || len(got.UserStats) != 2 {
		t.Errorf("读回的报告不匹配: %+v", got)
	}
	if got.StartDate == nil || *got.StartDate != start || got.EndDate != nil {
		t.Errorf("日期字段不匹配: %v %v", got.StartDate, got.EndDate)
	}
	if got.UserStats[0].Nickname != "에이" {
		t.Errorf("昵称不匹配: %v", got.UserStats[0])
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	if err := s.Save(ctx, testReport("r1", "xyz", at, models.UserAggregate{UserID: "a", Count: 1})); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, testReport("r1", "xyz", at, models.UserAggregate{UserID: "a", Count: 5})); err != nil {
		t.Fatalf("重复Save() error = %v", err)
	}

	list, err := s.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].TotalPosts != 5 {
		t.Errorf("重复保存应覆盖, 得到 %+v", list)
	}
}

func TestStore_SaveWithoutID(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(context.Background(), &models.ScrapeReport{}); err == nil {
		t.Error("空ID应返回错误")
	}
}

func TestStore_GetNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("期望ErrNotFound, 得到 %v", err)
	}
}

func TestStore_List(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, g := range []string{"xyz", "abc", "xyz"} {
		r := testReport(string(rune('a'+i)), g, base.Add(time.Duration(i)*time.Hour),
			models.UserAggregate{UserID: "u", Count: i + 1})
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		gallery string
		limit   int
		wantIDs []string
	}{
		{"全部按时间倒序", "", 0, []string{"c", "b", "a"}},
		{"按画廊过滤", "xyz", 0, []string{"c", "a"}},
		{"限制条数", "", 2, []string{"c", "b"}},
		{"不存在的画廊", "none", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.List(ctx, tt.gallery, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(list) != len(tt.wantIDs) {
				t.Fatalf("期望 %d 条, 得到 %d 条", len(tt.wantIDs), len(list))
			}
			for i, id := range tt.wantIDs {
				if list[i].ID != id {
					t.Errorf("第%d条 = %s, want %s", i, list[i].ID, id)
				}
			}
		})
	}
}

func TestStore_UserHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	reports := []*models.ScrapeReport{
		testReport("r2", "xyz", base.Add(2*time.Hour), models.UserAggregate{UserID: "a", Nickname: "new", Count: 7}),
		testReport("r1", "xyz", base, models.UserAggregate{UserID: "a", Nickname: "old", Count: 2}),
		testReport("r3", "abc", base.Add(time.Hour), models.UserAggregate{UserID: "a", Count: 9}),
	}
	for _, r := range reports {
		if err := s.Save(ctx, r); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	trend, err := s.UserHistory(ctx, "xyz", "a")
	if err != nil {
		t.Fatalf("UserHistory() error = %v", err)
	}
	if len(trend) != 2 {
		t.Fatalf("期望2条记录, 得到 %d", len(trend))
	}
	if trend[0].ReportID != "r1" || trend[0].Count != 2 || trend[1].Nickname != "new" {
		t.Errorf("用户历史不正确: %+v", trend)
	}
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testReport("r1", "xyz", time.Now(), models.UserAggregate{UserID: "a", Count: 1})); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("删除后应找不到报告, 得到 %v", err)
	}
	if trend, _ := s.UserHistory(ctx, "xyz", "a"); len(trend) != 0 {
		t.Errorf("用户统计应一并删除, 得到 %v", trend)
	}
	if err := s.Delete(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("重复删除应返回ErrNotFound, 得到 %v", err)
	}
}
