package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
	_ "modernc.org/sqlite" // SQLite驱动
)

// ErrNotFound 报告不存在
var ErrNotFound = errors.New("报告不存在")

// Store 历史报告存储
type Store struct {
	db   *sql.DB
	path string
}

// Summary 历史报告摘要(不含用户列表)
type Summary struct {
	ID           string    `json:"id"`
	GalleryID    string    `json:"galleryId"`
	GalleryType  string    `json:"galleryType"`
	StartDate    string    `json:"startDate,omitempty"`
	EndDate      string    `json:"endDate,omitempty"`
	PagesScraped int       `json:"pagesScraped"`
	PagesSkipped int       `json:"pagesSkipped"`
	TotalPosts   int       `json:"totalPosts"`
	UniqueUsers  int       `json:"uniqueUsers"`
	FinishedAt   time.Time `json:"finishedAt"`
	Duration     float64   `json:"duration"`
}

// UserTrend 某用户在一次爬取中的发帖数
type UserTrend struct {
	ReportID   string    `json:"reportId"`
	Nickname   string    `json:"nickname"`
	Count      int       `json:"count"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Open 打开或创建数据库文件
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite只支持单个写连接
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("启用WAL失败: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	gallery_id TEXT NOT NULL,
	gallery_type TEXT NOT NULL,
	url TEXT NOT NULL,
	start_date TEXT,
	end_date TEXT,
	pages_scraped INTEGER NOT NULL,
	pages_skipped INTEGER NOT NULL,
	total_posts INTEGER NOT NULL,
	unique_users INTEGER NOT NULL,
	finished_at DATETIME NOT NULL,
	duration REAL NOT NULL,
	report_json TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_gallery ON reports(gallery_id);
CREATE INDEX IF NOT EXISTS idx_reports_finished ON reports(finished_at);

CREATE TABLE IF NOT EXISTS user_counts (
	report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	gallery_id TEXT NOT NULL,
	uid TEXT NOT NULL,
	nickname TEXT,
	ip TEXT,
	count INTEGER NOT NULL,
	PRIMARY KEY (report_id, uid)
);

CREATE INDEX IF NOT EXISTS idx_user_counts_uid ON user_counts(gallery_id, uid);
`

// Path 数据库文件路径
func (s *Store) Path() string {
	return s.path
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Save 保存报告,同一ID重复保存会覆盖
func (s *Store) Save(ctx context.Context, report *models.ScrapeReport) error {
	if report.ID == "" {
		return fmt.Errorf("报告ID不能为空")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_counts WHERE report_id = ?`, report.ID); err != nil {
		return fmt.Errorf("清理旧记录失败: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO reports (id, gallery_id, gallery_type, url, start_date, end_date,
		pages_scraped, pages_skipped, total_posts, unique_users, finished_at, duration, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.GalleryID, report.GalleryType, report.URL,
		nullable(report.StartDate), nullable(report.EndDate),
		report.PagesScraped, report.PagesSkipped, report.TotalPosts, report.UniqueUsers,
		report.FinishedAt.UTC(), report.Duration, string(data))
	if err != nil {
		return fmt.Errorf("写入报告失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO user_counts (report_id, gallery_id, uid, nickname, ip, count) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, u := range report.UserStats {
		if _, err := stmt.ExecContext(ctx, report.ID, report.GalleryID, u.UserID, u.Nickname, u.IP, u.Count); err != nil {
			return fmt.Errorf("写入用户统计失败 (%s): %w", u.UserID, err)
		}
	}

	return tx.Commit()
}

// Get 读取完整报告
func (s *Store) Get(ctx context.Context, id string) (*models.ScrapeReport, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report_json FROM reports WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询报告失败: %w", err)
	}

	var report models.ScrapeReport
	if err := report.FromJSON([]byte(data)); err != nil {
		return nil, fmt.Errorf("解析报告失败: %w", err)
	}
	return &report, nil
}

// List 按完成时间倒序列出报告摘要
// galleryID 为空时列出全部画廊,limit<=0 表示不限制
func (s *Store) List(ctx context.Context, galleryID string, limit int) ([]Summary, error) {
	query := `
	SELECT id, gallery_id, gallery_type, start_date, end_date, pages_scraped, pages_skipped,
		total_posts, unique_users, finished_at, duration
	FROM reports`
	var args []any
	if galleryID != "" {
		query += ` WHERE gallery_id = ?`
		args = append(args, galleryID)
	}
	query += ` ORDER BY finished_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询历史失败: %w", err)
	}
	defer rows.Close()

	var result []Summary
	for rows.Next() {
		var sum Summary
		var start, end sql.NullString
		if err := rows.Scan(&sum.ID, &sum.GalleryID, &sum.GalleryType, &start, &end,
			&sum.PagesScraped, &sum.PagesSkipped, &sum.TotalPosts, &sum.UniqueUsers,
			&sum.FinishedAt, &sum.Duration); err != nil {
			return nil, fmt.Errorf("读取历史失败: %w", err)
		}
		sum.StartDate = start.String
		sum.EndDate = end.String
		result = append(result, sum)
	}
	return result, rows.Err()
}

// UserHistory 某用户在指定画廊历次爬取中的发帖数,按时间正序
func (s *Store) UserHistory(ctx context.Context, galleryID, uid string) ([]UserTrend, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT u.report_id, u.nickname, u.count, r.finished_at
	FROM user_counts u JOIN reports r ON r.id = u.report_id
	WHERE u.gallery_id = ? AND u.uid = ?
	ORDER BY r.finished_at ASC`, galleryID, uid)
	if err != nil {
		return nil, fmt.Errorf("查询用户历史失败: %w", err)
	}
	defer rows.Close()

	var result []UserTrend
	for rows.Next() {
		var t UserTrend
		var nick sql.NullString
		if err := rows.Scan(&t.ReportID, &nick, &t.Count, &t.FinishedAt); err != nil {
			return nil, fmt.Errorf("读取用户历史失败: %w", err)
		}
		t.Nickname = nick.String
		result = append(result, t)
	}
	return result, rows.Err()
}

// Delete 删除报告及其用户统计
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_counts WHERE report_id = ?`, id); err != nil {
		return fmt.Errorf("删除用户统计失败: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除报告失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
