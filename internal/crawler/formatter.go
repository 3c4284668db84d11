package crawler

import (
	"sort"
	"time"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

// FormatReport 组装最终报告
// 用户按发帖数降序排列,相同数量时保持首次出现顺序
func FormatReport(desc models.GalleryDescriptor, outcome models.CrawlOutcome, req models.CrawlRequest, startedAt, finishedAt time.Time) *models.ScrapeReport {
	users := make([]models.UserAggregate, len(outcome.Users))
	copy(users, outcome.Users)
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Count > users[j].Count
	})

	return &models.ScrapeReport{
		ID:           models.NewReportID(),
		Success:      true,
		Type:         models.ReportType,
		GalleryID:    desc.ID,
		GalleryType:  desc.Variant.String(),
		URL:          desc.SourceURL,
		PagesScraped: outcome.PagesScraped,
		PagesSkipped: outcome.PagesSkipped,
		StartDate:    optionalDate(req.StartDate),
		EndDate:      optionalDate(req.EndDate),
		TotalPosts:   outcome.TotalPosts,
		UniqueUsers:  len(users),
		UserStats:    users,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		Duration:     finishedAt.Sub(startedAt).Seconds(),
	}
}

func optionalDate(d string) *string {
	if d == "" {
		return nil
	}
	return &d
}
