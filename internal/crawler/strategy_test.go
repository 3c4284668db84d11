package crawler

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/RecoveryAshes/DCGallStat/internal/browser"
	"github.com/RecoveryAshes/DCGallStat/internal/gallery"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

// scriptedFetcher 按页码返回预设结果,未设置的页码返回空页
type scriptedFetcher struct {
	mu      sync.Mutex
	pages   map[int]models.PageResult
	fatalAt int
	fetched []int
}

func (f *scriptedFetcher) Fetch(ctx context.Context, page int, _ string, _ gallery.Extractor) (models.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, page)
	if f.fatalAt == page {
		return models.PageResult{}, &models.CrawlError{Page: page, Err: browser.ErrBrowserCrashed}
	}
	result, ok := f.pages[page]
	if !ok {
		return models.PageResult{Page: page, Posts: []models.PostRecord{}}, nil
	}
	result.Page = page
	return result, nil
}

func (f *scriptedFetcher) fetchedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := append([]int(nil), f.fetched...)
	sort.Ints(pages)
	return pages
}

func posts(uids ...string) []models.PostRecord {
	out := make([]models.PostRecord, 0, len(uids))
	for _, uid := range uids {
		out = append(out, models.PostRecord{UserID: uid, Nickname: "nick-" + uid})
	}
	return out
}

var testGallery = models.GalleryDescriptor{ID: "test", Variant: models.VariantMini, Valid: true}

func fixedJob(pages int, sink models.ProgressSink) Job {
	return Job{
		Gallery:   testGallery,
		Request:   models.CrawlRequest{URL: "u", Mode: models.ModeFixedPages, Pages: pages},
		Extractor: gallery.ListingExtractor{},
		Sink:      sink,
	}
}

func dateJob(start, end string, sink models.ProgressSink) Job {
	req := models.CrawlRequest{URL: "u", Mode: models.ModeDateRange, StartDate: start, EndDate: end}
	return Job{
		Gallery:   testGallery,
		Request:   req,
		Extractor: gallery.DateRangeExtractor{Start: start, End: end},
		Sink:      sink,
	}
}

func TestDateBounded_StopsAtFirstOlderPage(t *testing.T) {
	tests := []struct {
		name      string
		pages     map[int]models.PageResult
		wantPages int
		wantPosts int
	}{
		{
			name: "第3页全部早于起始日期",
			pages: map[int]models.PageResult{
				1: {Posts: posts("a", "b")},
				2: {Posts: posts("a"), FoundOlder: true},
				3: {Posts: []models.PostRecord{}, FoundOlder: true},
				4: {Posts: posts("z")},
			},
			wantPages: 3,
			wantPosts: 3,
		},
		{
			name: "第1页即停止",
			pages: map[int]models.PageResult{
				1: {Posts: []models.PostRecord{}, FoundOlder: true},
			},
			wantPages: 1,
			wantPosts: 0,
		},
		{
			name: "空页但未发现更早帖子时继续",
			pages: map[int]models.PageResult{
				1: {Posts: []models.PostRecord{}},
				2: {Posts: posts("a")},
				3: {Posts: []models.PostRecord{}, FoundOlder: true},
			},
			wantPages: 3,
			wantPosts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scriptedFetcher{pages: tt.pages}
			sink := &models.RecordingSink{}
			outcome, err := (&DateBounded{Fetcher: f}).Crawl(context.Background(), dateJob("2024-01-01", "", sink))
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}
			if outcome.PagesScraped != tt.wantPages {
				t.Errorf("PagesScraped = %d, want %d", outcome.PagesScraped, tt.wantPages)
			}
			if outcome.TotalPosts != tt.wantPosts {
				t.Errorf("TotalPosts = %d, want %d", outcome.TotalPosts, tt.wantPosts)
			}
			if last := f.fetchedPages(); last[len(last)-1] != tt.wantPages {
				t.Errorf("停止后仍在抓取: %v", last)
			}
			if len(sink.OfType(models.EventInfo)) != 1 {
				t.Errorf("期望1个停止事件")
			}
		})
	}
}

func TestDateBounded_NoStartDateStopsOnEmptyPage(t *testing.T) {
	f := &scriptedFetcher{pages: map[int]models.PageResult{
		1: {Posts: posts("a")},
		2: {Posts: posts("b"), FoundOlder: true},
	}}

	outcome, err := (&DateBounded{Fetcher: f}).Crawl(context.Background(), dateJob("", "2024-01-31", nil))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	// 第3页未设置,返回空页
	if outcome.PagesScraped != 3 || outcome.TotalPosts != 2 {
		t.Errorf("结果不正确: %+v", outcome)
	}
}

func TestDateBounded_FailedPagesAreSkipped(t *testing.T) {
	f := &scriptedFetcher{pages: map[int]models.PageResult{
		1: {Posts: posts("a")},
		2: models.FailedPage(2),
		3: {Posts: []models.PostRecord{}, FoundOlder: true},
	}}
	sink := &models.RecordingSink{}

	outcome, err := (&DateBounded{Fetcher: f}).Crawl(context.Background(), dateJob("2024-01-01", "", sink))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if outcome.PagesScraped != 2 || outcome.PagesSkipped != 1 || outcome.TotalPosts != 1 {
		t.Errorf("结果不正确: %+v", outcome)
	}
	if !reflect.DeepEqual(f.fetchedPages(), []int{1, 2, 3}) {
		t.Errorf("抓取页码 = %v", f.fetchedPages())
	}
	if len(sink.OfType(models.EventWarning)) != 1 {
		t.Errorf("期望1个跳过警告")
	}
}

func TestDateBounded_ConsecutiveFailuresStop(t *testing.T) {
	pages := map[int]models.PageResult{}
	for p := 1; p <= 50; p++ {
		pages[p] = models.FailedPage(p)
	}
	f := &scriptedFetcher{pages: pages}

	outcome, err := (&DateBounded{Fetcher: f}).Crawl(context.Background(), dateJob("2024-01-01", "", nil))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if outcome.PagesSkipped != maxConsecutiveFailures || outcome.PagesScraped != 0 {
		t.Errorf("结果不正确: %+v", outcome)
	}
}

func TestDateBounded_MaxPages(t *testing.T) {
	pages := map[int]models.PageResult{}
	for p := 1; p <= 10; p++ {
		pages[p] = models.PageResult{Posts: posts("a")}
	}
	f := &scriptedFetcher{pages: pages}
	sink := &models.RecordingSink{}

	outcome, err := (&DateBounded{Fetcher: f, MaxPages: 4}).Crawl(context.Background(), dateJob("2024-01-01", "", sink))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if outcome.PagesScraped != 4 || outcome.TotalPosts != 4 {
		t.Errorf("结果不正确: %+v", outcome)
	}
	if len(sink.OfType(models.EventWarning)) != 1 {
		t.Errorf("达到上限应发出警告")
	}
}

func TestFixedStrategies_Equivalent(t *testing.T) {
	pages := map[int]models.PageResult{
		1: {Posts: posts("a", "b", "a")},
		2: models.FailedPage(2),
		3: {Posts: posts("c")},
		4: {Posts: posts("b", "d")},
		5: {Posts: []models.PostRecord{}},
		6: {Posts: posts("a")},
		7: {Posts: posts("e", "c")},
	}

	seqFetcher := &scriptedFetcher{pages: pages}
	seq, err := (&Sequential{Fetcher: seqFetcher}).Crawl(context.Background(), fixedJob(7, nil))
	if err != nil {
		t.Fatalf("Sequential error = %v", err)
	}

	for _, size := range []int{1, 3, 20} {
		batchFetcher := &scriptedFetcher{pages: pages}
		sink := &models.RecordingSink{}
		batched, err := (&Batched{Fetcher: batchFetcher, BatchSize: size}).Crawl(context.Background(), fixedJob(7, sink))
		if err != nil {
			t.Fatalf("Batched(%d) error = %v", size, err)
		}
		if !reflect.DeepEqual(seq, batched) {
			t.Errorf("Batched(%d) 结果与顺序爬取不一致:\n%+v\n%+v", size, batched, seq)
		}
		if !reflect.DeepEqual(batchFetcher.fetchedPages(), []int{1, 2, 3, 4, 5, 6, 7}) {
			t.Errorf("Batched(%d) 抓取页码 = %v", size, batchFetcher.fetchedPages())
		}

		completes := sink.OfType(models.EventPageComplete)
		if len(completes) != 7 {
			t.Fatalf("期望7个pageComplete事件, 得到 %d", len(completes))
		}
		for i, e := range completes {
			if e.Data["page"] != i+1 {
				t.Errorf("pageComplete顺序错误: 第%d个为第%v页", i, e.Data["page"])
			}
		}
	}

	if seq.PagesScraped != 7 || seq.PagesSkipped != 1 || seq.TotalPosts != 9 {
		t.Errorf("顺序爬取结果不正确: %+v", seq)
	}
}

func TestBatched_RefusesDateRange(t *testing.T) {
	f := &scriptedFetcher{}
	_, err := (&Batched{Fetcher: f, BatchSize: 20}).Crawl(context.Background(), dateJob("2024-01-01", "", nil))
	if !errors.Is(err, models.ErrBatchedDateRange) {
		t.Errorf("期望ErrBatchedDateRange, 得到 %v", err)
	}
	if len(f.fetchedPages()) != 0 {
		t.Errorf("拒绝后不应抓取")
	}
}

func TestStrategies_FatalErrorAborts(t *testing.T) {
	strategies := []Strategy{
		&Sequential{},
		&Batched{BatchSize: 2},
	}

	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			f := &scriptedFetcher{fatalAt: 3, pages: map[int]models.PageResult{1: {Posts: posts("a")}}}
			switch st := s.(type) {
			case *Sequential:
				st.Fetcher = f
			case *Batched:
				st.Fetcher = f
			}

			outcome, err := s.Crawl(context.Background(), fixedJob(5, nil))
			if !errors.Is(err, browser.ErrBrowserCrashed) {
				t.Fatalf("期望ErrBrowserCrashed, 得到 %v", err)
			}
			if outcome.TotalPosts != 0 || outcome.Users != nil {
				t.Errorf("致命错误时应丢弃部分结果, 得到 %+v", outcome)
			}
		})
	}
}

func TestSequential_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &scriptedFetcher{}
	sink := models.SinkFunc(func(e models.ProgressEvent) {
		if e.Type == models.EventPageComplete && e.Data["page"] == 2 {
			cancel()
		}
	})

	_, err := (&Sequential{Fetcher: f}).Crawl(ctx, fixedJob(10, sink))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望context.Canceled, 得到 %v", err)
	}
	if !reflect.DeepEqual(f.fetchedPages(), []int{1, 2}) {
		t.Errorf("取消后仍在抓取: %v", f.fetchedPages())
	}
}

func TestSequential_Events(t *testing.T) {
	f := &scriptedFetcher{pages: map[int]models.PageResult{
		1: {Posts: posts("a")},
		2: models.FailedPage(2),
	}}
	sink := &models.RecordingSink{}

	if _, err := (&Sequential{Fetcher: f}).Crawl(context.Background(), fixedJob(2, sink)); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	var types []models.EventType
	for _, e := range sink.Events() {
		types = append(types, e.Type)
	}
	want := []models.EventType{
		models.EventProgress, models.EventPageComplete,
		models.EventProgress, models.EventWarning, models.EventPageComplete,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("事件顺序 = %v, want %v", types, want)
	}

	progress := sink.OfType(models.EventProgress)[1]
	if progress.Data["currentPage"] != 2 || progress.Data["totalPages"] != 2 || progress.Data["totalPosts"] != 1 || progress.Data["uniqueUsers"] != 1 {
		t.Errorf("progress数据不正确: %v", progress.Data)
	}
}
