package gallery

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/DCGallStat/internal/models"
	"github.com/RecoveryAshes/DCGallStat/internal/utils"
	"golang.org/x/text/unicode/norm"
)

const (
	// ListContainerSelector 列表容器,抓取器等待它出现后再取快照
	ListContainerSelector = "tbody.listwrap2"

	rowSelector        = "tbody.listwrap2 tr"
	noticeRowClass     = "ub-notice"
	noticeIconSelector = "em.icon_img.icon_notice"
	writerSelector     = "td.gall_writer"
	dateSelector       = "td.gall_date"
	unknownNickname    = "Unknown"
)

// Extractor 从列表页DOM中提取帖子
// 返回结果的 Page 字段由调用方填写
type Extractor interface {
	Name() string
	Extract(doc *goquery.Document) models.PageResult
}

// ExtractHTML 解析HTML快照并运行提取器
func ExtractHTML(e Extractor, html string) (models.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.PageResult{}, fmt.Errorf("解析列表页HTML失败: %w", err)
	}
	return e.Extract(doc), nil
}

// ListingExtractor 无条件提取本页所有帖子
type ListingExtractor struct{}

// Name 实现Extractor接口
func (ListingExtractor) Name() string { return "listing" }

// Extract 实现Extractor接口
func (ListingExtractor) Extract(doc *goquery.Document) models.PageResult {
	result := models.PageResult{Posts: []models.PostRecord{}}

	eachPostRow(doc, func(row *goquery.Selection) {
		writer := row.Find(writerSelector).First()
		if writer.Length() == 0 {
			return
		}
		if post, ok := authorOf(writer); ok {
			result.Posts = append(result.Posts, post)
		}
	})

	return result
}

// DateRangeExtractor 只提取 [Start, End] 内的帖子
// 本页只要出现早于Start的帖子就设置 FoundOlder,即使该帖子没有被计入
type DateRangeExtractor struct {
	Start string
	End   string

	// Dates 为零值时使用本地时钟
	Dates utils.DateNormalizer
}

// Name 实现Extractor接口
func (e DateRangeExtractor) Name() string { return "dateRange" }

// Extract 实现Extractor接口
func (e DateRangeExtractor) Extract(doc *goquery.Document) models.PageResult {
	result := models.PageResult{Posts: []models.PostRecord{}}

	eachPostRow(doc, func(row *goquery.Selection) {
		dateCell := row.Find(dateSelector).First()
		writer := row.Find(writerSelector).First()
		if dateCell.Length() == 0 || writer.Length() == 0 {
			return
		}

		raw, ok := dateCell.Attr("title")
		if !ok || strings.TrimSpace(raw) == "" {
			raw = dateCell.Text()
		}
		key := e.Dates.Normalize(raw)
		if key == "" {
			return
		}

		if utils.IsOlder(key, e.Start) {
			result.FoundOlder = true
		}
		if !utils.InRange(key, e.Start, e.End) {
			return
		}

		if post, ok := authorOf(writer); ok {
			post.Date = key
			result.Posts = append(result.Posts, post)
		}
	})

	return result
}

// ForRequest 根据请求选择提取器,dates 用于日期过滤模式
func ForRequest(req models.CrawlRequest, dates utils.DateNormalizer) Extractor {
	if req.IsDateBounded() {
		return DateRangeExtractor{Start: req.StartDate, End: req.EndDate, Dates: dates}
	}
	return ListingExtractor{}
}

// eachPostRow 遍历列表行,跳过公告
func eachPostRow(doc *goquery.Document, fn func(row *goquery.Selection)) {
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		if row.HasClass(noticeRowClass) {
			return
		}
		if row.Find(noticeIconSelector).Length() > 0 {
			return
		}
		fn(row)
	})
}

// authorOf 读取作者单元格,没有data-uid的行返回false
func authorOf(writer *goquery.Selection) (models.PostRecord, bool) {
	uid := cleanText(writer.AttrOr("data-uid", ""))
	if uid == "" {
		return models.PostRecord{}, false
	}

	nickname := cleanText(writer.Find(".nickname").First().Text())
	if nickname == "" {
		nickname = cleanText(writer.Find(".nick_comm").First().Text())
	}
	if nickname == "" {
		nickname = unknownNickname
	}

	return models.PostRecord{
		UserID:   uid,
		Nickname: nickname,
		IP:       cleanText(writer.Find(".ip").First().Text()),
	}, true
}

func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
