package gallery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/DCGallStat/internal/models"
)

const galleryHost = "gall.dcinside.com"

type idPattern struct {
	re      *regexp.Regexp
	variant models.GalleryVariant
}

// 按顺序匹配,命中第一个即返回
var idPatterns = []idPattern{
	{regexp.MustCompile(`gall\.dcinside\.com/mini/board/lists/?\?id=([^&#]+)`), models.VariantMini},
	{regexp.MustCompile(`gall\.dcinside\.com/mini/([^/?#]+)`), models.VariantMini},
	{regexp.MustCompile(`gall\.dcinside\.com/mgallery/board/lists/?\?id=([^&#]+)`), models.VariantMega},
	{regexp.MustCompile(`gall\.dcinside\.com/mgallery/([^/?#]+)`), models.VariantMega},
	{regexp.MustCompile(`gall\.dcinside\.com/board/lists/?\?id=([^&#]+)`), models.VariantBoard},
	{regexp.MustCompile(`gall\.dcinside\.com/([^/?#]+)$`), models.VariantBoard},
}

// 类型判定优先级: mgallery > mini > board
var variantPriority = []models.GalleryVariant{
	models.VariantMega,
	models.VariantMini,
	models.VariantBoard,
}

var pageURLTemplates = map[models.GalleryVariant]string{
	models.VariantMega:  "https://gall.dcinside.com/mgallery/board/lists/?id=%s&page=%d",
	models.VariantMini:  "https://gall.dcinside.com/mini/board/lists/?id=%s&page=%d",
	models.VariantBoard: "https://gall.dcinside.com/board/lists/?id=%s&page=%d",
}

// Resolve 解析画廊URL
// 从不返回错误,无法识别时 Valid 为 false,由调用方决定如何处理
func Resolve(rawURL string) models.GalleryDescriptor {
	rawURL = strings.TrimSpace(rawURL)
	desc := models.GalleryDescriptor{SourceURL: rawURL}

	if !strings.Contains(rawURL, galleryHost) {
		return desc
	}

	for _, p := range idPatterns {
		m := p.re.FindStringSubmatch(rawURL)
		if m == nil || m[1] == "" {
			continue
		}
		desc.ID = m[1]
		desc.Valid = true
		break
	}

	desc.Variant = Classify(rawURL)
	return desc
}

// Classify 根据URL判断画廊类型
func Classify(rawURL string) models.GalleryVariant {
	for _, v := range variantPriority {
		for _, p := range idPatterns {
			if p.variant == v && p.re.MatchString(rawURL) {
				return v
			}
		}
	}
	return models.VariantUnknown
}

// BuildPageURL 生成第page页的列表页URL
// 未知类型按迷你画廊处理
func BuildPageURL(desc models.GalleryDescriptor, page int) string {
	tmpl, ok := pageURLTemplates[desc.Variant]
	if !ok {
		tmpl = pageURLTemplates[models.VariantMini]
	}
	return fmt.Sprintf(tmpl, desc.ID, page)
}

// ResolveValid 解析URL,无法识别时返回包装了 models.ErrInvalidURL 的错误
func ResolveValid(rawURL string) (models.GalleryDescriptor, error) {
	desc := Resolve(rawURL)
	if !desc.Valid {
		return desc, fmt.Errorf("%w: %s", models.ErrInvalidURL, rawURL)
	}
	return desc, nil
}
