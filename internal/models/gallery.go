package models

// GalleryVariant 画廊布局类型
// 不同类型的画廊使用不同的列表页URL模板
type GalleryVariant string

const (
	VariantBoard   GalleryVariant = "board"    // 一般画廊
	VariantMini    GalleryVariant = "mini"     // 迷你画廊
	VariantMega    GalleryVariant = "mgallery" // 小型(M)画廊
	VariantUnknown GalleryVariant = ""         // 无法识别
)

// GalleryDescriptor 画廊描述符
// 每个爬取请求由解析器创建一次,创建后不再修改
type GalleryDescriptor struct {
	ID        string         `json:"galleryId"`   // 画廊ID (URL中的id参数)
	Variant   GalleryVariant `json:"galleryType"` // 布局类型
	SourceURL string         `json:"url"`         // 原始URL
	Valid     bool           `json:"-"`           // 是否成功识别出画廊ID
}

// String 返回可读的画廊类型名称
func (v GalleryVariant) String() string {
	if v == VariantUnknown {
		return "unknown"
	}
	return string(v)
}
