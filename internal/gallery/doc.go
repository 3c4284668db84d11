// Package gallery 识别DCInside画廊地址并从列表页中提取发帖作者。
//
// 解析器把用户给出的任意画廊URL归一为 models.GalleryDescriptor,
// 并按画廊类型生成列表页URL。提取器运行在渲染后的DOM快照上,
// 浏览器只负责产出HTML,行选择和过滤全部在这里完成。
package gallery
