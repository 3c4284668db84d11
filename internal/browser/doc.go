// Package browser 提供抓取列表页所需的浏览器会话。
//
// 爬取核心只依赖 Session/Page 两个接口:打开标签页、屏蔽无关资源、
// 导航并返回主文档状态码、尽力等待列表容器、导出渲染后的HTML。
//
// 两种实现:
//   - RodSession: 无头Chrome(go-rod),请求拦截屏蔽样式表/图片/字体,
//     并按系统资源限制同时打开的标签页数量
//   - StaticSession: 纯HTTP(Colly),不执行JavaScript,适合没有Chrome的环境
package browser
