// Package prompt 构造试穿请求的提示载荷。
//
// Build 生成一份有序的 Segment 列表，GeminiContents 与 ChatMessages
// 分别把它渲染为原生 SDK parts 与 OpenAI Chat 消息。
package prompt
