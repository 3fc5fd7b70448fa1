package vton

import "encoding/json"

// RawResponse 是适配器的原始输出，封闭集合：HTTPBody 或 SDKResponse。
type RawResponse interface {
	isRawResponse()
}

// HTTPBody 是 OpenAI 兼容端点返回的已解析 JSON 响应体。
type HTTPBody struct {
	Endpoint string
	Body     json.RawMessage
}

func (HTTPBody) isRawResponse() {}

// SDKPart 是 SDK 响应中的一个候选内容片段。文本与内联数据二选一。
type SDKPart struct {
	Text     string
	Data     []byte
	MIMEType string
}

// SDKResponse 是原生 SDK 返回的结构化响应。
type SDKResponse struct {
	Parts []SDKPart
	// Raw 原始响应，仅用于调试
	Raw any
}

func (SDKResponse) isRawResponse() {}

// UniversalResponse 与 Provider 无关的规范化结果。
// Images 按响应出现顺序排列，每项是 data: URI 或 http(s) URL。
type UniversalResponse struct {
	Content string          `json:"content"`
	Images  []string        `json:"images,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}
