package normalize

import "github.com/BaSui01/doppl/vton"

// Shape 是已识别的原始响应形状，封闭集合。
type Shape interface {
	Name() string
	isShape()
}

// ChatCompletion OpenAI Chat 形状：choices[0].message.content。
// Images 来自内容片段数组中的 image_url 或 message.images。
type ChatCompletion struct {
	Content string
	Images  []string
}

// ImageArray 图像数组形状：data[] 每项是 url 或 b64_json。
type ImageArray struct {
	Images []string
}

// OutputWrapper 聚合服务使用的 output 包装形状，单值或列表。
// 看起来像图像引用的值进入 Images，其余文本拼接到 Content。
type OutputWrapper struct {
	Content string
	Images  []string
}

// RawText 整个响应体就是一个 JSON 字符串。
type RawText struct {
	Text string
}

// SDKParts 原生 SDK 的有序内容片段。
type SDKParts struct {
	Parts []vton.SDKPart
}

// Unrecognized 不匹配任何已知形状。
type Unrecognized struct {
	Endpoint string
	Snippet  string
}

func (ChatCompletion) Name() string { return "chat_completion" }
func (ImageArray) Name() string     { return "image_array" }
func (OutputWrapper) Name() string  { return "output_wrapper" }
func (RawText) Name() string        { return "raw_text" }
func (SDKParts) Name() string       { return "sdk_parts" }
func (Unrecognized) Name() string   { return "unrecognized" }

func (ChatCompletion) isShape() {}
func (ImageArray) isShape()     {}
func (OutputWrapper) isShape()  {}
func (RawText) isShape()        {}
func (SDKParts) isShape()       {}
func (Unrecognized) isShape()   {}
