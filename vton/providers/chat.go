package providers

import "encoding/json"

// OpenAI Chat 兼容协议的线上类型。请求与连接测试共用。

// 角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// 内容片段类型
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ChatImageURL 图像引用，URL 可以是 http(s) 或 data: URI。
type ChatImageURL struct {
	URL string `json:"url"`
}

// ChatContentPart 多模态内容片段。
type ChatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

// TextPart 构造文本片段
func TextPart(text string) ChatContentPart {
	return ChatContentPart{Type: PartTypeText, Text: text}
}

// ImagePart 构造图像片段
func ImagePart(url string) ChatContentPart {
	return ChatContentPart{Type: PartTypeImageURL, ImageURL: &ChatImageURL{URL: url}}
}

// ChatMessage 请求消息。Content 为 string 或 []ChatContentPart。
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ChatRequest 非流式补全请求。Stream 始终显式序列化。
type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Stream    bool          `json:"stream"`
}

// ChatResponseMessage 响应消息。Content 可能是字符串、片段数组或 null；
// 部分聚合服务（如 OpenRouter）把生成的图像放在 Images 中。
type ChatResponseMessage struct {
	Role    string            `json:"role"`
	Content json.RawMessage   `json:"content"`
	Images  []ChatContentPart `json:"images,omitempty"`
}

// ChatChoice 响应中的单个选项
type ChatChoice struct {
	Index        int                 `json:"index"`
	FinishReason string              `json:"finish_reason"`
	Message      ChatResponseMessage `json:"message"`
}

// ChatResponse 补全响应
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatErrorResponse 错误响应。Error 可能是对象也可能是字符串。
type ChatErrorResponse struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}
