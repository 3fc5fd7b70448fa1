package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/doppl/types"
)

// ChatCompletionsPath 是 OpenAI 兼容的补全路径。
const ChatCompletionsPath = "/chat/completions"

// SnippetLimit 错误信息中保留的响应体最大字符数
const SnippetLimit = 200

// NormalizeEndpoint 把用户填写的 base URL 归一为完整的 chat-completions 端点。
// 去掉首尾空白与尾部斜杠，仅在缺少时追加 /chat/completions，因此是幂等的。
func NormalizeEndpoint(baseURL string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", types.NewConfigError("custom provider base URL is required (e.g. https://api.openai.com/v1)")
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", types.NewConfigError(fmt.Sprintf("custom provider base URL %q must be an absolute http(s) URL", baseURL))
	}
	if !strings.HasSuffix(base, ChatCompletionsPath) {
		base += ChatCompletionsPath
	}
	return base, nil
}

// Truncate 按字符截断，超出时追加省略号。
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// ExtractErrorMessage 从错误响应体中取出可读消息。
// 优先解析 {"error":{"message":...}} 或 {"error":"..."} 或 {"message":...}，失败则回退到截断后的原文。
func ExtractErrorMessage(body []byte) string {
	var resp ChatErrorResponse
	if err := json.Unmarshal(body, &resp); err == nil {
		var nested struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if len(resp.Error) > 0 && json.Unmarshal(resp.Error, &nested) == nil && nested.Message != "" {
			if nested.Type != "" {
				return fmt.Sprintf("%s (type: %s)", nested.Message, nested.Type)
			}
			return nested.Message
		}
		var flat string
		if len(resp.Error) > 0 && json.Unmarshal(resp.Error, &flat) == nil && flat != "" {
			return flat
		}
		if resp.Message != "" {
			return resp.Message
		}
	}
	return Truncate(string(body), SnippetLimit)
}

// ReadErrorMessage 读取响应体并提取错误消息
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(body)
	if err != nil {
		return "failed to read error response"
	}
	return ExtractErrorMessage(data)
}

// MapHTTPError 将上游非 2xx 状态映射为 ProviderError，并给常见状态加上可操作的提示。
func MapHTTPError(status int, msg string, provider string) *types.Error {
	var friendly string
	switch status {
	case http.StatusUnauthorized:
		friendly = "authentication failed, check the API key"
	case http.StatusForbidden:
		friendly = "permission denied, the key may lack access to this model"
	case http.StatusNotFound:
		friendly = "model not found or base URL is wrong"
	case http.StatusTooManyRequests:
		friendly = "rate limit exceeded, wait a moment and try again"
	case http.StatusBadRequest:
		msgLower := strings.ToLower(msg)
		if strings.Contains(msgLower, "quota") ||
			strings.Contains(msgLower, "credit") ||
			strings.Contains(msgLower, "limit") {
			friendly = "quota or credit exhausted"
		} else {
			friendly = "request rejected, the model may not accept images of this size or type"
		}
	default:
		friendly = "provider request failed"
	}
	full := fmt.Sprintf("%s (HTTP %d)", friendly, status)
	if msg != "" {
		full += ": " + msg
	}
	return types.NewProviderError(full, status, provider)
}

// SafeCloseBody 安全关闭 HTTP 响应体并忽略错误
func SafeCloseBody(body io.ReadCloser) {
	if body != nil {
		_ = body.Close()
	}
}
