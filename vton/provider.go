package vton

import (
	"fmt"
	"strings"

	"github.com/BaSui01/doppl/types"
)

// ProviderKind 标识当前激活的 Provider 变体。
type ProviderKind string

const (
	ProviderGoogle ProviderKind = "google"
	ProviderCustom ProviderKind = "custom"
)

// DefaultGoogleModel 是 Google 配置未指定模型时使用的模型。
const DefaultGoogleModel = "gemini-2.5-flash-image"

// ProviderConfig 是封闭的和类型：只有 GoogleConfig 与 CustomConfig 实现它，
// 因此每个请求恰好有一个激活的变体。
type ProviderConfig interface {
	Kind() ProviderKind
	ModelName() string
	isProviderConfig()
}

// GoogleConfig 原生 SDK 变体。
type GoogleConfig struct {
	APIKey string `json:"api_key" yaml:"api_key"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
}

func (GoogleConfig) Kind() ProviderKind { return ProviderGoogle }
func (GoogleConfig) isProviderConfig()  {}

// ModelName returns the configured model or DefaultGoogleModel.
func (c GoogleConfig) ModelName() string {
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultGoogleModel
}

// CustomConfig OpenAI-Chat 兼容 HTTP 变体。
type CustomConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
}

func (CustomConfig) Kind() ProviderKind  { return ProviderCustom }
func (CustomConfig) isProviderConfig()   {}
func (c CustomConfig) ModelName() string { return strings.TrimSpace(c.Model) }

// IsComplete reports whether every field required for a call is present.
func (c CustomConfig) IsComplete() bool {
	return strings.TrimSpace(c.BaseURL) != "" &&
		strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.Model) != ""
}

// SelectProvider 按 kind 选出激活变体。两个变体各自独立保存，选择不会修改另一个。
func SelectProvider(kind ProviderKind, google GoogleConfig, custom CustomConfig) (ProviderConfig, error) {
	switch kind {
	case ProviderGoogle:
		return google, nil
	case ProviderCustom:
		return custom, nil
	default:
		return nil, types.NewConfigError(fmt.Sprintf("unknown provider %q (expected %q or %q)",
			kind, ProviderGoogle, ProviderCustom))
	}
}

// MaskKey hides all but the edges of an API key for logging.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "****" + key[len(key)-3:]
}
