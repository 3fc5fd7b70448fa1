package api

import (
	"strings"

	"github.com/BaSui01/doppl/vton"
)

// =============================================================================
// 试穿生成类型
// =============================================================================

// CustomConfig OpenAI 兼容端点配置。
// @Description 自定义 Provider 配置
type CustomConfig struct {
	// 基础 URL，可带或不带 /chat/completions
	BaseURL string `json:"base_url" example:"https://openrouter.ai/api/v1"`
	// API Key
	APIKey string `json:"api_key" example:"sk-or-..."`
	// 模型名称
	Model string `json:"model" example:"google/gemini-2.5-flash-image-preview"`
}

// IsEmpty 三个字段都没填
func (c *CustomConfig) IsEmpty() bool {
	return c == nil ||
		(strings.TrimSpace(c.BaseURL) == "" && strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.Model) == "")
}

// ToDomain 转换为 vton.CustomConfig
func (c *CustomConfig) ToDomain() vton.CustomConfig {
	if c == nil {
		return vton.CustomConfig{}
	}
	return vton.CustomConfig{BaseURL: c.BaseURL, APIKey: c.APIKey, Model: c.Model}
}

// GenerateRequest 试穿生成请求，字段与 UI 表单一一对应。
// @Description 试穿生成请求结构
type GenerateRequest struct {
	// google 或 custom，留空使用服务端默认
	Provider string `json:"provider,omitempty" example:"google"`
	// Google API Key（AIza 开头），留空使用服务端默认
	GoogleKey string `json:"google_key,omitempty"`
	// Google 模型，留空使用默认模型
	GoogleModel string `json:"google_model,omitempty" example:"gemini-2.5-flash-image"`
	// 自定义 Provider 配置，整体留空时使用服务端默认
	CustomConfig *CustomConfig `json:"custom_config,omitempty"`
	// 可选的微调指令
	RefinementText string `json:"refinement_text,omitempty" example:"make the sleeves shorter"`
	// 用户照片 base64（可为 data URI）
	UserImageBase64 string `json:"user_image_base64"`
	// 用户照片 MIME
	UserImageMime string `json:"user_image_mime,omitempty" example:"image/jpeg"`
	// 服装图片 base64（可为 data URI）
	GarmentImageBase64 string `json:"garment_image_base64"`
	// 服装图片 MIME
	GarmentImageMime string `json:"garment_image_mime,omitempty" example:"image/png"`
	// zh-TW 或 en，留空使用服务端默认
	Language string `json:"language,omitempty" example:"zh-TW"`
}

// GenerateResponse 试穿生成结果。
// @Description 试穿生成结果
type GenerateResponse struct {
	// 生成图像：URL 或 data URI
	Image string `json:"image"`
	// 触感分析
	Analysis vton.AnalysisRecord `json:"analysis"`
	// 实际使用的 provider 与模型
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// TestConnectionRequest 连接测试请求。
// @Description 连接测试请求结构
type TestConnectionRequest struct {
	CustomConfig CustomConfig `json:"custom_config"`
}

// TestConnectionResponse 连接测试结果，失败也以 200 返回。
// @Description 连接测试结果
type TestConnectionResponse = vton.ConnectionTestResult
