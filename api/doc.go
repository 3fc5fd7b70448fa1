// Package api 定义 Doppl HTTP API 的请求与响应结构。
//
// # API Overview
//
// Doppl 为试穿 UI 提供两个业务端点：
//   - POST /api/v1/vton/generate         生成试穿图像与触感分析
//   - POST /api/v1/vton/test-connection  测试自定义 OpenAI 兼容端点
//
// 以及 /health、/healthz、/ready、/version 探针。所有 JSON 响应都使用
// {success, data, error, timestamp, request_id} 信封。
//
// # Authentication
//
// 配置了 API Keys 时需要携带 X-API-Key 头；配置了 JWT 密钥时需要
// Authorization: Bearer <token>。探针端点不需要认证。
//
// # Provider 配置
//
// 请求可以携带自己的 Provider 配置，缺省部分取服务端配置。
// custom_config 只有在整体为空时才回退到服务端默认，
// 服务端的 API Key 不会被发往请求方指定的 base_url。
package api
