// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 Doppl HTTP API 的请求处理器实现。

# 核心类型

  - VTONHandler: 试穿生成与自定义 Provider 连接测试
  - HealthHandler: 服务健康检查（/health, /healthz, /ready），区分关键与可选检查
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息，上游错误附带 provider_status / endpoint / detail
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码

# 错误映射

请求与配置类错误返回 4xx，NO_IMAGE 返回 422，上游与传输错误统一返回 502，
上游原始状态码放在 error.provider_status 中。

# 请求体

DecodeJSONBody 使用严格模式并限制请求体大小，超限返回 413。
*/
package handlers
