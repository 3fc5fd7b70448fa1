// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
Package types 提供 Doppl 网关的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 vton、api、cmd 等上层模块
提供统一的错误契约。

# 错误体系

  - CONFIG_ERROR: 配置缺失或格式错误，I/O 之前同步报告
  - CREDENTIAL_FORMAT: SDK key 本地前缀校验失败
  - TRANSPORT_ERROR: 网络失败或非 JSON 响应体（含端点与片段）
  - PROVIDER_ERROR: 上游非 2xx 或 SDK 权限/配额失败
  - NO_IMAGE: 所有恢复策略用尽后仍无图像
  - UNRECOGNIZED_RESPONSE: 响应形状不在已知集合内
  - ANALYSIS_PARSE: 仅诊断日志使用，不会作为错误返回

错误工具链：AsError / IsCode / IsRetryable / GetErrorCode。
*/
package types
