// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
Package vton 定义虚拟试穿网关的领域模型。

# 核心类型

  - ProviderConfig: 封闭和类型，GoogleConfig（原生 SDK）或 CustomConfig（OpenAI 兼容 HTTP）
  - GenerationRequest: 两张输入图、可选附加指令、语言与激活的 Provider
  - RawResponse: 适配器原始输出，HTTPBody 或 SDKResponse
  - UniversalResponse: 规范化后的文本与有序图像列表
  - Result: 最终图像与 AnalysisRecord

# 子包

  - prompt: 构造两种 Provider 共用的有序多模态载荷
  - providers/gemini: 原生 SDK 适配器
  - providers/openaicompat: OpenAI Chat 兼容 HTTP 适配器与连接测试
  - normalize: 把原始响应归一为 UniversalResponse
  - result: 解析图像与分析记录
  - gateway: 串联以上阶段的编排器

所有阶段都是无状态的，可以并发调用。
*/
package vton
