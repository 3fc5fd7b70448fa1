/*
Package providers 提供 Provider 适配器共享的协议类型与工具函数。

OpenAI Chat 兼容的请求/响应类型、端点归一化、错误体解析与 HTTP 状态映射都在这里，
具体适配器位于子包 gemini 与 openaicompat。
*/
package providers
