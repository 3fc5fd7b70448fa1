// Package gemini 实现基于 google.golang.org/genai 的原生 SDK 适配器。
//
// 调用前在本地校验 key 前缀，失败时不发起任何请求；权限、配额与参数错误
// 会被改写为用户可以直接处理的提示。
package gemini
