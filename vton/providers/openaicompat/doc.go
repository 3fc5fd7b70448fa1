// Package openaicompat 实现 OpenAI Chat Completions 兼容的 HTTP 适配器，
// 以及轻量的连接测试。
package openaicompat
