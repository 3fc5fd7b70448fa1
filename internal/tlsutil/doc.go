// Package tlsutil 提供集中式 TLS 配置，
// 供 Provider 适配器的出站 HTTP 客户端、Redis 与 OTLP 连接以及 HTTPS 服务端共用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
