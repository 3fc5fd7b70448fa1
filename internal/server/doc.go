// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理。

Manager 封装 net/http.Server：Start 非阻塞启动，Run 阻塞直到
context 结束或服务异常，随后在 ShutdownTimeout 内优雅关闭。
多个 Manager（API 与 metrics）由调用方用 errgroup 并行运行，
信号处理交给 signal.NotifyContext。

配置了证书与私钥时以 HTTPS 启动，TLS 参数来自 tlsutil。
*/
package server
