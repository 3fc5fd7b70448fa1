// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 Doppl 网关提供 TracerProvider 和 MeterProvider（OTLP gRPC，可选 TLS）。
// 遥测禁用时保持全局 noop 实现，不连接任何外部服务。
package telemetry
