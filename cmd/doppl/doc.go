// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
Package main 提供 Doppl 虚拟试穿网关的服务端程序入口。

# 子命令

  - serve            启动 API 与 Metrics 双端口服务
  - validate         加载并校验配置
  - test-connection  测试配置中的自定义 OpenAI 兼容端点
  - health           请求 /health 探针
  - version          打印构建信息

# 中间件链

Recovery → RequestID → SecurityHeaders → OTelTracing → Metrics →
RequestLogger → CORS → RateLimiter → APIKeyAuth → JWTAuth。
后三项按配置启用，探针路径跳过认证。配置了 redis.addr 时限流计数放在 Redis，
多个副本共享额度；Redis 不可用时退回进程内限流。

# 热更新

指定 --config 时监听配置文件。gateway、google、custom 段在重载后立即生效，
网关实例被原子替换；server、redis、log、telemetry 段需要重启。
*/
package main
