// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
Package ratelimit 为 HTTP 层提供按客户端限流。

# 实现

  - Local：进程内令牌桶（golang.org/x/time/rate），每个 key 一个桶，空闲 key 定期清理。
  - Redis：多副本共享的固定窗口计数器（go-redis），窗口长度由 Window 从
    rps / burst 换算，长期平均速率与令牌桶一致。

两者都实现 Limiter。Redis 出错时返回 error，由中间件决定放行。
*/
package ratelimit
