// Copyright (c) Doppl Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP 层与试穿生成链路。

# 核心类型

  - Collector：持有 Counter、Histogram 向量，使用 promauto 注册，
    所有指标按 namespace 隔离。Collector 同时实现 gateway.Observer。

# 指标

  - HTTP：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 生成：按 provider/model/status 计数与耗时，status 为 ok 或错误码。
  - 响应形态：归一化前识别出的形态（chat_completion、image_array 等）。
  - 分析：是否回退为默认分析（defaulted=true/false）。
  - 连接测试：按结果分类计数与耗时。
*/
package metrics
