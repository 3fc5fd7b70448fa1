// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

const (
	// OtherModel 不在白名单内的模型统一记为 other
	OtherModel = "other"
	// invalidModel 与 gateway.InvalidModel 一致，未通过校验的请求
	invalidModel = "invalid"
)

// Collector 指标收集器，同时实现 gateway.Observer
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 生成指标
	generationsTotal   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	responseShapes     *prometheus.CounterVec
	analysisTotal      *prometheus.CounterVec

	// 连接测试指标
	connectionTestsTotal   *prometheus.CounterVec
	connectionTestDuration prometheus.Histogram

	// model 标签白名单，调用方可以随意填写模型名
	models atomic.Pointer[map[string]struct{}]

	logger *zap.Logger
}

// NewCollector 创建指标收集器，registerer 为 nil 时注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger, registerer ...prometheus.Registerer) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}
	c.SetModelAllowList()

	factory := promauto.With(prometheus.DefaultRegisterer)
	if len(registerer) > 0 && registerer[0] != nil {
		factory = promauto.With(registerer[0])
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	// 请求体通常是两张 base64 图片
	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 10),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 12),
		},
		[]string{"method", "path"},
	)

	// 生成指标
	c.generationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vton_generations_total",
			Help:      "Total number of try-on generations by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vton_generation_duration_seconds",
			Help:      "Try-on generation duration in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 90, 120, 180},
		},
		[]string{"provider", "model"},
	)

	c.responseShapes = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vton_response_shapes_total",
			Help:      "Raw provider response shapes seen by the normalizer",
		},
		[]string{"provider", "shape"},
	)

	c.analysisTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vton_analysis_total",
			Help:      "Haptics analyses by whether defaults were used",
		},
		[]string{"provider", "defaulted"},
	)

	// 连接测试指标
	c.connectionTestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vton_connection_tests_total",
			Help:      "Custom provider connection tests by category",
		},
		[]string{"category"},
	)

	c.connectionTestDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vton_connection_test_duration_seconds",
			Help:      "Custom provider connection test duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	if requestSize >= 0 {
		c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 👗 生成指标记录
// =============================================================================

// SetModelAllowList 替换 model 标签白名单，可在配置重载时调用
func (c *Collector) SetModelAllowList(models ...string) {
	set := make(map[string]struct{}, len(models))
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			set[m] = struct{}{}
		}
	}
	c.models.Store(&set)
}

// modelLabel 白名单外的模型映射为 other
func (c *Collector) modelLabel(model string) string {
	if model == invalidModel {
		return model
	}
	if _, ok := (*c.models.Load())[model]; ok {
		return model
	}
	return OtherModel
}

// ObserveGeneration 记录一次生成调用，status 为 "ok" 或错误码
func (c *Collector) ObserveGeneration(provider, model, status string, duration time.Duration) {
	model = c.modelLabel(model)
	c.generationsTotal.WithLabelValues(provider, model, status).Inc()
	c.generationDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// ObserveResponseShape 记录归一化前的响应形态
func (c *Collector) ObserveResponseShape(provider, shape string) {
	c.responseShapes.WithLabelValues(provider, shape).Inc()
}

// ObserveAnalysis 记录分析结果是否使用了默认值
func (c *Collector) ObserveAnalysis(provider string, defaulted bool) {
	label := "false"
	if defaulted {
		label = "true"
	}
	c.analysisTotal.WithLabelValues(provider, label).Inc()
}

// ObserveConnectionTest 记录连接测试
func (c *Collector) ObserveConnectionTest(category string, duration time.Duration) {
	c.connectionTestsTotal.WithLabelValues(category).Inc()
	c.connectionTestDuration.Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
