// =============================================================================
// 📦 Doppl 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"time"

	"github.com/BaSui01/doppl/vton"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Gateway:   DefaultGatewayConfig(),
		Google:    DefaultGoogleConfig(),
		Custom:    DefaultCustomConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute, // 图像生成很慢
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    32 << 20,
		RateLimitRPS:    5,
		RateLimitBurst:  10,
	}
}

// DefaultGatewayConfig 返回默认生成流程配置
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		DefaultLanguage: string(vton.LangZhTW),
		DefaultProvider: string(vton.ProviderGoogle),
		Timeout:         0, // 不设超时，取消交给调用方的 context
	}
}

// DefaultGoogleConfig 返回默认 Google 配置
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		Model: vton.DefaultGoogleModel,
	}
}

// DefaultCustomConfig 返回默认 OpenAI 兼容端点配置
func DefaultCustomConfig() CustomConfig {
	return CustomConfig{
		Referer:   "https://github.com/BaSui01/doppl",
		Title:     "Doppl-Next VTON",
		MaxTokens: 4096,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置，默认不启用
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		PoolSize:  10,
		KeyPrefix: "doppl:",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:        false,
		OTLPEndpoint:   "localhost:4317",
		ServiceName:    "doppl",
		SampleRate:     0.1,
		Environment:    "development",
		Insecure:       true,
		ExportInterval: 30 * time.Second,
	}
}
