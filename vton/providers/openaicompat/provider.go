// =============================================================================
// Doppl OpenAI-Compatible Provider
// =============================================================================
// Generic HTTP adapter for any backend speaking the OpenAI Chat Completions
// protocol (OpenAI, OpenRouter, self-hosted gateways). Also hosts the
// connection tester used by the settings screen.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/doppl/internal/tlsutil"
	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/prompt"
	"github.com/BaSui01/doppl/vton/providers"
)

const (
	// ProviderName 用于错误、日志与指标标签
	ProviderName = string(vton.ProviderCustom)

	// DefaultMaxTokens 生成调用的 token 上限，足够容纳描述文字与 JSON
	DefaultMaxTokens = 4096

	// DefaultTitle 部分聚合服务（OpenRouter）用于路由与计费的标题
	DefaultTitle = "Doppl-Next VTON"

	// DefaultReferer OpenRouter 要求的 HTTP-Referer，用于识别调用来源
	DefaultReferer = "https://github.com/BaSui01/doppl"

	// maxBodyBytes 响应体读取上限，内联图像可能较大
	maxBodyBytes = 64 << 20
)

// Config holds the transport-level settings shared by every call.
// Per-request credentials come from vton.CustomConfig.
type Config struct {
	// Timeout is the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration

	// Referer is sent as HTTP-Referer. Defaults to DefaultReferer.
	Referer string

	// Title is sent as X-Title. Defaults to DefaultTitle.
	Title string

	// MaxTokens caps the generation call. Defaults to DefaultMaxTokens.
	MaxTokens int
}

// Provider 是 OpenAI 兼容的 HTTP 适配器。无共享可变状态，可并发使用。
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Referer == "" {
		cfg.Referer = DefaultReferer
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(cfg.Timeout),
		Logger: logger.With(zap.String("provider", ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// buildHeaders applies auth and courtesy headers to the HTTP request.
func (p *Provider) buildHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", p.Cfg.Referer)
	req.Header.Set("X-Title", p.Cfg.Title)
}

// resolve 校验配置并返回归一化后的端点。所有检查都在网络调用之前完成。
func resolve(cfg vton.CustomConfig) (endpoint, apiKey, model string, err error) {
	endpoint, err = providers.NormalizeEndpoint(cfg.BaseURL)
	if err != nil {
		return "", "", "", err
	}
	apiKey = strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return "", "", "", types.NewConfigError("custom provider API key is required")
	}
	model = strings.TrimSpace(cfg.Model)
	if model == "" {
		return "", "", "", types.NewConfigError("custom provider model name is required (e.g. gpt-4o)")
	}
	return endpoint, apiKey, model, nil
}

// Call 发送一次非流式补全请求并返回原始 JSON 响应体。
func (p *Provider) Call(ctx context.Context, cfg vton.ProviderConfig, payload *prompt.Payload) (vton.RawResponse, error) {
	custom, ok := cfg.(vton.CustomConfig)
	if !ok {
		return nil, types.NewConfigError(fmt.Sprintf("custom adapter received %s config", cfg.Kind()))
	}
	endpoint, apiKey, model, err := resolve(custom)
	if err != nil {
		return nil, err
	}

	body := providers.ChatRequest{
		Model:     model,
		Messages:  payload.ChatMessages(),
		MaxTokens: p.Cfg.MaxTokens,
		Stream:    false,
	}
	status, data, err := p.post(ctx, endpoint, apiKey, body)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		msg := providers.ExtractErrorMessage(data)
		p.Logger.Warn("provider returned error status",
			zap.String("endpoint", endpoint),
			zap.String("model", model),
			zap.Int("status", status),
			zap.String("message", msg))
		return nil, providers.MapHTTPError(status, msg, p.Name()).WithEndpoint(endpoint)
	}

	if !json.Valid(data) {
		snippet := providers.Truncate(string(data), providers.SnippetLimit)
		p.Logger.Warn("provider returned non-JSON body",
			zap.String("endpoint", endpoint),
			zap.String("snippet", snippet))
		return nil, types.NewTransportError(
			fmt.Sprintf("endpoint %s returned a non-JSON body, check that the base URL points at an OpenAI-compatible API", endpoint),
			endpoint, snippet,
		).WithProvider(p.Name())
	}

	return vton.HTTPBody{Endpoint: endpoint, Body: data}, nil
}

// post 发送请求并一次性读完响应体。网络失败统一映射为 TransportError。
func (p *Provider) post(ctx context.Context, endpoint, apiKey string, body providers.ChatRequest) (int, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, types.NewConfigError(fmt.Sprintf("invalid endpoint %s", endpoint)).WithCause(err)
	}
	p.buildHeaders(httpReq, apiKey)

	start := time.Now()
	resp, err := p.Client.Do(httpReq)
	if err != nil {
		p.Logger.Warn("provider request failed",
			zap.String("endpoint", endpoint),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return 0, nil, types.NewTransportError(
			fmt.Sprintf("connection to %s failed: %v", endpoint, err), endpoint, "",
		).WithCause(err).WithProvider(p.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, types.NewTransportError(
			fmt.Sprintf("reading response from %s failed: %v", endpoint, err), endpoint, "",
		).WithCause(err).WithProvider(p.Name())
	}

	p.Logger.Debug("provider responded",
		zap.String("endpoint", endpoint),
		zap.String("model", body.Model),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("latency", time.Since(start)))
	return resp.StatusCode, data, nil
}
