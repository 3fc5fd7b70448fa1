package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/BaSui01/doppl/internal/tlsutil"
	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/prompt"
)

const (
	// ProviderName 用于错误、日志与指标标签
	ProviderName = string(vton.ProviderGoogle)

	// KeyPrefix Google API key 的固定前缀
	KeyPrefix = "AIza"
)

// contentGenerator 是 genai.Models 的最小子集，测试时可替换。
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// generatorFactory 按 key 构造一个生成器。每次调用新建，不共享客户端状态。
type generatorFactory func(ctx context.Context, apiKey string) (contentGenerator, error)

// Config holds the SDK transport settings.
type Config struct {
	// Timeout is the HTTP client timeout. Zero means no timeout.
	Timeout time.Duration
}

// Provider 原生 Gemini SDK 适配器。
type Provider struct {
	Cfg    Config
	Logger *zap.Logger

	newGenerator generatorFactory
}

// New creates a Gemini provider backed by google.golang.org/genai.
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:          cfg,
		Logger:       logger.With(zap.String("provider", ProviderName)),
		newGenerator: sdkGenerator(cfg.Timeout),
	}
}

func sdkGenerator(timeout time.Duration) generatorFactory {
	return func(ctx context.Context, apiKey string) (contentGenerator, error) {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: tlsutil.SecureHTTPClient(timeout),
		})
		if err != nil {
			return nil, err
		}
		return client.Models, nil
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// ValidateKey 去掉首尾空白后做本地格式检查，不发起任何网络请求。
func ValidateKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", types.NewConfigError("Google API key is required")
	}
	if !strings.HasPrefix(key, KeyPrefix) {
		return "", types.NewCredentialFormatError(
			fmt.Sprintf("Google API key has an invalid format (it should start with %q)", KeyPrefix))
	}
	return key, nil
}

// Call 调用 SDK 的多模态生成接口。系统提示词通过 GenerateContentConfig.SystemInstruction 传入。
func (p *Provider) Call(ctx context.Context, cfg vton.ProviderConfig, payload *prompt.Payload) (vton.RawResponse, error) {
	google, ok := cfg.(vton.GoogleConfig)
	if !ok {
		return nil, types.NewConfigError(fmt.Sprintf("google adapter received %s config", cfg.Kind()))
	}
	key, err := ValidateKey(google.APIKey)
	if err != nil {
		return nil, err
	}
	contents, err := payload.GeminiContents()
	if err != nil {
		return nil, err
	}

	gen, err := p.newGenerator(ctx, key)
	if err != nil {
		return nil, types.NewConfigError("failed to create Gemini client").WithCause(err).WithProvider(p.Name())
	}

	model := google.ModelName()
	start := time.Now()
	resp, err := gen.GenerateContent(ctx, model, contents, payload.GeminiConfig())
	if err != nil {
		p.Logger.Warn("gemini generate failed",
			zap.String("model", model),
			zap.String("key", vton.MaskKey(key)),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return nil, rewriteError(err, model)
	}

	out := toSDKResponse(resp)
	p.Logger.Debug("gemini responded",
		zap.String("model", model),
		zap.Int("parts", len(out.Parts)),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}

// toSDKResponse 取第一个候选的内容片段，跳过思考片段。
func toSDKResponse(resp *genai.GenerateContentResponse) vton.SDKResponse {
	out := vton.SDKResponse{Raw: resp}
	if resp == nil || len(resp.Candidates) == 0 {
		return out
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return out
	}
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		switch {
		case part.InlineData != nil && len(part.InlineData.Data) > 0:
			out.Parts = append(out.Parts, vton.SDKPart{
				Data:     part.InlineData.Data,
				MIMEType: part.InlineData.MIMEType,
			})
		case part.Text != "":
			out.Parts = append(out.Parts, vton.SDKPart{Text: part.Text})
		}
	}
	return out
}

// rewriteError 把 SDK 错误改写为可操作的提示。SDK 错误类型不稳定，这里按状态码/状态名子串匹配。
func rewriteError(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewTransportError("Gemini request was cancelled or timed out", "", "").
			WithCause(err).WithProvider(ProviderName)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.NewTransportError(fmt.Sprintf("could not reach the Gemini API: %v", err), "", "").
			WithCause(err).WithProvider(ProviderName)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "API_KEY_INVALID") || strings.Contains(msg, "API key not valid"):
		return types.NewProviderError(
			"Google API key is not valid. Create a new key in Google AI Studio and try again.",
			401, ProviderName).WithCause(err)
	case strings.Contains(msg, "403") || strings.Contains(msg, "PERMISSION_DENIED"):
		return types.NewProviderError(fmt.Sprintf(
			"Google API permission denied for model %s. Check that: "+
				"(1) the API key is valid; "+
				"(2) the Generative Language API is enabled for the key's project; "+
				"(3) billing is enabled when using a Pro image model. "+
				"You can also switch to %s.", model, vton.DefaultGoogleModel),
			403, ProviderName).WithCause(err)
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return types.NewProviderError(
			"Google API rate limit or quota exceeded. Wait a moment and try again, or check your quota in Google AI Studio.",
			429, ProviderName).WithCause(err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "INVALID_ARGUMENT"):
		return types.NewProviderError(
			"Google API rejected the request. An image may be unsupported or too large; try a smaller JPEG or PNG.",
			400, ProviderName).WithCause(err)
	default:
		return types.NewProviderError(fmt.Sprintf("Gemini generation failed: %v", err), 0, ProviderName).WithCause(err)
	}
}
