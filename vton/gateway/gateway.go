package gateway

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/normalize"
	"github.com/BaSui01/doppl/vton/prompt"
	"github.com/BaSui01/doppl/vton/providers/gemini"
	"github.com/BaSui01/doppl/vton/providers/openaicompat"
	"github.com/BaSui01/doppl/vton/result"
)

const instrumentationName = "github.com/BaSui01/doppl/vton/gateway"

// InvalidModel 是未通过校验的请求上报给 Observer 的模型名
const InvalidModel = "invalid"

// Adapter 是 Provider 适配器的公共契约。
type Adapter interface {
	Name() string
	Call(ctx context.Context, cfg vton.ProviderConfig, payload *prompt.Payload) (vton.RawResponse, error)
}

// ConnectionTester 连接测试
type ConnectionTester interface {
	TestConnection(ctx context.Context, cfg vton.CustomConfig) vton.ConnectionTestResult
}

// Observer 接收每次调用的结果，用于指标采集。实现必须是并发安全的。
// model 来自调用方，实现需要自行限制标签基数。
type Observer interface {
	ObserveGeneration(provider, model, status string, duration time.Duration)
	ObserveResponseShape(provider, shape string)
	ObserveAnalysis(provider string, defaulted bool)
	ObserveConnectionTest(category string, duration time.Duration)
}

// Config 网关运行参数
type Config struct {
	// DefaultLanguage 请求未指定语言时使用
	DefaultLanguage vton.Language
	// Timeout 单次生成的超时，0 表示不限制，由调用方控制取消
	Timeout time.Duration
	// Referer / Title 透传给 OpenAI 兼容端点
	Referer string
	Title   string
	// MaxTokens 生成调用的 token 上限
	MaxTokens int
}

// Gateway 把提示构造、适配器调用、归一化与结果解析串起来。
// 自身不持有跨请求的可变状态，错误原样向上传递。
type Gateway struct {
	adapters map[vton.ProviderKind]Adapter
	tester   ConnectionTester
	parser   *result.Parser
	observer Observer
	tracer   trace.Tracer
	cfg      Config
	logger   *zap.Logger
}

// Option 可选配置
type Option func(*Gateway)

// WithObserver 设置指标观察者
func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithTracer 替换默认的全局 tracer
func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = t }
}

// New 用给定的适配器构造网关。
func New(google, custom Adapter, tester ConnectionTester, cfg Config, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, ok := vton.ParseLanguage(string(cfg.DefaultLanguage)); !ok {
		cfg.DefaultLanguage = vton.LangZhTW
	}
	g := &Gateway{
		adapters: map[vton.ProviderKind]Adapter{
			vton.ProviderGoogle: google,
			vton.ProviderCustom: custom,
		},
		tester: tester,
		parser: result.NewParser(logger.With(zap.String("component", "result_parser"))),
		tracer: otel.Tracer(instrumentationName),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "gateway")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewDefault 使用内置的 Gemini SDK 与 OpenAI 兼容适配器构造网关。
func NewDefault(cfg Config, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	google := gemini.New(gemini.Config{Timeout: cfg.Timeout}, logger)
	custom := openaicompat.New(openaicompat.Config{
		Timeout:   cfg.Timeout,
		Referer:   cfg.Referer,
		Title:     cfg.Title,
		MaxTokens: cfg.MaxTokens,
	}, logger)
	return New(google, custom, custom, cfg, logger, opts...)
}

// Generate 执行一次完整的试穿生成。
func (g *Gateway) Generate(ctx context.Context, req *vton.GenerationRequest) (*vton.Result, error) {
	if req == nil {
		return nil, types.NewInvalidRequestError("generation request is nil")
	}
	r := *req
	if r.Language == "" {
		r.Language = g.cfg.DefaultLanguage
	} else if lang, ok := vton.ParseLanguage(string(r.Language)); ok {
		r.Language = lang
	}

	provider, model := "unknown", ""
	if r.Provider != nil {
		provider, model = string(r.Provider.Kind()), r.Provider.ModelName()
	}

	ctx, span := g.tracer.Start(ctx, "vton.generate",
		trace.WithAttributes(
			attribute.String("vton.provider", provider),
			attribute.String("vton.model", model),
			attribute.String("vton.language", string(r.Language)),
			attribute.Bool("vton.refinement", r.Refinement != ""),
		))
	defer span.End()

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	metricModel := model
	var res *vton.Result
	err := r.Validate()
	if err != nil {
		metricModel = InvalidModel
	} else {
		res, err = g.generate(ctx, &r)
	}
	duration := time.Since(start)

	status := "ok"
	if err != nil {
		status = string(types.GetErrorCode(err))
		if status == "" {
			status = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("generation failed",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.String("code", status),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		span.SetAttributes(attribute.Bool("vton.analysis_defaulted", res.Analysis.Defaulted))
		g.logger.Info("generation completed",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.Bool("analysis_defaulted", res.Analysis.Defaulted),
			zap.Duration("duration", duration))
		if g.observer != nil {
			g.observer.ObserveAnalysis(provider, res.Analysis.Defaulted)
		}
	}
	if g.observer != nil {
		g.observer.ObserveGeneration(provider, metricModel, status, duration)
	}
	return res, err
}

// generate 假定 req 已通过 Validate
func (g *Gateway) generate(ctx context.Context, req *vton.GenerationRequest) (*vton.Result, error) {
	adapter, ok := g.adapters[req.Provider.Kind()]
	if !ok || adapter == nil {
		return nil, types.NewConfigError(fmt.Sprintf("no adapter registered for provider %q", req.Provider.Kind()))
	}

	payload := prompt.Build(req)
	raw, err := adapter.Call(ctx, req.Provider, payload)
	if err != nil {
		return nil, err
	}

	shape := normalize.Classify(raw)
	if g.observer != nil {
		g.observer.ObserveResponseShape(adapter.Name(), shape.Name())
	}
	universal, err := normalize.Normalize(raw)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("response normalized",
		zap.String("provider", adapter.Name()),
		zap.String("shape", shape.Name()),
		zap.Int("images", len(universal.Images)),
		zap.Int("content_len", len(universal.Content)))

	return g.parser.Parse(universal, req.Language)
}

// TestCustomConnection 验证自定义 Provider 是否可用。从不返回错误。
func (g *Gateway) TestCustomConnection(ctx context.Context, cfg vton.CustomConfig) vton.ConnectionTestResult {
	ctx, span := g.tracer.Start(ctx, "vton.test_connection",
		trace.WithAttributes(attribute.String("vton.model", cfg.ModelName())))
	defer span.End()

	if g.tester == nil {
		return vton.ConnectionTestResult{
			OK:       false,
			Category: vton.ConnectionMissingConfig,
			Message:  "connection testing is not available",
		}
	}

	start := time.Now()
	res := g.tester.TestConnection(ctx, cfg)
	span.SetAttributes(
		attribute.Bool("vton.ok", res.OK),
		attribute.String("vton.category", string(res.Category)))
	if !res.OK {
		span.SetStatus(codes.Error, res.Message)
	}
	if g.observer != nil {
		g.observer.ObserveConnectionTest(string(res.Category), time.Since(start))
	}
	return res
}
