package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/doppl/api"
	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
)

// =============================================================================
// 👗 试穿 Handler
// =============================================================================

// Generator 试穿网关的最小接口
type Generator interface {
	Generate(ctx context.Context, req *vton.GenerationRequest) (*vton.Result, error)
	TestCustomConnection(ctx context.Context, cfg vton.CustomConfig) vton.ConnectionTestResult
}

// ProviderDefaults 服务端配置的 Provider 缺省值，请求未提供时使用
type ProviderDefaults struct {
	Provider vton.ProviderKind
	Language vton.Language
	Google   vton.GoogleConfig
	Custom   vton.CustomConfig
}

// VTONHandler 试穿生成与连接测试处理器
type VTONHandler struct {
	gen      Generator
	defaults func() ProviderDefaults
	maxBody  int64
	logger   *zap.Logger
}

// NewVTONHandler 创建试穿处理器。defaults 每次请求都会调用，配置热更新后立即生效。
func NewVTONHandler(gen Generator, defaults func() ProviderDefaults, maxBody int64, logger *zap.Logger) *VTONHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults == nil {
		defaults = func() ProviderDefaults { return ProviderDefaults{} }
	}
	return &VTONHandler{
		gen:      gen,
		defaults: defaults,
		maxBody:  maxBody,
		logger:   logger.With(zap.String("handler", "vton")),
	}
}

// HandleGenerate 处理试穿生成请求
// @Summary 生成试穿图像
// @Description 合成用户照片与服装图片，返回试穿图像与触感分析
// @Tags 试穿
// @Accept json
// @Produce json
// @Param request body api.GenerateRequest true "生成请求"
// @Success 200 {object} Response{data=api.GenerateResponse} "生成成功"
// @Failure 400 {object} Response "请求或配置错误"
// @Failure 413 {object} Response "请求体过大"
// @Failure 422 {object} Response "模型未返回图像"
// @Failure 502 {object} Response "上游错误"
// @Security ApiKeyAuth
// @Router /api/v1/vton/generate [post]
func (h *VTONHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, h.logger) || !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBody, h.logger); err != nil {
		return
	}

	genReq, err := h.buildRequest(&req)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	res, err := h.gen.Generate(r.Context(), genReq)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, api.GenerateResponse{
		Image:    res.Image,
		Analysis: res.Analysis,
		Provider: string(genReq.Provider.Kind()),
		Model:    genReq.Provider.ModelName(),
	})
}

// HandleTestConnection 处理自定义 Provider 连接测试。测试失败也返回 200，结果在 data.ok 中。
// @Summary 测试自定义 Provider 连接
// @Description 对 OpenAI 兼容端点发起一次最小调用并分类结果
// @Tags 试穿
// @Accept json
// @Produce json
// @Param request body api.TestConnectionRequest true "连接配置"
// @Success 200 {object} Response{data=api.TestConnectionResponse} "测试结果"
// @Failure 400 {object} Response "请求格式错误"
// @Security ApiKeyAuth
// @Router /api/v1/vton/test-connection [post]
func (h *VTONHandler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost, h.logger) || !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.TestConnectionRequest
	if err := DecodeJSONBody(w, r, &req, h.maxBody, h.logger); err != nil {
		return
	}

	cfg := req.CustomConfig.ToDomain()
	if req.CustomConfig.IsEmpty() {
		cfg = h.defaults().Custom
	}

	res := h.gen.TestCustomConnection(r.Context(), cfg)
	h.logger.Info("connection test",
		zap.Bool("ok", res.OK),
		zap.String("category", string(res.Category)),
		zap.Int("status", res.Status),
		zap.String("model", cfg.ModelName()))

	WriteSuccess(w, r, res)
}

// buildRequest 把表单字段与服务端缺省值合并成生成请求。
// custom_config 只要填了任一字段就完全按请求使用，服务端的 key 不会与请求方的 URL 混用。
func (h *VTONHandler) buildRequest(req *api.GenerateRequest) (*vton.GenerationRequest, error) {
	d := h.defaults()

	kind := vton.ProviderKind(strings.ToLower(strings.TrimSpace(req.Provider)))
	if kind == "" {
		kind = d.Provider
	}
	if kind == "" {
		kind = vton.ProviderGoogle
	}

	google := d.Google
	if key := strings.TrimSpace(req.GoogleKey); key != "" {
		google.APIKey = key
	}
	if model := strings.TrimSpace(req.GoogleModel); model != "" {
		google.Model = model
	}

	custom := d.Custom
	if !req.CustomConfig.IsEmpty() {
		custom = req.CustomConfig.ToDomain()
	}

	provider, err := vton.SelectProvider(kind, google, custom)
	if err != nil {
		return nil, err
	}

	lang := d.Language
	if s := strings.TrimSpace(req.Language); s != "" {
		parsed, ok := vton.ParseLanguage(s)
		if !ok {
			return nil, types.NewInvalidRequestError(fmt.Sprintf("unsupported language %q (expected %q or %q)", s, vton.LangZhTW, vton.LangEN))
		}
		lang = parsed
	}

	return &vton.GenerationRequest{
		UserImage:    vton.NewImagePayload(req.UserImageBase64, req.UserImageMime),
		GarmentImage: vton.NewImagePayload(req.GarmentImageBase64, req.GarmentImageMime),
		Refinement:   strings.TrimSpace(req.RefinementText),
		Language:     lang,
		Provider:     provider,
	}, nil
}
