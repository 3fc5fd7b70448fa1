package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"

	defaultReadyTimeout = 5 * time.Second
)

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // healthy / degraded / unhealthy
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	// Providers 服务端默认凭证是否完整，缺失时请求仍可自带配置
	Providers map[string]bool `json:"providers,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status   string `json:"status"` // pass / fail / warn
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

type registeredCheck struct {
	check    HealthCheck
	critical bool
}

// HealthHandler 健康检查处理器。
// critical 检查失败时 /ready 返回 503；非 critical 检查失败只把状态降为 degraded。
type HealthHandler struct {
	logger    *zap.Logger
	started   time.Time
	timeout   time.Duration
	providers func() map[string]bool

	mu     sync.RWMutex
	checks []registeredCheck
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		started: time.Now(),
		timeout: defaultReadyTimeout,
	}
}

// RegisterCheck 注册关键检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.register(check, true)
}

// RegisterOptionalCheck 注册非关键检查，失败时服务仍可接收流量
func (h *HealthHandler) RegisterOptionalCheck(check HealthCheck) {
	h.register(check, false)
}

func (h *HealthHandler) register(check HealthCheck, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, registeredCheck{check: check, critical: critical})
}

// SetProviderStatus 设置 Provider 配置状态来源，每次 /ready 调用时读取
func (h *HealthHandler) SetProviderStatus(fn func() map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providers = fn
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleHealth 处理 /health 请求（简单健康检查）
// @Summary 健康检查
// @Description 进程存活即返回 healthy
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.liveness())
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.liveness())
}

func (h *HealthHandler) liveness() HealthStatus {
	return HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
	}
}

// HandleReady 处理 /ready 或 /readyz 请求（就绪检查）。所有检查并发执行。
// @Summary 就绪检查
// @Description 检查配置与依赖是否可用，并报告 Provider 默认凭证是否完整
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已准备就绪（可能为 degraded）"
// @Failure 503 {object} HealthStatus "关键检查失败"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make([]registeredCheck, len(h.checks))
	copy(checks, h.checks)
	providers := h.providers
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, rc := range checks {
		g.Go(func() error {
			results[i] = h.run(ctx, rc)
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	if providers != nil {
		status.Providers = providers()
	}

	code := http.StatusOK
	for i, rc := range checks {
		res := results[i]
		status.Checks[rc.check.Name()] = res
		switch {
		case res.Status == "fail":
			status.Status = statusUnhealthy
			code = http.StatusServiceUnavailable
		case res.Status == "warn" && status.Status == statusHealthy:
			status.Status = statusDegraded
		}
	}

	WriteJSON(w, code, status)
}

func (h *HealthHandler) run(ctx context.Context, rc registeredCheck) CheckResult {
	start := time.Now()
	err := rc.check.Check(ctx)
	latency := time.Since(start)

	res := CheckResult{Status: "pass", Critical: rc.critical, Latency: latency.String()}
	if err == nil {
		return res
	}

	res.Message = err.Error()
	if rc.critical {
		res.Status = "fail"
	} else {
		res.Status = "warn"
	}
	h.logger.Warn("health check failed",
		zap.String("check", rc.check.Name()),
		zap.Bool("critical", rc.critical),
		zap.Duration("latency", latency),
		zap.Error(err))
	return res
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} Response "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, info)
	}
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// FuncCheck 用函数实现 HealthCheck
type FuncCheck struct {
	name  string
	check func(ctx context.Context) error
}

// NewFuncCheck 创建函数式健康检查
func NewFuncCheck(name string, check func(ctx context.Context) error) *FuncCheck {
	return &FuncCheck{name: name, check: check}
}

func (c *FuncCheck) Name() string { return c.name }

func (c *FuncCheck) Check(ctx context.Context) error { return c.check(ctx) }
