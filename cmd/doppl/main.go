// =============================================================================
// Doppl 主入口
// =============================================================================
// 虚拟试穿 Provider 网关服务，包含 HTTP API、健康检查、Prometheus 指标
//
// 使用方法:
//
//	doppl serve                       # 启动服务
//	doppl serve --config config.yaml  # 指定配置文件（支持热更新）
//	doppl validate --config x.yaml    # 校验配置
//	doppl test-connection             # 测试配置中的自定义 Provider
//	doppl version                     # 显示版本信息
//	doppl health                      # 健康检查
// =============================================================================

// @title Doppl API
// @version 1.0.0
// @description Doppl is a virtual try-on gateway that routes garment try-on
// @description requests to Google Gemini or any OpenAI-compatible image model.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/doppl/config"
	"github.com/BaSui01/doppl/internal/telemetry"
	"github.com/BaSui01/doppl/vton/gateway"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "serve":
		code = runServe(os.Args[2:])
	case "validate":
		code = runValidate(os.Args[2:], os.Stdout)
	case "test-connection":
		code = runTestConnection(os.Args[2:], os.Stdout)
	case "version":
		printVersion(os.Stdout)
	case "health":
		code = runHealthCheck(os.Args[2:], os.Stdout)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		code = 1
	}
	os.Exit(code)
}

// loadConfig 解析 --config 并加载、校验配置
func loadConfig(name string, args []string) (*config.Config, *config.Loader, string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	dotEnv := fs.String("env-file", ".env", "Path to .env file; missing files are ignored")
	if err := fs.Parse(args); err != nil {
		return nil, nil, "", err
	}

	loader := config.NewLoader().WithDotEnv(*dotEnv)
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, loader, *configPath, nil
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) int {
	cfg, loader, configPath, err := loadConfig("serve", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting Doppl",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("default_provider", cfg.Gateway.DefaultProvider),
	)

	tel, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := NewServer(cfg, loader, configPath, logger, tel)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return 1
	}

	logger.Info("Doppl stopped")
	return 0
}

// =============================================================================
// ✅ validate / test-connection 命令
// =============================================================================

func runValidate(args []string, out io.Writer) int {
	cfg, _, _, err := loadConfig("validate", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Fprintf(out, "OK (provider=%s, language=%s, custom=%t)\n",
		cfg.Gateway.DefaultProvider, cfg.Gateway.Language(), cfg.Custom.Provider().IsComplete())
	return 0
}

func runTestConnection(args []string, out io.Writer) int {
	cfg, _, _, err := loadConfig("test-connection", args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	gw := gateway.NewDefault(gateway.Config{
		Timeout: cfg.Gateway.Timeout,
		Referer: cfg.Custom.Referer,
		Title:   cfg.Custom.Title,
	}, initLogger(config.LogConfig{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	res := gw.TestCustomConnection(ctx, cfg.Custom.Provider())

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	if !res.OK {
		return 1
	}
	return 0
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Fprintln(out, "OK")
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(out io.Writer) {
	fmt.Fprintf(out, "Doppl %s\n", Version)
	fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, `Doppl - Virtual Try-On Provider Gateway

Usage:
  doppl <command> [options]

Commands:
  serve            Start the Doppl server
  validate         Load and validate configuration
  test-connection  Test the configured custom (OpenAI-compatible) provider
  version          Show version information
  health           Check server health
  help             Show this help message

Options for 'serve', 'validate', 'test-connection':
  --config <path>    Path to configuration file (YAML)
  --env-file <path>  Path to .env file (default .env)

Examples:
  doppl serve
  doppl serve --config /etc/doppl/config.yaml
  DOPPL_CUSTOM_BASE_URL=https://openrouter.ai/api/v1 doppl test-connection
  doppl health --addr http://localhost:8080
  doppl version`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}
