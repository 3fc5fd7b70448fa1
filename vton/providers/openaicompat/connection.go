package openaicompat

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/doppl/types"
	"github.com/BaSui01/doppl/vton"
	"github.com/BaSui01/doppl/vton/providers"
)

// probeMessage 连接测试发送的最小内容
const probeMessage = "ping"

// TestConnection 用最小补全请求验证端点、凭证与模型是否可用。
// 从不返回错误：所有失败都转换为 OK=false 的结果。
func (p *Provider) TestConnection(ctx context.Context, cfg vton.CustomConfig) vton.ConnectionTestResult {
	endpoint, apiKey, model, err := resolve(cfg)
	if err != nil {
		msg := err.Error()
		if e, ok := types.AsError(err); ok {
			msg = e.Message
		}
		return vton.ConnectionTestResult{
			OK:       false,
			Category: vton.ConnectionMissingConfig,
			Message:  msg,
		}
	}

	body := providers.ChatRequest{
		Model:     model,
		Messages:  []providers.ChatMessage{{Role: providers.RoleUser, Content: probeMessage}},
		MaxTokens: 1,
		Stream:    false,
	}
	status, data, err := p.post(ctx, endpoint, apiKey, body)
	if err != nil {
		return vton.ConnectionTestResult{
			OK:       false,
			Category: vton.ConnectionNetworkError,
			Message:  fmt.Sprintf("could not reach %s", endpoint),
			Detail:   err.Error(),
		}
	}

	result := vton.ConnectionTestResult{Status: status}
	switch {
	case status >= 200 && status < 300:
		result.OK = true
		result.Category = vton.ConnectionOK
		result.Message = fmt.Sprintf("connected to %s with model %s", endpoint, model)
	case status == http.StatusUnauthorized:
		result.Category = vton.ConnectionUnauthorized
		result.Message = "authentication failed (401), the API key is invalid or expired"
		result.Detail = providers.ExtractErrorMessage(data)
	case status == http.StatusNotFound:
		result.Category = vton.ConnectionNotFound
		result.Message = fmt.Sprintf("model %q not found or base URL is wrong (404)", model)
		result.Detail = providers.ExtractErrorMessage(data)
	default:
		msg := providers.ExtractErrorMessage(data)
		result.Category = vton.ConnectionHTTPError
		result.Message = fmt.Sprintf("connection test failed (HTTP %d): %s", status, msg)
		result.Detail = msg
	}

	p.Logger.Info("connection test finished",
		zap.String("endpoint", endpoint),
		zap.String("model", model),
		zap.Bool("ok", result.OK),
		zap.String("category", string(result.Category)))
	return result
}
