package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the gateway.
type ErrorCode string

// Gateway error codes
const (
	// ErrConfig 缺少或格式错误的 base URL / API key / model，在任何网络调用之前报告
	ErrConfig ErrorCode = "CONFIG_ERROR"
	// ErrCredentialFormat SDK key 未通过本地前缀校验
	ErrCredentialFormat ErrorCode = "CREDENTIAL_FORMAT"
	// ErrTransport 网络失败，或期望 JSON 却拿到非 JSON 响应体
	ErrTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrProvider 上游非 2xx 或 SDK 报告的权限/配额失败
	ErrProvider ErrorCode = "PROVIDER_ERROR"
	// ErrNoImage 流水线完成但没有解析出任何图像
	ErrNoImage ErrorCode = "NO_IMAGE"
	// ErrUnrecognizedResponse 响应体不匹配任何已知形状
	ErrUnrecognizedResponse ErrorCode = "UNRECOGNIZED_RESPONSE"
	// ErrAnalysisParse 只用于诊断日志，从不作为错误返回
	ErrAnalysisParse ErrorCode = "ANALYSIS_PARSE"
)

// API error codes
const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrRateLimited      ErrorCode = "RATE_LIMITED"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	// Endpoint is the upstream URL involved, when there is one.
	Endpoint string `json:"endpoint,omitempty"`
	// Detail carries a truncated upstream body snippet for diagnosis.
	Detail string `json:"detail,omitempty"`
	Cause  error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithEndpoint sets the upstream endpoint.
func (e *Error) WithEndpoint(endpoint string) *Error {
	e.Endpoint = endpoint
	return e
}

// WithDetail sets the diagnostic detail.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// NewConfigError 创建配置错误（在任何 I/O 之前报告）。
func NewConfigError(message string) *Error {
	return NewError(ErrConfig, message)
}

// NewCredentialFormatError 创建凭证格式错误。
func NewCredentialFormatError(message string) *Error {
	return NewError(ErrCredentialFormat, message)
}

// NewTransportError 创建传输错误，附带端点与响应片段。
func NewTransportError(message, endpoint, detail string) *Error {
	return &Error{Code: ErrTransport, Message: message, Endpoint: endpoint, Detail: detail}
}

// NewProviderError 创建上游错误。
func NewProviderError(message string, status int, provider string) *Error {
	return &Error{
		Code:       ErrProvider,
		Message:    message,
		HTTPStatus: status,
		Retryable:  status == 429 || status >= 500,
		Provider:   provider,
	}
}

// NewNoImageError 创建无图像错误。
func NewNoImageError(message string) *Error {
	return NewError(ErrNoImage, message)
}

// NewInvalidRequestError 创建请求参数错误。
func NewInvalidRequestError(message string) *Error {
	return NewError(ErrInvalidRequest, message)
}
