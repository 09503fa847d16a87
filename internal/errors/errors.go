// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 远程调用错误类型
	ErrorTypeNetwork ErrorType = "network_error"
	ErrorTypeStatus  ErrorType = "status_error"
	ErrorTypeDecode  ErrorType = "decode_error"

	// 通用错误类型
	ErrorTypeValidation ErrorType = "validation_error"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeError      ErrorType = "processing_error"
	ErrorTypeState      ErrorType = "state_error"
)

// ErrNoChapterOpen 在没有打开章节时调用编辑操作返回
var ErrNoChapterOpen = NewAppError(ErrorTypeState, "no chapter is open", nil)

// AppError 应用程序错误结构
type AppError struct {
	Type       ErrorType
	Message    string
	Err        error
	Code       string // 错误代码
	StatusCode int    // 仅 ErrorTypeStatus 使用
	Body       string // 非成功响应的原始内容
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同类型的 AppError 视为相同
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == e.Message
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewNetworkError 创建网络错误
func NewNetworkError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNetwork, message, originalError)
}

// NewStatusError 创建非成功状态码错误
func NewStatusError(message string, statusCode int, body string) *AppError {
	e := NewAppError(ErrorTypeStatus, fmt.Sprintf("%s (status %d)", message, statusCode), nil)
	e.StatusCode = statusCode
	e.Body = body
	return e
}

// NewDecodeError 创建响应解析错误
func NewDecodeError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeDecode, message, originalError)
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

func isType(err error, errType ErrorType) bool {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type == errType
	}
	return false
}

// IsNetworkError 检查是否为网络错误
func IsNetworkError(err error) bool { return isType(err, ErrorTypeNetwork) }

// IsStatusError 检查是否为状态码错误
func IsStatusError(err error) bool { return isType(err, ErrorTypeStatus) }

// IsDecodeError 检查是否为解析错误
func IsDecodeError(err error) bool { return isType(err, ErrorTypeDecode) }

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool { return isType(err, ErrorTypeValidation) }

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool { return isType(err, ErrorTypeNotFound) }

// StatusCode 返回错误链中的HTTP状态码，没有则返回0
func StatusCode(err error) int {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.StatusCode
	}
	return 0
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeNetwork:
		return "NETWORK_ERROR"
	case ErrorTypeStatus:
		return "BAD_STATUS"
	case ErrorTypeDecode:
		return "MALFORMED_PAYLOAD"
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeState:
		return "INVALID_STATE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，保留类型与状态码
		return &AppError{
			Type:       appError.Type,
			Message:    fmt.Sprintf("%s: %s", message, appError.Message),
			Err:        appError,
			Code:       appError.Code,
			StatusCode: appError.StatusCode,
			Body:       appError.Body,
		}
	}

	return NewAppError(errType, message, err)
}
