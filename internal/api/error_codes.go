// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 书籍与章节
	ErrorBookNotFound    = "BOOK_NOT_FOUND"
	ErrorChapterNotFound = "CHAPTER_NOT_FOUND"
	ErrorInvalidBook     = "BOOK_INVALID"
	ErrorInvalidChapter  = "CHAPTER_INVALID"

	// 翻译引擎
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"

	// 实时更新
	ErrorPublishFailed = "PUBLISH_FAILED"
)
