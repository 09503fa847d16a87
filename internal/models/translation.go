// internal/models/translation.go
package models

// TranslateRequest POST /api/translate 请求体
type TranslateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// TranslateResponse POST /api/translate 响应
type TranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}
