// internal/models/chapter.go
package models

// 章节表单默认语言对
const (
	DefaultSourceLanguage = "en"
	DefaultTargetLanguage = "es"
)

// Chapter 表示书中的一个章节及其译文
type Chapter struct {
	ID              ID     `json:"id"`
	BookID          ID     `json:"book_id"`
	Title           string `json:"title"`
	SourceLanguage  string `json:"source_language"`
	TargetLanguage  string `json:"target_language"`
	SourceText      string `json:"source_text"`
	TranslationText string `json:"translation_text"`
}

// ChapterForm 创建章节的表单，book_id 由编辑器隐式提供
type ChapterForm struct {
	Title          string `json:"title"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
	SourceText     string `json:"source_text"`
}

// NewChapterForm 返回带默认语言对的空表单
func NewChapterForm() ChapterForm {
	return ChapterForm{
		SourceLanguage: DefaultSourceLanguage,
		TargetLanguage: DefaultTargetLanguage,
	}
}

// CreateChapterRequest POST /api/chapters 请求体
type CreateChapterRequest struct {
	ChapterForm
	BookID ID `json:"book_id"`
}

// UpdateTranslationRequest PATCH /api/chapters/{id} 请求体
type UpdateTranslationRequest struct {
	TranslationText string `json:"translation_text"`
}

// LanguagePair 列表中展示的语言对
func (c Chapter) LanguagePair() string {
	return c.SourceLanguage + " → " + c.TargetLanguage
}
