// internal/storage/store.go
package storage

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/Corphon/TranslationStudio/internal/errors"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/google/uuid"
)

// Store 书籍与章节的持久化
type Store interface {
	// Kind 存储类型：file 或 postgres
	Kind() string

	ListBooks(ctx context.Context) ([]models.Book, error)
	CreateBook(ctx context.Context, form models.BookForm) (*models.Book, error)

	ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error)
	CreateChapter(ctx context.Context, req models.CreateChapterRequest) (*models.Chapter, error)
	UpdateTranslation(ctx context.Context, chapterID models.ID, text string) (*models.Chapter, error)

	Close() error
}

// newID 生成资源标识
func newID() models.ID {
	return models.ID(uuid.NewString())
}

// validateBook 标题去除空白后不能为空
func validateBook(form models.BookForm) error {
	if !form.Valid() {
		return apperrors.NewValidationError("title is required", nil)
	}
	return nil
}

// validateChapter book_id 必填，语言为空时使用默认语言对
func validateChapter(req *models.CreateChapterRequest) error {
	if req.BookID.IsZero() {
		return apperrors.NewValidationError("book_id is required", nil)
	}
	if strings.TrimSpace(req.SourceLanguage) == "" {
		req.SourceLanguage = models.DefaultSourceLanguage
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		req.TargetLanguage = models.DefaultTargetLanguage
	}
	return nil
}

func bookNotFound(id models.ID) error {
	return apperrors.NewNotFoundError("book "+id.String()+" not found", nil)
}

func chapterNotFound(id models.ID) error {
	return apperrors.NewNotFoundError("chapter "+id.String()+" not found", nil)
}

// bookRecord 文件中保存的书籍，附带排序用的创建时间
type bookRecord struct {
	models.Book
	CreatedAt time.Time `json:"created_at"`
}

// chapterRecord 文件中保存的章节
type chapterRecord struct {
	models.Chapter
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
