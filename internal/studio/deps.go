// internal/studio/deps.go
package studio

import (
	"context"

	"github.com/Corphon/TranslationStudio/internal/collab"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/utils"
)

// 界面占位文案
const (
	PlaceholderNoBook     = "Select or create a book to start."
	PlaceholderNoChapters = "No chapters yet. Create one above."
	PlaceholderNoChapter  = "Select a chapter to start translating."
)

// Backend 控制器使用的后端调用，由 client.Client 实现
type Backend interface {
	ListBooks(ctx context.Context) ([]models.Book, error)
	CreateBook(ctx context.Context, form models.BookForm) error
	ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error)
	CreateChapter(ctx context.Context, bookID models.ID, form models.ChapterForm) error
	UpdateTranslation(ctx context.Context, chapterID models.ID, text string) error
	Translate(ctx context.Context, req models.TranslateRequest) (string, error)
	Publish(ctx context.Context, update models.LiveUpdate) error
}

// Subscriber 打开实时更新连接，由 collab.Subscriber 实现
type Subscriber interface {
	Subscribe(ctx context.Context, chapterID models.ID) (*collab.Subscription, error)
}

// Options 控制器公共选项
type Options struct {
	// User 广播消息中的用户标签，默认 "editor"
	User     string
	Logger   *utils.Logger
	Metrics  *utils.APIMetrics
	OnChange func()
}

func (o Options) withDefaults() Options {
	if o.User == "" {
		o.User = "editor"
	}
	if o.Logger == nil {
		o.Logger = utils.GetLogger()
	}
	if o.Metrics == nil {
		o.Metrics = utils.NewAPIMetrics()
	}
	if o.OnChange == nil {
		o.OnChange = func() {}
	}
	return o
}
