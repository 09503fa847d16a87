package studio

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Corphon/TranslationStudio/internal/collab"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/utils"
)

// fakeBackend 内存后端，按顺序记录调用
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	books    []models.Book
	chapters map[models.ID][]models.Chapter
	nextID   int

	translated string
	patchErr   error
	listErr    error
	published  []models.LiveUpdate
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chapters: make(map[models.ID][]models.Chapter)}
}

func (f *fakeBackend) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ResetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

func (f *fakeBackend) ListBooks(ctx context.Context) ([]models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET books")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Book(nil), f.books...), nil
}

func (f *fakeBackend) CreateBook(ctx context.Context, form models.BookForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST books " + form.Title)
	f.nextID++
	f.books = append(f.books, models.Book{
		ID:          models.ID(fmt.Sprintf("b%d", f.nextID)),
		Title:       form.Title,
		Author:      form.Author,
		Description: form.Description,
	})
	return nil
}

func (f *fakeBackend) ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET chapters " + bookID.String())
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Chapter(nil), f.chapters[bookID]...), nil
}

func (f *fakeBackend) CreateChapter(ctx context.Context, bookID models.ID, form models.ChapterForm) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST chapters " + bookID.String() + " " + form.Title)
	f.nextID++
	f.chapters[bookID] = append(f.chapters[bookID], models.Chapter{
		ID:             models.ID(fmt.Sprintf("c%d", f.nextID)),
		BookID:         bookID,
		Title:          form.Title,
		SourceLanguage: form.SourceLanguage,
		TargetLanguage: form.TargetLanguage,
		SourceText:     form.SourceText,
	})
	return nil
}

func (f *fakeBackend) UpdateTranslation(ctx context.Context, chapterID models.ID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PATCH " + chapterID.String() + " " + text)
	if f.patchErr != nil {
		return f.patchErr
	}
	for bookID, list := range f.chapters {
		for i := range list {
			if list[i].ID == chapterID {
				f.chapters[bookID][i].TranslationText = text
			}
		}
	}
	return nil
}

func (f *fakeBackend) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("POST translate " + req.SourceLanguage + ">" + req.TargetLanguage + " " + req.Text)
	return f.translated, nil
}

func (f *fakeBackend) Publish(ctx context.Context, update models.LiveUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PUBLISH " + update.ChapterID.String() + " " + update.Content)
	f.published = append(f.published, update)
	return nil
}

// fakeSubscriber 返回本地订阅并记录每次打开
type fakeSubscriber struct {
	mu   sync.Mutex
	subs []*collab.Subscription
}

func (f *fakeSubscriber) Subscribe(ctx context.Context, chapterID models.ID) (*collab.Subscription, error) {
	sub := collab.NewLocalSubscription(chapterID)
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return sub, nil
}

func (f *fakeSubscriber) Opened() []*collab.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*collab.Subscription(nil), f.subs...)
}

func (f *fakeSubscriber) Last() *collab.Subscription {
	subs := f.Opened()
	if len(subs) == 0 {
		return nil
	}
	return subs[len(subs)-1]
}

func isClosed(sub *collab.Subscription) bool {
	select {
	case <-sub.Done():
		return true
	default:
		return false
	}
}

func quietOptions() (Options, *utils.MetricsCollector) {
	collector := utils.NewMetricsCollector()
	logger := utils.NewLogger(nil)
	return Options{
		Logger:  logger,
		Metrics: utils.NewAPIMetricsWith(collector, logger),
	}, collector
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
