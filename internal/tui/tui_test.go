package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Corphon/TranslationStudio/internal/collab"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/studio"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/rivo/tview"
)

// memoryBackend 内存后端
type memoryBackend struct {
	mu        sync.Mutex
	books     []models.Book
	chapters  []models.Chapter
	published []models.LiveUpdate
}

func (b *memoryBackend) ListBooks(ctx context.Context) ([]models.Book, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Book(nil), b.books...), nil
}

func (b *memoryBackend) CreateBook(ctx context.Context, form models.BookForm) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.books = append(b.books, models.Book{ID: models.ID("b" + string(rune('0'+len(b.books)))), Title: form.Title, Author: form.Author})
	return nil
}

func (b *memoryBackend) ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Chapter
	for _, c := range b.chapters {
		if c.BookID == bookID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *memoryBackend) CreateChapter(ctx context.Context, bookID models.ID, form models.ChapterForm) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chapters = append(b.chapters, models.Chapter{
		ID:             models.ID("c" + string(rune('0'+len(b.chapters)))),
		BookID:         bookID,
		Title:          form.Title,
		SourceLanguage: form.SourceLanguage,
		TargetLanguage: form.TargetLanguage,
		SourceText:     form.SourceText,
	})
	return nil
}

func (b *memoryBackend) UpdateTranslation(ctx context.Context, chapterID models.ID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.chapters {
		if b.chapters[i].ID == chapterID {
			b.chapters[i].TranslationText = text
		}
	}
	return nil
}

func (b *memoryBackend) Translate(ctx context.Context, req models.TranslateRequest) (string, error) {
	return "[" + req.TargetLanguage + "] " + req.Text, nil
}

func (b *memoryBackend) Publish(ctx context.Context, update models.LiveUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, update)
	return nil
}

type localSubscriber struct {
	mu   sync.Mutex
	last *collab.Subscription
}

func (s *localSubscriber) Subscribe(ctx context.Context, chapterID models.ID) (*collab.Subscription, error) {
	sub := collab.NewLocalSubscription(chapterID)
	s.mu.Lock()
	s.last = sub
	s.mu.Unlock()
	return sub, nil
}

func (s *localSubscriber) Last() *collab.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type harness struct {
	ui         *UI
	backend    *memoryBackend
	subscriber *localSubscriber
	mu         sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		backend:    &memoryBackend{books: []models.Book{{ID: "b1", Title: "Dune", Author: "Herbert"}}},
		subscriber: &localSubscriber{},
	}
	logger := utils.NewLogger(nil)
	h.ui = New(context.Background(), h.backend, h.subscriber, Config{
		User:       "ana",
		BackendURL: "http://localhost:8000",
		Transport:  "sse",
		Logger:     logger,
		Metrics:    utils.NewAPIMetricsWith(utils.NewMetricsCollector(), logger),
	})
	h.ui.queue = func(f func()) {
		h.mu.Lock()
		defer h.mu.Unlock()
		f()
	}
	t.Cleanup(h.ui.shell.Close)
	return h
}

// read 在与刷新相同的锁下读取控件
func (h *harness) read(f func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f()
}

func (h *harness) eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		ok := false
		h.read(func() { ok = cond() })
		if ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func currentPage(p *tview.Pages) string {
	name, _ := p.GetFrontPage()
	return name
}

func TestInitialPlaceholder(t *testing.T) {
	h := newHarness(t)

	h.read(func() {
		if currentPage(h.ui.pages) != pagePlaceholder {
			t.Errorf("front page = %s", currentPage(h.ui.pages))
		}
		if !strings.Contains(h.ui.status.GetText(true), "Live: -") {
			t.Errorf("status = %q", h.ui.status.GetText(true))
		}
	})
}

func TestReloadAndSelectBook(t *testing.T) {
	h := newHarness(t)

	h.ui.reloadBooks()
	h.eventually(t, "book list", func() bool { return h.ui.bookList.GetItemCount() == 1 })

	h.read(func() {
		main, secondary := h.ui.bookList.GetItemText(0)
		if main != "Dune" || secondary != "by Herbert" {
			t.Errorf("item = %q / %q", main, secondary)
		}
	})

	h.ui.picker.Select(h.backend.books[0])
	h.eventually(t, "editor page", func() bool { return currentPage(h.ui.pages) == pageEditor })

	h.read(func() {
		main, _ := h.ui.chapterList.GetItemText(0)
		if main != studio.PlaceholderNoChapters {
			t.Errorf("chapter placeholder = %q", main)
		}
		if h.ui.sourceView.GetText(true) != studio.PlaceholderNoChapter {
			t.Errorf("source placeholder = %q", h.ui.sourceView.GetText(true))
		}
		if !strings.Contains(h.ui.status.GetText(true), "Live: Connected") {
			t.Errorf("status = %q", h.ui.status.GetText(true))
		}
	})
}

func TestBookFormFeedsPicker(t *testing.T) {
	h := newHarness(t)

	field := h.ui.bookForm.GetFormItemByLabel(labelTitle).(*tview.InputField)
	field.SetText("Solaris")
	h.ui.bookFormChanged()
	if got := h.ui.picker.Form().Title; got != "Solaris" {
		t.Fatalf("picker form title = %q", got)
	}

	h.ui.createBook()
	h.eventually(t, "form cleared", func() bool { return field.GetText() == "" })
	h.eventually(t, "new book listed", func() bool { return h.ui.bookList.GetItemCount() == 2 })
}

func TestEditorFlow(t *testing.T) {
	h := newHarness(t)
	h.backend.chapters = []models.Chapter{{
		ID: "c1", BookID: "b1", Title: "Arrakis",
		SourceLanguage: "en", TargetLanguage: "es", SourceText: "Desert planet",
	}}

	h.ui.picker.Select(h.backend.books[0])
	h.eventually(t, "chapter list", func() bool {
		main, _ := h.ui.chapterList.GetItemText(0)
		return main == "Arrakis"
	})

	h.ui.openChapter(h.backend.chapters[0])
	h.eventually(t, "source text", func() bool { return h.ui.sourceView.GetText(true) == "Desert planet" })

	h.ui.translate()
	h.eventually(t, "translation", func() bool { return h.ui.translation.GetText() == "[es] Desert planet" })

	// 用户编辑直接进入缓冲区
	h.ui.translation.SetText("Planeta desierto", true)
	h.ui.translationEdited()
	if got := h.ui.shell.Editor().Translation(); got != "Planeta desierto" {
		t.Fatalf("buffer = %q", got)
	}

	h.ui.save()
	h.backend.mu.Lock()
	saved := h.backend.chapters[0].TranslationText
	published := append([]models.LiveUpdate(nil), h.backend.published...)
	h.backend.mu.Unlock()
	if saved != "Planeta desierto" {
		t.Errorf("saved = %q", saved)
	}
	if len(published) != 1 || published[0].Content != "Arrakis updated" || published[0].User != "ana" {
		t.Errorf("published = %+v", published)
	}

	// 实时更新替换译文
	h.subscriber.Last().Deliver(models.LiveUpdate{ChapterID: "c1", User: "bo", Content: "Arrakis, planeta"})
	h.eventually(t, "live update", func() bool { return h.ui.translation.GetText() == "Arrakis, planeta" })

	h.eventually(t, "status message", func() bool { return strings.Contains(h.ui.status.GetText(true), "Saved") })
}

func TestSecondaryText(t *testing.T) {
	if got := bookSecondary(models.Book{Title: "x"}); got != "by Unknown" {
		t.Errorf("bookSecondary = %q", got)
	}
	long := strings.Repeat("a", 60)
	if got := bookSecondary(models.Book{Author: "Le Guin", Description: long + "\nsecond"}); !strings.HasSuffix(got, "…") || strings.Contains(got, "second") {
		t.Errorf("bookSecondary = %q", got)
	}
	if got := chapterSecondary(models.Chapter{SourceLanguage: "en", TargetLanguage: "de", TranslationText: "x"}); got != "en → de · translated" {
		t.Errorf("chapterSecondary = %q", got)
	}
}
