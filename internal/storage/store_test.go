package storage

import (
	"context"
	"os"
	"testing"

	apperrors "github.com/Corphon/TranslationStudio/internal/errors"
	"github.com/Corphon/TranslationStudio/internal/models"
)

// exerciseStore 对任意 Store 实现运行同一组检查
func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	if _, err := store.CreateBook(ctx, models.BookForm{Title: "   "}); !apperrors.IsValidationError(err) {
		t.Errorf("blank title err = %v", err)
	}

	first, err := store.CreateBook(ctx, models.BookForm{Title: "Niebla", Author: "Unamuno"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	second, err := store.CreateBook(ctx, models.BookForm{Title: "Marianela"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	books, err := store.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) < 2 {
		t.Fatalf("books = %d", len(books))
	}
	idx := map[models.ID]int{}
	for i, b := range books {
		idx[b.ID] = i
	}
	if idx[first.ID] > idx[second.ID] {
		t.Error("books should be listed in creation order")
	}

	ch, err := store.CreateChapter(ctx, models.CreateChapterRequest{
		ChapterForm: models.ChapterForm{Title: "I", SourceText: "Augusto..."},
		BookID:      first.ID,
	})
	if err != nil {
		t.Fatalf("CreateChapter: %v", err)
	}
	if ch.SourceLanguage != "en" || ch.TargetLanguage != "es" {
		t.Errorf("default languages = %s/%s", ch.SourceLanguage, ch.TargetLanguage)
	}

	if _, err := store.CreateChapter(ctx, models.CreateChapterRequest{BookID: "00000000-0000-0000-0000-000000000000"}); !apperrors.IsNotFoundError(err) {
		t.Errorf("unknown book err = %v", err)
	}
	if _, err := store.CreateChapter(ctx, models.CreateChapterRequest{}); !apperrors.IsValidationError(err) {
		t.Errorf("missing book_id err = %v", err)
	}

	updated, err := store.UpdateTranslation(ctx, ch.ID, "Augusto...")
	if err != nil {
		t.Fatalf("UpdateTranslation: %v", err)
	}
	if updated.TranslationText != "Augusto..." || updated.Title != "I" {
		t.Errorf("updated = %+v", updated)
	}
	if _, err := store.UpdateTranslation(ctx, "00000000-0000-0000-0000-000000000001", "x"); !apperrors.IsNotFoundError(err) {
		t.Errorf("unknown chapter err = %v", err)
	}

	chapters, err := store.ListChapters(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(chapters) != 1 || chapters[0].TranslationText != "Augusto..." {
		t.Errorf("chapters = %+v", chapters)
	}

	empty, err := store.ListChapters(ctx, second.ID)
	if err != nil || len(empty) != 0 {
		t.Errorf("second book chapters = %v, %v", empty, err)
	}
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)

	if _, err := store.UpdateTranslation(context.Background(), "../books/x", "x"); !apperrors.IsNotFoundError(err) {
		t.Errorf("path-like id err = %v", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	book, err := store.CreateBook(ctx, models.BookForm{Title: "Persisted"})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	books, err := reopened.ListBooks(ctx)
	if err != nil || len(books) != 1 || books[0].ID != book.ID {
		t.Fatalf("books after reopen = %+v, %v", books, err)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	store, err := NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer store.Close()

	exerciseStore(t, store)
}
