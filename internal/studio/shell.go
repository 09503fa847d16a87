// internal/studio/shell.go
package studio

import (
	"context"
	"sync"

	"github.com/Corphon/TranslationStudio/internal/models"
)

// Shell 持有当前选中的书籍，并为其维护唯一的章节编辑器
type Shell struct {
	mu     sync.Mutex
	book   *models.Book
	editor *ChapterEditor

	backend    Backend
	subscriber Subscriber
	opts       Options
}

// NewShell 创建外壳
func NewShell(backend Backend, subscriber Subscriber, opts Options) *Shell {
	return &Shell{
		backend:    backend,
		subscriber: subscriber,
		opts:       opts.withDefaults(),
	}
}

// NewPicker 创建与外壳联动的书籍选择器，选中书籍时调用 SelectBook
func (s *Shell) NewPicker(ctx context.Context) *BookPicker {
	return NewBookPicker(s.backend, func(b models.Book) {
		s.SelectBook(ctx, b)
	}, s.opts)
}

// SelectBook 选中书籍。换书时关闭旧编辑器并新建；同一本书保留现有编辑器。
func (s *Shell) SelectBook(ctx context.Context, book models.Book) *ChapterEditor {
	s.mu.Lock()
	if s.book != nil && s.book.ID == book.ID && s.editor != nil {
		// 同一本书只刷新书籍信息
		changed := *s.book != book
		b := book
		s.book = &b
		editor := s.editor
		s.mu.Unlock()

		if changed {
			editor.setBook(book)
			s.opts.OnChange()
		}
		return editor
	}
	previous := s.editor
	b := book
	s.book = &b
	s.editor = nil
	s.mu.Unlock()

	if previous != nil {
		previous.Close()
	}

	editor := NewChapterEditor(ctx, book, s.backend, s.subscriber, s.opts)

	s.mu.Lock()
	// 构建期间又选了别的书
	if s.book == nil || s.book.ID != book.ID || s.editor != nil {
		s.mu.Unlock()
		editor.Close()
		return s.Editor()
	}
	s.editor = editor
	s.mu.Unlock()

	s.opts.Logger.Info("📖 已选中书籍", map[string]interface{}{
		"book_id": book.ID,
		"title":   book.Title,
	})
	s.opts.OnChange()
	return editor
}

// SelectedBook 当前选中的书籍，未选中时为 nil
func (s *Shell) SelectedBook() *models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.book == nil {
		return nil
	}
	b := *s.book
	return &b
}

// Editor 当前编辑器，未选中书籍时为 nil
func (s *Shell) Editor() *ChapterEditor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

// Placeholder 未选中书籍时显示的文案
func (s *Shell) Placeholder() string {
	return PlaceholderNoBook
}

// Close 关闭当前编辑器
func (s *Shell) Close() {
	s.mu.Lock()
	editor := s.editor
	s.editor = nil
	s.book = nil
	s.mu.Unlock()

	if editor != nil {
		editor.Close()
	}
}
