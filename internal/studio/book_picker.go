// internal/studio/book_picker.go
package studio

import (
	"context"
	"sync"

	"github.com/Corphon/TranslationStudio/internal/models"
)

// BookPicker 书籍列表与新建表单
type BookPicker struct {
	mu       sync.Mutex
	books    []models.Book
	loading  bool
	form     models.BookForm
	onSelect func(models.Book)

	backend Backend
	opts    Options
}

// NewBookPicker 创建书籍选择器。onSelect 在用户选中书籍时调用，可为 nil。
func NewBookPicker(backend Backend, onSelect func(models.Book), opts Options) *BookPicker {
	return &BookPicker{
		backend:  backend,
		onSelect: onSelect,
		opts:     opts.withDefaults(),
	}
}

// Books 返回当前书籍列表的副本
func (p *BookPicker) Books() []models.Book {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Book(nil), p.books...)
}

// Loading 是否正在加载列表
func (p *BookPicker) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Form 返回当前表单
func (p *BookPicker) Form() models.BookForm {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.form
}

// SetForm 替换表单内容
func (p *BookPicker) SetForm(form models.BookForm) {
	p.mu.Lock()
	p.form = form
	p.mu.Unlock()
	p.opts.OnChange()
}

// Load 拉取完整书籍列表。失败只记录日志，列表保持不变。
func (p *BookPicker) Load(ctx context.Context) error {
	p.setLoading(true)
	defer p.setLoading(false)

	books, err := p.backend.ListBooks(ctx)
	if err != nil {
		p.opts.Logger.Error("加载书籍列表失败", map[string]interface{}{"error": err.Error()})
		return err
	}

	p.mu.Lock()
	p.books = books
	p.mu.Unlock()
	p.opts.OnChange()
	return nil
}

// Create 提交表单。标题为空白时不发请求；成功后清空表单并刷新列表。
func (p *BookPicker) Create(ctx context.Context) error {
	form := p.Form()
	if !form.Valid() {
		return nil
	}

	if err := p.backend.CreateBook(ctx, form); err != nil {
		p.opts.Logger.Error("创建书籍失败", map[string]interface{}{
			"title": form.Title,
			"error": err.Error(),
		})
		return err
	}

	p.opts.Logger.Info("📚 书籍已创建", map[string]interface{}{"title": form.Title})
	p.SetForm(models.BookForm{})
	p.Load(ctx)
	return nil
}

// Select 把书籍交给选择回调
func (p *BookPicker) Select(book models.Book) {
	if p.onSelect != nil {
		p.onSelect(book)
	}
}

func (p *BookPicker) setLoading(v bool) {
	p.mu.Lock()
	p.loading = v
	p.mu.Unlock()
	p.opts.OnChange()
}
