// internal/studio/chapter_editor.go
package studio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Corphon/TranslationStudio/internal/collab"
	apperrors "github.com/Corphon/TranslationStudio/internal/errors"
	"github.com/Corphon/TranslationStudio/internal/models"
)

// ChannelState 实时更新连接状态
type ChannelState int

const (
	Disconnected ChannelState = iota
	Connected
)

func (s ChannelState) String() string {
	if s == Connected {
		return "connected"
	}
	return "disconnected"
}

// ErrNoChapterOpen 未打开章节时调用翻译/保存
var ErrNoChapterOpen = apperrors.ErrNoChapterOpen

// EditorSnapshot 编辑器状态快照，供界面绘制
type EditorSnapshot struct {
	Book        models.Book
	Chapters    []models.Chapter
	Form        models.ChapterForm
	OpenChapter *models.Chapter
	Translation string
	State       ChannelState
}

// ChapterEditor 单本书的章节与译文编辑器。
// 译文缓冲区反映最后一次发生的：打开章节、机器翻译、本地编辑、匹配的实时更新，不做合并。
type ChapterEditor struct {
	mu       sync.Mutex
	bookID   models.ID // 创建后不变，可无锁读取
	book     models.Book
	chapters []models.Chapter
	form     models.ChapterForm
	open     *models.Chapter
	buffer   string
	state    ChannelState
	sub      *collab.Subscription
	closed   bool

	backend    Backend
	subscriber Subscriber
	opts       Options
}

// NewChapterEditor 为一本书创建编辑器：加载章节并打开一条实时更新连接
func NewChapterEditor(ctx context.Context, book models.Book, backend Backend, subscriber Subscriber, opts Options) *ChapterEditor {
	e := &ChapterEditor{
		bookID:     book.ID,
		book:       book,
		form:       models.NewChapterForm(),
		backend:    backend,
		subscriber: subscriber,
		opts:       opts.withDefaults(),
	}

	e.LoadChapters(ctx)
	e.subscribe(ctx, "")
	return e
}

// Book 编辑器所属书籍
func (e *ChapterEditor) Book() models.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book
}

// setBook 更新同一本书的标题等信息，不影响章节与连接
func (e *ChapterEditor) setBook(book models.Book) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if book.ID == e.bookID {
		e.book = book
	}
}

// Snapshot 返回当前状态的副本
func (e *ChapterEditor) Snapshot() EditorSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := EditorSnapshot{
		Book:        e.book,
		Chapters:    append([]models.Chapter(nil), e.chapters...),
		Form:        e.form,
		Translation: e.buffer,
		State:       e.state,
	}
	if e.open != nil {
		c := *e.open
		snap.OpenChapter = &c
	}
	return snap
}

// Translation 当前译文缓冲区
func (e *ChapterEditor) Translation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer
}

// State 当前连接状态
func (e *ChapterEditor) State() ChannelState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SetForm 替换新建章节表单
func (e *ChapterEditor) SetForm(form models.ChapterForm) {
	e.mu.Lock()
	e.form = form
	e.mu.Unlock()
	e.opts.OnChange()
}

// LoadChapters 拉取本书章节。失败只记录日志，列表保持不变。
// 并发的拉取不做取消，后返回的结果覆盖先前的。
func (e *ChapterEditor) LoadChapters(ctx context.Context) error {
	chapters, err := e.backend.ListChapters(ctx, e.bookID)
	if err != nil {
		e.opts.Logger.Error("加载章节列表失败", map[string]interface{}{
			"book_id": e.bookID,
			"error":   err.Error(),
		})
		return err
	}

	e.mu.Lock()
	e.chapters = chapters
	e.mu.Unlock()
	e.opts.OnChange()
	return nil
}

// CreateChapter 提交新建章节表单，成功后表单恢复默认并刷新列表
func (e *ChapterEditor) CreateChapter(ctx context.Context) error {
	e.mu.Lock()
	form := e.form
	e.mu.Unlock()

	if err := e.backend.CreateChapter(ctx, e.bookID, form); err != nil {
		e.opts.Logger.Error("创建章节失败", map[string]interface{}{
			"book_id": e.bookID,
			"title":   form.Title,
			"error":   err.Error(),
		})
		return err
	}

	e.SetForm(models.NewChapterForm())
	e.LoadChapters(ctx)
	return nil
}

// OpenChapter 打开章节并把缓冲区设为其已保存译文。
// 章节变化时关闭旧连接、刷新章节列表并打开一条新连接。
func (e *ChapterEditor) OpenChapter(ctx context.Context, chapter models.Chapter) {
	e.mu.Lock()
	changed := e.open == nil || e.open.ID != chapter.ID
	c := chapter
	e.open = &c
	e.buffer = chapter.TranslationText
	e.mu.Unlock()
	e.opts.OnChange()

	if !changed {
		return
	}

	e.unsubscribe()
	e.LoadChapters(ctx)
	e.subscribe(ctx, chapter.ID)
}

// Edit 用本地编辑替换缓冲区
func (e *ChapterEditor) Edit(text string) {
	e.mu.Lock()
	e.buffer = text
	e.mu.Unlock()
	e.opts.OnChange()
}

// Translate 请求机器翻译，成功后直接替换缓冲区
func (e *ChapterEditor) Translate(ctx context.Context) error {
	e.mu.Lock()
	if e.open == nil {
		e.mu.Unlock()
		return ErrNoChapterOpen
	}
	req := models.TranslateRequest{
		Text:           e.open.SourceText,
		SourceLanguage: e.open.SourceLanguage,
		TargetLanguage: e.open.TargetLanguage,
	}
	chapterID := e.open.ID
	e.mu.Unlock()

	text, err := e.backend.Translate(ctx, req)
	if err != nil {
		e.opts.Logger.Error("机器翻译失败", map[string]interface{}{
			"chapter_id": chapterID,
			"error":      err.Error(),
		})
		return err
	}

	e.Edit(text)
	return nil
}

// Save 依次执行：保存译文、广播 "<标题> updated"、刷新章节列表。
// 前一步失败不会阻止后续步骤，也不回滚；所有错误合并返回。
func (e *ChapterEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.open == nil {
		e.mu.Unlock()
		return ErrNoChapterOpen
	}
	chapter := *e.open
	text := e.buffer
	e.mu.Unlock()

	var errs []error
	if err := e.backend.UpdateTranslation(ctx, chapter.ID, text); err != nil {
		e.opts.Logger.Error("保存译文失败", map[string]interface{}{
			"chapter_id": chapter.ID,
			"error":      err.Error(),
		})
		errs = append(errs, fmt.Errorf("save translation: %w", err))
	}

	if err := e.publish(ctx, chapter.ID, chapter.Title+" updated"); err != nil {
		errs = append(errs, fmt.Errorf("publish: %w", err))
	}

	if err := e.LoadChapters(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reload chapters: %w", err))
	}

	if len(errs) == 0 {
		e.opts.Logger.Info("💾 译文已保存", map[string]interface{}{"chapter_id": chapter.ID})
	}
	return errors.Join(errs...)
}

// Broadcast 广播当前缓冲区内容，不保存。未打开章节时 chapter_id 为空。
func (e *ChapterEditor) Broadcast(ctx context.Context) error {
	e.mu.Lock()
	var chapterID models.ID
	if e.open != nil {
		chapterID = e.open.ID
	}
	text := e.buffer
	e.mu.Unlock()

	return e.publish(ctx, chapterID, text)
}

func (e *ChapterEditor) publish(ctx context.Context, chapterID models.ID, content string) error {
	err := e.backend.Publish(ctx, models.LiveUpdate{
		ChapterID: chapterID,
		User:      e.opts.User,
		Content:   content,
	})
	if err != nil {
		e.opts.Logger.Error("广播实时更新失败", map[string]interface{}{
			"chapter_id": chapterID,
			"error":      err.Error(),
		})
	}
	return err
}

// Close 关闭实时更新连接，可重复调用
func (e *ChapterEditor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.unsubscribe()
}

// subscribe 打开一条新连接并启动转发协程
func (e *ChapterEditor) subscribe(ctx context.Context, chapterID models.ID) {
	sub, err := e.subscriber.Subscribe(context.WithoutCancel(ctx), chapterID)
	if err != nil {
		e.opts.Logger.Warn("打开实时更新连接失败", map[string]interface{}{
			"chapter_id": chapterID,
			"error":      err.Error(),
		})
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		sub.Close()
		return
	}
	previous := e.sub
	e.sub = sub
	e.state = Connected
	e.mu.Unlock()

	// 并发打开时保证只保留一条连接
	if previous != nil {
		previous.Close()
	}

	e.opts.Logger.Debug("🔌 实时更新已连接", map[string]interface{}{
		"book_id":    e.bookID,
		"chapter_id": chapterID,
	})
	e.opts.OnChange()

	go e.pump(sub)
}

func (e *ChapterEditor) unsubscribe() {
	e.mu.Lock()
	sub := e.sub
	e.sub = nil
	e.state = Disconnected
	e.mu.Unlock()

	if sub != nil {
		sub.Close()
		e.opts.OnChange()
	}
}

// pump 按顺序应用一条连接上的消息，连接结束后回到 Disconnected
func (e *ChapterEditor) pump(sub *collab.Subscription) {
	for msg := range sub.Updates() {
		e.applyLiveUpdate(sub, msg)
	}

	e.mu.Lock()
	current := e.sub == sub
	if current {
		e.sub = nil
		e.state = Disconnected
	}
	e.mu.Unlock()

	if current {
		e.opts.Logger.Info("实时更新流已结束", map[string]interface{}{"chapter_id": sub.ChapterID})
		e.opts.OnChange()
	}
}

// applyLiveUpdate 只接受当前连接上、章节匹配的消息，直接覆盖缓冲区（包括本地未保存的编辑）
func (e *ChapterEditor) applyLiveUpdate(sub *collab.Subscription, msg models.LiveUpdate) {
	e.mu.Lock()
	if e.sub != sub || e.open == nil || msg.ChapterID != e.open.ID {
		e.mu.Unlock()
		e.opts.Metrics.RecordLiveUpdate("ignored")
		return
	}
	e.buffer = msg.Content
	e.mu.Unlock()

	e.opts.Metrics.RecordLiveUpdate("applied")
	e.opts.OnChange()
}
