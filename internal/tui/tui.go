// internal/tui/tui.go
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/studio"
	"github.com/Corphon/TranslationStudio/internal/utils"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// 页面名称
const (
	pagePlaceholder = "placeholder"
	pageEditor      = "editor"
)

// 表单字段标签
const (
	labelTitle       = "Title"
	labelAuthor      = "Author"
	labelDescription = "Description"
	labelSource      = "Source lang"
	labelTarget      = "Target lang"
	labelSourceText  = "Source text"
)

const helpText = " Tab: next pane | Ctrl-T: translate | Ctrl-S: save | Ctrl-B: broadcast | Ctrl-R: reload | Ctrl-Q: quit"

// 状态提示的显示时长
const flashDuration = 4 * time.Second

// Config 界面配置
type Config struct {
	User       string
	BackendURL string
	Transport  string
	Logger     *utils.Logger
	Metrics    *utils.APIMetrics
}

// UI 终端界面，所有控件只在 tview 事件循环中修改
type UI struct {
	app    *tview.Application
	ctx    context.Context
	cfg    Config
	shell  *studio.Shell
	picker *studio.BookPicker

	pages       *tview.Pages
	bookList    *tview.List
	bookForm    *tview.Form
	chapterList *tview.List
	chapterForm *tview.Form
	sourceView  *tview.TextView
	translation *tview.TextArea
	actions     *tview.Form
	status      *tview.TextView
	help        *tview.TextView
	focusables  []tview.Primitive

	lastBooks    []models.Book
	lastChapters []models.Chapter
	lastOpen     models.ID
	syncing      bool
	message      string
	messageErr   bool

	// queue 把刷新投递到事件循环，测试中直接执行
	queue func(func())
}

// New 创建界面
func New(ctx context.Context, backend studio.Backend, subscriber studio.Subscriber, cfg Config) *UI {
	if cfg.Logger == nil {
		cfg.Logger = utils.GetLogger()
	}

	u := &UI{
		app: tview.NewApplication(),
		ctx: ctx,
		cfg: cfg,
	}
	u.queue = func(f func()) { u.app.QueueUpdateDraw(f) }

	opts := studio.Options{
		User:     cfg.User,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		OnChange: func() { u.queue(u.refresh) },
	}
	u.shell = studio.NewShell(backend, subscriber, opts)
	u.picker = u.shell.NewPicker(ctx)

	u.build()
	return u
}

// Run 启动事件循环，返回时关闭编辑器连接
func (u *UI) Run() error {
	defer u.shell.Close()

	go u.reloadBooks()
	return u.app.Run()
}

// Stop 退出事件循环
func (u *UI) Stop() {
	u.app.Stop()
}

// ===============================
// 布局
// ===============================

func (u *UI) build() {
	tview.Styles.PrimitiveBackgroundColor = tcell.ColorBlack
	tview.Styles.BorderColor = tcell.ColorDarkGray
	tview.Styles.TitleColor = tcell.ColorYellow
	tview.Styles.SecondaryTextColor = tcell.ColorYellow

	// 书籍
	u.bookList = tview.NewList().ShowSecondaryText(true)
	u.bookList.SetBorder(true).SetTitle(" Books ")

	u.bookForm = tview.NewForm().
		AddInputField(labelTitle, "", 0, nil, func(string) { u.bookFormChanged() }).
		AddInputField(labelAuthor, "", 0, nil, func(string) { u.bookFormChanged() }).
		AddInputField(labelDescription, "", 0, nil, func(string) { u.bookFormChanged() }).
		AddButton("Create book", func() { go u.createBook() })
	u.bookForm.SetBorder(true).SetTitle(" New book ")

	left := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.bookList, 0, 1, true).
		AddItem(u.bookForm, 11, 0, false)

	// 章节
	u.chapterList = tview.NewList().ShowSecondaryText(true)
	u.chapterList.SetBorder(true).SetTitle(" Chapters ")

	u.chapterForm = tview.NewForm().
		AddInputField(labelTitle, "", 0, nil, func(string) { u.chapterFormChanged() }).
		AddInputField(labelSource, models.DefaultSourceLanguage, 8, nil, func(string) { u.chapterFormChanged() }).
		AddInputField(labelTarget, models.DefaultTargetLanguage, 8, nil, func(string) { u.chapterFormChanged() }).
		AddTextArea(labelSourceText, "", 0, 3, 0, func(string) { u.chapterFormChanged() }).
		AddButton("Create chapter", func() { go u.createChapter() })
	u.chapterForm.SetBorder(true).SetTitle(" New chapter ")

	top := tview.NewFlex().
		AddItem(u.chapterList, 0, 1, false).
		AddItem(u.chapterForm, 0, 1, false)

	// 原文与译文
	u.sourceView = tview.NewTextView().SetWrap(true).SetWordWrap(true)
	u.sourceView.SetBorder(true).SetTitle(" Source ")

	u.translation = tview.NewTextArea().SetWrap(true)
	u.translation.SetBorder(true).SetTitle(" Translation ")
	u.translation.SetChangedFunc(u.translationEdited)

	middle := tview.NewFlex().
		AddItem(u.sourceView, 0, 1, false).
		AddItem(u.translation, 0, 1, false)

	u.actions = tview.NewForm().
		AddButton("Translate", func() { go u.translate() }).
		AddButton("Save", func() { go u.save() }).
		AddButton("Broadcast", func() { go u.broadcast() })

	editor := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 2, false).
		AddItem(middle, 0, 3, false).
		AddItem(u.actions, 3, 0, false)

	placeholder := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetText("\n\n" + studio.PlaceholderNoBook)
	placeholder.SetBorder(true)

	u.pages = tview.NewPages().
		AddPage(pagePlaceholder, placeholder, true, true).
		AddPage(pageEditor, editor, true, false)

	u.status = tview.NewTextView().SetDynamicColors(true)
	u.help = tview.NewTextView().SetText(helpText).SetTextColor(tcell.ColorDarkGray)

	body := tview.NewFlex().
		AddItem(left, 40, 0, true).
		AddItem(u.pages, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(body, 0, 1, true).
		AddItem(u.status, 1, 0, false).
		AddItem(u.help, 1, 0, false)

	u.focusables = []tview.Primitive{u.bookList, u.bookForm, u.chapterList, u.chapterForm, u.translation, u.actions}
	u.app.SetRoot(root, true).SetFocus(u.bookList)
	u.app.SetInputCapture(u.handleKey)

	u.refresh()
}

// handleKey 全局快捷键
func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		u.app.Stop()
		return nil
	case tcell.KeyCtrlT:
		go u.translate()
		return nil
	case tcell.KeyCtrlS:
		go u.save()
		return nil
	case tcell.KeyCtrlB:
		go u.broadcast()
		return nil
	case tcell.KeyCtrlR:
		go u.reloadBooks()
		return nil
	case tcell.KeyTab:
		// 表单内部自己处理 Tab
		if u.bookForm.HasFocus() || u.chapterForm.HasFocus() || u.actions.HasFocus() {
			return event
		}
		u.cycleFocus(1)
		return nil
	case tcell.KeyBacktab:
		if u.bookForm.HasFocus() || u.chapterForm.HasFocus() || u.actions.HasFocus() {
			return event
		}
		u.cycleFocus(-1)
		return nil
	case tcell.KeyEsc:
		u.cycleFocus(1)
		return nil
	}
	return event
}

// cycleFocus 在可见的面板间切换焦点
func (u *UI) cycleFocus(step int) {
	visible := u.focusables
	if u.shell.Editor() == nil {
		visible = u.focusables[:2]
	}

	current := 0
	for i, p := range visible {
		if p.HasFocus() {
			current = i
			break
		}
	}
	next := (current + step + len(visible)) % len(visible)
	u.app.SetFocus(visible[next])
}

// ===============================
// 刷新
// ===============================

// refresh 根据控制器状态重绘控件，只在事件循环中调用
func (u *UI) refresh() {
	u.syncing = true
	defer func() { u.syncing = false }()

	u.refreshBooks()

	editor := u.shell.Editor()
	if editor == nil {
		u.pages.SwitchToPage(pagePlaceholder)
		u.lastChapters = nil
		u.lastOpen = ""
		u.status.SetText(u.statusLine(nil))
		return
	}

	snap := editor.Snapshot()
	u.pages.SwitchToPage(pageEditor)
	u.refreshChapters(snap)
	u.refreshChapterForm(snap.Form)
	u.refreshChapterPane(snap)
	u.status.SetText(u.statusLine(&snap))
}

func (u *UI) refreshBooks() {
	title := " Books "
	if u.picker.Loading() {
		title = " Books (loading…) "
	}
	u.bookList.SetTitle(title)

	form := u.picker.Form()
	setInput(u.bookForm, labelTitle, form.Title)
	setInput(u.bookForm, labelAuthor, form.Author)
	setInput(u.bookForm, labelDescription, form.Description)

	books := u.picker.Books()
	if slices.Equal(books, u.lastBooks) {
		return
	}
	u.lastBooks = books

	current := u.bookList.GetCurrentItem()
	u.bookList.Clear()
	for _, book := range books {
		b := book
		u.bookList.AddItem(b.Title, bookSecondary(b), 0, func() {
			go u.picker.Select(b)
		})
	}
	if current < len(books) {
		u.bookList.SetCurrentItem(current)
	}
}

func (u *UI) refreshChapters(snap studio.EditorSnapshot) {
	u.chapterList.SetTitle(fmt.Sprintf(" Chapters · %s ", snap.Book.Title))
	if snap.Chapters != nil && slices.Equal(snap.Chapters, u.lastChapters) && u.chapterList.GetItemCount() > 0 {
		return
	}
	u.lastChapters = snap.Chapters

	current := u.chapterList.GetCurrentItem()
	u.chapterList.Clear()
	if len(snap.Chapters) == 0 {
		u.chapterList.AddItem(studio.PlaceholderNoChapters, "", 0, nil)
		return
	}
	for _, chapter := range snap.Chapters {
		c := chapter
		u.chapterList.AddItem(c.Title, chapterSecondary(c), 0, func() {
			go u.openChapter(c)
		})
	}
	if current < len(snap.Chapters) {
		u.chapterList.SetCurrentItem(current)
	}
}

func (u *UI) refreshChapterForm(form models.ChapterForm) {
	setInput(u.chapterForm, labelTitle, form.Title)
	setInput(u.chapterForm, labelSource, form.SourceLanguage)
	setInput(u.chapterForm, labelTarget, form.TargetLanguage)
	if area, ok := u.chapterForm.GetFormItemByLabel(labelSourceText).(*tview.TextArea); ok && area.GetText() != form.SourceText {
		area.SetText(form.SourceText, false)
	}
}

func (u *UI) refreshChapterPane(snap studio.EditorSnapshot) {
	if snap.OpenChapter == nil {
		u.sourceView.SetTitle(" Source ")
		u.sourceView.SetText(studio.PlaceholderNoChapter)
		u.translation.SetTitle(" Translation ")
	} else {
		ch := snap.OpenChapter
		if ch.ID != u.lastOpen {
			u.sourceView.ScrollToBeginning()
			u.lastOpen = ch.ID
		}
		u.sourceView.SetTitle(fmt.Sprintf(" Source · %s (%s) ", ch.Title, ch.SourceLanguage))
		u.sourceView.SetText(ch.SourceText)
		u.translation.SetTitle(fmt.Sprintf(" Translation (%s) ", ch.TargetLanguage))
	}

	if u.translation.GetText() != snap.Translation {
		u.translation.SetText(snap.Translation, true)
	}
}

// statusLine 状态栏：连接状态、用户、后端地址和最近一次操作结果
func (u *UI) statusLine(snap *studio.EditorSnapshot) string {
	var b strings.Builder
	if snap == nil {
		b.WriteString("[gray]Live: -[-]")
	} else if snap.State == studio.Connected {
		b.WriteString("[green]Live: Connected[-]")
	} else {
		b.WriteString("[red]Live: Disconnected[-]")
	}

	fmt.Fprintf(&b, " | user: %s | %s (%s)", u.cfg.User, u.cfg.BackendURL, u.cfg.Transport)

	if u.message != "" {
		color := "green"
		if u.messageErr {
			color = "red"
		}
		fmt.Fprintf(&b, " | [%s]%s[-]", color, tview.Escape(u.message))
	}
	return b.String()
}

// ===============================
// 操作，均在事件循环之外执行
// ===============================

func (u *UI) reloadBooks() {
	u.report("Books loaded", u.picker.Load(u.ctx))
}

func (u *UI) createBook() {
	if !u.picker.Form().Valid() {
		u.report("", errors.New("title is required"))
		return
	}
	u.report("Book created", u.picker.Create(u.ctx))
}

func (u *UI) createChapter() {
	editor := u.shell.Editor()
	if editor == nil {
		return
	}
	u.report("Chapter created", editor.CreateChapter(u.ctx))
}

func (u *UI) openChapter(chapter models.Chapter) {
	if editor := u.shell.Editor(); editor != nil {
		editor.OpenChapter(u.ctx, chapter)
		u.queue(func() { u.app.SetFocus(u.translation) })
	}
}

func (u *UI) translate() {
	if editor := u.shell.Editor(); editor != nil {
		u.report("Translated", editor.Translate(u.ctx))
	}
}

func (u *UI) save() {
	if editor := u.shell.Editor(); editor != nil {
		u.report("Saved", editor.Save(u.ctx))
	}
}

func (u *UI) broadcast() {
	if editor := u.shell.Editor(); editor != nil {
		u.report("Broadcast sent", editor.Broadcast(u.ctx))
	}
}

// report 在状态栏短暂显示操作结果
func (u *UI) report(ok string, err error) {
	message, isErr := ok, false
	if err != nil {
		message, isErr = firstLine(err.Error()), true
	}
	if message == "" {
		return
	}

	u.queue(func() {
		u.message, u.messageErr = message, isErr
		u.refresh()
	})

	time.AfterFunc(flashDuration, func() {
		u.queue(func() {
			if u.message == message {
				u.message = ""
				u.refresh()
			}
		})
	})
}

// ===============================
// 表单
// ===============================

func (u *UI) translationEdited() {
	if u.syncing {
		return
	}
	if editor := u.shell.Editor(); editor != nil {
		editor.Edit(u.translation.GetText())
	}
}

func (u *UI) bookFormChanged() {
	if u.syncing {
		return
	}
	u.picker.SetForm(models.BookForm{
		Title:       inputText(u.bookForm, labelTitle),
		Author:      inputText(u.bookForm, labelAuthor),
		Description: inputText(u.bookForm, labelDescription),
	})
}

func (u *UI) chapterFormChanged() {
	if u.syncing {
		return
	}
	editor := u.shell.Editor()
	if editor == nil {
		return
	}

	form := models.ChapterForm{
		Title:          inputText(u.chapterForm, labelTitle),
		SourceLanguage: inputText(u.chapterForm, labelSource),
		TargetLanguage: inputText(u.chapterForm, labelTarget),
	}
	if area, ok := u.chapterForm.GetFormItemByLabel(labelSourceText).(*tview.TextArea); ok {
		form.SourceText = area.GetText()
	}
	editor.SetForm(form)
}

func inputText(form *tview.Form, label string) string {
	if field, ok := form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return field.GetText()
	}
	return ""
}

func setInput(form *tview.Form, label, value string) {
	if field, ok := form.GetFormItemByLabel(label).(*tview.InputField); ok && field.GetText() != value {
		field.SetText(value)
	}
}

// bookSecondary 书籍列表第二行
func bookSecondary(b models.Book) string {
	line := "by " + b.AuthorOrUnknown()
	if b.Description != "" {
		line += " · " + truncate(firstLine(b.Description), 40)
	}
	return line
}

// chapterSecondary 章节列表第二行
func chapterSecondary(c models.Chapter) string {
	line := c.LanguagePair()
	if c.TranslationText != "" {
		line += " · translated"
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
