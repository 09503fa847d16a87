// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Corphon/TranslationStudio/internal/client"
	"github.com/Corphon/TranslationStudio/internal/collab"
	"github.com/Corphon/TranslationStudio/internal/config"
	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/Corphon/TranslationStudio/internal/studio"
	"github.com/Corphon/TranslationStudio/internal/utils"
)

var (
	ctx        = context.Background()
	stdin      = bufio.NewScanner(os.Stdin)
	backend    *client.Client
	subscriber *collab.Subscriber
	shell      *studio.Shell
	picker     *studio.BookPicker
)

func main() {
	walkthrough := flag.Bool("walkthrough", false, "不交互，依次演示所有操作")
	flag.Parse()

	fmt.Println("🚀 TranslationStudio Console")
	fmt.Println("=================================")

	cfg, err := config.LoadClient()
	if err != nil {
		log.Printf("❌ 加载配置失败: %v", err)
		return
	}

	// 控制台只显示警告以上的日志
	logFile := fmt.Sprintf("%s/console_%s.log", cfg.LogDir, time.Now().Format("2006-01-02"))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("⚠️ 无法初始化日志文件: %v", err)
	}
	logger := utils.GetLogger()
	logger.SetLogLevel(utils.WARNING)

	metrics := utils.NewAPIMetrics()
	backend = client.New(cfg.BackendURL, client.WithTimeout(cfg.RequestTimeout), client.WithMetrics(metrics))
	subscriber = collab.NewSubscriber(cfg.BackendURL, cfg.StreamTransport,
		collab.WithSubscriberLogger(logger),
		collab.WithSubscriberMetrics(metrics))

	shell = studio.NewShell(backend, subscriber, studio.Options{User: cfg.EditorUser, Logger: logger, Metrics: metrics})
	defer shell.Close()
	picker = shell.NewPicker(ctx)

	if *walkthrough {
		runWalkthrough()
		return
	}

	for {
		showMenu()
		switch strings.ToLower(strings.TrimSpace(getUserInput("> "))) {
		case "1", "books":
			chooseBook()
		case "2", "new-book":
			createBook()
		case "3", "chapters":
			chooseChapter()
		case "4", "new-chapter":
			createChapter()
		case "5", "edit":
			editTranslation()
		case "6", "translate":
			report("机器翻译完成", withEditor(func(e *studio.ChapterEditor) error { return e.Translate(ctx) }))
		case "7", "save":
			report("译文已保存并广播", withEditor(func(e *studio.ChapterEditor) error { return e.Save(ctx) }))
		case "8", "broadcast":
			report("已广播当前译文", withEditor(func(e *studio.ChapterEditor) error { return e.Broadcast(ctx) }))
		case "9", "show":
			showEditor()
		case "10", "status":
			showStatus(metrics)
		case "0", "quit", "exit":
			fmt.Println("👋 再见")
			return
		default:
			fmt.Println("❓ 未知选项")
		}
	}
}

func showMenu() {
	title := "主菜单"
	if book := shell.SelectedBook(); book != nil {
		title = "主菜单 · " + book.Title
	}
	printBox(title, strings.Join([]string{
		"1) 选择书籍        2) 新建书籍",
		"3) 打开章节        4) 新建章节",
		"5) 编辑译文        6) 机器翻译",
		"7) 保存            8) 广播",
		"9) 查看编辑器      10) 后端状态",
		"0) 退出",
	}, "\n"))
}

// 获取用户输入
func getUserInput(prompt string) string {
	fmt.Print(prompt)
	stdin.Scan()
	return stdin.Text()
}

// 获取用户输入 (带默认值)
func getUserInputWithDefault(prompt, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [默认: %s]: ", prompt, defaultValue)
	} else {
		fmt.Printf("%s: ", prompt)
	}
	stdin.Scan()
	input := strings.TrimSpace(stdin.Text())
	if input == "" {
		return defaultValue
	}
	return input
}

func report(ok string, err error) {
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("✅ " + ok)
}

func withEditor(f func(e *studio.ChapterEditor) error) error {
	editor := shell.Editor()
	if editor == nil {
		return fmt.Errorf("%s", studio.PlaceholderNoBook)
	}
	return f(editor)
}

// pick 打印编号列表并读取选择，返回 -1 表示取消
func pick(lines []string) int {
	for i, line := range lines {
		fmt.Printf("  %d) %s\n", i+1, line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(getUserInput("编号 (回车取消): ")))
	if err != nil || n < 1 || n > len(lines) {
		return -1
	}
	return n - 1
}

// ===============================
// 书籍
// ===============================

func chooseBook() {
	if err := picker.Load(ctx); err != nil {
		report("", err)
		return
	}
	books := picker.Books()
	if len(books) == 0 {
		fmt.Println(studio.PlaceholderNoBook)
		return
	}

	lines := make([]string, len(books))
	for i, b := range books {
		lines[i] = fmt.Sprintf("%s · %s", b.Title, b.AuthorOrUnknown())
	}
	if i := pick(lines); i >= 0 {
		picker.Select(books[i])
		showEditor()
	}
}

func createBook() {
	picker.SetForm(models.BookForm{
		Title:       getUserInputWithDefault("标题", ""),
		Author:      getUserInputWithDefault("作者", ""),
		Description: getUserInputWithDefault("简介", ""),
	})
	if !picker.Form().Valid() {
		fmt.Println("⚠️ 标题不能为空")
		return
	}
	report("书籍已创建", picker.Create(ctx))
}

// ===============================
// 章节
// ===============================

func chooseChapter() {
	err := withEditor(func(e *studio.ChapterEditor) error {
		if err := e.LoadChapters(ctx); err != nil {
			return err
		}
		chapters := e.Snapshot().Chapters
		if len(chapters) == 0 {
			fmt.Println(studio.PlaceholderNoChapters)
			return nil
		}

		lines := make([]string, len(chapters))
		for i, c := range chapters {
			lines[i] = fmt.Sprintf("%s (%s)", c.Title, c.LanguagePair())
		}
		if i := pick(lines); i >= 0 {
			e.OpenChapter(ctx, chapters[i])
			showEditor()
		}
		return nil
	})
	if err != nil {
		report("", err)
	}
}

func createChapter() {
	report("章节已创建", withEditor(func(e *studio.ChapterEditor) error {
		form := models.NewChapterForm()
		form.Title = getUserInputWithDefault("标题", "")
		form.SourceLanguage = getUserInputWithDefault("原文语言", form.SourceLanguage)
		form.TargetLanguage = getUserInputWithDefault("译文语言", form.TargetLanguage)
		form.SourceText = getUserInputWithDefault("原文", "")
		e.SetForm(form)
		return e.CreateChapter(ctx)
	}))
}

func editTranslation() {
	report("缓冲区已更新（尚未保存）", withEditor(func(e *studio.ChapterEditor) error {
		fmt.Println("输入译文，单独一行 . 结束:")
		var lines []string
		for stdin.Scan() {
			if stdin.Text() == "." {
				break
			}
			lines = append(lines, stdin.Text())
		}
		e.Edit(strings.Join(lines, "\n"))
		return nil
	}))
}

// ===============================
// 展示
// ===============================

func showEditor() {
	editor := shell.Editor()
	if editor == nil {
		printBox("", shell.Placeholder())
		return
	}

	snap := editor.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "📚 %s · %s\n", snap.Book.Title, snap.Book.AuthorOrUnknown())
	fmt.Fprintf(&b, "📡 Live: %s\n\n", snap.State)

	if len(snap.Chapters) == 0 {
		b.WriteString(studio.PlaceholderNoChapters + "\n")
	}
	for _, c := range snap.Chapters {
		marker := "  "
		if snap.OpenChapter != nil && snap.OpenChapter.ID == c.ID {
			marker = "▶ "
		}
		fmt.Fprintf(&b, "%s%s (%s)\n", marker, c.Title, c.LanguagePair())
	}

	b.WriteString("\n")
	if snap.OpenChapter == nil {
		b.WriteString(studio.PlaceholderNoChapter)
	} else {
		fmt.Fprintf(&b, "原文:\n%s\n\n译文:\n%s", snap.OpenChapter.SourceText, snap.Translation)
	}
	printBox("编辑器", b.String())
}

func showStatus(metrics *utils.APIMetrics) {
	status, err := backend.Status(ctx)
	if err != nil {
		report("", err)
		return
	}
	counters := metrics.Collector().GetMetrics()["counters"].(map[string]int64)
	printBox("后端状态", fmt.Sprintf("地址: %s\n存储: %s\n翻译引擎: %s\n转发: %s\n订阅者: %d\n本地请求数: %d",
		backend.BaseURL(), status.Store, status.Translator, status.Relay, status.Subscribers, counters["api_requests_total"]))
}

// runWalkthrough 依次调用所有操作，用于冒烟测试
func runWalkthrough() {
	step := func(name string, err error) {
		if err != nil {
			log.Fatalf("❌ %s: %v", name, err)
		}
		fmt.Printf("✅ %s\n", name)
	}

	// 旁听推送流，最后打印收到的实时更新
	observer, err := subscriber.Subscribe(ctx, "")
	step("订阅实时更新", err)
	defer observer.Close()

	title := "Walkthrough " + time.Now().Format("15:04:05")
	picker.SetForm(models.BookForm{Title: title, Author: "Demo"})
	step("创建书籍", picker.Create(ctx))

	var book *models.Book
	for _, b := range picker.Books() {
		if b.Title == title {
			b := b
			book = &b
		}
	}
	if book == nil {
		log.Fatalf("❌ 新书未出现在列表中")
	}
	editor := shell.SelectBook(ctx, *book)

	form := models.NewChapterForm()
	form.Title = "Chapter 1"
	form.SourceText = "It was a bright cold day in April."
	editor.SetForm(form)
	step("创建章节", editor.CreateChapter(ctx))

	chapters := editor.Snapshot().Chapters
	if len(chapters) == 0 {
		log.Fatalf("❌ 章节列表为空")
	}
	editor.OpenChapter(ctx, chapters[0])
	step("机器翻译", editor.Translate(ctx))
	step("保存", editor.Save(ctx))
	editor.Edit(editor.Translation() + "\n(edited in walkthrough)")
	step("广播", editor.Broadcast(ctx))

	showEditor()

	var received []string
	timeout := time.After(2 * time.Second)
collect:
	for len(received) < 2 {
		select {
		case msg, ok := <-observer.Updates():
			if !ok {
				break collect
			}
			received = append(received, fmt.Sprintf("[%s] chapter %s: %s", msg.User, msg.ChapterID, firstLine(msg.Content)))
		case <-timeout:
			break collect
		}
	}
	if len(received) == 0 {
		received = []string{"(none)"}
	}
	printBox("收到的实时更新", strings.Join(received, "\n"))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

const cliBoxMaxWidth = 90

func printBox(title, content string) {
	wrappedLines := wrapContentForBox(content, cliBoxMaxWidth)
	maxWidth := utf8.RuneCountInString(title)
	for _, line := range wrappedLines {
		if w := utf8.RuneCountInString(line); w > maxWidth {
			maxWidth = w
		}
	}
	border := strings.Repeat("─", maxWidth+2)
	fmt.Println("┌" + border + "┐")
	if title != "" {
		fmt.Printf("│ %s │\n", padRight(title, maxWidth))
		fmt.Println("├" + border + "┤")
	}
	for _, line := range wrappedLines {
		fmt.Printf("│ %s │\n", padRight(line, maxWidth))
	}
	fmt.Println("└" + border + "┘")
}

func wrapContentForBox(content string, maxWidth int) []string {
	var result []string
	for _, rawLine := range strings.Split(content, "\n") {
		runes := []rune(strings.TrimRight(rawLine, " "))
		for len(runes) > maxWidth {
			result = append(result, string(runes[:maxWidth]))
			runes = runes[maxWidth:]
		}
		result = append(result, string(runes))
	}
	return result
}

func padRight(text string, width int) string {
	current := utf8.RuneCountInString(text)
	if current >= width {
		return text
	}
	return text + strings.Repeat(" ", width-current)
}
