// internal/models/book.go
package models

import "strings"

// Book 表示一本待翻译的书
type Book struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// BookForm 创建书籍的表单
type BookForm struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// Valid 标题去除空白后不能为空
func (f BookForm) Valid() bool {
	return strings.TrimSpace(f.Title) != ""
}

// AuthorOrUnknown 列表中展示的作者
func (b Book) AuthorOrUnknown() string {
	if b.Author == "" {
		return "Unknown"
	}
	return b.Author
}
