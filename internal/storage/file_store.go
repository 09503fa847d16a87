// internal/storage/file_store.go
package storage

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/google/uuid"
)

const (
	booksDir    = "books"
	chaptersDir = "chapters"
)

// FileStore 把书籍和章节保存为 DATA_DIR/books/<id>.json 与 DATA_DIR/chapters/<id>.json
type FileStore struct {
	fs *FileStorage

	// 保证读改写章节的原子性
	writeMu sync.Mutex
}

// NewFileStore 创建文件存储
func NewFileStore(dataDir string) (*FileStore, error) {
	fs, err := NewFileStorage(dataDir)
	if err != nil {
		return nil, err
	}
	return &FileStore{fs: fs}, nil
}

func (s *FileStore) Kind() string { return "file" }

func (s *FileStore) Close() error { return nil }

// ListBooks 按创建时间排序返回全部书籍
func (s *FileStore) ListBooks(ctx context.Context) ([]models.Book, error) {
	files, err := s.fs.ListJSONFiles(booksDir)
	if err != nil {
		return nil, err
	}

	records := make([]bookRecord, 0, len(files))
	for _, name := range files {
		var rec bookRecord
		if err := s.fs.LoadJSONFile(booksDir, name, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	books := make([]models.Book, 0, len(records))
	for _, rec := range records {
		books = append(books, rec.Book)
	}
	return books, nil
}

func (s *FileStore) CreateBook(ctx context.Context, form models.BookForm) (*models.Book, error) {
	if err := validateBook(form); err != nil {
		return nil, err
	}

	rec := bookRecord{
		Book: models.Book{
			ID:          newID(),
			Title:       form.Title,
			Author:      form.Author,
			Description: form.Description,
		},
		CreatedAt: time.Now(),
	}
	if err := s.fs.SaveJSONFile(booksDir, rec.ID.String()+".json", rec); err != nil {
		return nil, err
	}
	return &rec.Book, nil
}

// ListChapters 返回某本书的章节，书不存在时返回空列表
func (s *FileStore) ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error) {
	files, err := s.fs.ListJSONFiles(chaptersDir)
	if err != nil {
		return nil, err
	}

	var records []chapterRecord
	for _, name := range files {
		var rec chapterRecord
		if err := s.fs.LoadJSONFile(chaptersDir, name, &rec); err != nil {
			return nil, err
		}
		if rec.BookID == bookID {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	chapters := make([]models.Chapter, 0, len(records))
	for _, rec := range records {
		chapters = append(chapters, rec.Chapter)
	}
	return chapters, nil
}

func (s *FileStore) CreateChapter(ctx context.Context, req models.CreateChapterRequest) (*models.Chapter, error) {
	if err := validateChapter(&req); err != nil {
		return nil, err
	}
	if !validID(req.BookID) || !s.fs.FileExists(booksDir, req.BookID.String()+".json") {
		return nil, bookNotFound(req.BookID)
	}

	now := time.Now()
	rec := chapterRecord{
		Chapter: models.Chapter{
			ID:             newID(),
			BookID:         req.BookID,
			Title:          req.Title,
			SourceLanguage: req.SourceLanguage,
			TargetLanguage: req.TargetLanguage,
			SourceText:     req.SourceText,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.fs.SaveJSONFile(chaptersDir, rec.ID.String()+".json", rec); err != nil {
		return nil, err
	}
	return &rec.Chapter, nil
}

func (s *FileStore) UpdateTranslation(ctx context.Context, chapterID models.ID, text string) (*models.Chapter, error) {
	if !validID(chapterID) {
		return nil, chapterNotFound(chapterID)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	name := chapterID.String() + ".json"
	var rec chapterRecord
	if err := s.fs.LoadJSONFile(chaptersDir, name, &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, chapterNotFound(chapterID)
		}
		return nil, err
	}

	rec.TranslationText = text
	rec.UpdatedAt = time.Now()
	if err := s.fs.SaveJSONFile(chaptersDir, name, rec); err != nil {
		return nil, err
	}
	return &rec.Chapter, nil
}

// validID 只接受 UUID，避免把任意路径片段拼进文件名
func validID(id models.ID) bool {
	_, err := uuid.Parse(id.String())
	return err == nil
}
