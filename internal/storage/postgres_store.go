// internal/storage/postgres_store.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Corphon/TranslationStudio/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	author      TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chapters (
	id               TEXT PRIMARY KEY,
	book_id          TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
	title            TEXT NOT NULL DEFAULT '',
	source_language  TEXT NOT NULL,
	target_language  TEXT NOT NULL,
	source_text      TEXT NOT NULL DEFAULT '',
	translation_text TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chapters_book_id_idx ON chapters (book_id, created_at);
`

const chapterColumns = `id, book_id, title, source_language, target_language, source_text, translation_text`

// PostgresStore 基于 pgx 连接池的存储
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接数据库并建表
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("创建数据库连接池失败: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("初始化数据表失败: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Kind() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListBooks(ctx context.Context) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, author, description FROM books ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("查询书籍失败: %w", err)
	}

	books, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Book, error) {
		var b models.Book
		err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Description)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("读取书籍失败: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) CreateBook(ctx context.Context, form models.BookForm) (*models.Book, error) {
	if err := validateBook(form); err != nil {
		return nil, err
	}

	b := models.Book{
		ID:          newID(),
		Title:       form.Title,
		Author:      form.Author,
		Description: form.Description,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO books (id, title, author, description) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Title, b.Author, b.Description)
	if err != nil {
		return nil, fmt.Errorf("创建书籍失败: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) ListChapters(ctx context.Context, bookID models.ID) ([]models.Chapter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE book_id = $1 ORDER BY created_at, id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("查询章节失败: %w", err)
	}

	chapters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Chapter, error) {
		return scanChapter(row)
	})
	if err != nil {
		return nil, fmt.Errorf("读取章节失败: %w", err)
	}
	return chapters, nil
}

func (s *PostgresStore) CreateChapter(ctx context.Context, req models.CreateChapterRequest) (*models.Chapter, error) {
	if err := validateChapter(&req); err != nil {
		return nil, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, req.BookID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("查询书籍失败: %w", err)
	}
	if !exists {
		return nil, bookNotFound(req.BookID)
	}

	c := models.Chapter{
		ID:             newID(),
		BookID:         req.BookID,
		Title:          req.Title,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		SourceText:     req.SourceText,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chapters (id, book_id, title, source_language, target_language, source_text)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.BookID, c.Title, c.SourceLanguage, c.TargetLanguage, c.SourceText)
	if err != nil {
		return nil, fmt.Errorf("创建章节失败: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateTranslation(ctx context.Context, chapterID models.ID, text string) (*models.Chapter, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE chapters SET translation_text = $2, updated_at = now() WHERE id = $1 RETURNING `+chapterColumns,
		chapterID, text)

	c, err := scanChapter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chapterNotFound(chapterID)
		}
		return nil, fmt.Errorf("更新译文失败: %w", err)
	}
	return &c, nil
}

func scanChapter(row pgx.Row) (models.Chapter, error) {
	var c models.Chapter
	err := row.Scan(&c.ID, &c.BookID, &c.Title, &c.SourceLanguage, &c.TargetLanguage, &c.SourceText, &c.TranslationText)
	return c, err
}
