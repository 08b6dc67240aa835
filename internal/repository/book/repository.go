package book

import (
	"context"
	"errors"

	"livre/internal/model/book"
)

var (
	// ErrNotFound 书籍不存在
	ErrNotFound = errors.New("book not found")
	// ErrStorage 存储层失败（读写、序列化）
	ErrStorage = errors.New("storage failure")
)

// BookRepository 书籍记录存储
// Save 按 ID 覆盖写入整本书；FindAll 按 DateAdded 降序返回
type BookRepository interface {
	Save(ctx context.Context, b *book.Book) error
	FindAll(ctx context.Context) ([]*book.Book, error)
	FindByID(ctx context.Context, id string) (*book.Book, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
