package book

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"livre/internal/model/book"
)

// bookRow sqlite 中的一行：检索用的列加上整本书的 JSON
type bookRow struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID        string `bun:"id,pk"`
	Title     string `bun:"title,notnull"`
	DateAdded int64  `bun:"date_added,notnull"`
	Payload   string `bun:"payload,notnull"`
}

// SQLiteRepo 基于 bun + sqlite 的书籍仓库（单机与 CLI 使用）
type SQLiteRepo struct {
	db *bun.DB
}

// NewSQLiteRepo 打开（必要时创建）数据库文件
// path 可以是文件路径，也可以是 "file::memory:" 这样的 DSN
func NewSQLiteRepo(ctx context.Context, path string) (*SQLiteRepo, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open sqlite %s: %w", ErrStorage, path, err)
	}
	// sqlite 写入本身是串行的；单连接也保证内存库在连接间共享
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*bookRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create books table: %w", ErrStorage, err)
	}
	if _, err := db.NewCreateIndex().Model((*bookRow)(nil)).IfNotExists().
		Index("idx_books_date_added").Column("date_added").Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: failed to create books index: %w", ErrStorage, err)
	}

	return &SQLiteRepo{db: db}, nil
}

// Save 按ID覆盖写入（不存在则插入）
func (r *SQLiteRepo) Save(ctx context.Context, b *book.Book) error {
	b.Normalize()
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("%w: failed to encode book %s: %w", ErrStorage, b.ID, err)
	}

	row := &bookRow{ID: b.ID, Title: b.Title, DateAdded: b.DateAdded, Payload: string(payload)}
	_, err = r.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("date_added = EXCLUDED.date_added").
		Set("payload = EXCLUDED.payload").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to save book %s: %w", ErrStorage, b.ID, err)
	}
	return nil
}

// FindAll 查询全部书籍，最新添加的在前
func (r *SQLiteRepo) FindAll(ctx context.Context) ([]*book.Book, error) {
	var rows []*bookRow
	if err := r.db.NewSelect().Model(&rows).Order("date_added DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to list books: %w", ErrStorage, err)
	}

	books := make([]*book.Book, 0, len(rows))
	for _, row := range rows {
		b, err := row.decode()
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

// FindByID 根据ID查询
func (r *SQLiteRepo) FindByID(ctx context.Context, id string) (*book.Book, error) {
	row := new(bookRow)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to find book %s: %w", ErrStorage, id, err)
	}
	return row.decode()
}

// Delete 删除书籍，不存在视为成功
func (r *SQLiteRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.NewDelete().Model((*bookRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to delete book %s: %w", ErrStorage, id, err)
	}
	return nil
}

// Ping 检查连接
func (r *SQLiteRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close 关闭数据库
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

func (row *bookRow) decode() (*book.Book, error) {
	var b book.Book
	if err := json.Unmarshal([]byte(row.Payload), &b); err != nil {
		return nil, fmt.Errorf("%w: failed to decode book %s: %w", ErrStorage, row.ID, err)
	}
	b.Normalize()
	return &b, nil
}
