package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"livre/internal/model/book"
)

// Indexed 需要维护索引的集合模型
type Indexed interface {
	Collection() string
	EnsureIndexes(ctx context.Context, db *mongo.Database) error
}

// EnsureIndexes 启动时为书库的集合创建索引
func (c *Client) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, m := range []Indexed{&book.Book{}} {
		if err := m.EnsureIndexes(ctx, c.database); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", m.Collection(), err)
		}
	}
	return nil
}
