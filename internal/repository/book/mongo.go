package book

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"livre/internal/model/book"
)

// MongoRepo 基于 MongoDB 的书籍仓库
type MongoRepo struct {
	collection *mongo.Collection
}

// NewMongoRepo 创建书籍仓库
func NewMongoRepo(db *mongo.Database) *MongoRepo {
	var b book.Book
	return &MongoRepo{
		collection: db.Collection(b.Collection()),
	}
}

// Save 按ID覆盖写入（不存在则插入）
func (r *MongoRepo) Save(ctx context.Context, b *book.Book) error {
	b.Normalize()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"id": b.ID}, b, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: failed to save book %s: %w", ErrStorage, b.ID, err)
	}
	return nil
}

// FindAll 查询全部书籍，最新添加的在前
func (r *MongoRepo) FindAll(ctx context.Context) ([]*book.Book, error) {
	opts := options.Find().SetSort(bson.D{bson.E{Key: "date_added", Value: -1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list books: %w", ErrStorage, err)
	}
	defer cursor.Close(ctx)

	books := make([]*book.Book, 0)
	if err := cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("%w: failed to decode books: %w", ErrStorage, err)
	}
	for _, b := range books {
		b.Normalize()
	}
	return books, nil
}

// FindByID 根据ID查询
func (r *MongoRepo) FindByID(ctx context.Context, id string) (*book.Book, error) {
	var b book.Book
	err := r.collection.FindOne(ctx, bson.M{"id": id}).Decode(&b)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: failed to find book %s: %w", ErrStorage, id, err)
	}
	b.Normalize()
	return &b, nil
}

// Delete 删除书籍，不存在视为成功
func (r *MongoRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return fmt.Errorf("%w: failed to delete book %s: %w", ErrStorage, id, err)
	}
	return nil
}

// Ping 检查连接
func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

// Close 连接由 mongodb.Client 持有，这里不做处理
func (r *MongoRepo) Close() error {
	return nil
}
