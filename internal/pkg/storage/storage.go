package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// Storage 对象存储接口
// 用于保存导入的源文档（供页面查看器重新渲染）和书库导出文件
type Storage interface {
	// Upload 上传对象，返回访问URL
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (string, error)

	// Download 下载对象，不存在时返回 ErrNotFound
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetPresignedDownloadURL 获取预签名下载URL
	GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// Delete 删除对象，不存在视为成功
	Delete(ctx context.Context, key string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// GetStorageType 获取存储类型
	GetStorageType() string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local" // 本地文件系统
	StorageTypeOSS   StorageType = "oss"   // 阿里云OSS
)

// 对象 key 规则
const (
	SourcePrefix = "sources/"
	ExportPrefix = "exports/"
)

// SourceKey 源文档 key：sources/<bookID>/<文件名>
func SourceKey(bookID, fileName string) string {
	return SourcePrefix + bookID + "/" + fileName
}

// ExportKey 书库导出 key：exports/library-20060102-150405.json
func ExportKey(now time.Time) string {
	return ExportPrefix + "library-" + now.UTC().Format("20060102-150405") + ".json"
}
