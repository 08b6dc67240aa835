package id

import (
	"github.com/google/uuid"
)

// New 生成书籍等实体使用的 UUID
func New() string {
	return uuid.New().String()
}

// WithPrefix 生成带前缀的ID，例如导入任务 "task-<uuid>"
func WithPrefix(prefix string) string {
	return prefix + "-" + New()
}

