package book

import (
	"errors"

	bookrepo "livre/internal/repository/book"
)

var (
	// ErrBookNotFound 书籍不存在
	ErrBookNotFound = bookrepo.ErrNotFound
	// ErrPageNotFound 页面不存在
	ErrPageNotFound = errors.New("page not found")
	// ErrKeywordNotFound 书中没有该词汇
	ErrKeywordNotFound = errors.New("keyword not found")
	// ErrNoNarration 页面没有句子，不能合成朗读
	ErrNoNarration = errors.New("page has no narration")
	// ErrNoSource 书籍没有保存源文档
	ErrNoSource = errors.New("book has no source document")
	// ErrNoStorage 未配置对象存储
	ErrNoStorage = errors.New("object storage is not configured")
	// ErrInvalidImport 导入输入无效（空文件、无法识别的文本编码、书库文件格式错误）
	ErrInvalidImport = errors.New("invalid import input")
)
