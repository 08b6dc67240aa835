package book

import (
	bookservice "livre/internal/service/book"
)

// Handler 书籍模块处理器
// 所有书籍相关的Handler方法都通过这个结构体访问Service
type Handler struct {
	bookService bookservice.BookService
}

// NewHandler 创建书籍模块处理器
func NewHandler(bookService bookservice.BookService) *Handler {
	return &Handler{
		bookService: bookService,
	}
}
