package book

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httputil "livre/internal/pkg/http"
)

// ListBooks 书库列表
// @Summary      书库列表
// @Description  按添加时间倒序返回所有书籍（不含页面内容）
// @Tags         书籍
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"ok\", \"data\": [BookSummary]}"
// @Failure      500  {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/books [get]
func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.bookService.ListBooks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	list := make([]BookSummary, len(books))
	for i, b := range books {
		list[i] = toBookSummary(b)
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("ok", list))
}

// GetBook 获取书籍
// @Summary      获取书籍
// @Description  返回整本书，包括页面、词汇和已缓存的音频
// @Tags         书籍
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"ok\", \"data\": Book}"
// @Failure      404      {object}  ErrorResponse  "书籍不存在"
// @Router       /api/v1/books/{book_id} [get]
func (h *Handler) GetBook(c *gin.Context) {
	b, err := h.bookService.GetBook(c.Request.Context(), c.Param("book_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("ok", b))
}

// DeleteBook 删除书籍
// @Summary      删除书籍
// @Description  删除书籍记录及对象存储中的源文档
// @Tags         书籍
// @Produce      json
// @Param        book_id  path      string  true  "书籍ID"
// @Success      200      {object}  map[string]interface{}
// @Failure      404      {object}  ErrorResponse  "书籍不存在"
// @Router       /api/v1/books/{book_id} [delete]
func (h *Handler) DeleteBook(c *gin.Context) {
	if err := h.bookService.DeleteBook(c.Request.Context(), c.Param("book_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("book deleted", nil))
}
