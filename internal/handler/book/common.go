package book

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"livre/internal/model/book"
	"livre/internal/pkg/booktools"
	httputil "livre/internal/pkg/http"
	"livre/internal/pkg/pdfrender"
	"livre/internal/pkg/storage"
	bookrepo "livre/internal/repository/book"
	bookservice "livre/internal/service/book"
)

// ErrorResponse 错误响应类型别名（使用共用的 http.ErrorResponse）
type ErrorResponse = httputil.ErrorResponse

// BookSummary 书库列表项（不含页面内容）
type BookSummary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	DateAdded  int64  `json:"dateAdded"`
	CoverImage []byte `json:"coverImage"`
	PageCount  int    `json:"pageCount"`
}

// PageInfo 页面摘要
type PageInfo struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	SentenceCount int    `json:"sentenceCount"`
	KeywordCount  int    `json:"keywordCount"`
	HasAudio      bool   `json:"hasAudio"`
	DurationMs    int64  `json:"durationMs,omitempty"`
}

func toBookSummary(b *book.Book) BookSummary {
	return BookSummary{
		ID:         b.ID,
		Title:      b.Title,
		DateAdded:  b.DateAdded,
		CoverImage: b.CoverImage,
		PageCount:  len(b.Pages),
	}
}

// writeError 把 service 层错误映射为统一错误响应
func writeError(c *gin.Context, err error) {
	code := httputil.CodeInternal
	switch {
	case errors.Is(err, bookservice.ErrBookNotFound),
		errors.Is(err, bookservice.ErrPageNotFound),
		errors.Is(err, bookservice.ErrKeywordNotFound),
		errors.Is(err, bookservice.ErrNoSource),
		errors.Is(err, storage.ErrNotFound):
		code = httputil.CodeNotFound
	case errors.Is(err, bookservice.ErrInvalidImport),
		errors.Is(err, bookservice.ErrNoNarration),
		errors.Is(err, booktools.ErrInvalidInput),
		errors.Is(err, pdfrender.ErrPageOutOfRange):
		code = httputil.CodeBadRequest
	case errors.Is(err, pdfrender.ErrRenderCancelled):
		code = httputil.CodeBusy
	case errors.Is(err, bookrepo.ErrStorage):
		code = httputil.CodeStorage
	}

	if code >= httputil.CodeInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
	}
	c.JSON(httputil.StatusOf(code), httputil.NewErrorResponse(code, err.Error()))
}

func badRequest(c *gin.Context, message string, detail ...string) {
	c.JSON(httputil.StatusOf(httputil.CodeBadRequest), httputil.NewErrorResponse(httputil.CodeBadRequest, message, detail...))
}

// parseVoice 空值返回空声音，由 service 使用配置的默认声音
func parseVoice(name string) (book.Voice, bool) {
	if strings.TrimSpace(name) == "" {
		return "", true
	}
	return book.ParseVoice(name)
}
