package book

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"livre/internal/model/book"
	httputil "livre/internal/pkg/http"
	"livre/internal/pkg/pcm"
	"livre/internal/pkg/playback"
	bookservice "livre/internal/service/book"
)

// VoiceRequest 合成请求
type VoiceRequest struct {
	Voice string `json:"voice"` // Kore, Puck, Charon, Fenrir, Zephyr；为空使用默认声音
}

// KeywordAudioRequest 词汇发音请求
type KeywordAudioRequest struct {
	Word  string `json:"word" binding:"required"`
	Voice string `json:"voice"`
}

// HighlightResponse 某一播放位置的高亮状态
type HighlightResponse struct {
	Text     string             `json:"text"`
	Offset   int                `json:"offset"`
	Active   int                `json:"active"` // 高亮片段下标，-1 表示无
	Segments []playback.Segment `json:"segments"`
}

// UpdatePage 编辑页面
// @Summary      编辑页面
// @Description  修改标题、句子或词汇后整本保存；原文变化时清除已缓存的朗读
// @Tags         页面
// @Accept       json
// @Produce      json
// @Param        book_id  path      string                  true  "书籍ID"
// @Param        page_id  path      string                  true  "页面ID"
// @Param        request  body      bookservice.PageUpdate  true  "修改内容"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Failure      404      {object}  ErrorResponse  "书籍或页面不存在"
// @Router       /api/v1/books/{book_id}/pages/{page_id} [put]
func (h *Handler) UpdatePage(c *gin.Context) {
	var req bookservice.PageUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}

	page, err := h.bookService.UpdatePage(c.Request.Context(), c.Param("book_id"), c.Param("page_id"), &req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("page updated", page))
}

// SynthesizePageAudio 合成页面朗读
// @Summary      合成页面朗读
// @Description  页面没有缓存音频时合成并保存；已有音频时直接返回
// @Tags         页面
// @Accept       json
// @Produce      json
// @Param        book_id  path      string        true   "书籍ID"
// @Param        page_id  path      string        true   "页面ID"
// @Param        request  body      VoiceRequest  false  "声音"
// @Success      200      {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"ok\", \"data\": PageInfo}"
// @Failure      400      {object}  ErrorResponse  "页面没有句子"
// @Failure      404      {object}  ErrorResponse  "书籍或页面不存在"
// @Router       /api/v1/books/{book_id}/pages/{page_id}/audio [post]
func (h *Handler) SynthesizePageAudio(c *gin.Context) {
	var req VoiceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err.Error())
			return
		}
	}
	voice, ok := parseVoice(req.Voice)
	if !ok {
		badRequest(c, "Unknown voice", req.Voice)
		return
	}

	page, err := h.bookService.SynthesizePageAudio(c.Request.Context(), c.Param("book_id"), c.Param("page_id"), voice)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("ok", toPageInfo(page)))
}

// GetPageAudio 下载页面朗读（WAV）
// @Summary      下载页面朗读
// @Tags         页面
// @Produce      audio/wav
// @Param        book_id  path      string  true  "书籍ID"
// @Param        page_id  path      string  true  "页面ID"
// @Success      200      {file}    binary  "WAV 音频"
// @Failure      404      {object}  ErrorResponse  "没有缓存的朗读"
// @Router       /api/v1/books/{book_id}/pages/{page_id}/audio [get]
func (h *Handler) GetPageAudio(c *gin.Context) {
	page, ok := h.findPage(c)
	if !ok {
		return
	}
	if len(page.Audio) == 0 {
		c.JSON(http.StatusNotFound, httputil.NewErrorResponse(httputil.CodeNotFound, "page has no audio"))
		return
	}
	writeWAV(c, page.Audio)
}

// GetHighlight 计算播放位置对应的高亮
// @Summary      高亮位置
// @Description  offset 为展示文本中的字符偏移；也可以传 progress（0-1）按长度线性换算
// @Tags         页面
// @Produce      json
// @Param        book_id   path      string  true   "书籍ID"
// @Param        page_id   path      string  true   "页面ID"
// @Param        offset    query     int     false  "字符偏移"
// @Param        progress  query     number  false  "播放进度 0-1"
// @Success      200       {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"ok\", \"data\": HighlightResponse}"
// @Failure      400       {object}  ErrorResponse  "请求参数错误"
// @Router       /api/v1/books/{book_id}/pages/{page_id}/highlight [get]
func (h *Handler) GetHighlight(c *gin.Context) {
	page, ok := h.findPage(c)
	if !ok {
		return
	}

	text := page.DisplayText()
	offset := playback.NoHighlight
	if raw := c.Query("progress"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "Invalid progress", err.Error())
			return
		}
		if math.IsNaN(p) || math.IsInf(p, 0) {
			badRequest(c, "Invalid progress", "progress must be a finite number")
			return
		}
		offset = playback.OffsetAt(p, text)
	} else if raw := c.Query("offset"); raw != "" {
		o, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "Invalid offset", err.Error())
			return
		}
		offset = o
	}

	words := make([]string, 0, len(page.Keywords))
	for _, kw := range page.Keywords {
		words = append(words, kw.Word)
	}
	segments := playback.Segments(text, words)

	c.JSON(http.StatusOK, httputil.NewSuccessResponse("ok", HighlightResponse{
		Text:     text,
		Offset:   offset,
		Active:   playback.ActiveSegment(segments, offset),
		Segments: segments,
	}))
}

// KeywordAudio 词汇发音（WAV）
// @Summary      词汇发音
// @Description  首次请求时合成并保存到书中，之后直接返回缓存
// @Tags         页面
// @Accept       json
// @Produce      audio/wav
// @Param        book_id  path      string               true  "书籍ID"
// @Param        request  body      KeywordAudioRequest  true  "词汇与声音"
// @Success      200      {file}    binary  "WAV 音频"
// @Failure      404      {object}  ErrorResponse  "词汇不存在"
// @Router       /api/v1/books/{book_id}/keywords/audio [post]
func (h *Handler) KeywordAudio(c *gin.Context) {
	var req KeywordAudioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return
	}
	voice, ok := parseVoice(req.Voice)
	if !ok {
		badRequest(c, "Unknown voice", req.Voice)
		return
	}

	audio, err := h.bookService.KeywordAudio(c.Request.Context(), c.Param("book_id"), req.Word, voice)
	if err != nil {
		writeError(c, err)
		return
	}
	writeWAV(c, audio)
}

// RenderSourcePage 重新渲染源文档页面（JPEG）
// @Summary      源文档页面
// @Description  page 从 1 开始；快速翻页时被替代的请求返回 409
// @Tags         页面
// @Produce      image/jpeg
// @Param        book_id  path      string  true  "书籍ID"
// @Param        page     path      int     true  "页码"
// @Success      200      {file}    binary  "JPEG 图片"
// @Failure      404      {object}  ErrorResponse  "没有源文档"
// @Failure      409      {object}  ErrorResponse  "请求已被替代"
// @Router       /api/v1/books/{book_id}/source/pages/{page} [get]
func (h *Handler) RenderSourcePage(c *gin.Context) {
	pageNum, err := strconv.Atoi(c.Param("page"))
	if err != nil || pageNum < 1 {
		badRequest(c, "Invalid page number")
		return
	}

	img, err := h.bookService.RenderSourcePage(c.Request.Context(), c.Param("book_id"), pageNum-1)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", img)
}

func (h *Handler) findPage(c *gin.Context) (*book.Page, bool) {
	b, err := h.bookService.GetBook(c.Request.Context(), c.Param("book_id"))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	page := b.FindPage(c.Param("page_id"))
	if page == nil {
		writeError(c, bookservice.ErrPageNotFound)
		return nil, false
	}
	return page, true
}

func toPageInfo(page *book.Page) PageInfo {
	info := PageInfo{
		ID:            page.ID,
		Title:         page.Title,
		SentenceCount: len(page.Sentences),
		KeywordCount:  len(page.Keywords),
		HasAudio:      len(page.Audio) > 0,
	}
	if samples, err := pcm.Decode(page.Audio); err == nil && info.HasAudio {
		info.DurationMs = pcm.Duration(samples).Milliseconds()
	}
	return info
}

func writeWAV(c *gin.Context, audio []byte) {
	samples, err := pcm.Decode(audio)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/wav", pcm.EncodeWAV(samples))
}
