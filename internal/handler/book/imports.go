package book

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"livre/internal/model/book"
	httputil "livre/internal/pkg/http"
	bookservice "livre/internal/service/book"
)

// TextImportRequest 粘贴文本导入
type TextImportRequest struct {
	Text  string `json:"text" binding:"required"`
	Name  string `json:"name"` // 可选，作为源文件名
	Voice string `json:"voice"`
}

// StartImport 导入书籍
// @Summary      导入书籍
// @Description  multipart 上传 PDF/文本文件（字段 file, voice, text），或 JSON 提交粘贴的文本；立即返回进度任务
// @Tags         导入
// @Accept       multipart/form-data,json
// @Produce      json
// @Param        file     formData  file               false  "PDF 或纯文本文件"
// @Param        voice    formData  string             false  "朗读声音"
// @Param        text     formData  bool               false  "按纯文本处理"
// @Param        request  body      TextImportRequest  false  "粘贴文本"
// @Success      202      {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"import started\", \"data\": ImportTask}"
// @Failure      400      {object}  ErrorResponse  "请求参数错误"
// @Router       /api/v1/imports [post]
func (h *Handler) StartImport(c *gin.Context) {
	var (
		input *bookservice.ImportInput
		ok    bool
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		input, ok = fileImportInput(c)
	} else {
		input, ok = textImportInput(c)
	}
	if !ok {
		return
	}

	task, err := h.bookService.StartImport(c.Request.Context(), input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, httputil.NewSuccessResponse("import started", task))
}

// ListImports 导入任务列表
// @Summary      导入任务列表
// @Description  进行中的任务，以及刚结束、尚未移除的任务
// @Tags         导入
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"ok\", \"data\": [ImportTask]}"
// @Router       /api/v1/imports [get]
func (h *Handler) ListImports(c *gin.Context) {
	tasks, err := h.bookService.ListTasks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*book.ImportTask{}
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("ok", tasks))
}

func fileImportInput(c *gin.Context) (*bookservice.ImportInput, bool) {
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "Invalid file", err.Error())
		return nil, false
	}
	voice, ok := parseVoice(c.PostForm("voice"))
	if !ok {
		badRequest(c, "Unknown voice", c.PostForm("voice"))
		return nil, false
	}
	asText, _ := strconv.ParseBool(c.PostForm("text"))

	f, err := file.Open()
	if err != nil {
		badRequest(c, "Failed to open file", err.Error())
		return nil, false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "Failed to read file", err.Error())
		return nil, false
	}

	return &bookservice.ImportInput{
		SourceName: file.Filename,
		Data:       data,
		Text:       asText,
		Voice:      voice,
	}, true
}

func textImportInput(c *gin.Context) (*bookservice.ImportInput, bool) {
	var req TextImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err.Error())
		return nil, false
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(c, "text is empty")
		return nil, false
	}
	voice, ok := parseVoice(req.Voice)
	if !ok {
		badRequest(c, "Unknown voice", req.Voice)
		return nil, false
	}

	return &bookservice.ImportInput{
		SourceName: req.Name,
		Data:       []byte(req.Text),
		Text:       true,
		Voice:      voice,
	}, true
}
