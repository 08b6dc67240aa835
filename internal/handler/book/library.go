package book

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	httputil "livre/internal/pkg/http"
)

// ExportStorageResponse 导出到对象存储的结果
type ExportStorageResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ImportLibraryResponse 书库导入结果
type ImportLibraryResponse struct {
	Count int `json:"count"`
}

// ExportLibrary 导出书库
// @Summary      导出书库
// @Description  以 JSON 数组下载整个书库
// @Tags         书库
// @Produce      json
// @Success      200  {file}    binary  "书库文件"
// @Failure      500  {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/library/export [get]
func (h *Handler) ExportLibrary(c *gin.Context) {
	data, err := h.bookService.ExportLibrary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	name := "library-" + time.Now().UTC().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// ExportLibraryToStorage 导出书库到对象存储
// @Summary      导出书库到对象存储
// @Tags         书库
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"library exported\", \"data\": ExportStorageResponse}"
// @Failure      500  {object}  ErrorResponse  "服务器内部错误"
// @Router       /api/v1/library/export/storage [post]
func (h *Handler) ExportLibraryToStorage(c *gin.Context) {
	key, url, err := h.bookService.ExportLibraryToStorage(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("library exported", ExportStorageResponse{Key: key, URL: url}))
}

// ImportLibrary 导入书库
// @Summary      导入书库
// @Description  上传导出的书库文件（multipart 字段 file，或直接以 JSON 作为请求体），按书籍ID覆盖
// @Tags         书库
// @Accept       multipart/form-data,json
// @Produce      json
// @Param        file  formData  file  false  "书库文件"
// @Success      200   {object}  map[string]interface{}  "{\"code\": 0, \"message\": \"library imported\", \"data\": ImportLibraryResponse}"
// @Failure      400   {object}  ErrorResponse  "文件格式错误"
// @Router       /api/v1/library/import [post]
func (h *Handler) ImportLibrary(c *gin.Context) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, ferr := c.FormFile("file")
		if ferr != nil {
			badRequest(c, "Invalid file", ferr.Error())
			return
		}
		f, ferr := file.Open()
		if ferr != nil {
			badRequest(c, "Failed to open file", ferr.Error())
			return
		}
		defer f.Close()
		data, err = io.ReadAll(f)
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		badRequest(c, "Failed to read library file", err.Error())
		return
	}

	count, err := h.bookService.ImportLibrary(c.Request.Context(), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httputil.NewSuccessResponse("library imported", ImportLibraryResponse{Count: count}))
}
