package book

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册书籍、导入和书库接口
func (h *Handler) RegisterRoutes(v1 *gin.RouterGroup) {
	books := v1.Group("/books")
	{
		books.GET("", h.ListBooks)
		books.GET("/:book_id", h.GetBook)
		books.DELETE("/:book_id", h.DeleteBook)
		books.PUT("/:book_id/pages/:page_id", h.UpdatePage)
		books.POST("/:book_id/pages/:page_id/audio", h.SynthesizePageAudio)
		books.GET("/:book_id/pages/:page_id/audio", h.GetPageAudio)
		books.GET("/:book_id/pages/:page_id/highlight", h.GetHighlight)
		books.POST("/:book_id/keywords/audio", h.KeywordAudio)
		books.GET("/:book_id/source/pages/:page", h.RenderSourcePage)
	}

	v1.POST("/imports", h.StartImport)
	v1.GET("/imports", h.ListImports)

	library := v1.Group("/library")
	{
		library.GET("/export", h.ExportLibrary)
		library.POST("/export/storage", h.ExportLibraryToStorage)
		library.POST("/import", h.ImportLibrary)
	}
}
