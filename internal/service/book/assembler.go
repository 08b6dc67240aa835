package book

import (
	"path/filepath"
	"strings"
	"time"

	"livre/internal/model/book"
	"livre/internal/pkg/booktools"
	"livre/internal/pkg/id"
)

// Assemble 把页面组装成一本书
// 标题默认取源文件名（去掉扩展名），explicitTitle 非空时覆盖；都为空时使用默认标题
// 封面取第一页的图片，没有时生成确定性的占位封面，CoverImage 永远不为 nil
func Assemble(sourceName string, pages []*book.Page, explicitTitle string, now time.Time) *book.Book {
	title := strings.TrimSpace(explicitTitle)
	if title == "" {
		title = titleFromSource(sourceName)
	}
	if title == "" {
		title = book.DefaultBookTitle
	}

	if pages == nil {
		pages = []*book.Page{}
	}

	var cover []byte
	if len(pages) > 0 && len(pages[0].Image) > 0 {
		cover = pages[0].Image
	} else {
		cover = booktools.PlaceholderCover(title)
	}

	b := &book.Book{
		ID:         id.New(),
		Title:      title,
		Pages:      pages,
		DateAdded:  now.UnixMilli(),
		CoverImage: cover,
	}
	b.Normalize()
	return b
}

func titleFromSource(sourceName string) string {
	base := filepath.Base(strings.TrimSpace(sourceName))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
}
