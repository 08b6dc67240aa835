package book

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"livre/internal/model/book"
	"livre/internal/pkg/booktools"
	"livre/internal/pkg/id"
	"livre/internal/pkg/pdfrender"
	"livre/internal/pkg/storage"
)

// 导入进度
const (
	progressReading  = 10
	progressCreating = 30
	progressDone     = 100
)

// StartImport 实现 BookService
func (s *bookService) StartImport(ctx context.Context, input *ImportInput) (*book.ImportTask, error) {
	if err := s.prepareInput(input); err != nil {
		return nil, err
	}

	task, err := s.tracker.Start(ctx, input.SourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to start import task: %w", err)
	}

	// 导入不随请求结束而中止
	importCtx := context.WithoutCancel(ctx)
	go func() {
		_, _ = s.runImport(importCtx, task.ID, input)
	}()

	return task, nil
}

// Import 实现 BookService
func (s *bookService) Import(ctx context.Context, input *ImportInput) (*book.Book, error) {
	if err := s.prepareInput(input); err != nil {
		return nil, err
	}

	task, err := s.tracker.Start(ctx, input.SourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to start import task: %w", err)
	}
	return s.runImport(ctx, task.ID, input)
}

func (s *bookService) prepareInput(input *ImportInput) error {
	if input == nil || len(input.Data) == 0 {
		return fmt.Errorf("%w: empty document", ErrInvalidImport)
	}
	if !input.Voice.Valid() {
		input.Voice = s.defaultVoice
	}
	if !isPDF(input.Data) {
		input.Text = true
	}
	if strings.TrimSpace(input.SourceName) == "" {
		if input.Text {
			input.SourceName = "Histoire_" + s.now().Format("15-04-05") + ".txt"
		} else {
			input.SourceName = "document.pdf"
		}
	}
	return nil
}

// runImport 执行流水线并结束任务
func (s *bookService) runImport(ctx context.Context, taskID string, input *ImportInput) (*book.Book, error) {
	logger := log.With().Str("task_id", taskID).Str("source", input.SourceName).Logger()
	logger.Info().Bool("text", input.Text).Int("size", len(input.Data)).Msg("import started")

	var (
		b   *book.Book
		err error
	)
	if input.Text {
		b, err = s.ingestText(ctx, taskID, input)
	} else {
		b, err = s.ingestPDF(ctx, taskID, input)
	}
	if err == nil {
		s.progress(ctx, taskID, book.TaskLabelSaving, progressDone)
		err = s.repo.Save(ctx, b)
		if err != nil && b.SourceKey != "" {
			_ = s.storage.Delete(ctx, b.SourceKey)
		}
	}

	if err != nil {
		logger.Error().Err(err).Msg("import failed")
		if ferr := s.tracker.Finish(ctx, taskID, book.TaskStateFailed, "Error: "+err.Error(), 0, ""); ferr != nil {
			logger.Warn().Err(ferr).Msg("failed to finish import task")
		}
		return nil, err
	}

	if ferr := s.tracker.Finish(ctx, taskID, book.TaskStateSucceeded, book.TaskLabelDone, progressDone, b.ID); ferr != nil {
		logger.Warn().Err(ferr).Msg("failed to finish import task")
	}
	logger.Info().Str("book_id", b.ID).Str("title", b.Title).Int("pages", len(b.Pages)).Msg("import finished")
	return b, nil
}

// ingestPDF PDF 模式：逐页渲染、分析、去重、合成，严格按页序串行
func (s *bookService) ingestPDF(ctx context.Context, taskID string, input *ImportInput) (*book.Book, error) {
	s.progress(ctx, taskID, book.TaskLabelReadingPDF, progressReading)

	doc, err := s.documents.Load(ctx, input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	defer doc.Close()

	total := doc.PageCount()
	seen := booktools.NewWordSet()
	pages := make([]*book.Page, 0, total)
	var firstTitle string

	for i := 0; i < total; i++ {
		s.progress(ctx, taskID, fmt.Sprintf("Analyzing page %d/%d...", i+1, total), float64(i+1)/float64(total)*100)

		page, err := s.buildPDFPage(ctx, doc, i, seen, input.Voice)
		if err != nil {
			return nil, err
		}
		if i == 0 && page.Title != book.PlaceholderTitle {
			firstTitle = page.Title
		}
		pages = append(pages, page)
	}

	b := Assemble(input.SourceName, pages, firstTitle, s.now())
	b.SourceKey = s.storeSource(ctx, b.ID, input)
	return b, nil
}

// buildPDFPage 单页失败时返回占位页；只有 ctx 结束才返回错误
func (s *bookService) buildPDFPage(ctx context.Context, doc SourceDocument, index int, seen *booktools.WordSet, voice book.Voice) (*book.Page, error) {
	logger := log.With().Int("page", index+1).Logger()
	pageID := id.WithPrefix("page")

	img, err := doc.RenderPage(ctx, index, s.renderSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error().Err(err).Msg("failed to render page, using placeholder")
		return book.NewPlaceholderPage(pageID, nil), nil
	}

	content, err := s.analyzer.AnalyzePage(ctx, img)
	if werr := s.wait(ctx); werr != nil {
		return nil, werr
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to analyze page, using placeholder")
		return book.NewPlaceholderPage(pageID, img), nil
	}

	page := s.newPage(ctx, pageID, content, seen, voice)
	page.Image = img
	return page, nil
}

// ingestText 文本模式：分段后逐段分析，分段标题作为书名
func (s *bookService) ingestText(ctx context.Context, taskID string, input *ImportInput) (*book.Book, error) {
	text, err := pdfrender.GetPlainText(input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImport, err)
	}
	segments := booktools.SegmentText(text, s.chunkChars)
	if len(segments.Chunks) == 0 {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidImport)
	}

	s.progress(ctx, taskID, book.TaskLabelCreating, progressCreating)

	total := len(segments.Chunks)
	seen := booktools.NewWordSet()
	pages := make([]*book.Page, 0, total)

	for i, chunk := range segments.Chunks {
		s.progress(ctx, taskID, fmt.Sprintf("Analyzing page %d/%d...", i+1, total), float64(i+1)/float64(total)*100)
		pageID := id.WithPrefix("page")

		content, err := s.analyzer.AnalyzeTextChunk(ctx, chunk, seen.Words())
		if werr := s.wait(ctx); werr != nil {
			return nil, werr
		}

		var page *book.Page
		if err != nil {
			log.Error().Err(err).Int("page", i+1).Msg("failed to analyze text chunk, using placeholder")
			page = book.NewPlaceholderPage(pageID, nil)
		} else {
			if content.Title == "" {
				content.Title = fmt.Sprintf("Page %d", i+1)
			}
			page = s.newPage(ctx, pageID, content, seen, input.Voice)
		}
		page.Image = s.illustrate(ctx, chunk)
		pages = append(pages, page)
	}

	b := Assemble(input.SourceName, pages, segments.Title, s.now())
	for _, page := range b.Pages {
		if len(page.Image) == 0 {
			page.Image = b.CoverImage
		}
	}
	return b, nil
}

// newPage 分析结果去重、合成后得到页面
func (s *bookService) newPage(ctx context.Context, pageID string, content *booktools.PageContent, seen *booktools.WordSet, voice book.Voice) *book.Page {
	title := strings.TrimSpace(content.Title)
	if title == "" {
		title = book.DefaultPageTitle
	}
	page := &book.Page{
		ID:        pageID,
		Title:     title,
		Sentences: content.Sentences,
		Keywords:  booktools.FilterNewWords(content.Keywords, seen),
	}
	s.synthesizer.SynthesizePage(ctx, page, voice)
	return page
}

// illustrate 文本页插图，失败或未配置时返回 nil
func (s *bookService) illustrate(ctx context.Context, chunk string) []byte {
	if s.images == nil {
		return nil
	}
	img, err := s.images.GenerateImage(ctx, chunk)
	if err != nil {
		log.Warn().Err(err).Msg("failed to generate illustration")
		return nil
	}
	return img
}

// storeSource 保存源文档供查看器重新渲染，失败不影响导入
func (s *bookService) storeSource(ctx context.Context, bookID string, input *ImportInput) string {
	if s.storage == nil {
		return ""
	}
	key := storage.SourceKey(bookID, filepath.Base(input.SourceName))
	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(input.Data), "application/pdf"); err != nil {
		log.Warn().Err(err).Str("book_id", bookID).Msg("failed to store source document")
		return ""
	}
	return key
}

func (s *bookService) wait(ctx context.Context) error {
	if s.pageDelay <= 0 {
		return nil
	}
	return s.sleep(ctx, s.pageDelay)
}

func (s *bookService) progress(ctx context.Context, taskID, status string, pct float64) {
	if err := s.tracker.Update(ctx, taskID, status, pct); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("task_id", taskID).Msg("failed to update import task")
	}
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
