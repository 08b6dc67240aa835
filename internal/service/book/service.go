package book

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"livre/internal/model/book"
	"livre/internal/pkg/booktools"
	"livre/internal/pkg/pdfrender"
	"livre/internal/pkg/progress"
	"livre/internal/pkg/storage"
	bookrepo "livre/internal/repository/book"
)

// BookService 书籍服务接口
// 定义 book 模块 service 层提供的能力
type BookService interface {
	// StartImport 异步导入，立即返回进度任务
	// 导入一旦开始不会因为请求结束而中止
	StartImport(ctx context.Context, input *ImportInput) (*book.ImportTask, error)

	// Import 同步导入（CLI 使用），与 StartImport 走同一条流水线
	Import(ctx context.Context, input *ImportInput) (*book.Book, error)

	// ListBooks 书库列表，最新添加的在前
	ListBooks(ctx context.Context) ([]*book.Book, error)

	// GetBook 获取一本书
	GetBook(ctx context.Context, bookID string) (*book.Book, error)

	// DeleteBook 删除书籍及其源文档
	DeleteBook(ctx context.Context, bookID string) error

	// UpdatePage 编辑页面内容后整本重新保存
	// 句子变化时清除已缓存的朗读
	UpdatePage(ctx context.Context, bookID, pageID string, update *PageUpdate) (*book.Page, error)

	// SynthesizePageAudio 为页面补齐朗读音频并保存；已有音频时直接返回
	SynthesizePageAudio(ctx context.Context, bookID, pageID string, voice book.Voice) (*book.Page, error)

	// KeywordAudio 词汇发音，首次合成后保存到书中
	KeywordAudio(ctx context.Context, bookID, word string, voice book.Voice) ([]byte, error)

	// ExportLibrary 导出整个书库（JSON 数组）
	ExportLibrary(ctx context.Context) ([]byte, error)

	// ExportLibraryToStorage 导出书库到对象存储，返回 key 和下载地址
	ExportLibraryToStorage(ctx context.Context) (string, string, error)

	// ImportLibrary 导入书库文件，按 ID 覆盖，返回导入的书籍数
	ImportLibrary(ctx context.Context, data []byte) (int, error)

	// ListTasks 进行中和刚结束的导入任务
	ListTasks(ctx context.Context) ([]*book.ImportTask, error)

	// RenderSourcePage 重新渲染源文档的一页（index 从 0 开始）
	// 翻页时只有最新的请求会得到结果，其余返回 pdfrender.ErrRenderCancelled
	RenderSourcePage(ctx context.Context, bookID string, index int) ([]byte, error)

	// Close 释放查看器持有的文档
	Close() error
}

// PageAnalyzer 内容分析（由 booktools.ContentAnalyzer 实现）
type PageAnalyzer interface {
	AnalyzePage(ctx context.Context, pageImage []byte) (*booktools.PageContent, error)
	AnalyzeTextChunk(ctx context.Context, text string, excludeWords []string) (*booktools.PageContent, error)
}

// SourceDocument 已加载的源文档
type SourceDocument interface {
	PageCount() int
	RenderPage(ctx context.Context, index int, size pdfrender.TargetSize) ([]byte, error)
	Close() error
}

// DocumentLoader 加载 PDF 源文档
type DocumentLoader interface {
	Load(ctx context.Context, data []byte) (SourceDocument, error)
}

type pdfLoader struct {
	client *pdfrender.Client
}

// NewPDFLoader 基于 poppler 工具的文档加载器
func NewPDFLoader(client *pdfrender.Client) DocumentLoader {
	return &pdfLoader{client: client}
}

func (l *pdfLoader) Load(ctx context.Context, data []byte) (SourceDocument, error) {
	doc, err := l.client.LoadDocument(ctx, data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Config 书籍服务依赖与参数
type Config struct {
	Repo      bookrepo.BookRepository
	Tracker   progress.Tracker
	Analyzer  PageAnalyzer
	Speech    booktools.SpeechProvider
	Images    booktools.ImageProvider // 可选，文本模式插图
	Documents DocumentLoader
	Storage   storage.Storage // 可选，源文档与导出文件

	RenderSize   pdfrender.TargetSize
	PageDelay    time.Duration // 每次分析调用之后的固定间隔
	ChunkChars   int
	DefaultVoice book.Voice
}

// ImportInput 一次导入
type ImportInput struct {
	SourceName string
	Data       []byte
	Text       bool // 强制按纯文本处理
	Voice      book.Voice
}

// PageUpdate 页面编辑，nil 字段保持不变
type PageUpdate struct {
	Title     *string         `json:"title,omitempty"`
	Sentences []book.Sentence `json:"sentences,omitempty"`
	Keywords  []book.Keyword  `json:"keywords,omitempty"`
}

// bookService 书籍服务实现
type bookService struct {
	repo        bookrepo.BookRepository
	tracker     progress.Tracker
	analyzer    PageAnalyzer
	synthesizer *booktools.Synthesizer
	images      booktools.ImageProvider
	documents   DocumentLoader
	storage     storage.Storage

	renderSize   pdfrender.TargetSize
	pageDelay    time.Duration
	chunkChars   int
	defaultVoice book.Voice

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	// mu 串行化"读取-修改-整本保存"
	mu sync.Mutex

	viewerMu sync.Mutex
	viewer   *sourceViewer
}

// sourceViewer 当前打开的源文档（只缓存一本）
type sourceViewer struct {
	bookID string
	doc    SourceDocument
	viewer *pdfrender.Viewer
}

// NewBookService 创建书籍服务
func NewBookService(cfg *Config) BookService {
	return newBookService(cfg)
}

func newBookService(cfg *Config) *bookService {
	voice := cfg.DefaultVoice
	if !voice.Valid() {
		voice = book.DefaultVoice
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = progress.NewMemoryTracker(progress.DefaultRemoveDelay)
	}
	return &bookService{
		repo:         cfg.Repo,
		tracker:      tracker,
		analyzer:     cfg.Analyzer,
		synthesizer:  booktools.NewSynthesizer(cfg.Speech),
		images:       cfg.Images,
		documents:    cfg.Documents,
		storage:      cfg.Storage,
		renderSize:   cfg.RenderSize,
		pageDelay:    cfg.PageDelay,
		chunkChars:   cfg.ChunkChars,
		defaultVoice: voice,
		sleep:        booktools.Sleep,
		now:          time.Now,
	}
}

// ListBooks 实现 BookService
func (s *bookService) ListBooks(ctx context.Context) ([]*book.Book, error) {
	return s.repo.FindAll(ctx)
}

// GetBook 实现 BookService
func (s *bookService) GetBook(ctx context.Context, bookID string) (*book.Book, error) {
	return s.repo.FindByID(ctx, bookID)
}

// DeleteBook 实现 BookService
func (s *bookService) DeleteBook(ctx context.Context, bookID string) error {
	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, bookID); err != nil {
		return err
	}

	s.dropViewer(bookID)
	if b.SourceKey != "" && s.storage != nil {
		if err := s.storage.Delete(ctx, b.SourceKey); err != nil {
			log.Warn().Err(err).Str("book_id", bookID).Str("key", b.SourceKey).Msg("failed to delete source document")
		}
	}

	log.Info().Str("book_id", bookID).Msg("book deleted")
	return nil
}

// UpdatePage 实现 BookService
func (s *bookService) UpdatePage(ctx context.Context, bookID, pageID string, update *PageUpdate) (*book.Page, error) {
	var updated *book.Page
	err := s.mutate(ctx, bookID, func(b *book.Book) error {
		page := b.FindPage(pageID)
		if page == nil {
			return ErrPageNotFound
		}

		if update.Title != nil {
			page.Title = strings.TrimSpace(*update.Title)
			if page.Title == "" {
				page.Title = book.DefaultPageTitle
			}
		}
		if update.Sentences != nil {
			narration := page.NarrationText()
			page.Sentences = cleanSentences(update.Sentences)
			if page.NarrationText() != narration || !page.HasNarration() {
				page.Audio = nil
			}
		}
		if update.Keywords != nil {
			page.Keywords = booktools.FilterNewWords(cleanKeywords(update.Keywords), booktools.NewWordSet())
		}

		updated = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SynthesizePageAudio 实现 BookService
func (s *bookService) SynthesizePageAudio(ctx context.Context, bookID, pageID string, voice book.Voice) (*book.Page, error) {
	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	page := b.FindPage(pageID)
	if page == nil {
		return nil, ErrPageNotFound
	}
	if !page.HasNarration() {
		return nil, ErrNoNarration
	}
	if len(page.Audio) > 0 {
		return page, nil
	}

	text := page.NarrationText()
	audio, err := s.synthesizer.Synthesize(ctx, text, s.voiceOrDefault(voice))
	if err != nil {
		return nil, err
	}

	var updated *book.Page
	err = s.mutate(ctx, bookID, func(b *book.Book) error {
		page := b.FindPage(pageID)
		if page == nil {
			return ErrPageNotFound
		}
		// 合成期间句子被修改过，丢弃这次结果
		if page.NarrationText() == text && len(page.Audio) == 0 {
			page.Audio = audio
		}
		updated = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// KeywordAudio 实现 BookService
func (s *bookService) KeywordAudio(ctx context.Context, bookID, word string, voice book.Voice) ([]byte, error) {
	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	kw := b.FindKeyword(word)
	if kw == nil {
		return nil, fmt.Errorf("%w: %q", ErrKeywordNotFound, word)
	}
	if len(kw.Audio) > 0 {
		return kw.Audio, nil
	}

	audio, err := s.synthesizer.Synthesize(ctx, kw.Word, s.voiceOrDefault(voice))
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, bookID, func(b *book.Book) error {
		if kw := b.FindKeyword(word); kw != nil && len(kw.Audio) == 0 {
			kw.Audio = audio
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("book_id", bookID).Str("word", word).Msg("failed to persist keyword audio")
	}
	return audio, nil
}

// ExportLibrary 实现 BookService
func (s *bookService) ExportLibrary(ctx context.Context) ([]byte, error) {
	books, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(books)
	if err != nil {
		return nil, fmt.Errorf("failed to encode library: %w", err)
	}
	return data, nil
}

// ExportLibraryToStorage 实现 BookService
func (s *bookService) ExportLibraryToStorage(ctx context.Context) (string, string, error) {
	if s.storage == nil {
		return "", "", ErrNoStorage
	}
	data, err := s.ExportLibrary(ctx)
	if err != nil {
		return "", "", err
	}

	key := storage.ExportKey(s.now())
	url, err := s.storage.Upload(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return "", "", fmt.Errorf("failed to upload library export: %w", err)
	}

	log.Info().Str("key", key).Int("size", len(data)).Msg("library exported")
	return key, url, nil
}

// ImportLibrary 实现 BookService
func (s *bookService) ImportLibrary(ctx context.Context, data []byte) (int, error) {
	var books []*book.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	for i, b := range books {
		if b == nil || strings.TrimSpace(b.ID) == "" {
			return 0, fmt.Errorf("%w: book %d has no id", ErrInvalidImport, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range books {
		if err := s.repo.Save(ctx, b); err != nil {
			return i, err
		}
	}

	log.Info().Int("count", len(books)).Msg("library imported")
	return len(books), nil
}

// ListTasks 实现 BookService
func (s *bookService) ListTasks(ctx context.Context) ([]*book.ImportTask, error) {
	return s.tracker.List(ctx)
}

// RenderSourcePage 实现 BookService
func (s *bookService) RenderSourcePage(ctx context.Context, bookID string, index int) ([]byte, error) {
	sv, err := s.openViewer(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= sv.doc.PageCount() {
		return nil, fmt.Errorf("%w: %d of %d", pdfrender.ErrPageOutOfRange, index, sv.doc.PageCount())
	}
	return sv.viewer.Render(ctx, index)
}

// Close 实现 BookService
func (s *bookService) Close() error {
	s.dropViewer("")
	return nil
}

func (s *bookService) openViewer(ctx context.Context, bookID string) (*sourceViewer, error) {
	s.viewerMu.Lock()
	defer s.viewerMu.Unlock()

	if s.viewer != nil && s.viewer.bookID == bookID {
		return s.viewer, nil
	}

	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if b.SourceKey == "" {
		return nil, ErrNoSource
	}
	if s.storage == nil {
		return nil, ErrNoStorage
	}

	reader, err := s.storage.Download(ctx, b.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download source document: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read source document: %w", err)
	}

	doc, err := s.documents.Load(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load source document: %w", err)
	}

	s.closeViewerLocked()
	s.viewer = &sourceViewer{
		bookID: bookID,
		doc:    doc,
		viewer: pdfrender.NewViewer(doc, s.renderSize),
	}
	return s.viewer, nil
}

// dropViewer bookID 为空时无条件关闭
func (s *bookService) dropViewer(bookID string) {
	s.viewerMu.Lock()
	defer s.viewerMu.Unlock()
	if s.viewer != nil && (bookID == "" || s.viewer.bookID == bookID) {
		s.closeViewerLocked()
	}
}

func (s *bookService) closeViewerLocked() {
	if s.viewer == nil {
		return
	}
	s.viewer.viewer.Stop()
	if err := s.viewer.doc.Close(); err != nil {
		log.Warn().Err(err).Str("book_id", s.viewer.bookID).Msg("failed to close source document")
	}
	s.viewer = nil
}

// mutate 读取整本书，修改后整本重新保存
func (s *bookService) mutate(ctx context.Context, bookID string, fn func(b *book.Book) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		return err
	}
	if err := fn(b); err != nil {
		return err
	}
	return s.repo.Save(ctx, b)
}

func (s *bookService) voiceOrDefault(voice book.Voice) book.Voice {
	if voice.Valid() {
		return voice
	}
	return s.defaultVoice
}

func cleanSentences(in []book.Sentence) []book.Sentence {
	out := make([]book.Sentence, 0, len(in))
	for _, st := range in {
		st.Source = strings.TrimSpace(st.Source)
		st.Target = strings.TrimSpace(st.Target)
		if st.Source == "" {
			continue
		}
		out = append(out, st)
	}
	return out
}

func cleanKeywords(in []book.Keyword) []book.Keyword {
	out := make([]book.Keyword, 0, len(in))
	for _, kw := range in {
		kw.Word = strings.TrimSpace(kw.Word)
		kw.Pronunciation = strings.TrimSpace(kw.Pronunciation)
		kw.Explanation = strings.TrimSpace(kw.Explanation)
		out = append(out, kw)
	}
	return out
}
