package book

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/model/book"
	"livre/internal/pkg/booktools"
	"livre/internal/pkg/pdfrender"
	"livre/internal/pkg/progress"
	"livre/internal/pkg/storage/local"
	bookrepo "livre/internal/repository/book"
)

// fakeAnalyzer 按页码返回预设结果
type fakeAnalyzer struct {
	mu       sync.Mutex
	pages    int
	pageFunc func(n int, image []byte) (*booktools.PageContent, error)
	excluded [][]string
}

func (a *fakeAnalyzer) AnalyzePage(ctx context.Context, pageImage []byte) (*booktools.PageContent, error) {
	a.mu.Lock()
	a.pages++
	n := a.pages
	a.mu.Unlock()
	return a.pageFunc(n, pageImage)
}

func (a *fakeAnalyzer) AnalyzeTextChunk(ctx context.Context, text string, excludeWords []string) (*booktools.PageContent, error) {
	a.mu.Lock()
	a.excluded = append(a.excluded, excludeWords)
	a.mu.Unlock()
	return &booktools.PageContent{
		Sentences: []book.Sentence{{Source: text, Target: "translated"}},
		Keywords:  []book.Keyword{{Word: "chat", Pronunciation: "sha", Explanation: "cat"}},
	}, nil
}

// fakeSpeech 记录合成次数
type fakeSpeech struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string, voice book.Voice) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte{1, 2, 3, 4}, nil
}

func (f *fakeSpeech) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

// fakeDocs 加载出固定页数的文档
type fakeDocs struct {
	pages      int
	failRender map[int]bool
	loaded     int
}

type fakeDoc struct {
	pages      int
	failRender map[int]bool
	closed     bool
}

func (d *fakeDocs) Load(ctx context.Context, data []byte) (SourceDocument, error) {
	if !isPDF(data) {
		return nil, pdfrender.ErrNotPDF
	}
	d.loaded++
	return &fakeDoc{pages: d.pages, failRender: d.failRender}, nil
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) RenderPage(ctx context.Context, index int, size pdfrender.TargetSize) ([]byte, error) {
	if d.failRender[index] {
		return nil, errors.New("render failed")
	}
	return []byte(fmt.Sprintf("img-%d", index)), nil
}

func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type testEnv struct {
	svc      *bookService
	analyzer *fakeAnalyzer
	speech   *fakeSpeech
	docs     *fakeDocs
	repo     *bookrepo.SQLiteRepo
	store    *local.LocalStorage

	mu    sync.Mutex
	waits []time.Duration
}

// failingSaveRepo 读操作走真实仓库，保存总是失败
type failingSaveRepo struct {
	bookrepo.BookRepository
	attempted *book.Book
}

func (r *failingSaveRepo) Save(ctx context.Context, b *book.Book) error {
	r.attempted = b
	return fmt.Errorf("%w: disk full", bookrepo.ErrStorage)
}

func newTestEnv(t *testing.T, removeDelay time.Duration) *testEnv {
	repo, err := bookrepo.NewSQLiteRepo(context.Background(), "file::memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	store, err := local.NewLocalStorage(t.TempDir(), "http://localhost/storage")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	env := &testEnv{
		analyzer: &fakeAnalyzer{pageFunc: func(n int, image []byte) (*booktools.PageContent, error) {
			return &booktools.PageContent{
				Title:     fmt.Sprintf("Titre %d", n),
				Sentences: []book.Sentence{{Source: fmt.Sprintf("Phrase %d.", n), Target: fmt.Sprintf("Sentence %d.", n)}},
				Keywords:  []book.Keyword{{Word: "chat"}, {Word: fmt.Sprintf("mot%d", n)}},
			}, nil
		}},
		speech: &fakeSpeech{},
		docs:   &fakeDocs{pages: 3},
		repo:   repo,
		store:  store,
	}
	env.svc = newBookService(&Config{
		Repo:         repo,
		Tracker:      progress.NewMemoryTracker(removeDelay),
		Analyzer:     env.analyzer,
		Speech:       env.speech,
		Documents:    env.docs,
		Storage:      store,
		PageDelay:    2 * time.Second,
		DefaultVoice: book.VoicePuck,
	})
	env.svc.sleep = func(ctx context.Context, d time.Duration) error {
		env.mu.Lock()
		defer env.mu.Unlock()
		env.waits = append(env.waits, d)
		return nil
	}
	return env
}

var pdfData = []byte("%PDF-1.4 fake")

func TestBookService_ImportPDF(t *testing.T) {
	ctx := context.Background()

	Convey("PDF 导入", t, func() {
		env := newTestEnv(t, time.Minute)

		Convey("第二页分析失败时以占位页替代，其余页正常", func() {
			env.analyzer.pageFunc = func(n int, image []byte) (*booktools.PageContent, error) {
				if n == 2 {
					return nil, booktools.ErrServiceError
				}
				return &booktools.PageContent{
					Title:     fmt.Sprintf("Titre %d", n),
					Sentences: []book.Sentence{{Source: fmt.Sprintf("Phrase %d.", n), Target: "t"}},
					Keywords:  []book.Keyword{{Word: "chat"}, {Word: fmt.Sprintf("mot%d", n)}},
				}, nil
			}

			b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
			So(err, ShouldBeNil)
			So(len(b.Pages), ShouldEqual, 3)

			So(b.Pages[0].Title, ShouldEqual, "Titre 1")
			So(b.Pages[2].Title, ShouldEqual, "Titre 3")

			placeholder := b.Pages[1]
			So(placeholder.Title, ShouldEqual, book.PlaceholderTitle)
			So(len(placeholder.Sentences), ShouldEqual, 1)
			So(placeholder.Sentences[0].Source, ShouldEqual, book.PlaceholderSource)
			So(placeholder.Sentences[0].Target, ShouldEqual, book.PlaceholderTarget)
			So(len(placeholder.Keywords), ShouldEqual, 0)
			So(placeholder.Audio, ShouldBeNil)
			So(string(placeholder.Image), ShouldEqual, "img-1")

			// 第一页的标题作为书名，封面取第一页图片
			So(b.Title, ShouldEqual, "Titre 1")
			So(string(b.CoverImage), ShouldEqual, "img-0")

			// 跨页去重：第三页的 "chat" 已在第一页出现
			So(len(b.Pages[0].Keywords), ShouldEqual, 2)
			So(len(b.Pages[2].Keywords), ShouldEqual, 1)
			So(b.Pages[2].Keywords[0].Word, ShouldEqual, "mot3")

			// 只为成功的页面合成
			So(env.speech.calls(), ShouldEqual, 2)
			So(b.Pages[0].Audio, ShouldNotBeNil)

			// 每次分析调用后都等待
			So(env.waits, ShouldResemble, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second})

			saved, err := env.svc.GetBook(ctx, b.ID)
			So(err, ShouldBeNil)
			So(len(saved.Pages), ShouldEqual, 3)
			So(saved.SourceKey, ShouldNotEqual, "")
			exists, err := env.store.Exists(ctx, saved.SourceKey)
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)
		})

		Convey("渲染失败的页面没有图片，也不调用分析", func() {
			env.docs.failRender = map[int]bool{0: true}

			b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
			So(err, ShouldBeNil)
			So(b.Pages[0].Title, ShouldEqual, book.PlaceholderTitle)
			So(b.Pages[0].Image, ShouldBeNil)
			So(env.analyzer.pages, ShouldEqual, 2)
			// 第一页失败时书名回到文件名，封面为占位图
			So(b.Title, ShouldEqual, "conte")
			So(len(b.CoverImage), ShouldBeGreaterThan, 0)
		})

		Convey("任务结束时标记成功并带上书籍ID", func() {
			b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
			So(err, ShouldBeNil)

			tasks, err := env.svc.ListTasks(ctx)
			So(err, ShouldBeNil)
			So(len(tasks), ShouldEqual, 1)
			So(tasks[0].State, ShouldEqual, book.TaskStateSucceeded)
			So(tasks[0].Status, ShouldEqual, book.TaskLabelDone)
			So(tasks[0].Progress, ShouldEqual, 100.0)
			So(tasks[0].BookID, ShouldEqual, b.ID)
		})

		Convey("空文档直接拒绝，不创建任务", func() {
			_, err := env.svc.Import(ctx, &ImportInput{SourceName: "vide.pdf"})
			So(errors.Is(err, ErrInvalidImport), ShouldBeTrue)
			tasks, _ := env.svc.ListTasks(ctx)
			So(len(tasks), ShouldEqual, 0)
		})
	})
}

func TestBookService_ImportText(t *testing.T) {
	ctx := context.Background()

	Convey("文本导入", t, func() {
		env := newTestEnv(t, time.Minute)

		Convey("一句话的文本得到一页，标题非空，封面存在", func() {
			b, err := env.svc.Import(ctx, &ImportInput{Data: []byte("Il était une fois un petit chat.")})
			So(err, ShouldBeNil)
			So(len(b.Pages), ShouldEqual, 1)
			So(b.Title, ShouldEqual, "Il était une fois un petit chat")
			So(b.Pages[0].Sentences[0].Source, ShouldEqual, "Il était une fois un petit chat.")
			So(len(b.CoverImage), ShouldBeGreaterThan, 0)
			So(b.Pages[0].Image, ShouldResemble, b.CoverImage)
			So(b.SourceKey, ShouldEqual, "")
		})

		Convey("已出现的词传给后续片段", func() {
			env.svc.chunkChars = 20
			b, err := env.svc.Import(ctx, &ImportInput{SourceName: "histoire.txt", Data: []byte("Le chat dort bien. Le chat mange bien.")})
			So(err, ShouldBeNil)
			So(len(b.Pages), ShouldEqual, 2)
			So(len(env.analyzer.excluded), ShouldEqual, 2)
			So(len(env.analyzer.excluded[0]), ShouldEqual, 0)
			So(env.analyzer.excluded[1], ShouldResemble, []string{"chat"})
			So(len(b.Pages[1].Keywords), ShouldEqual, 0)
			So(b.Pages[1].Title, ShouldEqual, "Page 2")
		})

		Convey("无效编码的文本导入失败，任务记录错误", func() {
			_, err := env.svc.Import(ctx, &ImportInput{SourceName: "bad.txt", Data: []byte{0xff, 0xfe, 0xfd}})
			So(errors.Is(err, ErrInvalidImport), ShouldBeTrue)

			tasks, _ := env.svc.ListTasks(ctx)
			So(len(tasks), ShouldEqual, 1)
			So(tasks[0].State, ShouldEqual, book.TaskStateFailed)
			So(tasks[0].Status, ShouldStartWith, "Error: ")
			So(tasks[0].Progress, ShouldEqual, 0.0)
		})
	})
}

func TestBookService_ImportSaveFailure(t *testing.T) {
	ctx := context.Background()

	Convey("最终保存失败时导入失败，已上传的源文档被删除", t, func() {
		env := newTestEnv(t, time.Minute)
		failing := &failingSaveRepo{BookRepository: env.repo}
		env.svc.repo = failing

		b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
		So(b, ShouldBeNil)
		So(errors.Is(err, bookrepo.ErrStorage), ShouldBeTrue)

		tasks, err := env.svc.ListTasks(ctx)
		So(err, ShouldBeNil)
		So(len(tasks), ShouldEqual, 1)
		So(tasks[0].State, ShouldEqual, book.TaskStateFailed)
		So(tasks[0].Status, ShouldStartWith, "Error: ")
		So(tasks[0].Progress, ShouldEqual, 0.0)
		So(tasks[0].BookID, ShouldEqual, "")

		So(failing.attempted, ShouldNotBeNil)
		So(failing.attempted.SourceKey, ShouldNotEqual, "")
		exists, err := env.store.Exists(ctx, failing.attempted.SourceKey)
		So(err, ShouldBeNil)
		So(exists, ShouldBeFalse)
	})
}

func TestBookService_ImportDedupIsolation(t *testing.T) {
	ctx := context.Background()
	story := []byte("Le chat dort bien. Le chat mange bien.")

	Convey("每次导入使用独立的已出现词集合", t, func() {
		env := newTestEnv(t, time.Minute)
		env.svc.chunkChars = 20

		assertOwnFirstOccurrence := func(b *book.Book) {
			So(len(b.Pages), ShouldEqual, 2)
			So(len(b.Pages[0].Keywords), ShouldEqual, 1)
			So(b.Pages[0].Keywords[0].Word, ShouldEqual, "chat")
			So(len(b.Pages[1].Keywords), ShouldEqual, 0)
		}

		Convey("并发导入互不影响", func() {
			const n = 4
			books := make([]*book.Book, n)
			errs := make([]error, n)
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					books[i], errs[i] = env.svc.Import(ctx, &ImportInput{
						SourceName: fmt.Sprintf("histoire-%d.txt", i),
						Data:       story,
					})
				}(i)
			}
			wg.Wait()

			for i := 0; i < n; i++ {
				So(errs[i], ShouldBeNil)
				assertOwnFirstOccurrence(books[i])
			}
		})

		Convey("先后导入互不影响", func() {
			first, err := env.svc.Import(ctx, &ImportInput{SourceName: "un.txt", Data: story})
			So(err, ShouldBeNil)
			second, err := env.svc.Import(ctx, &ImportInput{SourceName: "deux.txt", Data: story})
			So(err, ShouldBeNil)

			assertOwnFirstOccurrence(first)
			assertOwnFirstOccurrence(second)
			So(second.ID, ShouldNotEqual, first.ID)
		})
	})
}

func TestBookService_StartImport(t *testing.T) {
	Convey("异步导入完成后任务延迟移除", t, func() {
		env := newTestEnv(t, 100*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		task, err := env.svc.StartImport(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
		// 请求结束不影响导入
		cancel()
		So(err, ShouldBeNil)
		So(task.State, ShouldEqual, book.TaskStateRunning)

		var finished *book.ImportTask
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			got, err := env.svc.tracker.Get(context.Background(), task.ID)
			if err == nil && got.State.IsTerminal() {
				finished = got
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		So(finished, ShouldNotBeNil)
		So(finished.State, ShouldEqual, book.TaskStateSucceeded)

		time.Sleep(300 * time.Millisecond)
		_, err = env.svc.tracker.Get(context.Background(), task.ID)
		So(errors.Is(err, progress.ErrTaskNotFound), ShouldBeTrue)

		books, err := env.svc.ListBooks(context.Background())
		So(err, ShouldBeNil)
		So(len(books), ShouldEqual, 1)
	})
}

func TestBookService_Edit(t *testing.T) {
	ctx := context.Background()

	Convey("编辑与音频缓存", t, func() {
		env := newTestEnv(t, time.Minute)
		b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
		So(err, ShouldBeNil)
		page := b.Pages[0]
		So(env.speech.calls(), ShouldEqual, 3)

		Convey("修改句子清除朗读音频", func() {
			updated, err := env.svc.UpdatePage(ctx, b.ID, page.ID, &PageUpdate{
				Sentences: []book.Sentence{{Source: "Nouvelle phrase.", Target: "New sentence."}, {Source: "  ", Target: "x"}},
			})
			So(err, ShouldBeNil)
			So(len(updated.Sentences), ShouldEqual, 1)
			So(updated.Audio, ShouldBeNil)

			again, err := env.svc.SynthesizePageAudio(ctx, b.ID, page.ID, "")
			So(err, ShouldBeNil)
			So(again.Audio, ShouldNotBeNil)
			So(env.speech.calls(), ShouldEqual, 4)
		})

		Convey("只改译文时保留音频", func() {
			updated, err := env.svc.UpdatePage(ctx, b.ID, page.ID, &PageUpdate{
				Sentences: []book.Sentence{{Source: page.Sentences[0].Source, Target: "Other translation."}},
			})
			So(err, ShouldBeNil)
			So(updated.Audio, ShouldNotBeNil)
		})

		Convey("清空句子后不能合成", func() {
			empty := ""
			updated, err := env.svc.UpdatePage(ctx, b.ID, page.ID, &PageUpdate{Title: &empty, Sentences: []book.Sentence{}})
			So(err, ShouldBeNil)
			So(updated.Title, ShouldEqual, book.DefaultPageTitle)
			So(updated.HasNarration(), ShouldBeFalse)

			_, err = env.svc.SynthesizePageAudio(ctx, b.ID, page.ID, "")
			So(errors.Is(err, ErrNoNarration), ShouldBeTrue)
		})

		Convey("已有音频时不再合成", func() {
			_, err := env.svc.SynthesizePageAudio(ctx, b.ID, page.ID, book.VoiceKore)
			So(err, ShouldBeNil)
			So(env.speech.calls(), ShouldEqual, 3)
		})

		Convey("页面不存在", func() {
			_, err := env.svc.UpdatePage(ctx, b.ID, "missing", &PageUpdate{})
			So(errors.Is(err, ErrPageNotFound), ShouldBeTrue)
		})

		Convey("词汇发音首次合成后保存", func() {
			audio, err := env.svc.KeywordAudio(ctx, b.ID, " CHAT ", "")
			So(err, ShouldBeNil)
			So(audio, ShouldResemble, []byte{1, 2, 3, 4})
			So(env.speech.calls(), ShouldEqual, 4)

			_, err = env.svc.KeywordAudio(ctx, b.ID, "chat", "")
			So(err, ShouldBeNil)
			So(env.speech.calls(), ShouldEqual, 4)

			saved, _ := env.svc.GetBook(ctx, b.ID)
			So(saved.FindKeyword("chat").Audio, ShouldResemble, []byte{1, 2, 3, 4})

			_, err = env.svc.KeywordAudio(ctx, b.ID, "inconnu", "")
			So(errors.Is(err, ErrKeywordNotFound), ShouldBeTrue)
		})

		Convey("合成失败时返回合成错误", func() {
			env.speech.err = errors.New("tts down")
			_, err := env.svc.KeywordAudio(ctx, b.ID, "mot1", "")
			So(errors.Is(err, booktools.ErrSynthesis), ShouldBeTrue)
		})

		Convey("删除书籍同时删除源文档", func() {
			saved, _ := env.svc.GetBook(ctx, b.ID)
			So(env.svc.DeleteBook(ctx, b.ID), ShouldBeNil)

			_, err := env.svc.GetBook(ctx, b.ID)
			So(errors.Is(err, ErrBookNotFound), ShouldBeTrue)
			exists, _ := env.store.Exists(ctx, saved.SourceKey)
			So(exists, ShouldBeFalse)
		})
	})
}

func TestBookService_Library(t *testing.T) {
	ctx := context.Background()

	Convey("书库导出与导入", t, func() {
		env := newTestEnv(t, time.Minute)
		b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
		So(err, ShouldBeNil)

		data, err := env.svc.ExportLibrary(ctx)
		So(err, ShouldBeNil)

		other := newTestEnv(t, time.Minute)
		n, err := other.svc.ImportLibrary(ctx, data)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 1)

		restored, err := other.svc.GetBook(ctx, b.ID)
		So(err, ShouldBeNil)
		So(restored.Title, ShouldEqual, b.Title)
		So(restored.DateAdded, ShouldEqual, b.DateAdded)
		So(len(restored.Pages), ShouldEqual, 3)
		So(restored.Pages[0].Audio, ShouldResemble, b.Pages[0].Audio)

		Convey("重复导入按ID覆盖", func() {
			n, err := other.svc.ImportLibrary(ctx, data)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
			books, _ := other.svc.ListBooks(ctx)
			So(len(books), ShouldEqual, 1)
		})

		Convey("格式错误或缺少ID时拒绝", func() {
			_, err := other.svc.ImportLibrary(ctx, []byte("not json"))
			So(errors.Is(err, ErrInvalidImport), ShouldBeTrue)
			_, err = other.svc.ImportLibrary(ctx, []byte(`[{"title":"sans id"}]`))
			So(errors.Is(err, ErrInvalidImport), ShouldBeTrue)
		})

		Convey("导出到对象存储", func() {
			key, url, err := env.svc.ExportLibraryToStorage(ctx)
			So(err, ShouldBeNil)
			So(key, ShouldStartWith, "exports/library-")
			So(url, ShouldContainSubstring, key)
		})
	})
}

func TestBookService_RenderSourcePage(t *testing.T) {
	ctx := context.Background()

	Convey("重新渲染源文档页面", t, func() {
		env := newTestEnv(t, time.Minute)
		b, err := env.svc.Import(ctx, &ImportInput{SourceName: "conte.pdf", Data: pdfData})
		So(err, ShouldBeNil)
		loaded := env.docs.loaded

		img, err := env.svc.RenderSourcePage(ctx, b.ID, 2)
		So(err, ShouldBeNil)
		So(string(img), ShouldEqual, "img-2")

		// 同一本书复用已打开的文档
		_, err = env.svc.RenderSourcePage(ctx, b.ID, 0)
		So(err, ShouldBeNil)
		So(env.docs.loaded, ShouldEqual, loaded+1)

		_, err = env.svc.RenderSourcePage(ctx, b.ID, 3)
		So(errors.Is(err, pdfrender.ErrPageOutOfRange), ShouldBeTrue)

		text, err := env.svc.Import(ctx, &ImportInput{Data: []byte("Bonjour le monde.")})
		So(err, ShouldBeNil)
		_, err = env.svc.RenderSourcePage(ctx, text.ID, 0)
		So(errors.Is(err, ErrNoSource), ShouldBeTrue)

		So(env.svc.Close(), ShouldBeNil)
	})
}

func TestAssemble(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	Convey("Assemble 组装书籍", t, func() {
		Convey("标题取文件名，去掉扩展名", func() {
			b := Assemble("/tmp/Le Petit Prince.pdf", nil, "", now)
			So(b.Title, ShouldEqual, "Le Petit Prince")
			So(b.DateAdded, ShouldEqual, int64(1700000000000))
			So(b.Pages, ShouldNotBeNil)
			So(b.ID, ShouldNotEqual, "")
		})

		Convey("显式标题覆盖文件名", func() {
			b := Assemble("conte.pdf", nil, "  Le chat  ", now)
			So(b.Title, ShouldEqual, "Le chat")
		})

		Convey("都为空时使用默认标题", func() {
			b := Assemble("", nil, "", now)
			So(b.Title, ShouldEqual, book.DefaultBookTitle)
		})

		Convey("封面取第一页图片，否则使用占位封面", func() {
			withImage := Assemble("a.pdf", []*book.Page{{ID: "p1", Image: []byte("img")}}, "", now)
			So(string(withImage.CoverImage), ShouldEqual, "img")

			without := Assemble("a.pdf", []*book.Page{{ID: "p1"}}, "", now)
			So(without.CoverImage, ShouldResemble, booktools.PlaceholderCover("a"))
		})
	})
}
