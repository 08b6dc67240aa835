package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"livre/internal/model/book"
	"livre/internal/pkg/playback"
)

var playCmd = &cobra.Command{
	Use:   "play <book-id>",
	Short: "Read a book aloud with word highlighting in the terminal",
	Long: `Play the narration of each page while highlighting the spoken word.
Cached narration audio is played on the configured audio command;
pages without audio fall back to on-device speech.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var (
	playFromPage  int
	playPageCount int
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().IntVar(&playFromPage, "page", 1, "first page to read (1-based)")
	playCmd.Flags().IntVarP(&playPageCount, "count", "n", 0, "number of pages to read (0 = until the end)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	b, err := application.Books.GetBook(ctx, args[0])
	if err != nil {
		return err
	}
	if playFromPage < 1 || playFromPage > len(b.Pages) {
		return fmt.Errorf("page %d out of range (book has %d pages)", playFromPage, len(b.Pages))
	}

	engine, release, err := application.NewPlaybackEngine(ctx)
	if err != nil {
		return err
	}
	defer release()

	pages := b.Pages[playFromPage-1:]
	if playPageCount > 0 && playPageCount < len(pages) {
		pages = pages[:playPageCount]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n\n", b.Title)
	for i, page := range pages {
		fmt.Fprintf(out, "[%d] %s\n", playFromPage+i, page.Title)
		if !page.HasNarration() {
			fmt.Fprintln(out, "(no text on this page)")
			continue
		}
		if err := playPage(ctx, engine, page, out); err != nil {
			return err
		}
		for _, st := range page.Sentences {
			if st.Target != "" {
				fmt.Fprintf(out, "  %s\n", st.Target)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

// playPage 朗读一页并在同一行刷新高亮，直到结束或 ctx 取消
func playPage(ctx context.Context, engine *playback.Engine, page *book.Page, out io.Writer) error {
	text := page.DisplayText()
	vocabulary := make([]string, 0, len(page.Keywords))
	for _, kw := range page.Keywords {
		vocabulary = append(vocabulary, kw.Word)
	}
	segments := playback.Segments(text, vocabulary)

	type result struct {
		state playback.State
		err   error
	}
	queue := newOffsetQueue()
	done := make(chan result, 1)

	listener := playback.Listener{
		OnOffset: queue.push,
		OnDone: func(state playback.State, err error) {
			done <- result{state: state, err: err}
		},
	}

	req := playback.PageRequest{Key: page.ID, Text: text, Audio: page.Audio}
	if err := engine.PlayPage(ctx, req, listener); err != nil {
		return err
	}

	for {
		select {
		case <-queue.notify:
			drawOffsets(out, segments, queue.drain())
		case r := <-done:
			// 结束前的偏移（包括最后一个词）先全部绘制
			drawOffsets(out, segments, queue.drain())
			fmt.Fprint(out, "\r\033[K"+renderHighlight(segments, -1)+"\n")
			if r.state == playback.StateFailed {
				return fmt.Errorf("narration failed: %w", r.err)
			}
			return nil
		case <-ctx.Done():
			engine.StopPage()
			fmt.Fprintln(out)
			return ctx.Err()
		}
	}
}

// offsetQueue 按顺序保存尚未绘制的偏移，push 不阻塞播放协程也不丢弃偏移
type offsetQueue struct {
	mu      sync.Mutex
	pending []int
	notify  chan struct{}
}

func newOffsetQueue() *offsetQueue {
	return &offsetQueue{notify: make(chan struct{}, 1)}
}

func (q *offsetQueue) push(offset int) {
	q.mu.Lock()
	q.pending = append(q.pending, offset)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *offsetQueue) drain() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.pending
	q.pending = nil
	return pending
}

func drawOffsets(out io.Writer, segments []playback.Segment, offsets []int) {
	for _, offset := range offsets {
		fmt.Fprint(out, "\r\033[K"+renderHighlight(segments, playback.ActiveSegment(segments, offset)))
	}
}

// renderHighlight 当前词反色显示，词汇加粗
func renderHighlight(segments []playback.Segment, active int) string {
	var sb strings.Builder
	for i, seg := range segments {
		switch {
		case i == active:
			sb.WriteString("\033[7m" + seg.Text + "\033[0m")
		case seg.IsVocabulary:
			sb.WriteString("\033[1m" + seg.Text + "\033[0m")
		default:
			sb.WriteString(seg.Text)
		}
	}
	return sb.String()
}
