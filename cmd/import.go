package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"livre/internal/model/book"
	bookservice "livre/internal/service/book"
)

var importCmd = &cobra.Command{
	Use:   "import [file...]",
	Short: "Import PDF or text files into the library",
	Long: `Import one or more PDF picture books or plain-text stories.
Use "-" to read a pasted story from standard input.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

var (
	importVoice string
	importText  bool
	importJobs  int
)

func init() {
	rootCmd.AddCommand(importCmd)

	flags := importCmd.Flags()
	flags.StringVar(&importVoice, "voice", "", "narration voice (Puck/Charon/Kore/Fenrir/Zephyr)")
	flags.BoolVar(&importText, "text", false, "treat every input as plain text")
	flags.IntVarP(&importJobs, "jobs", "j", 1, "number of files imported concurrently")
}

func runImport(cmd *cobra.Command, args []string) error {
	// 未指定时使用 pipeline.default_voice
	var voice book.Voice
	if importVoice != "" {
		v, ok := book.ParseVoice(importVoice)
		if !ok {
			return fmt.Errorf("unknown voice %q", importVoice)
		}
		voice = v
	}

	ctx, cancel := signalContext()
	defer cancel()

	application, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := importAll(ctx, application.Books, args, voice, importJobs, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		return err
	}
	log.Info().Int("files", len(args)).Msg("import complete")
	return nil
}

type bookImporter interface {
	Import(ctx context.Context, input *bookservice.ImportInput) (*book.Book, error)
}

// importAll 并发导入多个文件，各文件互不影响：一个失败不取消其他正在进行的导入
func importAll(ctx context.Context, books bookImporter, paths []string, voice book.Voice, jobs int, stdin io.Reader, out io.Writer) error {
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	for _, p := range paths {
		path := p
		g.Go(func() error {
			b, err := importFile(ctx, books, path, voice, stdin)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			fmt.Fprintf(out, "%s\t%s\t%d pages\n", b.ID, b.Title, len(b.Pages))
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		log.Error().Int("files", len(paths)).Int("failed", len(errs)).Msg("import finished with errors")
	}
	return errors.Join(errs...)
}

func importFile(ctx context.Context, books bookImporter, path string, voice book.Voice, stdin io.Reader) (*book.Book, error) {
	input, err := readImportInput(path, stdin)
	if err != nil {
		return nil, err
	}
	input.Voice = voice

	b, err := books.Import(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return b, nil
}

func readImportInput(path string, stdin io.Reader) (*bookservice.ImportInput, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return &bookservice.ImportInput{Data: data, Text: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &bookservice.ImportInput{
		SourceName: filepath.Base(path),
		Data:       data,
		Text:       importText,
	}, nil
}
