package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"livre/internal/model/book"
	"livre/internal/pkg/playback"
	bookservice "livre/internal/service/book"
)

var pronounceVoice string

var pronounceCmd = &cobra.Command{
	Use:   "pronounce <book-id> <word>",
	Short: "Pronounce a vocabulary word of a book",
	Long: `Play the pronunciation of a vocabulary word. The audio is synthesized on
first use and stored with the book; on-device speech is used when synthesis fails.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var voice book.Voice
		if pronounceVoice != "" {
			v, ok := book.ParseVoice(pronounceVoice)
			if !ok {
				return fmt.Errorf("unknown voice %q", pronounceVoice)
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

		bookID, word := args[0], args[1]
		audio, err := application.Books.KeywordAudio(ctx, bookID, word, voice)
		if errors.Is(err, bookservice.ErrBookNotFound) {
			return err
		}
		if err != nil {
			log.Warn().Err(err).Str("word", word).Msg("keyword audio unavailable, using on-device speech")
			audio = nil
		}

		engine, release, err := application.NewPlaybackEngine(ctx)
		if err != nil {
			return err
		}
		defer release()

		done := make(chan error, 1)
		listener := playback.Listener{
			OnDone: func(state playback.State, err error) {
				done <- err
			},
		}
		if err := engine.PlayWord(ctx, playback.WordRequest{Word: word, Audio: audio}, listener); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), word)
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			engine.StopWord()
			return ctx.Err()
		}
	},
}

func init() {
	rootCmd.AddCommand(pronounceCmd)

	pronounceCmd.Flags().StringVar(&pronounceVoice, "voice", "", "voice used when the word has no stored audio")
}
