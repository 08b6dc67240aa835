package booktools

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"livre/internal/model/book"
)

// mockSpeechProvider 用于测试的朗读服务
type mockSpeechProvider struct {
	audio  []byte
	err    error
	texts  []string
	voices []book.Voice
}

func (m *mockSpeechProvider) Synthesize(ctx context.Context, text string, voice book.Voice) ([]byte, error) {
	m.texts = append(m.texts, text)
	m.voices = append(m.voices, voice)
	return m.audio, m.err
}

func TestSynthesizer(t *testing.T) {
	ctx := context.Background()

	Convey("Synthesizer 合成朗读", t, func() {
		provider := &mockSpeechProvider{audio: []byte{1, 2, 3, 4}}
		synth := NewSynthesizer(provider)

		Convey("合成文本是以 \". \" 连接的原文", func() {
			page := &book.Page{ID: "p1", Sentences: []book.Sentence{{Source: "Le chat dort"}, {Source: "Il rêve"}}}
			So(synth.SynthesizePage(ctx, page, book.VoicePuck), ShouldBeTrue)
			So(page.Audio, ShouldResemble, []byte{1, 2, 3, 4})
			So(provider.texts, ShouldResemble, []string{"Le chat dort. Il rêve"})
			So(provider.voices[0], ShouldEqual, book.VoicePuck)
		})

		Convey("没有句子时不调用服务", func() {
			page := &book.Page{ID: "p1", Audio: []byte{9}}
			So(synth.SynthesizePage(ctx, page, book.VoiceKore), ShouldBeFalse)
			So(page.Audio, ShouldBeNil)
			So(len(provider.texts), ShouldEqual, 0)
		})

		Convey("已有音频时不重复合成", func() {
			page := &book.Page{ID: "p1", Sentences: []book.Sentence{{Source: "Bonjour"}}, Audio: []byte{7}}
			So(synth.SynthesizePage(ctx, page, book.VoiceKore), ShouldBeFalse)
			So(page.Audio, ShouldResemble, []byte{7})
			So(len(provider.texts), ShouldEqual, 0)
		})

		Convey("服务失败时页面保持无音频", func() {
			provider.err = errors.New("unavailable")
			page := &book.Page{ID: "p1", Sentences: []book.Sentence{{Source: "Bonjour"}}}
			So(synth.SynthesizePage(ctx, page, book.VoiceKore), ShouldBeFalse)
			So(page.Audio, ShouldBeNil)

			_, err := synth.Synthesize(ctx, "Bonjour", book.VoiceKore)
			So(errors.Is(err, ErrSynthesis), ShouldBeTrue)
			var synthErr *SynthesisError
			So(errors.As(err, &synthErr), ShouldBeTrue)
			So(synthErr.Voice, ShouldEqual, "Kore")
		})

		Convey("空音频视为合成失败，未知声音回落到默认", func() {
			provider.audio = nil
			_, err := synth.Synthesize(ctx, "Bonjour", book.Voice("Nobody"))
			So(errors.Is(err, ErrSynthesis), ShouldBeTrue)
			So(provider.voices[0], ShouldEqual, book.DefaultVoice)
		})

		Convey("空文本被拒绝", func() {
			_, err := synth.Synthesize(ctx, "  ", book.VoiceKore)
			So(errors.Is(err, ErrInvalidInput), ShouldBeTrue)
		})
	})
}
